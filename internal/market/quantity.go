package market

import "math"

// ValidateDelta rejects adjustments that must never reach the store:
// zero, NaN or infinite deltas are caller bugs, not stock conditions.
func ValidateDelta(deltaKg float64) error {
	if deltaKg == 0 || math.IsNaN(deltaKg) || math.IsInf(deltaKg, 0) {
		return ErrInvalidDelta
	}
	return nil
}

// ClampQuantity applies a signed delta to a line's available quantity,
// bounded to [0, originalKg]. The SQL adjuster mirrors this exactly; both
// stores must agree on semantics.
func ClampQuantity(currentKg, deltaKg, originalKg float64) float64 {
	next := currentKg + deltaKg
	if next < 0 {
		return 0
	}
	if next > originalKg {
		return originalKg
	}
	return next
}
