package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDelta(t *testing.T) {
	assert.ErrorIs(t, ValidateDelta(0), ErrInvalidDelta)
	assert.ErrorIs(t, ValidateDelta(math.NaN()), ErrInvalidDelta)
	assert.ErrorIs(t, ValidateDelta(math.Inf(1)), ErrInvalidDelta)
	assert.ErrorIs(t, ValidateDelta(math.Inf(-1)), ErrInvalidDelta)

	assert.NoError(t, ValidateDelta(-3.5))
	assert.NoError(t, ValidateDelta(0.001))
}

func TestClampQuantity(t *testing.T) {
	cases := []struct {
		name                     string
		current, delta, original float64
		want                     float64
	}{
		{"reserve within stock", 10, -4, 10, 6},
		{"release within headroom", 5, 3, 10, 8},
		{"release overshoot clamps to original", 5, 100, 10, 10},
		{"reserve overshoot clamps to zero", 5, -100, 10, 0},
		{"exact drain", 5, -5, 10, 0},
		{"exact refill", 0, 10, 10, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClampQuantity(tc.current, tc.delta, tc.original))
		})
	}
}
