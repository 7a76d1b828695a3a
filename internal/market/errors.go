package market

import "errors"

var (
	// ErrNotFound is returned when a document, line or order id does not
	// resolve, so HTTP handlers can respond with 404.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock means a reservation asked for more than the line
	// currently has. Callers treat this as a normal out-of-stock outcome.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidDelta means the adjustment amount is zero or non-finite,
	// rejected before any store access.
	ErrInvalidDelta = errors.New("invalid quantity delta")

	// ErrDuplicateLine means the (farmer, item) pair already has a line in
	// the document.
	ErrDuplicateLine = errors.New("line already exists in document")

	// ErrBadTransition means a status edit is not allowed by the machine.
	ErrBadTransition = errors.New("status transition not allowed")

	// ErrInvalidInput covers malformed line fields (missing ids, negative
	// price, non-positive quantity).
	ErrInvalidInput = errors.New("invalid input")
)
