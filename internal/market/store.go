package market

import (
	"context"
	"time"
)

// Store is the single choke point for stock mutation. Quantity changes go
// through AdjustQuantity only; nothing else may touch AvailableKg, which is
// what keeps the 0 <= available <= original invariant enforceable.
type Store interface {
	// FindOrCreateDocument returns the document for the shift triple,
	// creating an empty one on first publication.
	FindOrCreateDocument(ctx context.Context, centerID string, shiftDate time.Time, shiftName, createdBy string) (StockDocument, error)

	// GetDocument loads a document with its lines, REMOVED ones included.
	GetDocument(ctx context.Context, documentID string) (StockDocument, error)

	// FindDocument looks a document up by its shift triple.
	FindDocument(ctx context.Context, centerID string, shiftDate time.Time, shiftName string) (StockDocument, error)

	GetLine(ctx context.Context, documentID, lineID string) (StockLine, error)

	// AddLine appends a farmer offering. AvailableKg starts equal to
	// OriginalKg. ErrDuplicateLine when the (farmer, item) pair is already
	// listed.
	AddLine(ctx context.Context, documentID string, in LineInput) (StockLine, error)

	// RemoveLine is the pull operation: the line is marked REMOVED and no
	// longer matches adjustments.
	RemoveLine(ctx context.Context, documentID, lineID string) error

	// SetLineStatus edits status through the line machine.
	SetLineStatus(ctx context.Context, documentID, lineID string, to LineStatus) error

	// AdjustQuantity applies a signed kg delta to one line atomically,
	// clamped to [0, OriginalKg]. Negative delta = reservation, positive =
	// release. With enforce set, a reservation only succeeds when the line
	// holds at least |deltaKg|; otherwise ErrInsufficientStock. Returns the
	// post-update available quantity.
	AdjustQuantity(ctx context.Context, documentID, lineID string, deltaKg float64, enforce bool) (float64, error)
}
