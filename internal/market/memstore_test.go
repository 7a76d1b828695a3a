package market

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLine(t *testing.T, s *MemStore, kg float64) (docID, lineID string) {
	t.Helper()
	ctx := context.Background()
	doc, err := s.FindOrCreateDocument(ctx, "center-1", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "morning", "tester")
	require.NoError(t, err)
	line, err := s.AddLine(ctx, doc.ID, LineInput{
		ItemID:     "tomato",
		Name:       "Tomatoes",
		Category:   "vegetables",
		PriceCents: 450,
		QuantityKg: kg,
		FarmerID:   "farmer-7",
		FarmerName: "Green Acres",
	})
	require.NoError(t, err)
	return doc.ID, line.ID
}

func available(t *testing.T, s *MemStore, docID, lineID string) float64 {
	t.Helper()
	l, err := s.GetLine(context.Background(), docID, lineID)
	require.NoError(t, err)
	return l.AvailableKg
}

func TestFindOrCreateDocumentConverges(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	a, err := s.FindOrCreateDocument(ctx, "center-1", date, "morning", "alice")
	require.NoError(t, err)
	b, err := s.FindOrCreateDocument(ctx, "center-1", date, "morning", "bob")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	other, err := s.FindOrCreateDocument(ctx, "center-1", date, "evening", "alice")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, other.ID)
}

func TestAddLineDuplicate(t *testing.T) {
	s := NewMemStore()
	docID, _ := seedLine(t, s, 10)

	_, err := s.AddLine(context.Background(), docID, LineInput{
		ItemID: "tomato", Name: "Tomatoes", PriceCents: 450, QuantityKg: 5, FarmerID: "farmer-7",
	})
	assert.ErrorIs(t, err, ErrDuplicateLine)
}

func TestAdjustReserveAndRoundTrip(t *testing.T) {
	s := NewMemStore()
	docID, lineID := seedLine(t, s, 10)
	ctx := context.Background()

	remaining, err := s.AdjustQuantity(ctx, docID, lineID, -4, true)
	require.NoError(t, err)
	assert.Equal(t, 6.0, remaining)

	remaining, err = s.AdjustQuantity(ctx, docID, lineID, 4, false)
	require.NoError(t, err)
	assert.Equal(t, 10.0, remaining)
}

func TestAdjustReleaseClampsToOriginal(t *testing.T) {
	s := NewMemStore()
	docID, lineID := seedLine(t, s, 10)
	ctx := context.Background()

	_, err := s.AdjustQuantity(ctx, docID, lineID, -5, true)
	require.NoError(t, err)

	remaining, err := s.AdjustQuantity(ctx, docID, lineID, 100, false)
	require.NoError(t, err)
	assert.Equal(t, 10.0, remaining, "release can never exceed the committed quantity")
}

func TestAdjustFloorIsHard(t *testing.T) {
	s := NewMemStore()
	docID, lineID := seedLine(t, s, 5)
	ctx := context.Background()

	remaining, err := s.AdjustQuantity(ctx, docID, lineID, -5, true)
	require.NoError(t, err)
	assert.Equal(t, 0.0, remaining)

	_, err = s.AdjustQuantity(ctx, docID, lineID, -1, true)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 0.0, available(t, s, docID, lineID), "failed reservation must not move stock")
}

func TestAdjustNotFoundDoesNotMutate(t *testing.T) {
	s := NewMemStore()
	docID, lineID := seedLine(t, s, 10)
	ctx := context.Background()

	_, err := s.AdjustQuantity(ctx, "missing-doc", lineID, -1, true)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AdjustQuantity(ctx, docID, "missing-line", -1, true)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 10.0, available(t, s, docID, lineID))
}

func TestAdjustZeroDeltaRejected(t *testing.T) {
	s := NewMemStore()
	docID, lineID := seedLine(t, s, 10)

	_, err := s.AdjustQuantity(context.Background(), docID, lineID, 0, true)
	assert.ErrorIs(t, err, ErrInvalidDelta)
	assert.Equal(t, 10.0, available(t, s, docID, lineID))
}

func TestAdjustRemovedLineNotFound(t *testing.T) {
	s := NewMemStore()
	docID, lineID := seedLine(t, s, 10)
	ctx := context.Background()

	require.NoError(t, s.RemoveLine(ctx, docID, lineID))
	_, err := s.AdjustQuantity(ctx, docID, lineID, -1, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentReservationsOneWinner(t *testing.T) {
	s := NewMemStore()
	docID, lineID := seedLine(t, s, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AdjustQuantity(ctx, docID, lineID, -3, true)
		}(i)
	}
	wg.Wait()

	var okCount, shortCount int
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		case assert.ErrorIs(t, err, ErrInsufficientStock):
			shortCount++
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, shortCount)
	assert.Equal(t, 2.0, available(t, s, docID, lineID))
}

func TestInvariantHoldsUnderMixedSequence(t *testing.T) {
	s := NewMemStore()
	docID, lineID := seedLine(t, s, 20)
	ctx := context.Background()

	deltas := []float64{-3, -7, 4, -10, 25, -20, 1, -0.5, 100, -19.5}
	for _, d := range deltas {
		_, err := s.AdjustQuantity(ctx, docID, lineID, d, true)
		if err != nil {
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}
		got := available(t, s, docID, lineID)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 20.0)
	}
}

func TestLineStatusFlow(t *testing.T) {
	s := NewMemStore()
	docID, lineID := seedLine(t, s, 5)
	ctx := context.Background()

	require.NoError(t, s.SetLineStatus(ctx, docID, lineID, LineSoldOut))
	require.NoError(t, s.SetLineStatus(ctx, docID, lineID, LineActive))

	// ACTIVE -> ACTIVE is not a transition
	assert.ErrorIs(t, s.SetLineStatus(ctx, docID, lineID, LineActive), ErrBadTransition)

	require.NoError(t, s.RemoveLine(ctx, docID, lineID))
	assert.ErrorIs(t, s.SetLineStatus(ctx, docID, lineID, LineActive), ErrBadTransition)
	assert.ErrorIs(t, s.RemoveLine(ctx, docID, lineID), ErrNotFound)
}
