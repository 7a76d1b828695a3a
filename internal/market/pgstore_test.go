package market

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// A nil pool would panic on any query; passing one proves invalid deltas
// are rejected before the store is touched.
func TestPgStoreRejectsInvalidDeltaBeforeQuery(t *testing.T) {
	s := &PgStore{DB: nil}

	_, err := s.AdjustQuantity(context.Background(), "doc", "line", 0, true)
	assert.ErrorIs(t, err, ErrInvalidDelta)

	_, err = s.AdjustQuantity(context.Background(), "doc", "line", math.NaN(), false)
	assert.ErrorIs(t, err, ErrInvalidDelta)

	_, err = s.AdjustQuantity(context.Background(), "doc", "line", math.Inf(-1), true)
	assert.ErrorIs(t, err, ErrInvalidDelta)
}

func TestTransitionSources(t *testing.T) {
	assert.ElementsMatch(t, []string{"ACTIVE"}, transitionSources(LineSoldOut))
	assert.ElementsMatch(t, []string{"SOLDOUT"}, transitionSources(LineActive))
	assert.ElementsMatch(t, []string{"ACTIVE", "SOLDOUT"}, transitionSources(LineRemoved))
	assert.Empty(t, transitionSources(LineStatus("BOGUS")))
}
