package redisx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSetsCommandTimeouts(t *testing.T) {
	rdb := New("localhost:6379")
	defer rdb.Close()

	opts := rdb.Options()
	require.Equal(t, 2*time.Second, opts.ReadTimeout)
	require.Equal(t, 2*time.Second, opts.WriteTimeout)
}
