package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeCacheLoadsOnce(t *testing.T) {
	cache := NewCodeCache(4, time.Minute)
	loads := 0
	load := func(ctx context.Context, id int64) (string, error) {
		loads++
		return "cs", nil
	}

	for i := 0; i < 3; i++ {
		code, err := cache.Get(context.Background(), 1, load)
		require.NoError(t, err)
		assert.Equal(t, "CS", code)
	}
	assert.Equal(t, 1, loads)

	hits, misses := cache.Stats()
	assert.EqualValues(t, 2, hits)
	assert.EqualValues(t, 1, misses)
}

func TestCodeCacheDoesNotStoreFailures(t *testing.T) {
	cache := NewCodeCache(4, time.Minute)
	_, err := cache.Get(context.Background(), 1, func(context.Context, int64) (string, error) {
		return "", errors.New("missing")
	})
	require.Error(t, err)

	code, err := cache.Get(context.Background(), 1, func(context.Context, int64) (string, error) {
		return "ee", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "EE", code)
}
