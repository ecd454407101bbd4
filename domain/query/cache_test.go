package query

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	c.Set("a", &Response{Query: "a"})
	c.Set("b", &Response{Query: "b"})

	// Touch "a" so "b" becomes the eviction victim.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", &Response{Query: "c"})

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCacheSetUpdatesExistingKey(t *testing.T) {
	c := NewCache(2)
	c.Set("a", &Response{Query: "old"})
	c.Set("a", &Response{Query: "new"})

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new", got.Query)
	assert.Equal(t, 1, c.Len())
}

func TestCachePurgeDropsEverything(t *testing.T) {
	c := NewCache(8)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), &Response{})
	}
	require.Equal(t, 5, c.Len())

	c.Purge()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("k0")
	assert.False(t, ok)
}

func TestCacheStatsCountHitsAndMisses(t *testing.T) {
	c := NewCache(4)
	c.Set("a", &Response{})

	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
