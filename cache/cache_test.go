package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalCacheEvictsOldest(t *testing.T) {
	c, err := NewLocalCache(2)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, ok := c.Get("a")
	require.False(t, ok)
	v, ok := c.Get("c")
	require.True(t, ok)
	require.Equal(t, 3, v)
	require.Equal(t, 2, c.Len())
}

func TestNoopCache(t *testing.T) {
	var c Cache = NoopCache{}
	c.Set("a", 1)
	_, ok := c.Get("a")
	require.False(t, ok)
}
