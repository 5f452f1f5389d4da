package disk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskgraph/testutil"
)

func buildCachedIndex(t *testing.T, n, m int) (*Index, *testutil.CircularValues) {
	t.Helper()
	g := testutil.RandomlyConnectedGraph(n, m, 13)
	values := testutil.NewCircularValues(n)

	w, err := NewWriterBuilder(g).With(NewInlineVectors(values)).Build()
	require.NoError(t, err)
	return openArtifact(t, writeArtifact(t, w)), values
}

func TestGraphCachePinsBFSNeighborhood(t *testing.T) {
	ix, _ := buildCachedIndex(t, 100, 6)

	c, err := NewGraphCache(context.Background(), ix, CacheOptions{MaxNodes: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, c.Len())

	// The entry node is always pinned first.
	_, ok := c.Node(ix.EntryNode())
	assert.True(t, ok)

	// Pinned entries mirror the artifact exactly.
	v := ix.View()
	defer v.Close()
	for k := 0; k < ix.Size(); k++ {
		node, ok := c.Node(k)
		if !ok {
			continue
		}
		neighbors, err := v.Neighbors(k)
		require.NoError(t, err)
		assert.Equal(t, neighbors, node.Neighbors)

		vec, err := v.Vector(k)
		require.NoError(t, err)
		assert.Equal(t, vec, node.Vector)
	}
}

func TestCachedViewFallsThroughOnMiss(t *testing.T) {
	ix, values := buildCachedIndex(t, 100, 6)

	c, err := NewGraphCache(context.Background(), ix, CacheOptions{MaxNodes: 5})
	require.NoError(t, err)
	require.Equal(t, 5, c.Len())

	cv := c.View()
	defer cv.Close()

	plain := ix.View()
	defer plain.Close()

	pinnedBefore := c.Len()
	for k := 0; k < ix.Size(); k++ {
		got, err := cv.Neighbors(k)
		require.NoError(t, err)
		want, err := plain.Neighbors(k)
		require.NoError(t, err)
		assert.Equal(t, want, got, "node %d", k)

		vec, err := cv.Vector(k)
		require.NoError(t, err)
		assert.Equal(t, values.Vector(k), vec)
	}
	assert.Equal(t, pinnedBefore, c.Len(), "misses do not mutate the cache")
}

func TestGraphCacheMemoryBudget(t *testing.T) {
	ix, _ := buildCachedIndex(t, 100, 6)

	// A tiny budget pins almost nothing but never fails the build.
	c, err := NewGraphCache(context.Background(), ix, CacheOptions{
		MaxNodes:         50,
		MemoryLimitBytes: 64,
	})
	require.NoError(t, err)
	assert.Less(t, c.Len(), 50)

	cv := c.View()
	defer cv.Close()
	_, err = cv.Neighbors(0)
	assert.NoError(t, err)
}

func TestGraphCacheEmptyGraph(t *testing.T) {
	// Zero-node artifacts produce an empty cache, not an error.
	g := testutil.FullyConnectedGraph(0, 2)
	w, err := NewWriterBuilder(g).Build()
	require.NoError(t, err)
	ix := openArtifact(t, writeArtifact(t, w))

	c, err := NewGraphCache(context.Background(), ix, CacheOptions{})
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestGraphCacheCanceledContext(t *testing.T) {
	ix, _ := buildCachedIndex(t, 100, 6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGraphCache(ctx, ix, CacheOptions{
		MaxNodes:             50,
		ReadLimitBytesPerSec: 1, // force the limiter to block
	})
	assert.Error(t, err)
}
