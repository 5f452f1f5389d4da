package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndNeighbors(t *testing.T) {
	g := NewMemGraph(4)
	g.AddNode(0)
	g.AddNode(1)
	g.AddNode(2)

	require.NoError(t, g.SetNeighbors(0, []int32{1, 2}))
	require.NoError(t, g.SetNeighbors(1, []int32{0}))

	assert.Equal(t, 3, g.Size())
	assert.Equal(t, 4, g.MaxDegree())
	assert.Equal(t, 3, g.IDUpperBound())
	assert.Equal(t, 0, g.EntryNode())
	assert.Equal(t, []int32{1, 2}, g.Neighbors(0))
	assert.Empty(t, g.Neighbors(2))
}

func TestDegreeBound(t *testing.T) {
	g := NewMemGraph(1)
	g.AddNode(0)
	g.AddNode(1)
	g.AddNode(2)

	err := g.SetNeighbors(0, []int32{1, 2})
	assert.ErrorIs(t, err, ErrDegreeExceeded)
}

func TestSetNeighborsUnknownNode(t *testing.T) {
	g := NewMemGraph(2)
	err := g.SetNeighbors(7, []int32{0})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestTombstoneAndCleanup(t *testing.T) {
	g := NewMemGraph(2)
	for i := 0; i < 3; i++ {
		g.AddNode(i)
	}
	require.NoError(t, g.SetNeighbors(0, []int32{1, 2}))
	require.NoError(t, g.SetNeighbors(1, []int32{0, 2}))
	require.NoError(t, g.SetNeighbors(2, []int32{0, 1}))

	g.MarkDeleted(0)
	assert.Equal(t, 1, g.DeletedCount())
	assert.Equal(t, 3, g.Size(), "tombstone visible until cleanup")

	g.Cleanup()

	assert.Equal(t, 0, g.DeletedCount())
	assert.Equal(t, 2, g.Size())
	assert.False(t, g.Contains(0))
	assert.Equal(t, []int32{2}, g.Neighbors(1))
	assert.Equal(t, []int32{1}, g.Neighbors(2))
	assert.Equal(t, 1, g.EntryNode(), "entry moves off the deleted node")
	assert.Equal(t, 3, g.IDUpperBound(), "surviving ids are unchanged")
}

func TestCleanupNoTombstones(t *testing.T) {
	g := NewMemGraph(2)
	g.AddNode(0)
	g.Cleanup()
	assert.Equal(t, 1, g.Size())
}

func TestSparseIDs(t *testing.T) {
	g := NewMemGraph(2)
	g.AddNode(1)
	g.AddNode(5)

	assert.Equal(t, 2, g.Size())
	assert.Equal(t, 6, g.IDUpperBound())
	assert.False(t, g.Contains(0))
	assert.True(t, g.Contains(5))
}
