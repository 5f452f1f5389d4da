package disk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskgraph/graph"
	"github.com/hupe1980/diskgraph/testutil"
)

func TestWriteRejectsTombstones(t *testing.T) {
	g := graph.NewMemGraph(2)
	for i := 0; i < 3; i++ {
		g.AddNode(i)
	}
	g.MarkDeleted(1)

	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(testutil.NewCircularValues(3))).
		Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = w.Write(&buf)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, err.Error(), "run cleanup before writing")
	assert.Zero(t, buf.Len(), "no bytes before precondition failure")
}

func TestWriteRejectsMappingSizeMismatch(t *testing.T) {
	g := graph.NewMemGraph(2)
	g.AddNode(0)
	g.AddNode(1)

	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(testutil.NewCircularValues(2))).
		WithMapping(OrdinalMap{0: 0}).
		Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.ErrorIs(t, w.Write(&buf), ErrPrecondition)
	assert.Zero(t, buf.Len())
}

func TestWriteRejectsNonSurjectiveMapping(t *testing.T) {
	g := graph.NewMemGraph(2)
	g.AddNode(0)
	g.AddNode(1)

	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(testutil.NewCircularValues(2))).
		WithMapping(OrdinalMap{0: 0, 1: 3}).
		Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.ErrorIs(t, w.Write(&buf), ErrPrecondition)
	assert.Zero(t, buf.Len())
}

func TestWriteRejectsNeighborOutsideSourceGraph(t *testing.T) {
	g := graph.NewMemGraph(2)
	g.AddNode(0)
	g.AddNode(1)
	require.NoError(t, g.SetNeighbors(0, []int32{1}))
	// Deleting node 1 drops the 0->1 edge at cleanup; the revived node 1
	// then points at id 5, which is not in the graph.
	g.MarkDeleted(1)
	g.Cleanup()
	g.AddNode(1)
	require.NoError(t, g.SetNeighbors(1, []int32{5}))

	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(testutil.NewCircularValues(2))).
		Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.ErrorIs(t, w.Write(&buf), ErrPrecondition)
	assert.Zero(t, buf.Len())
}

func TestBuildRejectsFusedADCAlone(t *testing.T) {
	values := testutil.NewRandomValues(64, 16, 1)
	g := testutil.RandomlyConnectedGraph(64, 4, 1)
	pq := trainPQ(t, values, 4)

	fused, err := NewFusedADC(g, pq, values)
	require.NoError(t, err)

	_, err = NewWriterBuilder(g).With(fused).Build()
	assert.ErrorIs(t, err, ErrPrecondition)

	// With an exact score source alongside, the same set builds.
	_, err = NewWriterBuilder(g).
		With(fused).
		With(NewInlineVectors(values)).
		Build()
	assert.NoError(t, err)
}

func TestWriterIsSingleUse(t *testing.T) {
	g := testutil.FullyConnectedGraph(3, 2)

	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(testutil.NewCircularValues(3))).
		Build()
	require.NoError(t, err)

	var first bytes.Buffer
	require.NoError(t, w.Write(&first))

	var second bytes.Buffer
	err = w.Write(&second)
	assert.ErrorIs(t, err, ErrAlreadyWritten)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Zero(t, second.Len())
}

func TestRecordStrideAndFileSize(t *testing.T) {
	const n, m = 6, 5
	g := testutil.FullyConnectedGraph(n, m)
	values := testutil.NewCircularValues(n)

	w, err := NewWriterBuilder(g).With(NewInlineVectors(values)).Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf))

	headerSize := 28 + 4 // common fields + inline vectors block
	recordSize := 4 + 4*2 + 4 + 4*m
	assert.Equal(t, headerSize+n*recordSize, buf.Len())

	ix := openArtifact(t, buf.Bytes())
	assert.Equal(t, int64(recordSize), ix.RecordSize())
}
