package disk

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskgraph/graph"
	"github.com/hupe1980/diskgraph/quantization"
	"github.com/hupe1980/diskgraph/testutil"
)

func writeArtifact(t *testing.T, w *Writer) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf))
	return buf.Bytes()
}

func openArtifact(t *testing.T, data []byte) *Index {
	t.Helper()
	ix, err := OpenIndex(bytes.NewReader(data), 0)
	require.NoError(t, err)
	return ix
}

func trainPQ(t *testing.T, values VectorValues, subspaces int) *quantization.ProductQuantizer {
	t.Helper()
	pq, err := quantization.NewProductQuantizer(values.Dimension(), subspaces, FusedADCClusters)
	require.NoError(t, err)

	vecs := make([][]float32, 0, values.Count())
	for i := 0; i < values.Count(); i++ {
		if v := values.Vector(i); v != nil {
			vecs = append(vecs, v)
		}
	}
	require.NoError(t, pq.Train(vecs))
	return pq
}

// assertGraphEquals checks that the on-disk neighbors of every live
// source node match the source graph under the mapping.
func assertGraphEquals(t *testing.T, g graph.Index, mapping OrdinalMap, ix *Index) {
	t.Helper()
	v := ix.View()
	defer v.Close()

	for id := 0; id < g.IDUpperBound(); id++ {
		if !g.Contains(id) {
			continue
		}
		want := make([]int32, 0, len(g.Neighbors(id)))
		for _, n := range g.Neighbors(id) {
			want = append(want, int32(mapping[int(n)]))
		}

		got, err := v.Neighbors(mapping[id])
		require.NoError(t, err)
		assert.Equal(t, want, got, "node %d", id)
	}
}

func TestFullyConnectedRoundTrip(t *testing.T) {
	// Fully connected graph of 6 nodes, circular unit vectors, M=5.
	const n, m = 6, 5
	g := testutil.FullyConnectedGraph(n, m)
	values := testutil.NewCircularValues(n)

	w, err := NewWriterBuilder(g).With(NewInlineVectors(values)).Build()
	require.NoError(t, err)

	ix := openArtifact(t, writeArtifact(t, w))
	assert.Equal(t, n, ix.Size())
	assert.Equal(t, 2, ix.Dimension())
	assert.Equal(t, m, ix.MaxDegree())
	assert.Equal(t, CurrentVersion, ix.Version())
	assert.Equal(t, []FeatureID{FeatureInlineVectors}, ix.Features())

	assertGraphEquals(t, g, SequentialRenumbering(g), ix)

	v := ix.View()
	defer v.Close()
	for k := 0; k < n; k++ {
		neighbors, err := v.Neighbors(k)
		require.NoError(t, err)
		require.Len(t, neighbors, n-1)
		for _, nb := range neighbors {
			assert.NotEqual(t, int32(k), nb)
		}

		vec, err := v.Vector(k)
		require.NoError(t, err)
		assert.Equal(t, values.Vector(k), vec, "vectors survive bit-exactly")
	}
}

func TestRenumberingOnDelete(t *testing.T) {
	// 3-node graph, delete node 0, cleanup, write with sequential
	// renumbering {1->0, 2->1}.
	g := graph.NewMemGraph(2)
	for i := 0; i < 3; i++ {
		g.AddNode(i)
	}
	require.NoError(t, g.SetNeighbors(0, []int32{1, 2}))
	require.NoError(t, g.SetNeighbors(1, []int32{0, 2}))
	require.NoError(t, g.SetNeighbors(2, []int32{0, 1}))

	g.MarkDeleted(0)
	g.Cleanup()

	mapping := SequentialRenumbering(g)
	require.Equal(t, OrdinalMap{1: 0, 2: 1}, mapping)

	values := testutil.NewCircularValues(3)
	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(values)).
		WithMapping(mapping).
		Build()
	require.NoError(t, err)

	ix := openArtifact(t, writeArtifact(t, w))
	require.Equal(t, 2, ix.Size())

	v := ix.View()
	defer v.Close()

	neighbors, err := v.Neighbors(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, neighbors)

	neighbors, err = v.Neighbors(1)
	require.NoError(t, err)
	assert.Equal(t, []int32{0}, neighbors)
}

func TestReorderingRenumbering(t *testing.T) {
	// User-supplied mapping {0->2, 1->1, 2->0} permutes the records.
	g := testutil.FullyConnectedGraph(3, 2)
	values := testutil.NewCircularValues(3)

	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(values)).
		WithMapping(OrdinalMap{0: 2, 1: 1, 2: 0}).
		Build()
	require.NoError(t, err)

	ix := openArtifact(t, writeArtifact(t, w))
	v := ix.View()
	defer v.Close()

	for old, ordinal := range map[int]int{0: 2, 1: 1, 2: 0} {
		vec, err := v.Vector(ordinal)
		require.NoError(t, err)
		assert.Equal(t, values.Vector(old), vec)
	}
}

func TestSanityOrdinalsAndNeighborRange(t *testing.T) {
	const n, m = 10, 4
	g := testutil.RandomlyConnectedGraph(n, m, 42)
	values := testutil.NewCircularValues(n)

	w, err := NewWriterBuilder(g).With(NewInlineVectors(values)).Build()
	require.NoError(t, err)
	data := writeArtifact(t, w)

	// Walk the raw bytes: every record leads with its own ordinal, the
	// first count slots are valid ids, the rest are -1 padding.
	headerSize := 28 + 4
	recordSize := 4 + 4*2 + 4 + 4*m
	require.Equal(t, headerSize+n*recordSize, len(data))

	for k := 0; k < n; k++ {
		rec := data[headerSize+k*recordSize:]
		assert.Equal(t, int32(k), int32(binary.BigEndian.Uint32(rec)), "sanity ordinal")

		count := int32(binary.BigEndian.Uint32(rec[4+8:]))
		require.LessOrEqual(t, count, int32(m))
		for j := 0; j < m; j++ {
			id := int32(binary.BigEndian.Uint32(rec[4+8+4+4*j:]))
			if j < int(count) {
				assert.GreaterOrEqual(t, id, int32(0))
				assert.Less(t, id, int32(n))
			} else {
				assert.Equal(t, int32(-1), id)
			}
		}
	}
}

func TestLargeGraph(t *testing.T) {
	if testing.Short() {
		t.Skip("large fixture")
	}

	const n, m, entry = 100_000, 32, 99779
	g := testutil.RandomlyConnectedGraph(n, m, 7)
	require.NoError(t, g.SetEntryNode(entry))
	values := testutil.NewCircularValues(n)

	w, err := NewWriterBuilder(g).With(NewInlineVectors(values)).Build()
	require.NoError(t, err)

	ix := openArtifact(t, writeArtifact(t, w))
	assert.Equal(t, n, ix.Size())
	assert.Equal(t, m, ix.MaxDegree())
	assert.Equal(t, entry, ix.EntryNode())
	assert.Equal(t, 2, ix.Dimension())

	v := ix.View()
	defer v.Close()

	const probe = 12345
	neighbors, err := v.Neighbors(probe)
	require.NoError(t, err)
	want := g.Neighbors(probe) // sequential renumbering is the identity here
	assert.Equal(t, want, neighbors)

	vec, err := v.Vector(probe)
	require.NoError(t, err)
	assert.Equal(t, values.Vector(probe), vec)
}

func TestVersion0Compatibility(t *testing.T) {
	// A version-0 artifact has no magic or version words and implies
	// features = {INLINE_VECTORS}.
	const n, m = 4, 2
	values := testutil.NewCircularValues(n)
	g := testutil.RandomlyConnectedGraph(n, m, 3)

	var buf bytes.Buffer
	writeI32 := func(v int32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	}
	writeF32 := func(v float32) {
		writeI32(int32(math.Float32bits(v)))
	}

	writeI32(n) // N
	writeI32(2) // D
	writeI32(0) // entry node
	writeI32(m) // M
	for k := 0; k < n; k++ {
		writeI32(int32(k))
		for _, f := range values.Vector(k) {
			writeF32(f)
		}
		neighbors := g.Neighbors(k)
		writeI32(int32(len(neighbors)))
		for _, nb := range neighbors {
			writeI32(nb)
		}
		for j := len(neighbors); j < m; j++ {
			writeI32(-1)
		}
	}

	ix := openArtifact(t, buf.Bytes())
	assert.Equal(t, 0, ix.Version())
	assert.Equal(t, n, ix.Size())
	assert.Equal(t, 2, ix.Dimension())
	assert.Equal(t, m, ix.MaxDegree())
	assert.Equal(t, []FeatureID{FeatureInlineVectors}, ix.Features())

	v := ix.View()
	defer v.Close()
	for k := 0; k < n; k++ {
		neighbors, err := v.Neighbors(k)
		require.NoError(t, err)
		assert.Equal(t, g.Neighbors(k), neighbors)

		vec, err := v.Vector(k)
		require.NoError(t, err)
		assert.Equal(t, values.Vector(k), vec)
	}
}

func TestAllFeaturesStride(t *testing.T) {
	// D=64, S=8, M=32 with all three features pins the stride formula:
	// 4 + 4*64 + 32*8 + (64+8) + 4 + 4*32 bytes per record.
	const n, d, m, s = 100, 64, 32, 8
	values := testutil.NewRandomValues(n, d, 11)
	g := testutil.RandomlyConnectedGraph(n, m, 11)
	pq := trainPQ(t, values, s)

	fused, err := NewFusedADC(g, pq, values)
	require.NoError(t, err)

	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(values)).
		With(fused).
		With(NewLVQ(values)).
		Build()
	require.NoError(t, err)

	data := writeArtifact(t, w)

	recordSize := 4 + 4*d + m*s + (64 + 8) + 4 + 4*m
	assert.Equal(t, 720, recordSize)

	headerSize := 28 + 4 + (4 + 4*s*FusedADCClusters*(d/s)) + 4*d
	assert.Equal(t, headerSize+n*recordSize, len(data))

	ix := openArtifact(t, data)
	assert.Equal(t, int64(recordSize), ix.RecordSize())
	assert.Equal(t, []FeatureID{FeatureInlineVectors, FeatureFusedADC, FeatureLVQ}, ix.Features())

	assertGraphEquals(t, g, SequentialRenumbering(g), ix)
}

func TestOpenAtBaseOffset(t *testing.T) {
	// Artifacts can be embedded at a non-zero offset inside a larger
	// file; the caller supplies where the header starts.
	g := testutil.FullyConnectedGraph(3, 2)
	values := testutil.NewCircularValues(3)
	w, err := NewWriterBuilder(g).With(NewInlineVectors(values)).Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.Write(make([]byte, 128)) // preamble owned by the embedding file
	require.NoError(t, w.Write(&buf))

	ix, err := OpenIndex(bytes.NewReader(buf.Bytes()), 128)
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Size())

	v := ix.View()
	defer v.Close()
	vec, err := v.Vector(1)
	require.NoError(t, err)
	assert.Equal(t, values.Vector(1), vec)
}

func TestViewCloseIdempotent(t *testing.T) {
	g := testutil.FullyConnectedGraph(3, 2)
	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(testutil.NewCircularValues(3))).
		Build()
	require.NoError(t, err)

	ix := openArtifact(t, writeArtifact(t, w))
	v := ix.View()

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())

	_, err = v.Neighbors(0)
	assert.ErrorIs(t, err, ErrViewClosed)
	_, err = v.Vector(0)
	assert.ErrorIs(t, err, ErrViewClosed)
}

func TestOpenRejectsCorruptHeaders(t *testing.T) {
	g := testutil.FullyConnectedGraph(3, 2)
	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(testutil.NewCircularValues(3))).
		Build()
	require.NoError(t, err)
	data := writeArtifact(t, w)

	t.Run("future version", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.BigEndian.PutUint32(bad[4:], CurrentVersion+1)
		_, err := OpenIndex(bytes.NewReader(bad), 0)
		assert.ErrorIs(t, err, ErrInvalidVersion)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := OpenIndex(bytes.NewReader(data[:10]), 0)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("entry node out of range", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.BigEndian.PutUint32(bad[16:], 99) // entry beyond N
		_, err := OpenIndex(bytes.NewReader(bad), 0)
		assert.ErrorIs(t, err, ErrFormat)
	})
}

func TestNeighborCountFormatError(t *testing.T) {
	const n, m = 3, 2
	g := testutil.FullyConnectedGraph(n, m)
	w, err := NewWriterBuilder(g).
		With(NewInlineVectors(testutil.NewCircularValues(n))).
		Build()
	require.NoError(t, err)
	data := writeArtifact(t, w)

	headerSize := 28 + 4
	recordSize := 4 + 8 + 4 + 4*m

	// Corrupt record 1's neighbor count beyond M.
	binary.BigEndian.PutUint32(data[headerSize+recordSize+4+8:], 17)

	ix := openArtifact(t, data)
	v := ix.View()
	defer v.Close()

	_, err = v.Neighbors(1)
	assert.ErrorIs(t, err, ErrFormat)

	// Other records stay readable; the view survives isolated errors.
	_, err = v.Neighbors(0)
	assert.NoError(t, err)
}
