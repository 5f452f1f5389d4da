package disk

import (
	"fmt"

	"github.com/hupe1980/diskgraph/distance"
	"github.com/hupe1980/diskgraph/internal/rw"
)

// ScoreFunction scores a single node against a fixed query. Higher is
// better.
type ScoreFunction func(node int) (float32, error)

// View is a single-goroutine read cursor over an artifact. It owns a
// private seek position and a preallocated neighbor buffer of length
// MaxDegree; slices returned by Neighbors alias that buffer and are
// valid until the next call.
type View struct {
	ix        *Index
	r         *rw.Reader
	neighbors []int32
	closed    bool
}

// Size returns the node count N.
func (v *View) Size() int { return v.ix.Size() }

// Dimension returns the vector dimensionality D.
func (v *View) Dimension() int { return v.ix.Dimension() }

// MaxDegree returns the fixed neighbor bound M.
func (v *View) MaxDegree() int { return v.ix.MaxDegree() }

// EntryNode returns the search entry ordinal.
func (v *View) EntryNode() int { return v.ix.EntryNode() }

// Close releases the view. It is idempotent; a closed view rejects all
// reads but Close stays safe.
func (v *View) Close() error {
	v.closed = true
	return nil
}

func (v *View) check(k int) error {
	if v.closed {
		return ErrViewClosed
	}
	return v.ix.checkNode(k)
}

// Neighbors returns the neighbor ordinals of node k. The returned
// slice aliases the view's scratch buffer.
func (v *View) Neighbors(k int) ([]int32, error) {
	if err := v.check(k); err != nil {
		return nil, err
	}

	v.r.Seek(v.ix.recordOffset(k) + v.ix.neighborsOff)
	count, err := v.r.ReadI32()
	if err != nil {
		return nil, fmt.Errorf("%w: node %d neighbors: %v", ErrFormat, k, err)
	}
	if count < 0 || int(count) > v.ix.MaxDegree() {
		return nil, fmt.Errorf("%w: node %d neighbor count %d > max degree %d", ErrFormat, k, count, v.ix.MaxDegree())
	}

	dst := v.neighbors[:count]
	if err := v.r.ReadI32Into(dst); err != nil {
		return nil, fmt.Errorf("%w: node %d neighbors: %v", ErrFormat, k, err)
	}
	for _, n := range dst {
		if n < 0 || int(n) >= v.ix.Size() {
			return nil, fmt.Errorf("%w: node %d references neighbor %d outside [0, %d)", ErrFormat, k, n, v.ix.Size())
		}
	}
	return dst, nil
}

// Vector returns the raw float32 vector of node k. Requires the
// INLINE_VECTORS feature.
func (v *View) Vector(k int) ([]float32, error) {
	dst := make([]float32, v.ix.Dimension())
	if err := v.VectorInto(k, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// VectorInto decodes the raw vector of node k into dst, which must
// have length Dimension. Requires the INLINE_VECTORS feature.
func (v *View) VectorInto(k int, dst []float32) error {
	if err := v.check(k); err != nil {
		return err
	}
	if v.ix.inline == nil {
		return fmt.Errorf("%w: artifact has no inline vectors", ErrUnsupported)
	}
	if len(dst) != v.ix.Dimension() {
		return fmt.Errorf("disk: destination has length %d, want %d", len(dst), v.ix.Dimension())
	}
	off := v.ix.recordOffset(k) + v.ix.featOff[FeatureInlineVectors]
	return v.ix.inline.readVector(v.r, off, dst)
}

// lvqVectorInto decodes the LVQ reconstruction of node k into dst.
func (v *View) lvqVectorInto(k int, dst []float32) error {
	off := v.ix.recordOffset(k) + v.ix.featOff[FeatureLVQ]
	return v.ix.lvq.readVector(v.r, off, dst)
}

// RerankerFor returns an exact score function over the artifact's
// exact vector source (INLINE_VECTORS, or the LVQ reconstruction when
// raw vectors are absent). The returned function shares this view's
// cursor and scratch space.
func (v *View) RerankerFor(query []float32, metric distance.Metric) (ScoreFunction, error) {
	if v.closed {
		return nil, ErrViewClosed
	}
	sim, err := distance.Provider(metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if len(query) != v.ix.Dimension() {
		return nil, fmt.Errorf("disk: query has dimension %d, want %d", len(query), v.ix.Dimension())
	}

	scratch := make([]float32, v.ix.Dimension())

	switch {
	case v.ix.inline != nil:
		return func(node int) (float32, error) {
			if err := v.VectorInto(node, scratch); err != nil {
				return 0, err
			}
			return sim(query, scratch), nil
		}, nil
	case v.ix.lvq != nil:
		return func(node int) (float32, error) {
			if err := v.check(node); err != nil {
				return 0, err
			}
			if err := v.lvqVectorInto(node, scratch); err != nil {
				return 0, err
			}
			return sim(query, scratch), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: artifact has no exact score source", ErrUnsupported)
	}
}

// ApproximateScorer scores all neighbors of a node in bulk against a
// query-dependent lookup table over the fused PQ codes.
type ApproximateScorer struct {
	v         *View
	lut       []float32 // subspaces * clusters partials
	transform func(float32) float32
	codes     []byte // scratch, maxDegree * subspaces
}

// ApproximateScorerFor builds a bulk neighbor scorer from the
// FUSED_ADC feature. Supported metrics are Euclidean and Dot; cosine
// needs norms the fused codes do not carry.
func (v *View) ApproximateScorerFor(query []float32, metric distance.Metric) (*ApproximateScorer, error) {
	if v.closed {
		return nil, ErrViewClosed
	}
	if v.ix.fused == nil {
		return nil, fmt.Errorf("%w: artifact has no fused ADC codes", ErrUnsupported)
	}
	if len(query) != v.ix.Dimension() {
		return nil, fmt.Errorf("disk: query has dimension %d, want %d", len(query), v.ix.Dimension())
	}

	var (
		lut       []float32
		transform func(float32) float32
		err       error
	)
	switch metric {
	case distance.MetricEuclidean:
		lut, err = v.ix.fused.pq.SquaredL2Table(query)
		transform = func(d float32) float32 { return 1 / (1 + d) }
	case distance.MetricDot:
		lut, err = v.ix.fused.pq.DotTable(query)
		transform = func(d float32) float32 { return (1 + d) / 2 }
	default:
		return nil, fmt.Errorf("%w: metric %v over fused ADC codes", ErrUnsupported, metric)
	}
	if err != nil {
		return nil, err
	}

	return &ApproximateScorer{
		v:         v,
		lut:       lut,
		transform: transform,
		codes:     make([]byte, v.ix.fused.inlineSize()),
	}, nil
}

// ScoreNeighbors reads node's fused code block once and scores all its
// neighbors against the lookup table. dst must have length MaxDegree;
// the neighbor count is returned and only dst[:count] is meaningful.
func (s *ApproximateScorer) ScoreNeighbors(node int, dst []float32) (int, error) {
	v := s.v
	if err := v.check(node); err != nil {
		return 0, err
	}
	if len(dst) < v.ix.MaxDegree() {
		return 0, fmt.Errorf("disk: destination has length %d, want %d", len(dst), v.ix.MaxDegree())
	}

	v.r.Seek(v.ix.recordOffset(node) + v.ix.neighborsOff)
	count, err := v.r.ReadI32()
	if err != nil {
		return 0, fmt.Errorf("%w: node %d neighbors: %v", ErrFormat, node, err)
	}
	if count < 0 || int(count) > v.ix.MaxDegree() {
		return 0, fmt.Errorf("%w: node %d neighbor count %d > max degree %d", ErrFormat, node, count, v.ix.MaxDegree())
	}

	if err := v.ix.fused.readCodes(v.r, v.ix.recordOffset(node)+v.ix.featOff[FeatureFusedADC], s.codes); err != nil {
		return 0, err
	}

	m := v.ix.MaxDegree()
	clusters := FusedADCClusters
	for j := 0; j < int(count); j++ {
		var sum float32
		for sub := 0; sub < v.ix.fused.subspaces; sub++ {
			sum += s.lut[sub*clusters+int(s.codes[sub*m+j])]
		}
		dst[j] = s.transform(sum)
	}
	return int(count), nil
}

// readNode loads node k's full record, including the leading sanity
// ordinal, and returns an immutable snapshot. Used by the cache.
func (v *View) readNode(k int) (*CachedNode, error) {
	if err := v.check(k); err != nil {
		return nil, err
	}

	v.r.Seek(v.ix.recordOffset(k))
	ordinal, err := v.r.ReadI32()
	if err != nil {
		return nil, fmt.Errorf("%w: node %d record: %v", ErrFormat, k, err)
	}
	if int(ordinal) != k {
		return nil, fmt.Errorf("%w: record %d carries ordinal %d", ErrFormat, k, ordinal)
	}

	node := &CachedNode{}

	neighbors, err := v.Neighbors(k)
	if err != nil {
		return nil, err
	}
	node.Neighbors = make([]int32, len(neighbors))
	copy(node.Neighbors, neighbors)

	if v.ix.inline != nil {
		node.Vector = make([]float32, v.ix.Dimension())
		if err := v.VectorInto(k, node.Vector); err != nil {
			return nil, err
		}
	} else if v.ix.lvq != nil {
		node.Vector = make([]float32, v.ix.Dimension())
		if err := v.lvqVectorInto(k, node.Vector); err != nil {
			return nil, err
		}
	}

	return node, nil
}
