package disk

import (
	"fmt"

	"github.com/hupe1980/diskgraph/graph"
	"github.com/hupe1980/diskgraph/internal/rw"
	"github.com/hupe1980/diskgraph/quantization"
)

// FusedADCClusters is the fixed product-quantization cluster count per
// subspace. One byte per code leaves headroom, but 32 keeps the query
// lookup table small enough to stay in L1.
const FusedADCClusters = 32

// FusedADC stores, for each node, the product-quantization codes of
// that node's neighbors, transposed subspace-major so that scoring all
// neighbors of a node is S contiguous lookup-add passes. It is an
// approximate score source and requires an exact one (INLINE_VECTORS
// or LVQ) alongside it.
type FusedADC struct {
	g         graph.Index
	pq        *quantization.ProductQuantizer
	maxDegree int
	codes     map[int][]byte // original node id -> S-byte PQ code
}

// NewFusedADC creates the write side of the FUSED_ADC feature. The
// quantizer must be trained with FusedADCClusters clusters per
// subspace; every live node's vector is encoded up front.
func NewFusedADC(g graph.Index, pq *quantization.ProductQuantizer, values VectorValues) (*FusedADC, error) {
	if pq.Clusters() != FusedADCClusters {
		return nil, fmt.Errorf("%w: fused ADC requires %d clusters per subspace, got %d", ErrPrecondition, FusedADCClusters, pq.Clusters())
	}
	if pq.Dimension() != values.Dimension() {
		return nil, fmt.Errorf("%w: quantizer dimension %d does not match vectors %d", ErrPrecondition, pq.Dimension(), values.Dimension())
	}

	codes := make(map[int][]byte, g.Size())
	for id := 0; id < g.IDUpperBound(); id++ {
		if !g.Contains(id) {
			continue
		}
		code, err := pq.Encode(values.Vector(id))
		if err != nil {
			return nil, fmt.Errorf("%w: encode node %d: %v", ErrPrecondition, id, err)
		}
		codes[id] = code
	}

	return &FusedADC{
		g:         g,
		pq:        pq,
		maxDegree: g.MaxDegree(),
		codes:     codes,
	}, nil
}

// ID implements Feature.
func (f *FusedADC) ID() FeatureID {
	return FeatureFusedADC
}

// HeaderSize implements Feature. The header block is the subspace
// count followed by the flat centroid codebook.
func (f *FusedADC) HeaderSize() int {
	return 4 + 4*len(f.pq.Centroids())
}

// InlineSize implements Feature.
func (f *FusedADC) InlineSize() int {
	return f.maxDegree * f.pq.Subspaces()
}

// WriteHeader implements Feature.
func (f *FusedADC) WriteHeader(w *rw.Writer) error {
	if err := w.WriteI32(int32(f.pq.Subspaces())); err != nil {
		return err
	}
	return w.WriteF32Slice(f.pq.Centroids())
}

// WriteInline implements Feature. Codes are laid out transposed: for
// each subspace, the code bytes of all M neighbor slots. Padding slots
// hold zero bytes; readers must gate by the neighbor list.
func (f *FusedADC) WriteInline(node int, w *rw.Writer) error {
	neighbors := f.g.Neighbors(node)
	s := f.pq.Subspaces()
	m := f.maxDegree

	block := make([]byte, m*s)
	for j, n := range neighbors {
		code, ok := f.codes[int(n)]
		if !ok {
			return fmt.Errorf("%w: node %d references neighbor %d with no code", ErrPrecondition, node, n)
		}
		for sub := 0; sub < s; sub++ {
			block[sub*m+j] = code[sub]
		}
	}
	return w.Write(block)
}

// fusedADCInfo is the read side of FUSED_ADC.
type fusedADCInfo struct {
	subspaces int
	maxDegree int
	pq        *quantization.ProductQuantizer
}

func loadFusedADC(common *CommonHeader, r *rw.Reader) (*fusedADCInfo, error) {
	s, err := r.ReadI32()
	if err != nil {
		return nil, fmt.Errorf("%w: fused ADC header: %v", ErrFormat, err)
	}
	if s <= 0 || common.Dimension%int(s) != 0 {
		return nil, fmt.Errorf("%w: fused ADC subspace count %d does not divide dimension %d", ErrFormat, s, common.Dimension)
	}

	centroids := make([]float32, int(s)*FusedADCClusters*(common.Dimension/int(s)))
	if err := r.ReadF32Into(centroids); err != nil {
		return nil, fmt.Errorf("%w: fused ADC codebook: %v", ErrFormat, err)
	}

	pq, err := quantization.NewFromCentroids(common.Dimension, int(s), FusedADCClusters, centroids)
	if err != nil {
		return nil, fmt.Errorf("%w: fused ADC codebook: %v", ErrFormat, err)
	}

	return &fusedADCInfo{
		subspaces: int(s),
		maxDegree: common.MaxDegree,
		pq:        pq,
	}, nil
}

func (f *fusedADCInfo) id() FeatureID {
	return FeatureFusedADC
}

func (f *fusedADCInfo) inlineSize() int {
	return f.maxDegree * f.subspaces
}

// readCodes reads the transposed M*S code block at off into dst.
func (f *fusedADCInfo) readCodes(r *rw.Reader, off int64, dst []byte) error {
	r.Seek(off)
	if err := r.ReadFull(dst[:f.inlineSize()]); err != nil {
		return fmt.Errorf("%w: fused ADC record: %v", ErrFormat, err)
	}
	return nil
}
