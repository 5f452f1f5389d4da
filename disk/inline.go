package disk

import (
	"fmt"

	"github.com/hupe1980/diskgraph/internal/rw"
)

// InlineVectors stores each node's raw float32 vector inline with its
// adjacency list. It is the exact score source for reranking.
type InlineVectors struct {
	values VectorValues
}

// NewInlineVectors creates the write side of the INLINE_VECTORS
// feature over the given vector source.
func NewInlineVectors(values VectorValues) *InlineVectors {
	return &InlineVectors{values: values}
}

// ID implements Feature.
func (f *InlineVectors) ID() FeatureID {
	return FeatureInlineVectors
}

// HeaderSize implements Feature. The header block is the declared
// dimension, cross-checked against the common header on load.
func (f *InlineVectors) HeaderSize() int {
	return 4
}

// InlineSize implements Feature.
func (f *InlineVectors) InlineSize() int {
	return 4 * f.values.Dimension()
}

// Dimension returns the vector dimensionality.
func (f *InlineVectors) Dimension() int {
	return f.values.Dimension()
}

// WriteHeader implements Feature.
func (f *InlineVectors) WriteHeader(w *rw.Writer) error {
	return w.WriteI32(int32(f.values.Dimension()))
}

// WriteInline implements Feature.
func (f *InlineVectors) WriteInline(node int, w *rw.Writer) error {
	vec := f.values.Vector(node)
	if len(vec) != f.values.Dimension() {
		return fmt.Errorf("%w: node %d vector has dimension %d, want %d", ErrPrecondition, node, len(vec), f.values.Dimension())
	}
	return w.WriteF32Slice(vec)
}

// inlineVectorsInfo is the read side of INLINE_VECTORS.
type inlineVectorsInfo struct {
	dim int
}

// loadInlineVectors parses the feature header block of a current
// version artifact.
func loadInlineVectors(common *CommonHeader, r *rw.Reader) (*inlineVectorsInfo, error) {
	declared, err := r.ReadI32()
	if err != nil {
		return nil, fmt.Errorf("%w: inline vectors header: %v", ErrFormat, err)
	}
	if int(declared) != common.Dimension {
		return nil, fmt.Errorf("%w: inline vectors declare dimension %d, header says %d", ErrFormat, declared, common.Dimension)
	}
	return &inlineVectorsInfo{dim: int(declared)}, nil
}

// newInlineVectorsInfoV0 builds the read side for version-0 artifacts,
// which have no feature header blocks.
func newInlineVectorsInfoV0(dim int) *inlineVectorsInfo {
	return &inlineVectorsInfo{dim: dim}
}

func (f *inlineVectorsInfo) id() FeatureID {
	return FeatureInlineVectors
}

func (f *inlineVectorsInfo) inlineSize() int {
	return 4 * f.dim
}

// readVector decodes the inline record at off into dst.
func (f *inlineVectorsInfo) readVector(r *rw.Reader, off int64, dst []float32) error {
	r.Seek(off)
	if err := r.ReadF32Into(dst); err != nil {
		return fmt.Errorf("%w: inline vector: %v", ErrFormat, err)
	}
	return nil
}
