package disk

import (
	"fmt"
	"math"

	"github.com/hupe1980/diskgraph/internal/rw"
)

// lvqCodeAlign pads per-node code blocks to this many bytes so records
// stay friendly to vectorized decode.
const lvqCodeAlign = 64

// LVQ stores locally-adaptive scalar-quantized vectors: per-dimension
// global means in the header, and per node a bias, a scale, and one
// 8-bit code per dimension. Reconstruction is
// mean[d] + bias + scale*code[d].
type LVQ struct {
	values VectorValues
	means  []float32
}

// NewLVQ creates the write side of the LVQ feature, computing the
// global per-dimension means over all vectors in the source.
func NewLVQ(values VectorValues) *LVQ {
	dim := values.Dimension()
	means := make([]float32, dim)
	sums := make([]float64, dim)
	var n int

	for id := 0; id < values.Count(); id++ {
		vec := values.Vector(id)
		if vec == nil {
			continue
		}
		n++
		for d := 0; d < dim; d++ {
			sums[d] += float64(vec[d])
		}
	}
	if n > 0 {
		for d := 0; d < dim; d++ {
			means[d] = float32(sums[d] / float64(n))
		}
	}

	return &LVQ{values: values, means: means}
}

// lvqPaddedCodes returns the 64-byte aligned code block length for a
// given dimension.
func lvqPaddedCodes(dim int) int {
	return (dim + lvqCodeAlign - 1) / lvqCodeAlign * lvqCodeAlign
}

// ID implements Feature.
func (f *LVQ) ID() FeatureID {
	return FeatureLVQ
}

// HeaderSize implements Feature.
func (f *LVQ) HeaderSize() int {
	return 4 * f.values.Dimension()
}

// InlineSize implements Feature.
func (f *LVQ) InlineSize() int {
	return lvqPaddedCodes(f.values.Dimension()) + 8
}

// Dimension returns the vector dimensionality.
func (f *LVQ) Dimension() int {
	return f.values.Dimension()
}

// WriteHeader implements Feature.
func (f *LVQ) WriteHeader(w *rw.Writer) error {
	return w.WriteF32Slice(f.means)
}

// WriteInline implements Feature.
func (f *LVQ) WriteInline(node int, w *rw.Writer) error {
	vec := f.values.Vector(node)
	dim := f.values.Dimension()
	if len(vec) != dim {
		return fmt.Errorf("%w: node %d vector has dimension %d, want %d", ErrPrecondition, node, len(vec), dim)
	}

	lo, hi := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for d := 0; d < dim; d++ {
		delta := vec[d] - f.means[d]
		if delta < lo {
			lo = delta
		}
		if delta > hi {
			hi = delta
		}
	}

	bias := lo
	scale := (hi - lo) / 255
	if err := w.WriteF32(bias); err != nil {
		return err
	}
	if err := w.WriteF32(scale); err != nil {
		return err
	}

	codes := make([]byte, lvqPaddedCodes(dim))
	if scale > 0 {
		for d := 0; d < dim; d++ {
			q := (vec[d] - f.means[d] - bias) / scale
			codes[d] = byte(math.RoundToEven(float64(q)))
		}
	}
	return w.Write(codes)
}

// lvqInfo is the read side of LVQ.
type lvqInfo struct {
	dim   int
	means []float32
}

func loadLVQ(common *CommonHeader, r *rw.Reader) (*lvqInfo, error) {
	means := make([]float32, common.Dimension)
	if err := r.ReadF32Into(means); err != nil {
		return nil, fmt.Errorf("%w: lvq header: %v", ErrFormat, err)
	}
	return &lvqInfo{dim: common.Dimension, means: means}, nil
}

func (f *lvqInfo) id() FeatureID {
	return FeatureLVQ
}

func (f *lvqInfo) inlineSize() int {
	return lvqPaddedCodes(f.dim) + 8
}

// readVector decodes the inline record at off into dst.
func (f *lvqInfo) readVector(r *rw.Reader, off int64, dst []float32) error {
	r.Seek(off)
	bias, err := r.ReadF32()
	if err != nil {
		return fmt.Errorf("%w: lvq record: %v", ErrFormat, err)
	}
	scale, err := r.ReadF32()
	if err != nil {
		return fmt.Errorf("%w: lvq record: %v", ErrFormat, err)
	}

	codes := make([]byte, f.dim)
	if err := r.ReadFull(codes); err != nil {
		return fmt.Errorf("%w: lvq record: %v", ErrFormat, err)
	}

	for d := 0; d < f.dim; d++ {
		dst[d] = f.means[d] + bias + scale*float32(codes[d])
	}
	return nil
}
