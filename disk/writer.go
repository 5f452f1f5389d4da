package disk

import (
	"fmt"
	"io"

	"github.com/hupe1980/diskgraph/graph"
	"github.com/hupe1980/diskgraph/internal/rw"
)

// tombstoned is implemented by graphs that track pending deletions.
type tombstoned interface {
	DeletedCount() int
}

// WriterBuilder assembles a single-use Writer from a graph, a feature
// set, and an ordinal mapping.
type WriterBuilder struct {
	g        graph.Index
	mapping  OrdinalMap
	features map[FeatureID]Feature
}

// NewWriterBuilder creates a builder for the given graph. Unless
// WithMapping is called, the sequential renumbering of the graph is
// used.
func NewWriterBuilder(g graph.Index) *WriterBuilder {
	return &WriterBuilder{
		g:        g,
		features: make(map[FeatureID]Feature),
	}
}

// With adds a feature payload. Adding the same kind twice replaces the
// earlier one.
func (b *WriterBuilder) With(f Feature) *WriterBuilder {
	b.features[f.ID()] = f
	return b
}

// WithMapping overrides the ordinal mapping, e.g. for spatial
// reordering.
func (b *WriterBuilder) WithMapping(m OrdinalMap) *WriterBuilder {
	b.mapping = m
	return b
}

// Build validates the feature set and returns the Writer.
func (b *WriterBuilder) Build() (*Writer, error) {
	ids := make([]FeatureID, 0, len(b.features))
	for id := range b.features {
		ids = append(ids, id)
	}
	if err := validateFeatureSet(ids); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}

	mapping := b.mapping
	if mapping == nil {
		mapping = SequentialRenumbering(b.g)
	}

	return &Writer{
		g:        b.g,
		mapping:  mapping,
		features: sortFeatures(b.features),
	}, nil
}

// Writer persists a graph as an on-disk artifact. It is single-use and
// must not be shared between goroutines.
type Writer struct {
	g        graph.Index
	mapping  OrdinalMap
	features []Feature
	written  bool
}

// Write validates all preconditions and then streams the artifact to
// out in a single pass without seeking. Preconditions fail before any
// byte is produced; I/O errors propagate unchanged and leave out in an
// unspecified state.
func (w *Writer) Write(out io.Writer) error {
	if w.written {
		return ErrAlreadyWritten
	}

	if td, ok := w.g.(tombstoned); ok && td.DeletedCount() > 0 {
		return fmt.Errorf("%w: graph has %d tombstoned nodes; run cleanup before writing", ErrPrecondition, td.DeletedCount())
	}

	n := w.g.Size()
	inv, err := w.mapping.invert(n)
	if err != nil {
		return err
	}

	maxDegree := w.g.MaxDegree()
	for _, o := range inv {
		neighbors := w.g.Neighbors(o)
		if len(neighbors) > maxDegree {
			return fmt.Errorf("%w: node %d has %d neighbors, max degree %d", ErrPrecondition, o, len(neighbors), maxDegree)
		}
		for _, nb := range neighbors {
			if _, ok := w.mapping[int(nb)]; !ok {
				return fmt.Errorf("%w: node %d references neighbor %d outside the source graph", ErrPrecondition, o, nb)
			}
		}
	}

	entry := 0
	if n > 0 {
		mapped, ok := w.mapping[w.g.EntryNode()]
		if !ok {
			return fmt.Errorf("%w: entry node %d is not a live node", ErrPrecondition, w.g.EntryNode())
		}
		entry = mapped
	}

	w.written = true

	common := CommonHeader{
		Version:   CurrentVersion,
		Size:      n,
		Dimension: w.dimension(),
		EntryNode: entry,
		MaxDegree: maxDegree,
	}

	bw := rw.NewWriter(out)
	if err := writeHeader(bw, common, w.features); err != nil {
		return err
	}

	for k := 0; k < n; k++ {
		o := inv[k]

		// Leading ordinal; redundant with the stride, kept as a format
		// sanity check.
		if err := bw.WriteI32(int32(k)); err != nil {
			return err
		}

		for _, f := range w.features {
			before := bw.BytesWritten()
			if err := f.WriteInline(o, bw); err != nil {
				return err
			}
			if got := bw.BytesWritten() - before; got != int64(f.InlineSize()) {
				return fmt.Errorf("feature %v inline record wrote %d bytes, declared %d", f.ID(), got, f.InlineSize())
			}
		}

		neighbors := w.g.Neighbors(o)
		if err := bw.WriteI32(int32(len(neighbors))); err != nil {
			return err
		}
		for _, nb := range neighbors {
			if err := bw.WriteI32(int32(w.mapping[int(nb)])); err != nil {
				return err
			}
		}
		for j := len(neighbors); j < maxDegree; j++ {
			if err := bw.WriteI32(-1); err != nil {
				return err
			}
		}
	}

	return nil
}

// dimension derives the file-global D from an exact vector feature, or
// 0 when the artifact carries no vectors.
func (w *Writer) dimension() int {
	for _, f := range w.features {
		switch v := f.(type) {
		case *InlineVectors:
			return v.Dimension()
		case *LVQ:
			return v.Dimension()
		}
	}
	return 0
}
