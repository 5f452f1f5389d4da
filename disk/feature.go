package disk

import (
	"fmt"

	"github.com/hupe1980/diskgraph/internal/rw"
)

// FeatureID identifies a kind of per-node payload stored inline with
// the adjacency list. The set is closed; each kind has a stable
// bitshift that fixes both its bitmask bit and its on-disk ordering.
type FeatureID int

const (
	// FeatureInlineVectors stores the raw float32 vector of each node.
	FeatureInlineVectors FeatureID = iota
	// FeatureFusedADC stores the product-quantization codes of each
	// node's neighbors, transposed for bulk scoring.
	FeatureFusedADC
	// FeatureLVQ stores locally-adaptive scalar-quantized vectors.
	FeatureLVQ

	numFeatureIDs
)

// allFeatureIDs lists every feature kind in ascending bitshift order,
// which is the on-disk order of header blocks and inline payloads.
var allFeatureIDs = []FeatureID{FeatureInlineVectors, FeatureFusedADC, FeatureLVQ}

// Bitshift returns the feature's stable bit index.
func (id FeatureID) Bitshift() int {
	return int(id)
}

func (id FeatureID) String() string {
	switch id {
	case FeatureInlineVectors:
		return "INLINE_VECTORS"
	case FeatureFusedADC:
		return "FUSED_ADC"
	case FeatureLVQ:
		return "LVQ"
	default:
		return fmt.Sprintf("FeatureID(%d)", int(id))
	}
}

// SerializeFeatureSet encodes a feature set as a bitmask with bit
// b = 1 iff the feature with bitshift b is present.
func SerializeFeatureSet(ids []FeatureID) int32 {
	var mask int32
	for _, id := range ids {
		mask |= 1 << id.Bitshift()
	}
	return mask
}

// DeserializeFeatureSet decodes a bitmask into feature kinds in
// ascending bitshift order. Unknown bits are a format error.
func DeserializeFeatureSet(mask int32) ([]FeatureID, error) {
	if mask>>numFeatureIDs != 0 {
		return nil, fmt.Errorf("%w: unknown feature bits in mask 0x%x", ErrFormat, mask)
	}
	var ids []FeatureID
	for _, id := range allFeatureIDs {
		if mask&(1<<id.Bitshift()) != 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// VectorValues supplies the source vectors of graph nodes at write
// time, addressed by original node id.
type VectorValues interface {
	// Dimension returns the vector dimensionality D.
	Dimension() int
	// Count returns one past the highest addressable id.
	Count() int
	// Vector returns the vector for a node id. The returned slice is
	// owned by the implementation.
	Vector(id int) []float32
}

// Feature is the write-side contract of a per-node payload kind. A
// Feature knows its fixed header block and inline record sizes and how
// to emit both; the record layout within those sizes is the feature's
// private contract.
type Feature interface {
	// ID returns the feature kind.
	ID() FeatureID
	// HeaderSize returns the size in bytes of the feature's header
	// block.
	HeaderSize() int
	// InlineSize returns the fixed size in bytes of the feature's
	// per-node inline record.
	InlineSize() int
	// WriteHeader emits the feature's header block.
	WriteHeader(w *rw.Writer) error
	// WriteInline emits the inline record for the original node id.
	WriteInline(node int, w *rw.Writer) error
}

// sortFeatures returns the features ordered by ascending bitshift.
func sortFeatures(features map[FeatureID]Feature) []Feature {
	ordered := make([]Feature, 0, len(features))
	for _, id := range allFeatureIDs {
		if f, ok := features[id]; ok {
			ordered = append(ordered, f)
		}
	}
	return ordered
}
