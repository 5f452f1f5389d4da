package disk

import (
	"fmt"

	"github.com/hupe1980/diskgraph/graph"
)

// OrdinalMap renumbers source graph node ids onto the dense on-disk
// ordinal space [0, N). It must be injective; the Writer additionally
// verifies it is surjective onto [0, N).
type OrdinalMap map[int]int

// SequentialRenumbering scans node ids in [0, IDUpperBound) and assigns
// each live id the next dense ordinal. The result preserves relative
// order: for live ids i < j, map[i] < map[j].
func SequentialRenumbering(g graph.Index) OrdinalMap {
	m := make(OrdinalMap, g.Size())
	next := 0
	for id := 0; id < g.IDUpperBound(); id++ {
		if g.Contains(id) {
			m[id] = next
			next++
		}
	}
	return m
}

// invert builds the new->old ordinal array of length n, verifying the
// mapping is a bijection onto [0, n).
func (m OrdinalMap) invert(n int) ([]int, error) {
	if len(m) != n {
		return nil, fmt.Errorf("%w: ordinal mapping has %d entries, graph has %d nodes", ErrPrecondition, len(m), n)
	}

	inv := make([]int, n)
	seen := make([]bool, n)
	for old, ordinal := range m {
		if ordinal < 0 || ordinal >= n {
			return nil, fmt.Errorf("%w: ordinal mapping produced out-of-range entry %d -> %d", ErrPrecondition, old, ordinal)
		}
		if seen[ordinal] {
			return nil, fmt.Errorf("%w: ordinal mapping is not injective at ordinal %d", ErrPrecondition, ordinal)
		}
		seen[ordinal] = true
		inv[ordinal] = old
	}
	return inv, nil
}
