// Package graph defines the in-memory proximity graph contract consumed
// by the on-disk writer, plus a mutable adjacency-list implementation.
package graph

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

var (
	// ErrNodeNotFound is returned when an operation references an id
	// that is not a live node.
	ErrNodeNotFound = errors.New("graph: node not found")
	// ErrDegreeExceeded is returned when a neighbor list is longer than
	// the graph's maximum degree.
	ErrDegreeExceeded = errors.New("graph: neighbor list exceeds max degree")
)

// Index is a read view of a directed proximity graph. Node ids are
// non-negative and live in [0, IDUpperBound); the id space may be
// sparse after deletions.
type Index interface {
	// Size returns the number of live nodes.
	Size() int
	// MaxDegree returns the fixed upper bound on neighbors per node.
	MaxDegree() int
	// EntryNode returns the id of the search entry node.
	EntryNode() int
	// IDUpperBound returns an exclusive upper bound on live node ids.
	IDUpperBound() int
	// Contains reports whether id is a live node.
	Contains(id int) bool
	// Neighbors returns the ordered neighbor ids of a live node. The
	// returned slice is owned by the graph and must not be mutated.
	Neighbors(id int) []int32
}

// MemGraph is a mutable adjacency-list graph. Deletions are tombstoned
// in a roaring bitmap and only take effect at Cleanup; a graph with
// pending tombstones cannot be persisted.
type MemGraph struct {
	maxDegree int
	entry     int
	edges     map[int][]int32
	present   *roaring.Bitmap
	deleted   *roaring.Bitmap
}

// NewMemGraph creates an empty graph with the given maximum degree.
func NewMemGraph(maxDegree int) *MemGraph {
	return &MemGraph{
		maxDegree: maxDegree,
		entry:     -1,
		edges:     make(map[int][]int32),
		present:   roaring.New(),
		deleted:   roaring.New(),
	}
}

// AddNode adds a node with no neighbors. Adding an existing node is a
// no-op; adding a tombstoned node revives it.
func (g *MemGraph) AddNode(id int) {
	g.present.Add(uint32(id))
	g.deleted.Remove(uint32(id))
	if _, ok := g.edges[id]; !ok {
		g.edges[id] = nil
	}
	if g.entry < 0 {
		g.entry = id
	}
}

// SetNeighbors replaces the neighbor list of a live node.
func (g *MemGraph) SetNeighbors(id int, neighbors []int32) error {
	if !g.Contains(id) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if len(neighbors) > g.maxDegree {
		return fmt.Errorf("%w: node %d has %d neighbors, max %d", ErrDegreeExceeded, id, len(neighbors), g.maxDegree)
	}
	cp := make([]int32, len(neighbors))
	copy(cp, neighbors)
	g.edges[id] = cp
	return nil
}

// SetEntryNode sets the search entry node.
func (g *MemGraph) SetEntryNode(id int) error {
	if !g.Contains(id) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	g.entry = id
	return nil
}

// MarkDeleted tombstones a node. The node stays visible until Cleanup.
func (g *MemGraph) MarkDeleted(id int) {
	if g.present.Contains(uint32(id)) {
		g.deleted.Add(uint32(id))
	}
}

// DeletedCount returns the number of pending tombstones.
func (g *MemGraph) DeletedCount() int {
	return int(g.deleted.GetCardinality())
}

// Cleanup compacts tombstones: deleted nodes are removed and edges
// pointing at them are dropped from the survivors. Surviving node ids
// are unchanged; dense renumbering happens at write time via the
// ordinal mapping.
func (g *MemGraph) Cleanup() {
	if g.deleted.IsEmpty() {
		return
	}

	it := g.deleted.Iterator()
	for it.HasNext() {
		id := it.Next()
		g.present.Remove(id)
		delete(g.edges, int(id))
	}

	for id, neighbors := range g.edges {
		kept := neighbors[:0]
		for _, n := range neighbors {
			if !g.deleted.Contains(uint32(n)) {
				kept = append(kept, n)
			}
		}
		g.edges[id] = kept
	}

	if g.deleted.Contains(uint32(g.entry)) {
		g.entry = -1
		if !g.present.IsEmpty() {
			g.entry = int(g.present.Minimum())
		}
	}

	g.deleted.Clear()
}

// Size returns the number of live nodes, tombstoned nodes included
// until Cleanup runs.
func (g *MemGraph) Size() int {
	return int(g.present.GetCardinality())
}

// MaxDegree returns the fixed neighbor bound.
func (g *MemGraph) MaxDegree() int {
	return g.maxDegree
}

// EntryNode returns the entry node id, or -1 for an empty graph.
func (g *MemGraph) EntryNode() int {
	return g.entry
}

// IDUpperBound returns one past the highest live node id.
func (g *MemGraph) IDUpperBound() int {
	if g.present.IsEmpty() {
		return 0
	}
	return int(g.present.Maximum()) + 1
}

// Contains reports whether id is a live node.
func (g *MemGraph) Contains(id int) bool {
	return id >= 0 && g.present.Contains(uint32(id))
}

// Neighbors returns the neighbor list of id, or nil for unknown ids.
func (g *MemGraph) Neighbors(id int) []int32 {
	return g.edges[id]
}
