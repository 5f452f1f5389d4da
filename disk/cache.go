package disk

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/diskgraph/internal/resource"
)

// CachedNode is an immutable in-memory snapshot of one node's record:
// its neighbor list and, when the artifact carries a vector source,
// its (exact or reconstructed) vector.
type CachedNode struct {
	Neighbors []int32
	Vector    []float32
}

// CacheOptions configures GraphCache warmup.
type CacheOptions struct {
	// MaxNodes bounds the number of pinned nodes, collected by BFS
	// from the entry node.
	MaxNodes int

	// MaxWorkers bounds warmup load concurrency.
	MaxWorkers int

	// MemoryLimitBytes caps the pinned snapshot size. When the budget
	// runs out, remaining nodes are simply not pinned. 0 means
	// unlimited.
	MemoryLimitBytes int64

	// ReadLimitBytesPerSec throttles warmup reads so a cold start does
	// not starve foreground searches. 0 means unlimited.
	ReadLimitBytesPerSec int64
}

// DefaultCacheOptions returns the default warmup configuration.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		MaxNodes:   1024,
		MaxWorkers: 4,
	}
}

// GraphCache pins the BFS neighborhood of the entry node in memory.
// The pinned snapshot is built once, is immutable afterwards, and is
// safe for concurrent readers. Misses fall through to the underlying
// artifact and never mutate the cache; pinned entries are never
// evicted.
type GraphCache struct {
	ix     *Index
	pinned map[int]*CachedNode
}

// NewGraphCache builds a pinned cache over the index by BFS from the
// entry node, loading node snapshots with bounded concurrency.
func NewGraphCache(ctx context.Context, ix *Index, opts CacheOptions) (*GraphCache, error) {
	def := DefaultCacheOptions()
	if opts.MaxNodes == 0 {
		opts.MaxNodes = def.MaxNodes
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = def.MaxWorkers
	}

	c := &GraphCache{
		ix:     ix,
		pinned: make(map[int]*CachedNode),
	}
	if ix.Size() == 0 || opts.MaxNodes < 0 {
		return c, nil
	}

	ids, err := c.bfsOrder(opts.MaxNodes)
	if err != nil {
		return nil, err
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:     opts.MemoryLimitBytes,
		MaxWorkers:           int64(opts.MaxWorkers),
		ReadLimitBytesPerSec: opts.ReadLimitBytesPerSec,
	})

	nodes := make([]*CachedNode, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxWorkers)

	for i, id := range ids {
		g.Go(func() error {
			if err := rc.AcquireRead(gctx, int(ix.RecordSize())); err != nil {
				return err
			}

			v := ix.View()
			defer v.Close()

			node, err := v.readNode(id)
			if err != nil {
				return err
			}

			if !rc.TryAcquireMemory(nodeBytes(node)) {
				return nil // budget exhausted, leave unpinned
			}
			nodes[i] = node
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		if nodes[i] != nil {
			c.pinned[id] = nodes[i]
		}
	}
	return c, nil
}

// bfsOrder walks the graph breadth-first from the entry node and
// returns up to maxNodes ordinals in visit order.
func (c *GraphCache) bfsOrder(maxNodes int) ([]int, error) {
	v := c.ix.View()
	defer v.Close()

	visited := make(map[int]bool, maxNodes)
	order := make([]int, 0, maxNodes)
	queue := []int{c.ix.EntryNode()}
	visited[c.ix.EntryNode()] = true

	for len(queue) > 0 && len(order) < maxNodes {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		neighbors, err := v.Neighbors(id)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if !visited[int(n)] {
				visited[int(n)] = true
				queue = append(queue, int(n))
			}
		}
	}
	return order, nil
}

func nodeBytes(n *CachedNode) int64 {
	return int64(4*len(n.Neighbors) + 4*len(n.Vector))
}

// Node returns the pinned snapshot for ordinal k, if present.
func (c *GraphCache) Node(k int) (*CachedNode, bool) {
	n, ok := c.pinned[k]
	return n, ok
}

// Len returns the number of pinned nodes.
func (c *GraphCache) Len() int {
	return len(c.pinned)
}

// View creates a cached view: hits answer from the pinned snapshot,
// misses fall through to a fresh inner View.
func (c *GraphCache) View() *CachedView {
	return &CachedView{cache: c, inner: c.ix.View()}
}

// CachedView layers the pinned snapshot over a View. Like View it is a
// single-goroutine resource; the snapshot it reads from is shared.
type CachedView struct {
	cache *GraphCache
	inner *View
}

// Size returns the node count N.
func (v *CachedView) Size() int { return v.inner.Size() }

// Dimension returns the vector dimensionality D.
func (v *CachedView) Dimension() int { return v.inner.Dimension() }

// MaxDegree returns the fixed neighbor bound M.
func (v *CachedView) MaxDegree() int { return v.inner.MaxDegree() }

// EntryNode returns the search entry ordinal.
func (v *CachedView) EntryNode() int { return v.inner.EntryNode() }

// Neighbors returns node k's neighbors, from the pinned snapshot when
// possible. The returned slice must not be mutated.
func (v *CachedView) Neighbors(k int) ([]int32, error) {
	if n, ok := v.cache.Node(k); ok {
		return n.Neighbors, nil
	}
	return v.inner.Neighbors(k)
}

// Vector returns node k's vector, from the pinned snapshot when
// possible. The returned slice must not be mutated on a cache hit.
func (v *CachedView) Vector(k int) ([]float32, error) {
	if n, ok := v.cache.Node(k); ok && n.Vector != nil {
		return n.Vector, nil
	}
	return v.inner.Vector(k)
}

// Inner exposes the fall-through View, e.g. for score functions.
func (v *CachedView) Inner() *View {
	return v.inner
}

// Close closes the inner view. Idempotent.
func (v *CachedView) Close() error {
	return v.inner.Close()
}
