// Package testutil provides fixtures for index tests: deterministic
// vector sources and canned graph topologies.
//
// This package is intended for use in tests and benchmarks only.
package testutil

import (
	"math"
	"math/rand"

	"github.com/hupe1980/diskgraph/graph"
)

// CircularValues yields 2-dimensional unit vectors evenly spaced on
// the unit circle. Node i gets (cos θ, sin θ) with θ = 2πi/n.
type CircularValues struct {
	n int
}

// NewCircularValues creates a circular vector source of n vectors.
func NewCircularValues(n int) *CircularValues {
	return &CircularValues{n: n}
}

// Dimension returns 2.
func (c *CircularValues) Dimension() int { return 2 }

// Count returns the number of vectors.
func (c *CircularValues) Count() int { return c.n }

// Vector returns the unit vector for id, or nil out of range.
func (c *CircularValues) Vector(id int) []float32 {
	if id < 0 || id >= c.n {
		return nil
	}
	theta := 2 * math.Pi * float64(id) / float64(c.n)
	return []float32{float32(math.Cos(theta)), float32(math.Sin(theta))}
}

// RandomValues yields seeded uniform random vectors.
type RandomValues struct {
	vecs [][]float32
}

// NewRandomValues creates n random vectors of the given dimension.
func NewRandomValues(n, dim int, seed int64) *RandomValues {
	rng := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		vecs[i] = v
	}
	return &RandomValues{vecs: vecs}
}

// Dimension returns the vector dimensionality.
func (r *RandomValues) Dimension() int { return len(r.vecs[0]) }

// Count returns the number of vectors.
func (r *RandomValues) Count() int { return len(r.vecs) }

// Vector returns the vector for id, or nil out of range.
func (r *RandomValues) Vector(id int) []float32 {
	if id < 0 || id >= len(r.vecs) {
		return nil
	}
	return r.vecs[id]
}

// FullyConnectedGraph builds a graph where every node neighbors every
// other node. maxDegree must be at least n-1.
func FullyConnectedGraph(n, maxDegree int) *graph.MemGraph {
	g := graph.NewMemGraph(maxDegree)
	for i := 0; i < n; i++ {
		g.AddNode(i)
	}
	for i := 0; i < n; i++ {
		neighbors := make([]int32, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				neighbors = append(neighbors, int32(j))
			}
		}
		if err := g.SetNeighbors(i, neighbors); err != nil {
			panic(err)
		}
	}
	return g
}

// RandomlyConnectedGraph builds a graph where every node gets degree
// distinct random neighbors (never itself).
func RandomlyConnectedGraph(n, degree int, seed int64) *graph.MemGraph {
	rng := rand.New(rand.NewSource(seed))
	g := graph.NewMemGraph(degree)
	for i := 0; i < n; i++ {
		g.AddNode(i)
	}
	seen := make(map[int32]bool, degree)
	for i := 0; i < n; i++ {
		clear(seen)
		neighbors := make([]int32, 0, degree)
		for len(neighbors) < degree && len(neighbors) < n-1 {
			j := int32(rng.Intn(n))
			if int(j) == i || seen[j] {
				continue
			}
			seen[j] = true
			neighbors = append(neighbors, j)
		}
		if err := g.SetNeighbors(i, neighbors); err != nil {
			panic(err)
		}
	}
	return g
}
