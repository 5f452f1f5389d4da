package quantization

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ProductQuantizer implements product quantization: vectors are split
// into subvectors and each subvector is quantized independently against
// a k-means codebook.
type ProductQuantizer struct {
	dimension    int       // D: original vector dimension
	numSubspaces int       // S: number of subvectors
	numClusters  int       // K: centroids per subspace
	subDim       int       // D/S: dimensions per subvector
	centroids    []float32 // S * K * subDim, subspace-major
	trained      bool
}

// NewProductQuantizer creates an untrained quantizer.
// dimension must be divisible by numSubspaces, and numClusters must fit
// in a one-byte code.
func NewProductQuantizer(dimension, numSubspaces, numClusters int) (*ProductQuantizer, error) {
	if dimension <= 0 || numSubspaces <= 0 {
		return nil, errors.New("quantization: dimension and numSubspaces must be positive")
	}
	if dimension%numSubspaces != 0 {
		return nil, fmt.Errorf("quantization: dimension %d not divisible by %d subspaces", dimension, numSubspaces)
	}
	if numClusters <= 0 || numClusters > 256 {
		return nil, errors.New("quantization: numClusters must be in [1, 256]")
	}

	subDim := dimension / numSubspaces

	return &ProductQuantizer{
		dimension:    dimension,
		numSubspaces: numSubspaces,
		numClusters:  numClusters,
		subDim:       subDim,
		centroids:    make([]float32, numSubspaces*numClusters*subDim),
	}, nil
}

// NewFromCentroids reconstructs a trained quantizer from a flat
// subspace-major centroid block, as stored in an index header.
func NewFromCentroids(dimension, numSubspaces, numClusters int, centroids []float32) (*ProductQuantizer, error) {
	pq, err := NewProductQuantizer(dimension, numSubspaces, numClusters)
	if err != nil {
		return nil, err
	}
	if len(centroids) != len(pq.centroids) {
		return nil, fmt.Errorf("quantization: centroid block has %d floats, want %d", len(centroids), len(pq.centroids))
	}
	copy(pq.centroids, centroids)
	pq.trained = true
	return pq, nil
}

// Dimension returns D.
func (pq *ProductQuantizer) Dimension() int { return pq.dimension }

// Subspaces returns S.
func (pq *ProductQuantizer) Subspaces() int { return pq.numSubspaces }

// Clusters returns K.
func (pq *ProductQuantizer) Clusters() int { return pq.numClusters }

// Centroids returns the flat subspace-major centroid block. The slice
// is owned by the quantizer.
func (pq *ProductQuantizer) Centroids() []float32 { return pq.centroids }

// Train calibrates the codebooks with k-means over the training
// vectors. Must be called before Encode/Decode.
func (pq *ProductQuantizer) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return errors.New("quantization: no vectors provided for training")
	}
	if len(vectors[0]) != pq.dimension {
		return errors.New("quantization: vector dimension mismatch")
	}

	for s := 0; s < pq.numSubspaces; s++ {
		start := s * pq.subDim
		centroids := pq.kmeans(vectors, start, 20)
		copy(pq.centroids[s*pq.numClusters*pq.subDim:], centroids)
	}

	pq.trained = true
	return nil
}

// kmeans clusters the subvectors [start, start+subDim) of the training
// set into numClusters centroids, returned flat.
func (pq *ProductQuantizer) kmeans(vectors [][]float32, start, iterations int) []float32 {
	k := pq.numClusters
	d := pq.subDim
	centroids := make([]float32, k*d)

	// Seeded init keeps training reproducible across runs.
	rng := rand.New(rand.NewSource(int64(start) + 1))
	for c := 0; c < k; c++ {
		v := vectors[rng.Intn(len(vectors))]
		copy(centroids[c*d:(c+1)*d], v[start:start+d])
	}

	assign := make([]int, len(vectors))
	sums := make([]float64, k*d)
	counts := make([]int, k)

	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, v := range vectors {
			best, bestDist := 0, float32(math.MaxFloat32)
			for c := 0; c < k; c++ {
				var dist float32
				cent := centroids[c*d : (c+1)*d]
				for j := 0; j < d; j++ {
					diff := v[start+j] - cent[j]
					dist += diff * diff
				}
				if dist < bestDist {
					best, bestDist = c, dist
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for j := 0; j < d; j++ {
				sums[c*d+j] += float64(v[start+j])
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Re-seed empty clusters from a random vector.
				v := vectors[rng.Intn(len(vectors))]
				copy(centroids[c*d:(c+1)*d], v[start:start+d])
				continue
			}
			for j := 0; j < d; j++ {
				centroids[c*d+j] = float32(sums[c*d+j] / float64(counts[c]))
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	return centroids
}

// Encode quantizes a vector into S one-byte codes.
func (pq *ProductQuantizer) Encode(vec []float32) ([]byte, error) {
	if !pq.trained {
		return nil, errors.New("quantization: quantizer not trained")
	}
	if len(vec) != pq.dimension {
		return nil, errors.New("quantization: vector dimension mismatch")
	}

	codes := make([]byte, pq.numSubspaces)
	d := pq.subDim
	for s := 0; s < pq.numSubspaces; s++ {
		start := s * d
		base := s * pq.numClusters * d
		best, bestDist := 0, float32(math.MaxFloat32)
		for c := 0; c < pq.numClusters; c++ {
			var dist float32
			cent := pq.centroids[base+c*d : base+(c+1)*d]
			for j := 0; j < d; j++ {
				diff := vec[start+j] - cent[j]
				dist += diff * diff
			}
			if dist < bestDist {
				best, bestDist = c, dist
			}
		}
		codes[s] = byte(best)
	}
	return codes, nil
}

// Decode reconstructs an approximate vector from PQ codes.
func (pq *ProductQuantizer) Decode(codes []byte) ([]float32, error) {
	if !pq.trained {
		return nil, errors.New("quantization: quantizer not trained")
	}
	if len(codes) != pq.numSubspaces {
		return nil, errors.New("quantization: invalid code length")
	}

	out := make([]float32, pq.dimension)
	d := pq.subDim
	for s := 0; s < pq.numSubspaces; s++ {
		base := s*pq.numClusters*d + int(codes[s])*d
		copy(out[s*d:(s+1)*d], pq.centroids[base:base+d])
	}
	return out, nil
}

// SquaredL2Table builds a query lookup table of per-subspace squared L2
// partials, S*K floats, subspace-major. Scoring a code block reduces to
// S lookup-adds per code.
func (pq *ProductQuantizer) SquaredL2Table(query []float32) ([]float32, error) {
	return pq.table(query, func(q, cent []float32) float32 {
		var dist float32
		for j := range q {
			diff := q[j] - cent[j]
			dist += diff * diff
		}
		return dist
	})
}

// DotTable builds a query lookup table of per-subspace dot-product
// partials, S*K floats, subspace-major.
func (pq *ProductQuantizer) DotTable(query []float32) ([]float32, error) {
	return pq.table(query, func(q, cent []float32) float32 {
		var dot float32
		for j := range q {
			dot += q[j] * cent[j]
		}
		return dot
	})
}

func (pq *ProductQuantizer) table(query []float32, partial func(q, cent []float32) float32) ([]float32, error) {
	if !pq.trained {
		return nil, errors.New("quantization: quantizer not trained")
	}
	if len(query) != pq.dimension {
		return nil, errors.New("quantization: query dimension mismatch")
	}

	d := pq.subDim
	lut := make([]float32, pq.numSubspaces*pq.numClusters)
	for s := 0; s < pq.numSubspaces; s++ {
		q := query[s*d : (s+1)*d]
		base := s * pq.numClusters * d
		for c := 0; c < pq.numClusters; c++ {
			cent := pq.centroids[base+c*d : base+(c+1)*d]
			lut[s*pq.numClusters+c] = partial(q, cent)
		}
	}
	return lut, nil
}
