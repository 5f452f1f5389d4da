// Package quantization provides product quantization for the fused
// per-neighbor code payloads of the on-disk graph index.
//
// A ProductQuantizer splits a D-dimensional vector into S subvectors and
// quantizes each against its own codebook of centroids, yielding S
// one-byte codes per vector. At query time, per-subspace lookup tables
// turn scoring a code into S table lookups and adds.
package quantization
