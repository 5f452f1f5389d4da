// Package distance provides vector distance primitives and the
// similarity score functions used for reranking search candidates.
//
// Score functions are normalized so that higher is always better,
// regardless of the underlying metric. This lets exact rerankers and
// approximate scorers be ranked on one scale.
package distance
