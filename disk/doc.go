// Package disk implements the on-disk representation of a graph-based
// approximate nearest neighbor index: a single self-describing binary
// artifact holding a directed proximity graph with fixed-stride node
// records, optional compressed feature payloads co-located with each
// node's adjacency list, and a random-access read side for search.
//
// # Artifact layout
//
// All multi-byte values are big-endian. The header carries a magic and
// version word, the graph-global fields (node count, dimension, entry
// node, max degree), a feature bitmask, and one header block per
// enabled feature in ascending bitshift order. Node records follow at a
// constant stride:
//
//	Record[k]: i32 k | feature inline payloads | i32 count |
//	           count neighbor ids | -1 padding up to max degree
//
// # Write path
//
// A WriterBuilder assembles a single-use Writer from an in-memory
// graph, a feature set, and an ordinal mapping that renumbers source
// node ids onto dense [0, N). Write streams the artifact to any
// io.Writer without seeking.
//
// # Read path
//
// OpenIndex parses the header once over an io.ReaderAt (typically a
// memory-mapped file) and hands out lightweight Views. A View owns a
// private cursor and scratch buffers and is therefore a per-goroutine
// resource; the backing bytes are shared and immutable. GraphCache can
// pin the BFS neighborhood of the entry node in memory on top.
package disk
