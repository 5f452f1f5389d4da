// Package diskgraph persists graph-based approximate nearest neighbor
// indexes as single-file, random-access artifacts.
//
// The heart of the module is the disk package: a write-once binary
// container holding a proximity graph in fixed-stride node records,
// with optional vector payloads (raw, scalar-quantized, or fused
// product-quantization codes) stored inline next to each node's
// adjacency list. This root package adds the operational glue: atomic
// artifact files, memory-mapped opening, and structured logging.
//
//	g := graph.NewMemGraph(32)
//	// ... build graph, then:
//	w, _ := disk.NewWriterBuilder(g).With(disk.NewInlineVectors(values)).Build()
//	_ = diskgraph.SaveFile("index.odgi", w.Write)
//
//	art, _ := diskgraph.OpenFile("index.odgi")
//	defer art.Close()
//	view := art.View()
//	defer view.Close()
package diskgraph
