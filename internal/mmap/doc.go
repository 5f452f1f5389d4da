// Package mmap provides read-only memory-mapped access to index
// artifacts.
//
// An artifact is opened once and shared as an immutable byte image;
// per-goroutine read cursors are layered on top via io.ReaderAt. The
// mapping never copies data through user-space buffers, which matters
// for graph traversal where each node visit touches one fixed-stride
// record somewhere in a file that can be gigabytes in size.
//
//	m, err := mmap.Open("index.odgi")
//	if err != nil { ... }
//	defer m.Close()
//
//	m.Advise(mmap.AccessRandom)
//
// On Unix the implementation uses mmap(2) with madvise(2) hints; on
// Windows it uses CreateFileMapping/MapViewOfFile and Advise is a
// no-op. Close is idempotent. Callers must not touch Bytes() after
// Close returns.
package mmap
