// Package rw provides big-endian primitive codecs over seekable byte
// sources and streaming sinks.
//
// The on-disk graph format is defined in terms of big-endian i32/f32
// fields. Reader wraps an io.ReaderAt with an explicit cursor so that
// independent readers over the same immutable backing bytes can be
// created cheaply via Duplicate. Writer counts bytes as it goes and
// never seeks, so a pure streaming sink works.
package rw
