package rw

import (
	"encoding/binary"
	"io"
	"math"
)

// Reader reads big-endian primitives from an io.ReaderAt at an explicit
// cursor position. It is not safe for concurrent use; create one Reader
// per goroutine via Duplicate.
type Reader struct {
	r   io.ReaderAt
	pos int64
	buf [4]byte
}

// NewReader creates a Reader positioned at offset 0.
func NewReader(r io.ReaderAt) *Reader {
	return &Reader{r: r}
}

// Duplicate returns an independent cursor into the same backing bytes.
// The new Reader starts at offset 0.
func (r *Reader) Duplicate() *Reader {
	return &Reader{r: r.r}
}

// Seek positions the cursor at the given absolute offset.
func (r *Reader) Seek(off int64) {
	r.pos = off
}

// Position returns the current absolute offset.
func (r *Reader) Position() int64 {
	return r.pos
}

// ReadFull reads len(p) bytes at the cursor and advances it.
// A short read is reported as io.ErrUnexpectedEOF.
func (r *Reader) ReadFull(p []byte) error {
	n, err := r.r.ReadAt(p, r.pos)
	r.pos += int64(n)
	if err != nil {
		if err == io.EOF && n == len(p) {
			return nil
		}
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// ReadI32 reads a big-endian int32.
func (r *Reader) ReadI32() (int32, error) {
	if err := r.ReadFull(r.buf[:4]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(r.buf[:4])), nil
}

// ReadU32 reads a big-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.ReadFull(r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.buf[:4]), nil
}

// ReadF32 reads a big-endian float32.
func (r *Reader) ReadF32() (float32, error) {
	u, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

// ReadI32Into bulk-reads len(dst) big-endian int32 values.
func (r *Reader) ReadI32Into(dst []int32) error {
	if len(dst) == 0 {
		return nil
	}
	raw := make([]byte, len(dst)*4)
	if err := r.ReadFull(raw); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = int32(binary.BigEndian.Uint32(raw[i*4:]))
	}
	return nil
}

// ReadF32Into bulk-reads len(dst) big-endian float32 values.
func (r *Reader) ReadF32Into(dst []float32) error {
	if len(dst) == 0 {
		return nil
	}
	raw := make([]byte, len(dst)*4)
	if err := r.ReadFull(raw); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[i*4:]))
	}
	return nil
}

// Writer writes big-endian primitives to a streaming sink and counts
// the bytes written. It never seeks.
type Writer struct {
	w   io.Writer
	n   int64
	buf [4]byte
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// BytesWritten returns the total number of bytes emitted so far.
func (w *Writer) BytesWritten() int64 {
	return w.n
}

// Write emits raw bytes.
func (w *Writer) Write(p []byte) error {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return err
}

// WriteI32 emits a big-endian int32.
func (w *Writer) WriteI32(v int32) error {
	binary.BigEndian.PutUint32(w.buf[:4], uint32(v))
	return w.Write(w.buf[:4])
}

// WriteU32 emits a big-endian uint32.
func (w *Writer) WriteU32(v uint32) error {
	binary.BigEndian.PutUint32(w.buf[:4], v)
	return w.Write(w.buf[:4])
}

// WriteF32 emits a big-endian float32.
func (w *Writer) WriteF32(v float32) error {
	return w.WriteU32(math.Float32bits(v))
}

// WriteI32Slice bulk-emits big-endian int32 values.
func (w *Writer) WriteI32Slice(vs []int32) error {
	if len(vs) == 0 {
		return nil
	}
	raw := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.BigEndian.PutUint32(raw[i*4:], uint32(v))
	}
	return w.Write(raw)
}

// WriteF32Slice bulk-emits big-endian float32 values.
func (w *Writer) WriteF32Slice(vs []float32) error {
	if len(vs) == 0 {
		return nil
	}
	raw := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.BigEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return w.Write(raw)
}
