package disk

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition is the class of write-side validation failures.
	// They are raised before any output byte is produced.
	ErrPrecondition = errors.New("disk: precondition violation")

	// ErrFormat is the class of read-side format failures: truncated
	// stream, corrupt header, or out-of-range record fields.
	ErrFormat = errors.New("disk: format error")

	// ErrUnsupported is returned when an operation needs a feature the
	// artifact does not carry.
	ErrUnsupported = errors.New("disk: unsupported operation")

	// ErrViewClosed is returned by operations on a closed View.
	ErrViewClosed = errors.New("disk: view is closed")
)

var (
	// ErrInvalidMagic matches ErrFormat and flags an unrecognized magic
	// number.
	ErrInvalidMagic = fmt.Errorf("%w: invalid magic number", ErrFormat)

	// ErrInvalidVersion matches ErrFormat and flags a version newer
	// than this library understands.
	ErrInvalidVersion = fmt.Errorf("%w: unsupported version", ErrFormat)

	// ErrAlreadyWritten matches ErrPrecondition; a Writer is
	// single-use.
	ErrAlreadyWritten = fmt.Errorf("%w: writer already used", ErrPrecondition)
)
