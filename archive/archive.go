// Package archive packs sealed index artifacts into a block-compressed
// container for archival and transfer. The container is outside the
// index format itself: Unpack restores the original artifact
// bit-identically.
//
// Layout, all fields big-endian:
//
//	u32 magic "DGAR" | u8 codec | per block:
//	u32 rawSize | u32 packedSize (0 = stored raw) | data
//
// A zero rawSize block terminates the stream.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the block compression algorithm.
type Codec uint8

const (
	// CodecNone stores blocks raw.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fast, hot data).
	CodecLZ4 Codec = 1
	// CodecZstd uses zstd block compression (better ratio, cold data).
	CodecZstd Codec = 2
)

// Magic identifies archive containers ("DGAR").
const Magic uint32 = 0x44474152

// BlockSize is the uncompressed block granularity.
const BlockSize = 1 << 20

var (
	// ErrBadArchive is returned for a corrupt or truncated container.
	ErrBadArchive = errors.New("archive: corrupt container")
	// ErrUnknownCodec is returned for a codec byte this build cannot
	// decode.
	ErrUnknownCodec = errors.New("archive: unknown codec")
)

// Pack compresses src into the archive container on dst.
func Pack(dst io.Writer, src io.Reader, codec Codec) error {
	switch codec {
	case CodecNone, CodecLZ4, CodecZstd:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}

	var head [5]byte
	binary.BigEndian.PutUint32(head[:4], Magic)
	head[4] = byte(codec)
	if _, err := dst.Write(head[:]); err != nil {
		return err
	}

	var zenc *zstd.Encoder
	if codec == CodecZstd {
		var err error
		zenc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		defer zenc.Close()
	}

	raw := make([]byte, BlockSize)
	for {
		n, err := io.ReadFull(src, raw)
		if n > 0 {
			if werr := packBlock(dst, raw[:n], codec, zenc); werr != nil {
				return werr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
	}

	// Terminator block.
	var term [8]byte
	_, err := dst.Write(term[:])
	return err
}

func packBlock(dst io.Writer, raw []byte, codec Codec, zenc *zstd.Encoder) error {
	var packed []byte
	switch codec {
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return err
		}
		if n > 0 {
			packed = buf[:n]
		}
	case CodecZstd:
		packed = zenc.EncodeAll(raw, nil)
	}

	// Store raw when compression does not pay for itself.
	if packed == nil || len(packed) >= len(raw) {
		packed = nil
	}

	var head [8]byte
	binary.BigEndian.PutUint32(head[:4], uint32(len(raw)))
	binary.BigEndian.PutUint32(head[4:], uint32(len(packed)))
	if _, err := dst.Write(head[:]); err != nil {
		return err
	}
	if packed != nil {
		_, err := dst.Write(packed)
		return err
	}
	_, err := dst.Write(raw)
	return err
}

// Unpack restores the original artifact bytes from an archive
// container.
func Unpack(dst io.Writer, src io.Reader) error {
	var head [5]byte
	if _, err := io.ReadFull(src, head[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	if binary.BigEndian.Uint32(head[:4]) != Magic {
		return fmt.Errorf("%w: bad magic", ErrBadArchive)
	}
	codec := Codec(head[4])
	switch codec {
	case CodecNone, CodecLZ4, CodecZstd:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}

	var zdec *zstd.Decoder
	if codec == CodecZstd {
		var err error
		zdec, err = zstd.NewReader(nil)
		if err != nil {
			return err
		}
		defer zdec.Close()
	}

	var blockHead [8]byte
	for {
		if _, err := io.ReadFull(src, blockHead[:]); err != nil {
			return fmt.Errorf("%w: %v", ErrBadArchive, err)
		}
		rawSize := binary.BigEndian.Uint32(blockHead[:4])
		packedSize := binary.BigEndian.Uint32(blockHead[4:])
		if rawSize == 0 {
			return nil // terminator
		}

		if packedSize == 0 {
			if _, err := io.CopyN(dst, src, int64(rawSize)); err != nil {
				return fmt.Errorf("%w: %v", ErrBadArchive, err)
			}
			continue
		}

		packed := make([]byte, packedSize)
		if _, err := io.ReadFull(src, packed); err != nil {
			return fmt.Errorf("%w: %v", ErrBadArchive, err)
		}

		raw := make([]byte, rawSize)
		switch codec {
		case CodecLZ4:
			n, err := lz4.UncompressBlock(packed, raw)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrBadArchive, err)
			}
			raw = raw[:n]
		case CodecZstd:
			out, err := zdec.DecodeAll(packed, raw[:0])
			if err != nil {
				return fmt.Errorf("%w: %v", ErrBadArchive, err)
			}
			raw = out
		default:
			return fmt.Errorf("%w: compressed block under codec none", ErrBadArchive)
		}
		if len(raw) != int(rawSize) {
			return fmt.Errorf("%w: block inflated to %d bytes, want %d", ErrBadArchive, len(raw), rawSize)
		}

		if _, err := dst.Write(raw); err != nil {
			return err
		}
	}
}
