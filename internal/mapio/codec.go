// Package mapio serializes finished maps losslessly: pixel index,
// Stokes I/Q/U, weight, hit count, and the unobserved mask survive a
// write/read round trip exactly. Blobs carry an integrity checksum and
// an optional compression codec.
package mapio

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CodecType identifies the payload compression of a map blob.
type CodecType uint8

const (
	CodecNone CodecType = 0
	CodecZstd CodecType = 1
	CodecLZ4  CodecType = 2
)

// ParseCodecType maps a user-facing name to a codec type.
func ParseCodecType(name string) (CodecType, error) {
	switch name {
	case "none", "":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return CodecNone, fmt.Errorf("unknown codec %q", name)
	}
}

// Codec compresses and decompresses blob payloads. Compress reports
// compressed=false when the input should be stored raw instead (the
// blob header records that choice explicitly); Decompress is then
// never called for that payload. The uncompressed size is recorded in
// the blob header, so Decompress always receives the exact output
// capacity.
type Codec interface {
	Type() CodecType
	Compress(data []byte) (out []byte, compressed bool, err error)
	Decompress(data []byte, uncompressedSize int) ([]byte, error)
}

// NewCodec constructs the codec for t.
func NewCodec(t CodecType) (Codec, error) {
	switch t {
	case CodecNone:
		return noneCodec{}, nil
	case CodecZstd:
		return newZstdCodec()
	case CodecLZ4:
		return lz4Codec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec type %d", t)
	}
}

type noneCodec struct{}

func (noneCodec) Type() CodecType { return CodecNone }

func (noneCodec) Compress(data []byte) ([]byte, bool, error) { return data, false, nil }

func (noneCodec) Decompress(data []byte, _ int) ([]byte, error) { return data, nil }

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Type() CodecType { return CodecZstd }

func (c *zstdCodec) Compress(data []byte) ([]byte, bool, error) {
	return c.enc.EncodeAll(data, nil), true, nil
}

func (c *zstdCodec) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	return c.dec.DecodeAll(data, make([]byte, 0, uncompressedSize))
}

type lz4Codec struct{}

func (lz4Codec) Type() CodecType { return CodecLZ4 }

func (lz4Codec) Compress(data []byte) ([]byte, bool, error) {
	var comp lz4.Compressor
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := comp.CompressBlock(data, dst)
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		// Incompressible input; the caller stores it raw and flags it.
		return nil, false, nil
	}
	return dst[:n], true, nil
}

func (lz4Codec) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
