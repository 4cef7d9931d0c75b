package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressionType represents the type of compression algorithm
type CompressionType int

const (
	None CompressionType = iota
	Gzip
	Zstd
)

// String returns the string representation of the compression type
func (ct CompressionType) String() string {
	switch ct {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseType maps a config value to a CompressionType. Empty selects zstd.
func ParseType(s string) (CompressionType, error) {
	switch s {
	case "", "zstd":
		return Zstd, nil
	case "gzip":
		return Gzip, nil
	case "none":
		return None, nil
	}
	return None, fmt.Errorf("unknown compression type %q", s)
}

// Compressor interface defines methods for data compression
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Type() CompressionType
}

type gzipCompressor struct {
	level int
}

// NewGzipCompressor creates a gzip compressor; level follows compress/gzip semantics.
func NewGzipCompressor(level int) Compressor {
	return &gzipCompressor{level: level}
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gc.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write data to gzip writer: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	result, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from gzip reader: %w", err)
	}
	return result, nil
}

func (gc *gzipCompressor) Type() CompressionType { return Gzip }

// zstdCompressor keeps one encoder and decoder; both are safe for concurrent EncodeAll/DecodeAll.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCompressor creates a zstd compressor at the given encoder level.
func NewZstdCompressor(level zstd.EncoderLevel) (Compressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return zc.enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := zc.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decode zstd data: %w", err)
	}
	return out, nil
}

func (zc *zstdCompressor) Type() CompressionType { return Zstd }

type noneCompressor struct{}

// NewNoneCompressor creates a new compressor that performs no compression
func NewNoneCompressor() Compressor {
	return &noneCompressor{}
}

func (nc *noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (nc *noneCompressor) Type() CompressionType                  { return None }

// NewCompressor creates a new compressor based on the specified type
func NewCompressor(cType CompressionType) (Compressor, error) {
	switch cType {
	case Gzip:
		return NewGzipCompressor(gzip.DefaultCompression), nil
	case Zstd:
		return NewZstdCompressor(zstd.SpeedDefault)
	default:
		return NewNoneCompressor(), nil
	}
}

// NewDefaultCompressor returns zstd at its default speed.
func NewDefaultCompressor() Compressor {
	c, err := NewZstdCompressor(zstd.SpeedDefault)
	if err != nil {
		// option-free construction only fails on invalid options
		return NewGzipCompressor(gzip.DefaultCompression)
	}
	return c
}

// DecompressWithType decompresses data using the specified compression type
func DecompressWithType(data []byte, cType CompressionType) ([]byte, error) {
	compressor, err := NewCompressor(cType)
	if err != nil {
		return nil, err
	}
	return compressor.Decompress(data)
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// IsCompressed checks if the data appears to be compressed by examining magic bytes
func IsCompressed(data []byte) CompressionType {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return Gzip
	}
	if bytes.HasPrefix(data, zstdMagic) {
		return Zstd
	}
	return None
}
