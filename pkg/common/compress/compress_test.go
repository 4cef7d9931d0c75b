package compress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func roundTrip(t *testing.T, c Compressor, data []byte) []byte {
	t.Helper()
	compressed, err := c.Compress(data)
	if err != nil {
		t.Fatalf("Compression failed: %v", err)
	}
	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompression failed: %v", err)
	}
	if !bytes.Equal(data, decompressed) {
		t.Fatalf("Decompressed data doesn't match original. Expected: %s, Got: %s", data, decompressed)
	}
	return compressed
}

func TestGzipCompressor(t *testing.T) {
	c := NewGzipCompressor(gzip.DefaultCompression)
	compressed := roundTrip(t, c, []byte(`{"work-pools/details/default-pool":{"name":"default-pool"}}`))

	if c.Type() != Gzip {
		t.Fatalf("Expected compression type Gzip, got %v", c.Type())
	}
	if IsCompressed(compressed) != Gzip {
		t.Errorf("Expected gzip magic to be detected")
	}
}

func TestZstdCompressor(t *testing.T) {
	c, err := NewCompressor(Zstd)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	data := []byte(strings.Repeat(`{"name":"pool"}`, 200))
	compressed := roundTrip(t, c, data)

	if len(compressed) >= len(data) {
		t.Errorf("Expected repetitive data to shrink, %d >= %d", len(compressed), len(data))
	}
	if IsCompressed(compressed) != Zstd {
		t.Errorf("Expected zstd magic to be detected")
	}
}

func TestNoneCompressor(t *testing.T) {
	c := NewNoneCompressor()
	data := []byte("This data should not be compressed")

	compressed := roundTrip(t, c, data)
	if !bytes.Equal(data, compressed) {
		t.Fatalf("None compressor should return data as-is")
	}
	if IsCompressed(compressed) != None {
		t.Errorf("plain data should not be detected as compressed")
	}
}

func TestEmptyInput(t *testing.T) {
	for _, ct := range []CompressionType{None, Gzip, Zstd} {
		c, err := NewCompressor(ct)
		if err != nil {
			t.Fatalf("NewCompressor(%s): %v", ct, err)
		}
		roundTrip(t, c, []byte{})
	}
}

func TestParseType(t *testing.T) {
	cases := map[string]CompressionType{"": Zstd, "zstd": Zstd, "gzip": Gzip, "none": None}
	for in, want := range cases {
		got, err := ParseType(in)
		if err != nil {
			t.Fatalf("ParseType(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseType(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseType("lz4"); err == nil {
		t.Error("Expected error for unknown type")
	}
}

func TestDecompressWithType(t *testing.T) {
	c := NewDefaultCompressor()
	data := []byte("snapshot")
	compressed, err := c.Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	out, err := DecompressWithType(compressed, IsCompressed(compressed))
	if err != nil {
		t.Fatalf("DecompressWithType: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("got %q, want %q", out, data)
	}
}

func TestCompressionTypeString(t *testing.T) {
	if None.String() != "none" || Gzip.String() != "gzip" || Zstd.String() != "zstd" {
		t.Error("unexpected String() values")
	}
	if CompressionType(99).String() != "unknown" {
		t.Error("Expected unknown for out of range type")
	}
}
