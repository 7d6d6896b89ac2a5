/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: codec.go
Description: Unified wrapper around third-party codecs used to measure real compressed sizes.
zstd is always measured; s2, snappy, lz4 and brotli can be enabled for wider comparisons.
*/

package compression

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec measures how small a codec can make a buffer.
type Codec interface {
	// Name is the name used on the command line and in results.
	Name() string
	// CompressedSize compresses data at the given level and returns the output length.
	// Codecs without levels ignore it.
	CompressedSize(data []byte, level int) (int, error)
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) CompressedSize(data []byte, level int) (int, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return 0, fmt.Errorf("zstd encoder: %w", err)
	}
	defer enc.Close()
	return len(enc.EncodeAll(data, nil)), nil
}

type s2Codec struct{}

func (s2Codec) Name() string { return "s2" }

func (s2Codec) CompressedSize(data []byte, level int) (int, error) {
	switch {
	case level >= 19:
		return len(s2.EncodeBest(nil, data)), nil
	case level >= 6:
		return len(s2.EncodeBetter(nil, data)), nil
	default:
		return len(s2.Encode(nil, data)), nil
	}
}

type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) CompressedSize(data []byte, _ int) (int, error) {
	return len(snappy.Encode(nil, data)), nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) CompressedSize(data []byte, level int) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	var (
		n   int
		err error
	)
	if level > 0 {
		c := lz4.CompressorHC{Level: lz4.CompressionLevel(1 << (8 + clamp(level, 1, 9)))}
		n, err = c.CompressBlock(data, dst)
	} else {
		var c lz4.Compressor
		n, err = c.CompressBlock(data, dst)
	}
	if err != nil {
		return 0, fmt.Errorf("lz4 block: %w", err)
	}
	if n == 0 {
		// incompressible input is stored as-is
		n = len(data)
	}
	return n, nil
}

type brotliCodec struct{}

func (brotliCodec) Name() string { return "brotli" }

func (brotliCodec) CompressedSize(data []byte, level int) (int, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, clamp(level, brotli.BestSpeed, brotli.BestCompression))
	if _, err := w.Write(data); err != nil {
		return 0, fmt.Errorf("brotli write: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("brotli close: %w", err)
	}
	return buf.Len(), nil
}

var codecs = map[string]Codec{
	"zstd":   zstdCodec{},
	"s2":     s2Codec{},
	"snappy": snappyCodec{},
	"lz4":    lz4Codec{},
	"brotli": brotliCodec{},
}

// LookupCodec returns the codec registered under name.
func LookupCodec(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (available: %v)", name, CodecNames())
	}
	return c, nil
}

// CodecNames lists the registered codecs in alphabetical order.
func CodecNames() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
