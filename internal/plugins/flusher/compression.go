package flusher

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdCompressor wraps klauspost/compress/zstd: one encoder per
// compression level, reused across calls rather than allocating an
// encoder per payload.
type zstdCompressor struct {
	encoder *zstd.Encoder
}

func newZstdCompressor(level int) (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return &zstdCompressor{encoder: enc}, nil
}

func (c *zstdCompressor) Compress(input []byte) ([]byte, error) {
	return c.encoder.EncodeAll(input, nil), nil
}

func (c *zstdCompressor) Close() error {
	return c.encoder.Close()
}

func zstdDecompress(input []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
