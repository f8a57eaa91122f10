package pngchunk

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// compress encodes b with codec.
func compress(codec Compression, b []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser

	switch codec {
	case CompressionNone:
		return b, nil
	case CompressionZlib:
		zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("failed to create zlib writer: %w", err)
		}
		w = zw
	case CompressionLZ4:
		w = lz4.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("%s: %w", codec, ErrUnsupportedCodec)
	}

	if _, err := w.Write(b); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to compress with %s: %w", codec, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish %s stream: %w", codec, err)
	}
	return buf.Bytes(), nil
}

// decompress reverses compress. limit caps the decoded size so that a
// crafted envelope cannot expand without bound.
func decompress(codec Compression, b []byte, limit int) ([]byte, error) {
	var r io.Reader

	switch codec {
	case CompressionNone:
		return bytes.Clone(b), nil
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("failed to open zlib stream: %w", err)
		}
		defer zr.Close()
		r = zr
	case CompressionLZ4:
		r = lz4.NewReader(bytes.NewReader(b))
	default:
		return nil, fmt.Errorf("%s: %w", codec, ErrUnsupportedCodec)
	}

	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", codec, err)
	}
	if len(out) > limit {
		return nil, &ValidationError{
			Field:   "message",
			Value:   len(out),
			Message: fmt.Sprintf("decompressed message exceeds %d bytes", limit),
		}
	}
	return out, nil
}
