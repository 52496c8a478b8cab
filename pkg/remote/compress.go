package remote

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// acceptEncoding is sent on every request; responses are decoded by decodeBody.
const acceptEncoding = "gzip, zstd"

// compressZstd compresses data using zstd.
func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// compressGzip compresses data using gzip.
func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeBody compresses data for the given Content-Encoding. An empty or
// "identity" encoding returns data unchanged.
func EncodeBody(encoding string, data []byte) ([]byte, error) {
	switch normalizeEncoding(encoding) {
	case "", "identity":
		return data, nil
	case "gzip":
		return compressGzip(data)
	case "zstd":
		return compressZstd(data)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// newZstdReader wraps an io.Reader with zstd decompression.
func newZstdReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &zstdReadCloser{dec: dec}, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return nil
}

// decodeBody wraps r according to the response Content-Encoding header.
func decodeBody(contentEncoding string, r io.Reader) (io.ReadCloser, error) {
	switch normalizeEncoding(contentEncoding) {
	case "", "identity":
		return io.NopCloser(r), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip response: %v", ErrProtocol, err)
		}
		return zr, nil
	case "zstd":
		zr, err := newZstdReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd response: %v", ErrProtocol, err)
		}
		return zr, nil
	default:
		return nil, fmt.Errorf("%w: unsupported content encoding %q", ErrProtocol, contentEncoding)
	}
}

func normalizeEncoding(enc string) string {
	return strings.ToLower(strings.TrimSpace(enc))
}
