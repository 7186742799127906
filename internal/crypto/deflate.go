package crypto

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Deflate raw-deflates data per RFC 1951, the compression EBICS order data
// always carries regardless of whether it is additionally encrypted.
func (s *Service) Deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflating: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing deflate writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Inflate reverses Deflate.
func (s *Service) Inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflating: %w", err)
	}
	return out, nil
}
