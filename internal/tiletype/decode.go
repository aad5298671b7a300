package tiletype

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Decode strips the outer compression envelope from a payload. Payloads with
// no envelope are returned as-is.
func Decode(t TileType, buf []byte) ([]byte, error) {
	switch t.Encoding {
	case EncodingGzip:
		r, err := gzip.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		return out, nil
	case EncodingZlib:
		r, err := zlib.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("zlib decode: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("zlib decode: %w", err)
		}
		return out, nil
	case EncodingZstd:
		d, err := zstd.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		defer d.Close()
		out, err := io.ReadAll(d.IOReadCloser())
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return out, nil
	}
	return buf, nil
}

// SniffDeep classifies a payload, and for compressed envelopes re-sniffs the
// decompressed contents so gzipped JSON is not misreported as PBF. On decode
// failure the shallow classification stands.
func SniffDeep(buf []byte) TileType {
	t := Sniff(buf)
	if t.Encoding == EncodingInternal || t.Encoding == EncodingUncompressed {
		return t
	}
	inner, err := Decode(t, buf)
	if err != nil || len(inner) < 2 {
		return t
	}
	innerType := Sniff(inner)
	if innerType.Format != FormatUnknown {
		t.Format = innerType.Format
	}
	return t
}
