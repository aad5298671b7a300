// Package tiletype classifies tile payloads by structural sniffing: magic
// bytes for the raster/compression envelopes, a brace check for JSON, and a
// protobuf field-key scan as the last resort.
package tiletype

import "fmt"

// Format is the payload's content format.
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatJPG
	FormatGIF
	FormatWEBP
	FormatPBF
	FormatJSON
)

var formatStrings = [...]string{
	"unknown",
	"png",
	"jpg",
	"gif",
	"webp",
	"pbf",
	"json",
}

// String returns a string representing the Format
func (f Format) String() string {
	return formatStrings[f]
}

// Encoding is the payload's outer compression envelope. Raster formats carry
// their own compression and are labeled EncodingInternal.
type Encoding int

const (
	EncodingInternal Encoding = iota
	EncodingUncompressed
	EncodingZlib
	EncodingGzip
	EncodingZstd
)

var encodingStrings = [...]string{
	"internal",
	"uncompressed",
	"zlib",
	"gzip",
	"zstd",
}

// String returns a string representing the Encoding
func (e Encoding) String() string {
	return encodingStrings[e]
}

// TileType is the classification of a tile payload.
type TileType struct {
	Format   Format
	Encoding Encoding
}

// String formats the type the way the CLI reports it: "png", "pbf.gz", ...
func (t TileType) String() string {
	switch t.Encoding {
	case EncodingZlib:
		return t.Format.String() + ".zlib"
	case EncodingGzip:
		return t.Format.String() + ".gz"
	case EncodingZstd:
		return t.Format.String() + ".zst"
	}
	return t.Format.String()
}

// Ext returns the file extension used in pyramid directories.
func (t TileType) Ext() string {
	if t.Format == FormatUnknown {
		return "bin"
	}
	return t.Format.String()
}

// Sniff classifies a byte buffer. Signature checks run in a fixed order with
// the earliest match winning; buffers matching no signature fall through to
// the protobuf probe.
func Sniff(buf []byte) TileType {
	if len(buf) < 2 {
		return TileType{FormatUnknown, EncodingUncompressed}
	}
	switch {
	case len(buf) >= 8 &&
		buf[0] == 0x89 && buf[1] == 0x50 && buf[2] == 0x4E && buf[3] == 0x47 &&
		buf[4] == 0x0D && buf[5] == 0x0A && buf[6] == 0x1A && buf[7] == 0x0A:
		return TileType{FormatPNG, EncodingInternal}
	case buf[0] == 0xFF && buf[1] == 0xD8 &&
		buf[len(buf)-2] == 0xFF && buf[len(buf)-1] == 0xD9:
		return TileType{FormatJPG, EncodingInternal}
	case len(buf) >= 6 &&
		buf[0] == 0x47 && buf[1] == 0x49 && buf[2] == 0x46 && buf[3] == 0x38 &&
		(buf[4] == 0x39 || buf[4] == 0x37) && buf[5] == 0x61:
		return TileType{FormatGIF, EncodingInternal}
	case len(buf) >= 12 &&
		buf[0] == 0x52 && buf[1] == 0x49 && buf[2] == 0x46 && buf[3] == 0x46 &&
		buf[8] == 0x57 && buf[9] == 0x45 && buf[10] == 0x42 && buf[11] == 0x50:
		return TileType{FormatWEBP, EncodingInternal}
	case buf[0] == 0x78 && buf[1] == 0x9C:
		return TileType{FormatPBF, EncodingZlib}
	case buf[0] == 0x1F && buf[1] == 0x8B:
		return TileType{FormatPBF, EncodingGzip}
	case len(buf) >= 4 &&
		buf[0] == 0x28 && buf[1] == 0xB5 && buf[2] == 0x2F && buf[3] == 0xFD:
		return TileType{FormatPBF, EncodingZstd}
	case buf[0] == '{' || buf[0] == '[':
		return TileType{FormatJSON, EncodingUncompressed}
	case isPbf(buf):
		return TileType{FormatPBF, EncodingUncompressed}
	}
	return TileType{FormatUnknown, EncodingUncompressed}
}

// isPbf scans the buffer as a sequence of protobuf field keys with field
// numbers in 1..15 and wire types in {0, 1, 2, 5}.
func isPbf(buf []byte) bool {
	i := 0
	for i < len(buf) {
		key := buf[i] >> 3
		wireType := buf[i] & 0x07
		i++

		if key == 0 || key > 15 {
			return false
		}

		switch wireType {
		case 0: // varint
			for i < len(buf) && buf[i]&0x80 != 0 {
				i++
			}
			i++
		case 1: // 64-bit
			i += 8
		case 2: // length-delimited
			length := 0
			shift := 0
			for i < len(buf) && buf[i]&0x80 != 0 {
				length |= int(buf[i]&0x7F) << shift
				shift += 7
				i++
			}
			if i < len(buf) {
				length |= int(buf[i]) << shift
			}
			i++
			i += length
		case 5: // 32-bit
			i += 4
		default:
			return false
		}

		if i > len(buf) {
			return false
		}
	}
	return true
}

// Headers returns the HTTP Content-Type and Content-Encoding pairs for a
// tile type; Content-Encoding is omitted when there is no outer envelope.
func Headers(t TileType) [][2]string {
	var headers [][2]string
	switch t.Format {
	case FormatPNG:
		headers = append(headers, [2]string{"Content-Type", "image/png"})
	case FormatJPG:
		headers = append(headers, [2]string{"Content-Type", "image/jpeg"})
	case FormatGIF:
		headers = append(headers, [2]string{"Content-Type", "image/gif"})
	case FormatWEBP:
		headers = append(headers, [2]string{"Content-Type", "image/webp"})
	case FormatPBF:
		headers = append(headers, [2]string{"Content-Type", "application/x-protobuf"})
	case FormatJSON:
		headers = append(headers, [2]string{"Content-Type", "application/json"})
	default:
		headers = append(headers, [2]string{"Content-Type", "application/octet-stream"})
	}
	switch t.Encoding {
	case EncodingGzip:
		headers = append(headers, [2]string{"Content-Encoding", "gzip"})
	case EncodingZlib:
		headers = append(headers, [2]string{"Content-Encoding", "deflate"})
	case EncodingZstd:
		headers = append(headers, [2]string{"Content-Encoding", "zstd"})
	}
	return headers
}

// ParseFormat maps a metadata format string to a Format.
func ParseFormat(s string) (Format, error) {
	for i, name := range formatStrings {
		if name == s {
			return Format(i), nil
		}
	}
	if s == "jpeg" {
		return FormatJPG, nil
	}
	return FormatUnknown, fmt.Errorf("unknown tile format: %q", s)
}
