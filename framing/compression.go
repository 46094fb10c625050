package framing

import (
	"fmt"
	"strings"
)

// Compression is one of the payload encodings accepted by GELF UDP inputs.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZlib Compression = "zlib"
)

// DefaultCompression is used when nothing else is configured.
const DefaultCompression = CompressionGzip

func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case CompressionNone, CompressionGzip, CompressionZlib:
		return c, nil
	case "":
		return DefaultCompression, nil
	default:
		return "", fmt.Errorf("unsupported compression %q (expected none, gzip or zlib)", s)
	}
}

func (c Compression) String() string { return string(c) }

func (c *Compression) UnmarshalText(text []byte) error {
	v, err := ParseCompression(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Compress returns a new slice; data is never modified.
func (c Compression) Compress(data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return whole(data), nil
	case CompressionGzip, "":
		return gzipCompress(data)
	case CompressionZlib:
		return zlibCompress(data)
	default:
		return nil, fmt.Errorf("unsupported compression %q", string(c))
	}
}

// Decompress sniffs the payload the same way a Graylog input does:
// gzip magic, then a zlib header, otherwise the bytes are plain JSON.
func Decompress(data []byte) ([]byte, error) {
	switch {
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return gzipDecompress(data)
	case isZlibHeader(data):
		return zlibDecompress(data)
	default:
		return whole(data), nil
	}
}

// RFC 1950: deflate method, and the 16-bit header is a multiple of 31.
func isZlibHeader(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
