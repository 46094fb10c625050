package framing

import "io"

// GELF builds the framing stage: compress the serialized message, then split it
// into chunks when it does not fit in one datagram.
func GELF(opts GELFOptions) *GELFFraming {
	if opts.Compression == "" {
		opts.Compression = DefaultCompression
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &GELFFraming{opts: opts}
}

type GELFOptions struct {
	Compression Compression
	ChunkSize   ChunkSize
	// IDSource feeds chunked message ids; crypto/rand when nil.
	IDSource io.Reader
}

type GELFFraming struct {
	opts GELFOptions
}

// Frameup returns the datagrams to send for one serialized message, in sequence order.
func (p *GELFFraming) Frameup(payload []byte) ([][]byte, error) {
	compressed, err := p.opts.Compression.Compress(payload)
	if err != nil {
		return nil, err
	}
	if len(compressed) <= int(p.opts.ChunkSize) {
		return [][]byte{compressed}, nil
	}
	chunked, err := Chunk(compressed, p.opts.ChunkSize, p.opts.IDSource)
	if err != nil {
		return nil, err
	}
	return chunked.Datagrams(), nil
}
