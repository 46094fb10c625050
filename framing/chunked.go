package framing

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ChunkSize is the largest datagram the encoder will emit.
type ChunkSize int

const (
	// WAN fits a 1500 byte path MTU after IP and UDP headers
	WAN ChunkSize = 1420
	// LAN suits jumbo-frame networks
	LAN ChunkSize = 8154

	DefaultChunkSize = WAN
)

const (
	chunkHeaderLen = 12
	// MaxChunks is the GELF hard limit; Graylog discards anything longer.
	MaxChunks = 128
	// maxDatagram is the largest UDP payload over IPv4.
	maxDatagram = 65507
)

var chunkMagic = [2]byte{0x1e, 0x0f}

var (
	ErrTooManyChunks = errors.New("gelf payload needs more than 128 chunks")
	ErrIncomplete    = errors.New("incomplete gelf chunk set")
)

func ParseChunkSize(s string) (ChunkSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wan":
		return WAN, nil
	case "lan":
		return LAN, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("chunk size %q: expected wan, lan or a byte count", s)
	}
	size := ChunkSize(n)
	if err := size.Validate(); err != nil {
		return 0, err
	}
	return size, nil
}

func (c ChunkSize) Validate() error {
	if c <= chunkHeaderLen || c > maxDatagram {
		return fmt.Errorf("chunk size %d out of range %d-%d", int(c), chunkHeaderLen+1, maxDatagram)
	}
	return nil
}

func (c ChunkSize) String() string {
	switch c {
	case WAN:
		return "wan"
	case LAN:
		return "lan"
	default:
		return strconv.Itoa(int(c))
	}
}

func (c *ChunkSize) UnmarshalText(text []byte) error {
	v, err := ParseChunkSize(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// dataSize is the number of payload bytes a single chunk carries.
func (c ChunkSize) dataSize() int { return int(c) - chunkHeaderLen }

// ChunkedMessage is a payload split for the GELF chunked UDP protocol.
type ChunkedMessage struct {
	ID     [8]byte
	Chunks [][]byte // payload slices, in sequence order
}

// Chunk splits payload into the smallest number of chunks of the given size.
// The message id is read from idSource, which is crypto/rand when nil.
func Chunk(payload []byte, size ChunkSize, idSource io.Reader) (*ChunkedMessage, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	dataSize := size.dataSize()
	count := (len(payload) + dataSize - 1) / dataSize
	if count > MaxChunks {
		return nil, fmt.Errorf("%w: %d bytes at %d bytes per chunk needs %d chunks",
			ErrTooManyChunks, len(payload), dataSize, count)
	}

	if idSource == nil {
		idSource = rand.Reader
	}
	msg := &ChunkedMessage{Chunks: make([][]byte, 0, count)}
	if _, err := io.ReadFull(idSource, msg.ID[:]); err != nil {
		return nil, fmt.Errorf("gelf message id: %w", err)
	}

	for off := 0; off < len(payload); off += dataSize {
		end := min(off+dataSize, len(payload))
		msg.Chunks = append(msg.Chunks, payload[off:end])
	}
	return msg, nil
}

// Datagrams prefixes every chunk with its header:
// magic(2) id(8) sequence(1) count(1).
func (m *ChunkedMessage) Datagrams() [][]byte {
	total := byte(len(m.Chunks))
	out := make([][]byte, len(m.Chunks))
	for i, chunk := range m.Chunks {
		d := make([]byte, 0, chunkHeaderLen+len(chunk))
		d = append(d, chunkMagic[:]...)
		d = append(d, m.ID[:]...)
		d = append(d, byte(i), total)
		d = append(d, chunk...)
		out[i] = d
	}
	return out
}

// IsChunk reports whether a datagram starts with the chunk magic bytes.
func IsChunk(datagram []byte) bool {
	return len(datagram) >= chunkHeaderLen && datagram[0] == chunkMagic[0] && datagram[1] == chunkMagic[1]
}

// Reassemble is the receiving side of Chunk. Datagrams may arrive in any order;
// a single datagram without chunk header is returned as-is.
func Reassemble(datagrams [][]byte) ([]byte, error) {
	if len(datagrams) == 1 && !IsChunk(datagrams[0]) {
		return whole(datagrams[0]), nil
	}
	if len(datagrams) == 0 {
		return nil, ErrIncomplete
	}

	var (
		id    []byte
		total int
		parts [][]byte
	)
	for _, d := range datagrams {
		if !IsChunk(d) {
			return nil, fmt.Errorf("datagram of %d bytes is not a gelf chunk", len(d))
		}
		seq, count := int(d[10]), int(d[11])
		if id == nil {
			id, total = d[2:10], count
			if total == 0 || total > MaxChunks {
				return nil, fmt.Errorf("invalid chunk count %d", total)
			}
			parts = make([][]byte, total)
		}
		if string(d[2:10]) != string(id) || count != total {
			return nil, errors.New("datagrams belong to different gelf messages")
		}
		if seq >= total {
			return nil, fmt.Errorf("chunk sequence %d out of range for %d chunks", seq, total)
		}
		parts[seq] = d[chunkHeaderLen:]
	}

	var payload []byte
	for i, part := range parts {
		if part == nil {
			return nil, fmt.Errorf("%w: missing chunk %d of %d", ErrIncomplete, i, total)
		}
		payload = append(payload, part...)
	}
	return payload, nil
}
