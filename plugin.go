package journalgelf

import (
	"context"
	"net"
)

// LineSender processes one raw input line before returning.
// A non-nil error is fatal and should stop the input.
type LineSender func(ctx context.Context, line []byte) error

type InputPlugin interface {
	Run(context.Context, LineSender) error
}

// FilterPlugin turns a raw line into a GELF message, or returns a *SkipError.
type FilterPlugin interface {
	Transform(line []byte) (*Message, error)
}

type CodecPlugin interface {
	Encode(*Message) ([]byte, error)
	Decode([]byte) (*Message, error)
}

// FramingPlugin turns a serialized message into the datagrams to send.
type FramingPlugin interface {
	Frameup(payload []byte) ([][]byte, error)
}

// OutputPlugin sends every datagram it can; the returned error reports the ones that failed.
type OutputPlugin interface {
	Send(ctx context.Context, datagrams [][]byte, addr *net.UDPAddr) error
}

type TargetResolver interface {
	Addr(context.Context) *net.UDPAddr
}
