package output

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/nicwaller/journalgelf"
	"github.com/nicwaller/journalgelf/codec"
	"github.com/nicwaller/journalgelf/framing"
)

// Stdout turns the datagrams back into GELF JSON and prints one message per line.
// The destination address is ignored, which makes it useful as a dry run.
func Stdout(w io.Writer) *StdoutOutput {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutOutput{w: w, codec: codec.GELF()}
}

type StdoutOutput struct {
	mu    sync.Mutex
	w     io.Writer
	codec journalgelf.CodecPlugin
}

func (p *StdoutOutput) Send(_ context.Context, datagrams [][]byte, _ *net.UDPAddr) error {
	compressed, err := framing.Reassemble(datagrams)
	if err != nil {
		return err
	}
	payload, err := framing.Decompress(compressed)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	msg, err := p.codec.Decode(payload)
	if err != nil {
		return err
	}
	dat, err := p.codec.Encode(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(append(dat, '\n')); err != nil {
		return err
	}
	return nil
}
