package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/nicwaller/journalgelf"
	"github.com/nicwaller/journalgelf/metrics"
)

// UDP binds the local socket used for every send. Port 0 picks an ephemeral port.
func UDP(opts UDPOptions) (*UDPOutput, error) {
	addr := net.UDPAddr{
		Port: opts.Port,
		IP:   net.ParseIP("0.0.0.0"),
	}
	conn, err := net.ListenUDP("udp", &addr)
	if err != nil {
		return nil, fmt.Errorf("bind udp port %d: %w", opts.Port, err)
	}
	slog.Debug("bound udp socket", "local", conn.LocalAddr().String())
	return &UDPOutput{conn: conn, opts: opts}, nil
}

type UDPOptions struct {
	Port    int
	Metrics *metrics.Metrics
}

type UDPOutput struct {
	conn *net.UDPConn
	opts UDPOptions
}

// Send writes every datagram to addr. A failed datagram does not stop the
// ones after it; the failures are joined into the returned error.
func (p *UDPOutput) Send(ctx context.Context, datagrams [][]byte, addr *net.UDPAddr) error {
	if addr == nil {
		return errors.New("udp output needs a destination address")
	}
	ctx = context.WithValue(ctx, journalgelf.ContextKeyTarget, addr)
	log := journalgelf.ContextLogger(ctx)

	var errs []error
	for i, dat := range datagrams {
		n, err := p.conn.WriteToUDP(dat, addr)
		if err != nil {
			log.Warn("failed to send datagram", "error", err, "seq", strconv.Itoa(i), "bytes", len(dat))
			p.opts.Metrics.DatagramFailed()
			errs = append(errs, fmt.Errorf("datagram %d of %d: %w", i+1, len(datagrams), err))
			continue
		}
		p.opts.Metrics.DatagramSent(n)
	}
	return errors.Join(errs...)
}

func (p *UDPOutput) LocalAddr() *net.UDPAddr {
	return p.conn.LocalAddr().(*net.UDPAddr)
}

func (p *UDPOutput) Close() error {
	return p.conn.Close()
}
