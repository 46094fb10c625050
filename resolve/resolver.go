// Package resolve keeps the destination address of the shipper fresh.
//
// UDP has no connection to notice a moved endpoint, so the host name is
// looked up again once the cached address is older than a TTL. A failed
// refresh keeps the previous address.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrResolution is wrapped by every lookup failure.
var ErrResolution = errors.New("address resolution failed")

// LookupFunc resolves a host:port into candidate addresses, in resolver order.
type LookupFunc func(ctx context.Context, hostPort string) ([]*net.UDPAddr, error)

// FailureCounter is notified of refresh failures.
type FailureCounter interface {
	ResolveFailed()
}

type Option func(*Target)

func WithTTL(ttl time.Duration) Option { return func(t *Target) { t.ttl = ttl } }

func WithClock(c clockwork.Clock) Option { return func(t *Target) { t.clock = c } }

func WithLookup(fn LookupFunc) Option { return func(t *Target) { t.lookup = fn } }

func WithLogger(l *slog.Logger) Option { return func(t *Target) { t.log = l } }

func WithMetrics(m FailureCounter) Option { return func(t *Target) { t.metrics = m } }

// Target is the cached destination. It is owned by the ingestion loop and
// is not safe for concurrent use.
type Target struct {
	hostPort    string
	ttl         time.Duration
	clock       clockwork.Clock
	lookup      LookupFunc
	log         *slog.Logger
	metrics     FailureCounter
	addr        *net.UDPAddr
	resolvedAt  time.Time
	lastAttempt time.Time
}

// New resolves hostPort once. There is nothing to fall back to yet, so an
// error here is fatal to the caller.
func New(ctx context.Context, hostPort string, opts ...Option) (*Target, error) {
	t := &Target{
		hostPort: hostPort,
		clock:    clockwork.NewRealClock(),
		lookup:   DefaultLookup,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.refresh(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Addr returns the address to send to, re-resolving first when the cache
// has outlived its TTL. A TTL of zero disables re-resolution.
func (t *Target) Addr(ctx context.Context) *net.UDPAddr {
	if t.ttl > 0 && t.clock.Since(t.lastAttempt) > t.ttl {
		if err := t.refresh(ctx); err != nil {
			t.log.Warn("keeping stale graylog address",
				"target", t.hostPort,
				"addr", t.addr.String(),
				"resolvedAt", t.resolvedAt,
				"error", err)
			if t.metrics != nil {
				t.metrics.ResolveFailed()
			}
		}
	}
	return t.addr
}

// ResolvedAt is the time of the last successful resolution.
func (t *Target) ResolvedAt() time.Time { return t.resolvedAt }

func (t *Target) HostPort() string { return t.hostPort }

// SetHost switches to a new destination; it is resolved on the next Addr call.
// Until then, and if that resolution fails, the old address stays in use.
func (t *Target) SetHost(hostPort string) {
	if hostPort == t.hostPort {
		return
	}
	t.hostPort = hostPort
	t.lastAttempt = time.Time{}
	if t.ttl <= 0 {
		// no periodic refresh to pick it up
		if err := t.refresh(context.Background()); err != nil {
			t.log.Warn("keeping previous graylog address", "target", hostPort, "error", err)
		}
	}
}

func (t *Target) SetTTL(ttl time.Duration) { t.ttl = ttl }

func (t *Target) refresh(ctx context.Context) error {
	t.lastAttempt = t.clock.Now()
	addrs, err := t.lookup(ctx, t.hostPort)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrResolution, t.hostPort, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: %s: no addresses", ErrResolution, t.hostPort)
	}
	// sendto takes a single address, so like getaddrinfo() users we take the first
	if first := addrs[0]; t.addr == nil || first.String() != t.addr.String() {
		t.log.Debug("resolved graylog address", "target", t.hostPort, "addr", first.String())
	}
	t.addr = addrs[0]
	t.resolvedAt = t.lastAttempt
	return nil
}

// DefaultLookup uses the system resolver. Literal IPs never touch DNS.
func DefaultLookup(ctx context.Context, hostPort string) ([]*net.UDPAddr, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, err
	}
	port, err := net.DefaultResolver.LookupPort(ctx, "udp", portStr)
	if err != nil {
		return nil, err
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return []*net.UDPAddr{net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, uint16(port)))}, nil
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	addrs := make([]*net.UDPAddr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, &net.UDPAddr{IP: ip.IP, Port: port, Zone: ip.Zone})
	}
	return addrs, nil
}
