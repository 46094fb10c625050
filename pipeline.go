package journalgelf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/nicwaller/journalgelf/framing"
	"github.com/nicwaller/journalgelf/metrics"
)

type PipelineOptions struct {
	Name    string
	Filter  FilterPlugin
	Codec   CodecPlugin
	Framing FramingPlugin
	Output  OutputPlugin
	// Target may be nil for outputs that ignore the destination address.
	Target  TargetResolver
	Metrics *metrics.Metrics
}

// Pipeline is the read-process-send loop. Exactly one line is in flight at
// a time: inputs call Process synchronously and wait for it to return.
type Pipeline struct {
	Name    string
	opts    PipelineOptions
	pending atomic.Pointer[func()]
}

func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	switch {
	case opts.Filter == nil:
		return nil, errors.New("pipeline needs a filter")
	case opts.Codec == nil:
		return nil, errors.New("pipeline needs a codec")
	case opts.Framing == nil:
		return nil, errors.New("pipeline needs a framing")
	case opts.Output == nil:
		return nil, errors.New("pipeline needs an output")
	}
	return &Pipeline{Name: CoalesceStr(opts.Name, "journal"), opts: opts}, nil
}

func (p *Pipeline) GetName() string {
	return p.Name
}

// Run drives the input until it is exhausted or fails.
func (p *Pipeline) Run(ctx context.Context, in InputPlugin) error {
	ctx = context.WithValue(ctx, ContextKeyPipelineName, p.GetName())
	log := ContextLogger(ctx)

	log.Info("starting pipeline")
	if err := in.Run(ctx, p.Process); err != nil {
		return err
	}
	log.Info("input exhausted, stopping pipeline")
	return nil
}

// Reload schedules fn to run on the loop goroutine before the next line is
// processed. Only the latest scheduled fn runs; it replaces older ones since
// each reload carries a whole configuration.
func (p *Pipeline) Reload(fn func()) {
	p.pending.Store(&fn)
}

// SetFraming swaps the framing stage. Call it from a Reload function.
func (p *Pipeline) SetFraming(f FramingPlugin) {
	p.opts.Framing = f
}

// Process runs one line through filter, codec, framing and output.
// Dropped records and failed sends are logged and counted, not returned:
// the only errors are internal failures that should stop the loop.
func (p *Pipeline) Process(ctx context.Context, line []byte) error {
	if fn := p.pending.Swap(nil); fn != nil {
		(*fn)()
	}
	p.opts.Metrics.LineRead()

	line = bytes.TrimSpace(line)

	var addr *net.UDPAddr
	if p.opts.Target != nil {
		addr = p.opts.Target.Addr(ctx)
	}
	if addr != nil {
		ctx = context.WithValue(ctx, ContextKeyTarget, addr)
	}
	log := ContextLogger(ctx)

	msg, err := p.opts.Filter.Transform(line)
	if err != nil {
		return p.skipped(ctx, line, err)
	}

	payload, err := p.opts.Codec.Encode(msg)
	if err != nil {
		return p.skipped(ctx, line, Skip(SkipMalformed, fmt.Errorf("encode gelf message: %w", err)))
	}

	datagrams, err := p.opts.Framing.Frameup(payload)
	if errors.Is(err, framing.ErrTooManyChunks) {
		return p.skipped(ctx, line, Skip(SkipOversized, err))
	} else if err != nil {
		return fmt.Errorf("frame gelf message: %w", err)
	}

	if err := p.opts.Output.Send(ctx, datagrams, addr); err != nil {
		// partial delivery; graylog drops incomplete chunk sets on its own
		log.Warn("output failed", "error", err, "datagrams", len(datagrams))
		return nil
	}
	p.opts.Metrics.RecordSent()
	return nil
}

func (p *Pipeline) skipped(ctx context.Context, line []byte, err error) error {
	reason, ok := SkipReasonOf(err)
	if !ok {
		return err
	}
	p.opts.Metrics.Skipped(reason.String())

	log := ContextLogger(ctx)
	switch reason {
	case SkipMalformed:
		log.Debug("dropping malformed record", "error", err, "line", string(line))
	case SkipOversized:
		log.Warn("dropping oversized record", "error", err, "bytes", len(line))
	default:
		log.Debug("dropping record", "reason", reason.String())
	}
	return nil
}
