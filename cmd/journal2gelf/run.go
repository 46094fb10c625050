package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nicwaller/journalgelf"
	"github.com/nicwaller/journalgelf/codec"
	"github.com/nicwaller/journalgelf/config"
	"github.com/nicwaller/journalgelf/filter"
	"github.com/nicwaller/journalgelf/framing"
	"github.com/nicwaller/journalgelf/input"
	"github.com/nicwaller/journalgelf/metrics"
	"github.com/nicwaller/journalgelf/output"
	"github.com/nicwaller/journalgelf/resolve"
)

// shipper is the wired pipeline plus the parts a config reload touches.
type shipper struct {
	pipeline *journalgelf.Pipeline
	input    journalgelf.InputPlugin
	filter   *filter.JournalFilter
	target   *resolve.Target
	closers  []func() error
}

func newShipper(ctx context.Context, cfg config.Config, m *metrics.Metrics, stdout io.Writer) (*shipper, error) {
	s := &shipper{
		filter: filter.Journal(filter.JournalOptions{
			SystemThreshold:      cfg.SystemLevel,
			MessageThreshold:     cfg.MessageLevel,
			RequireTrailingSpace: cfg.StrictLevelToken,
			StaticFields:         cfg.StaticFields(),
		}),
	}

	switch cfg.Source {
	case config.SourceStdin:
		s.input = input.Stdin()
	case config.SourceJournal:
		s.input = input.Journalctl(input.JournalOptions{ExtraArgs: cfg.JournalArgs})
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}

	opts := journalgelf.PipelineOptions{
		Filter:  s.filter,
		Codec:   codec.GELF(),
		Framing: newFraming(cfg),
		Metrics: m,
	}
	if cfg.DryRun {
		opts.Output = output.Stdout(stdout)
	} else {
		udp, err := output.UDP(output.UDPOptions{Port: cfg.Port, Metrics: m})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, udp.Close)
		target, err := resolve.New(ctx, cfg.Target,
			resolve.WithTTL(cfg.TTLDuration()),
			resolve.WithMetrics(m),
		)
		if err != nil {
			s.close()
			return nil, err
		}
		s.target = target
		opts.Output = udp
		opts.Target = target
	}

	p, err := journalgelf.NewPipeline(opts)
	if err != nil {
		s.close()
		return nil, err
	}
	s.pipeline = p
	return s, nil
}

func newFraming(cfg config.Config) *framing.GELFFraming {
	return framing.GELF(framing.GELFOptions{Compression: cfg.Compression, ChunkSize: cfg.ChunkSize})
}

// apply runs on the loop goroutine, between two lines.
func (s *shipper) apply(cfg config.Config) {
	s.filter.SetThresholds(cfg.SystemLevel, cfg.MessageLevel)
	s.filter.SetRequireTrailingSpace(cfg.StrictLevelToken)
	s.filter.SetStaticFields(cfg.StaticFields())
	s.pipeline.SetFraming(newFraming(cfg))
	if s.target != nil {
		s.target.SetTTL(cfg.TTLDuration())
		s.target.SetHost(cfg.Target)
	}
	slog.Info("applied new configuration", "config", cfg)
}

func (s *shipper) close() {
	for _, fn := range s.closers {
		_ = fn()
	}
}

// run ships records until the input ends, ctx is cancelled or something fails.
// Cancellation is a clean exit.
func run(ctx context.Context, cfg config.Config, configPath string, overlay func(config.Config) (config.Config, error), stdout io.Writer) error {
	slog.Info("starting journal2gelf", "config", cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	s, err := newShipper(ctx, cfg, m, stdout)
	if err != nil {
		return err
	}
	defer s.close()

	aux, stopAux := context.WithCancel(ctx)
	defer stopAux()
	g, gctx := errgroup.WithContext(aux)

	if cfg.MetricsAddr != "" {
		serveMetrics(gctx, g, cfg.MetricsAddr, reg)
	}
	if configPath != "" {
		current := cfg
		g.Go(func() error {
			return config.Watch(gctx, configPath, func(file config.Config) {
				next, err := overlay(file)
				if err == nil {
					err = next.Validate()
				}
				if err != nil {
					slog.Warn("ignoring invalid configuration", "error", err)
					return
				}
				if changed := current.RestartRequired(next); len(changed) > 0 {
					slog.Warn("some settings only change on restart", "settings", changed)
				}
				current = next
				s.pipeline.Reload(func() { s.apply(next) })
			}, config.WatchOptions{})
		})
	}

	// stdin reads cannot be interrupted, so the loop runs on its own goroutine
	// and is abandoned on cancellation
	done := make(chan error, 1)
	go func() {
		done <- s.pipeline.Run(gctx, s.input)
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-gctx.Done():
	}
	stopAux()
	auxErr := g.Wait()

	if ctx.Err() != nil {
		slog.Info("interrupted, shutting down")
		return nil
	}
	if runErr != nil {
		return runErr
	}
	return auxErr
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g.Go(func() error {
		slog.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}
