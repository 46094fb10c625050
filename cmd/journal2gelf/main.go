// journal2gelf reads journal records and ships them to Graylog as GELF over UDP.
//
//	journalctl -o json -f | journal2gelf --source stdin --target graylog:12201
//	journal2gelf --source journal --sys warning --team core --service api
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nicwaller/journalgelf/config"
	"github.com/nicwaller/journalgelf/filter"
	"github.com/nicwaller/journalgelf/framing"
	"github.com/nicwaller/journalgelf/severity"
)

type options struct {
	configPath       string
	source           *EnumFlag
	port             int
	target           string
	ttl              int
	compression      *EnumFlag
	chunkSize        string
	team             string
	service          string
	fields           []string
	sys              string
	msg              string
	strictLevelToken bool
	journalArgs      []string
	metricsAddr      string
	logLevel         string
	logFile          string
	dryRun           bool
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	return newOptions().command(stdout)
}

func newOptions() *options {
	return &options{
		source:      NewEnumFlag("", config.Sources...),
		compression: NewEnumFlag(string(framing.DefaultCompression), "none", "gzip", "zlib"),
	}
}

func (o *options) command(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "journal2gelf",
		Short:         "Ship journal records to Graylog as GELF over UDP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.load(cmd.Flags())
			if err != nil {
				return err
			}
			closeLog := setupLogging(cfg.LogLevel, cfg.LogFile, os.Stderr)
			defer func() {
				_ = closeLog()
			}()
			overlay := func(file config.Config) (config.Config, error) {
				return o.apply(cmd.Flags(), file)
			}
			return run(cmd.Context(), cfg, o.configPath, overlay, stdout)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&o.configPath, "config", "", "YAML config file, reloaded when it changes")
	fs.Var(o.source, "source", "Where to read journal records: stdin or journal")
	fs.IntVarP(&o.port, "port", "p", config.DefaultPort, "Local UDP port to send from (0 picks one)")
	fs.StringVarP(&o.target, "target", "t", config.DefaultTarget, "Graylog GELF UDP input as host:port")
	fs.IntVar(&o.ttl, "ttl", config.DefaultTTL, "Seconds before the target is resolved again (0 never)")
	fs.VarP(o.compression, "compression", "c", "Payload compression")
	fs.StringVar(&o.chunkSize, "chunk-size", framing.DefaultChunkSize.String(), "Largest datagram: wan, lan or a byte count")
	fs.StringVar(&o.team, "team", "", "Value of the _team field added to every message")
	fs.StringVar(&o.service, "service", "", "Value of the _service field added to every message")
	fs.StringArrayVarP(&o.fields, "field", "f", nil, "Extra name=value field added to every message (repeatable)")
	fs.StringVarP(&o.sys, "sys", "l", severity.Info.String(), "Least severe journal PRIORITY to send")
	fs.StringVarP(&o.msg, "msg", "m", "", "Least severe level=<name> token in the message to send (unset sends all)")
	fs.BoolVar(&o.strictLevelToken, "strict-level-token", false, "Only recognise level=<name> followed by a space")
	fs.StringArrayVar(&o.journalArgs, "journal-arg", nil, "Extra journalctl argument, eg. --unit=nginx.service (repeatable)")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, eg. :9100")
	fs.StringVar(&o.logLevel, "log-level", "info", "Own log level: debug, info, warn or error")
	fs.StringVar(&o.logFile, "log-file", "", "Write own logs as JSON to this file, rotated")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Print GELF messages to stdout instead of sending them")
	return cmd
}

// load builds the startup config: defaults, then the config file, then flags.
func (o *options) load(fs *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := o.apply(fs, cfg)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// apply overrides cfg with every flag set on the command line.
func (o *options) apply(fs *pflag.FlagSet, cfg config.Config) (config.Config, error) {
	cfg.Fields = maps.Clone(cfg.Fields)
	if cfg.Fields == nil {
		cfg.Fields = map[string]string{}
	}

	var err error
	set := fs.Changed
	if set("source") {
		cfg.Source = *o.source.Value
	}
	if set("port") {
		cfg.Port = o.port
	}
	if set("target") {
		cfg.Target = o.target
	}
	if set("ttl") {
		cfg.TTL = o.ttl
	}
	if set("compression") {
		if cfg.Compression, err = framing.ParseCompression(*o.compression.Value); err != nil {
			return cfg, err
		}
	}
	if set("chunk-size") {
		if cfg.ChunkSize, err = framing.ParseChunkSize(o.chunkSize); err != nil {
			return cfg, err
		}
	}
	if set("team") {
		cfg.Team = o.team
	}
	if set("service") {
		cfg.Service = o.service
	}
	for _, arg := range o.fields {
		name, value, err := filter.ParseField(arg)
		if err != nil {
			return cfg, err
		}
		cfg.Fields[name] = value
	}
	if set("sys") {
		if cfg.SystemLevel, err = severity.ParseSystem(o.sys); err != nil {
			return cfg, err
		}
	}
	if set("msg") {
		level, err := severity.ParseMessage(o.msg)
		if err != nil {
			return cfg, err
		}
		cfg.MessageLevel = &level
	}
	if set("strict-level-token") {
		cfg.StrictLevelToken = o.strictLevelToken
	}
	if set("journal-arg") {
		cfg.JournalArgs = o.journalArgs
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
	if set("log-level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(o.logLevel)); err != nil {
			return cfg, fmt.Errorf("log level: %w", err)
		}
	}
	if set("log-file") {
		cfg.LogFile = o.logFile
	}
	if set("dry-run") {
		cfg.DryRun = o.dryRun
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("journal2gelf failed", "error", err)
		os.Exit(1)
	}
}
