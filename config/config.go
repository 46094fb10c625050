// Package config loads the journal2gelf configuration file.
//
// Settings come from Default, then the YAML file, then command line flags.
// When the file changes while the shipper runs, everything except the
// settings named by RestartRequired is applied to the running pipeline.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nicwaller/journalgelf/filter"
	"github.com/nicwaller/journalgelf/framing"
	"github.com/nicwaller/journalgelf/severity"
)

const (
	SourceStdin   = "stdin"
	SourceJournal = "journal"
)

var Sources = []string{SourceStdin, SourceJournal}

const (
	DefaultPort   = 5000
	DefaultTarget = "localhost:12201"
	DefaultTTL    = 60
)

type Config struct {
	Source string `yaml:"source"`
	// Port is the local UDP port to send from.
	Port   int    `yaml:"port"`
	Target string `yaml:"target"`
	// TTL is how many seconds a resolved target address is trusted. 0 never re-resolves.
	TTL         int                 `yaml:"ttl"`
	Compression framing.Compression `yaml:"compression"`
	ChunkSize   framing.ChunkSize   `yaml:"chunk_size"`

	Team    string            `yaml:"team"`
	Service string            `yaml:"service"`
	Fields  map[string]string `yaml:"fields"`

	SystemLevel      severity.System   `yaml:"sys"`
	MessageLevel     *severity.Message `yaml:"msg"`
	StrictLevelToken bool              `yaml:"strict_level_token"`

	JournalArgs []string   `yaml:"journal_args"`
	MetricsAddr string     `yaml:"metrics_addr"`
	LogLevel    slog.Level `yaml:"log_level"`
	LogFile     string     `yaml:"log_file"`
	DryRun      bool       `yaml:"dry_run"`
}

func Default() Config {
	return Config{
		Port:        DefaultPort,
		Target:      DefaultTarget,
		TTL:         DefaultTTL,
		Compression: framing.DefaultCompression,
		ChunkSize:   framing.DefaultChunkSize,
		Fields:      map[string]string{},
		SystemLevel: severity.Info,
		LogLevel:    slog.LevelInfo,
	}
}

// Load decodes path on top of Default. Unknown keys are an error.
func Load(path string) (Config, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(dat)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(dat []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(dat))
	dec.KnownFields(true)
	// an empty document leaves the defaults alone
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if cfg.Fields == nil {
		cfg.Fields = map[string]string{}
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Source == "" {
		errs = append(errs, errors.New("source is required (stdin or journal)"))
	} else if !slices.Contains(Sources, c.Source) {
		errs = append(errs, fmt.Errorf("source %q: expected stdin or journal", c.Source))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, port, err := net.SplitHostPort(c.Target); err != nil {
		errs = append(errs, fmt.Errorf("target %q: %w", c.Target, err))
	} else if port == "" {
		errs = append(errs, fmt.Errorf("target %q has no port", c.Target))
	}
	if c.TTL < 0 {
		errs = append(errs, fmt.Errorf("ttl %d must not be negative", c.TTL))
	}
	if _, err := framing.ParseCompression(string(c.Compression)); err != nil {
		errs = append(errs, err)
	}
	if err := c.ChunkSize.Validate(); err != nil {
		errs = append(errs, err)
	}
	for name, value := range c.Fields {
		if _, _, err := filter.ParseField(name + "=" + value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c Config) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

func (c Config) StaticFields() filter.StaticFields {
	return filter.NewStaticFields(c.Team, c.Service, c.Fields)
}

// RestartRequired lists the settings that differ between c and next
// but only take effect on restart.
func (c Config) RestartRequired(next Config) []string {
	var changed []string
	check := func(name string, same bool) {
		if !same {
			changed = append(changed, name)
		}
	}
	check("source", c.Source == next.Source)
	check("port", c.Port == next.Port)
	check("journal_args", slices.Equal(c.JournalArgs, next.JournalArgs))
	check("metrics_addr", c.MetricsAddr == next.MetricsAddr)
	check("log_level", c.LogLevel == next.LogLevel)
	check("log_file", c.LogFile == next.LogFile)
	check("dry_run", c.DryRun == next.DryRun)
	return changed
}

// LogValue keeps the startup log line short.
func (c Config) LogValue() slog.Value {
	msg := "unset"
	if c.MessageLevel != nil {
		msg = c.MessageLevel.String()
	}
	return slog.GroupValue(
		slog.String("source", c.Source),
		slog.String("target", c.Target),
		slog.Int("port", c.Port),
		slog.Int("ttl", c.TTL),
		slog.String("compression", c.Compression.String()),
		slog.String("chunk_size", c.ChunkSize.String()),
		slog.String("sys", c.SystemLevel.String()),
		slog.String("msg", msg),
	)
}
