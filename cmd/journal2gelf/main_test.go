package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicwaller/journalgelf/config"
	"github.com/nicwaller/journalgelf/framing"
	"github.com/nicwaller/journalgelf/severity"
)

func parse(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	o := newOptions()
	cmd := o.command(io.Discard)
	require.NoError(t, cmd.ParseFlags(args))
	return o.load(cmd.Flags())
}

func TestFlags_Defaults(t *testing.T) {
	cfg, err := parse(t, "--source", "stdin")
	require.NoError(t, err)
	want := config.Default()
	want.Source = config.SourceStdin
	assert.Equal(t, want, cfg)
}

func TestFlags_SourceRequired(t *testing.T) {
	_, err := parse(t)
	assert.ErrorContains(t, err, "source is required")

	o := newOptions()
	cmd := o.command(io.Discard)
	assert.Error(t, cmd.ParseFlags([]string{"--source", "kafka"}))
}

func TestFlags_All(t *testing.T) {
	cfg, err := parse(t,
		"--source", "journal",
		"-p", "0",
		"-t", "graylog:12201",
		"--ttl", "5",
		"-c", "zlib",
		"--chunk-size", "lan",
		"--team", "core",
		"--service", "api",
		"-f", "env=prod",
		"-f", "query=a=b",
		"-l", "warning",
		"-m", "error",
		"--strict-level-token",
		"--journal-arg", "--unit=nginx.service",
		"--dry-run",
	)
	require.NoError(t, err)
	assert.Equal(t, config.SourceJournal, cfg.Source)
	assert.Equal(t, 0, cfg.Port)
	assert.Equal(t, "graylog:12201", cfg.Target)
	assert.Equal(t, 5, cfg.TTL)
	assert.Equal(t, framing.CompressionZlib, cfg.Compression)
	assert.Equal(t, framing.LAN, cfg.ChunkSize)
	assert.Equal(t, map[string]string{"env": "prod", "query": "a=b"}, cfg.Fields)
	assert.Equal(t, severity.Warning, cfg.SystemLevel)
	require.NotNil(t, cfg.MessageLevel)
	assert.Equal(t, severity.MessageError, *cfg.MessageLevel)
	assert.True(t, cfg.StrictLevelToken)
	assert.Equal(t, []string{"--unit=nginx.service"}, cfg.JournalArgs)
	assert.True(t, cfg.DryRun)
}

func TestFlags_Invalid(t *testing.T) {
	for _, args := range [][]string{
		{"--source", "stdin", "-f", "novalue"},
		{"--source", "stdin", "-l", "loud"},
		{"--source", "stdin", "-m", "loud"},
		{"--source", "stdin", "--chunk-size", "huge"},
		{"--source", "stdin", "--ttl", "-1"},
		{"--source", "stdin", "--log-level", "chatty"},
	} {
		_, err := parse(t, args...)
		assert.Error(t, err, strings.Join(args, " "))
	}
}

// Flags win over the config file, which wins over defaults.
func TestFlags_OverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: journal\ntarget: file:1\nsys: error\nfields: {env: file}\n"), 0o644))

	cfg, err := parse(t, "--config", path, "--sys", "debug", "-f", "env=flag")
	require.NoError(t, err)
	assert.Equal(t, config.SourceJournal, cfg.Source)
	assert.Equal(t, "file:1", cfg.Target)
	assert.Equal(t, severity.Debug, cfg.SystemLevel)
	assert.Equal(t, "flag", cfg.Fields["env"])
	assert.Equal(t, config.DefaultTTL, cfg.TTL)
}

// withStdin replaces os.Stdin for the duration of the test.
func withStdin(t *testing.T, content string) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	go func() {
		_, _ = io.WriteString(w, content)
		_ = w.Close()
	}()
	saved := os.Stdin
	os.Stdin = r
	t.Cleanup(func() {
		os.Stdin = saved
		_ = r.Close()
	})
}

const sample = `{"MESSAGE":"started","PRIORITY":"6","_HOSTNAME":"h1","__REALTIME_TIMESTAMP":"1700000000000000","_PID":"7"}

not json
{"MESSAGE":"chatter","PRIORITY":"7"}
{"MESSAGE":"level=error disk failure","PRIORITY":"3","_HOSTNAME":"h2"}
`

func TestRun_DryRun(t *testing.T) {
	withStdin(t, sample)
	cfg := config.Default()
	cfg.Source = config.SourceStdin
	cfg.DryRun = true
	cfg.Team = "core"

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, "", nil, &out))
	assert.Equal(t,
		`{"version":"1.1","host":"h1","short_message":"started","timestamp":1700000000,"level":6,"__PID":"7","_team":"core"}`+"\n"+
			`{"version":"1.1","host":"h2","short_message":"level=error disk failure","level":3,"_team":"core"}`+"\n",
		out.String())
}

func TestRun_UDP(t *testing.T) {
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer server.Close()

	withStdin(t, sample)
	cfg := config.Default()
	cfg.Source = config.SourceStdin
	cfg.Port = 0
	cfg.Target = server.LocalAddr().String()
	cfg.Compression = framing.CompressionNone
	cfg.SystemLevel = severity.Warning

	require.NoError(t, run(context.Background(), cfg, "", nil, io.Discard))

	require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 65536)
	n, _, err := server.ReadFromUDP(buf)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf[:n], &got))
	assert.Equal(t, "level=error disk failure", got["short_message"])
	assert.Equal(t, "h2", got["host"])

	// the info record was filtered, so nothing else arrives
	require.NoError(t, server.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = server.ReadFromUDP(buf)
	assert.Error(t, err)
}

func TestRun_Cancelled(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	saved := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = saved }()

	cfg := config.Default()
	cfg.Source = config.SourceStdin
	cfg.DryRun = true

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	assert.NoError(t, run(ctx, cfg, "", nil, io.Discard))
}

func TestRun_ResolveFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Source = config.SourceStdin
	cfg.Port = 0
	cfg.Target = "no-such-host.invalid:12201"
	assert.Error(t, run(context.Background(), cfg, "", nil, io.Discard))
}
