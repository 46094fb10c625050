package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nicwaller/journalgelf"
	"github.com/nicwaller/journalgelf/framing"
)

var (
	ErrUnsupportedPlatform = errors.New("journal source is only supported on linux")
	ErrSpawn               = errors.New("cannot start journal reader")
	ErrSourceClosed        = errors.New("journal reader closed its output")
)

const (
	DefaultCommand     = "journalctl"
	defaultStderrLimit = 64 * 1024
	defaultExitGrace   = 2 * time.Second
)

// DefaultArgs follow the journal from now on, one JSON object per line.
var DefaultArgs = []string{"-o", "json", "-f"}

type JournalOptions struct {
	Command string
	// Args replace DefaultArgs when set.
	Args []string
	// ExtraArgs are appended, eg. "--unit=nginx.service".
	ExtraArgs []string
	// StderrLimit is how much of the child's stderr is kept for error reports.
	StderrLimit int
	// ExitGrace is how long the child may keep running or hold stderr
	// open after closing stdout before it is killed.
	ExitGrace time.Duration
	// GOOS overrides runtime.GOOS.
	GOOS string
}

// Journalctl runs journalctl as a child process and reads its stdout.
// The child is expected to run forever, so the end of its output is an error.
func Journalctl(opts JournalOptions) *JournalInput {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if opts.Args == nil {
		opts.Args = DefaultArgs
	}
	if opts.StderrLimit <= 0 {
		opts.StderrLimit = defaultStderrLimit
	}
	if opts.ExitGrace <= 0 {
		opts.ExitGrace = defaultExitGrace
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	return &JournalInput{opts: opts}
}

type JournalInput struct {
	opts JournalOptions
}

func (p *JournalInput) CommandLine() []string {
	args := append([]string{p.opts.Command}, p.opts.Args...)
	return append(args, p.opts.ExtraArgs...)
}

func (p *JournalInput) Run(ctx context.Context, send journalgelf.LineSender) error {
	if p.opts.GOOS != "linux" {
		return fmt.Errorf("%w (running on %s)", ErrUnsupportedPlatform, p.opts.GOOS)
	}
	ctx = context.WithValue(ctx, journalgelf.ContextKeyPluginType, "input[journalctl]")
	ctx = context.WithValue(ctx, journalgelf.ContextKeyPluginName, p.opts.Command)
	log := journalgelf.ContextLogger(ctx)

	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	argv := p.CommandLine()
	cmd := exec.CommandContext(childCtx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSpawn, strings.Join(argv, " "), err)
	}
	log.Info("started journal reader", "pid", cmd.Process.Pid, "command", strings.Join(argv, " "))

	errOutput := &tailBuffer{limit: p.opts.StderrLimit}
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(errOutput, stderr)
		if errors.Is(err, os.ErrClosed) {
			return nil
		}
		return err
	})

	// stop the child before reaping it; grandchildren may still hold stderr open
	stop := func() {
		cancel()
		_ = stderr.Close()
	}
	sendErr := pump(childCtx, framing.Lines(stdout), send)
	if sendErr != nil || ctx.Err() != nil {
		stop()
	} else {
		timer := time.AfterFunc(p.opts.ExitGrace, func() {
			log.Warn("journal reader closed its output but did not exit, killing it")
			stop()
		})
		defer timer.Stop()
	}
	drainErr := g.Wait()
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case sendErr != nil:
		return sendErr
	case drainErr != nil:
		return fmt.Errorf("read journal reader stderr: %w", drainErr)
	}

	status := "exit status 0"
	if waitErr != nil {
		status = waitErr.Error()
	}
	if msg := strings.TrimSpace(errOutput.String()); msg != "" {
		return fmt.Errorf("%w (%s): %s", ErrSourceClosed, status, msg)
	}
	return fmt.Errorf("%w (%s)", ErrSourceClosed, status)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
