package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nicwaller/journalgelf"
	"github.com/nicwaller/journalgelf/framing"
)

func Stdin() *ReaderInput {
	return Reader(os.Stdin)
}

// Reader feeds every line of r to the pipeline. The end of r ends the input cleanly.
func Reader(r io.Reader) *ReaderInput {
	return &ReaderInput{r: r}
}

type ReaderInput struct {
	r io.Reader
}

func (p *ReaderInput) Run(ctx context.Context, send journalgelf.LineSender) error {
	ctx = context.WithValue(ctx, journalgelf.ContextKeyPluginType, "input[stdin]")
	log := journalgelf.ContextLogger(ctx)
	log.Debug("reading lines")
	if err := pump(ctx, framing.Lines(p.r), send); err != nil {
		return err
	}
	log.Debug("reached end of input")
	return nil
}

// pump sends lines until the reader reports io.EOF, which is returned as nil.
// Blank lines are passed on; the filter drops them.
func pump(ctx context.Context, lines *framing.LineReader, send journalgelf.LineSender) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := lines.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("read line: %w", err)
		}
		if err := send(ctx, line); err != nil {
			return err
		}
	}
}
