package framing

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// Lines frames a byte stream into newline-delimited records.
//
// Unlike bufio.Scanner there is no token size limit, and the end of the
// stream is reported as io.EOF rather than inferred from an empty read.
func Lines(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

type LineReader struct {
	r   *bufio.Reader
	eof bool
}

// Next returns the next line without its terminator. A final line with no
// newline is still returned; the call after it reports io.EOF.
// Blank lines are returned as empty slices so callers can tell them apart
// from the end of the stream.
func (l *LineReader) Next() ([]byte, error) {
	if l.eof {
		return nil, io.EOF
	}
	line, err := l.r.ReadBytes('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, err
		}
		l.eof = true
		if len(line) == 0 {
			return nil, io.EOF
		}
	}
	line = bytes.TrimSuffix(line, []byte{'\n'})
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return line, nil
}
