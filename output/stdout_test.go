package output

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/nicwaller/journalgelf"
	"github.com/nicwaller/journalgelf/codec"
	"github.com/nicwaller/journalgelf/framing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdout(t *testing.T) {
	msg := journalgelf.NewMessage("h1", strings.Repeat("long message ", 400))
	msg.SetExtra("team", "core")
	payload, err := codec.GELF().Encode(msg)
	require.NoError(t, err)

	var buf bytes.Buffer
	out := Stdout(&buf)
	for _, c := range []framing.Compression{framing.CompressionNone, framing.CompressionGzip, framing.CompressionZlib} {
		datagrams, err := framing.GELF(framing.GELFOptions{Compression: c, ChunkSize: framing.ChunkSize(200)}).Frameup(payload)
		require.NoError(t, err)
		require.NoError(t, out.Send(context.Background(), datagrams, nil))
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Equal(t, string(payload), line)
	}
}
