package journalgelf_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicwaller/journalgelf"
	"github.com/nicwaller/journalgelf/codec"
	"github.com/nicwaller/journalgelf/filter"
	"github.com/nicwaller/journalgelf/framing"
	"github.com/nicwaller/journalgelf/input"
	"github.com/nicwaller/journalgelf/metrics"
	"github.com/nicwaller/journalgelf/severity"
)

type sent struct {
	datagrams [][]byte
	addr      *net.UDPAddr
}

type fakeOutput struct {
	sent []sent
	err  error
}

func (o *fakeOutput) Send(_ context.Context, datagrams [][]byte, addr *net.UDPAddr) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, sent{datagrams, addr})
	return nil
}

type fixedTarget struct{ addr *net.UDPAddr }

func (t fixedTarget) Addr(context.Context) *net.UDPAddr { return t.addr }

type fixture struct {
	pipeline *journalgelf.Pipeline
	filter   *filter.JournalFilter
	out      *fakeOutput
	reg      *prometheus.Registry
}

func newFixture(t *testing.T, f journalgelf.FramingPlugin) *fixture {
	t.Helper()
	if f == nil {
		f = framing.GELF(framing.GELFOptions{Compression: framing.CompressionNone})
	}
	fx := &fixture{
		filter: filter.Journal(filter.JournalOptions{SystemThreshold: severity.Info}),
		out:    &fakeOutput{},
		reg:    prometheus.NewRegistry(),
	}
	p, err := journalgelf.NewPipeline(journalgelf.PipelineOptions{
		Filter:  fx.filter,
		Codec:   codec.GELF(),
		Framing: f,
		Output:  fx.out,
		Target:  fixedTarget{&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 12201}},
		Metrics: metrics.New(fx.reg),
	})
	require.NoError(t, err)
	fx.pipeline = p
	return fx
}

func (fx *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := fx.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	samples:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue samples
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func (fx *fixture) process(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, fx.pipeline.Process(context.Background(), []byte(line)))
}

func TestNewPipeline_Incomplete(t *testing.T) {
	_, err := journalgelf.NewPipeline(journalgelf.PipelineOptions{})
	assert.Error(t, err)

	p, err := journalgelf.NewPipeline(journalgelf.PipelineOptions{
		Filter:  filter.Journal(filter.JournalOptions{}),
		Codec:   codec.GELF(),
		Framing: framing.GELF(framing.GELFOptions{}),
		Output:  &fakeOutput{},
	})
	require.NoError(t, err)
	assert.Equal(t, "journal", p.GetName())
}

func TestProcess_Sends(t *testing.T) {
	fx := newFixture(t, nil)
	fx.process(t, `  {"MESSAGE":"hello","PRIORITY":"3","_HOSTNAME":"h1"}  `)

	require.Len(t, fx.out.sent, 1)
	require.Len(t, fx.out.sent[0].datagrams, 1)
	assert.Equal(t, "127.0.0.1:12201", fx.out.sent[0].addr.String())
	assert.JSONEq(t, `{"version":"1.1","host":"h1","short_message":"hello","level":3}`, string(fx.out.sent[0].datagrams[0]))

	assert.Equal(t, 1.0, fx.counter(t, "journalgelf_lines_total", nil))
	assert.Equal(t, 1.0, fx.counter(t, "journalgelf_records_sent_total", nil))
}

func TestProcess_Skips(t *testing.T) {
	fx := newFixture(t, nil)
	for _, line := range []string{
		"",
		"not json",
		`{"PRIORITY":"3"}`,
		`{"MESSAGE":"chatter","PRIORITY":"7"}`,
		`{"MESSAGE":"more chatter","PRIORITY":"7"}`,
	} {
		fx.process(t, line)
	}
	assert.Empty(t, fx.out.sent)
	assert.Equal(t, 5.0, fx.counter(t, "journalgelf_lines_total", nil))
	assert.Equal(t, 0.0, fx.counter(t, "journalgelf_records_sent_total", nil))
	for reason, want := range map[string]float64{
		"empty":      1,
		"malformed":  1,
		"no_message": 1,
		"filtered":   2,
	} {
		assert.Equal(t, want, fx.counter(t, "journalgelf_records_skipped_total", map[string]string{"reason": reason}), reason)
	}
}

func TestProcess_Oversized(t *testing.T) {
	fx := newFixture(t, framing.GELF(framing.GELFOptions{
		Compression: framing.CompressionNone,
		ChunkSize:   framing.ChunkSize(13),
	}))
	fx.process(t, `{"MESSAGE":"`+strings.Repeat("x", 200)+`"}`)

	assert.Empty(t, fx.out.sent)
	assert.Equal(t, 1.0, fx.counter(t, "journalgelf_records_skipped_total", map[string]string{"reason": "oversized"}))
}

func TestProcess_Chunked(t *testing.T) {
	fx := newFixture(t, framing.GELF(framing.GELFOptions{
		Compression: framing.CompressionNone,
		ChunkSize:   framing.ChunkSize(100),
	}))
	fx.process(t, `{"MESSAGE":"`+strings.Repeat("x", 500)+`"}`)

	require.Len(t, fx.out.sent, 1)
	datagrams := fx.out.sent[0].datagrams
	assert.Greater(t, len(datagrams), 1)
	for _, d := range datagrams {
		assert.True(t, framing.IsChunk(d))
		assert.LessOrEqual(t, len(d), 100)
	}
	payload, err := framing.Reassemble(datagrams)
	require.NoError(t, err)
	msg, err := codec.GELF().Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 500), msg.ShortMessage)
}

// A number too large for a float64 is forwarded as text instead of stopping the loop.
func TestProcess_HugeNumber(t *testing.T) {
	fx := newFixture(t, nil)
	fx.process(t, `{"MESSAGE":"hi","N":1e400}`)

	require.Len(t, fx.out.sent, 1)
	assert.JSONEq(t, `{"version":"1.1","host":"undefined","short_message":"hi","_N":"1e400"}`, string(fx.out.sent[0].datagrams[0]))
	assert.Equal(t, 1.0, fx.counter(t, "journalgelf_records_sent_total", nil))
}

// A failed send is not fatal and is not counted as sent.
func TestProcess_OutputFailure(t *testing.T) {
	fx := newFixture(t, nil)
	fx.out.err = errors.New("network unreachable")
	fx.process(t, `{"MESSAGE":"hello"}`)
	assert.Equal(t, 0.0, fx.counter(t, "journalgelf_records_sent_total", nil))

	fx.out.err = nil
	fx.process(t, `{"MESSAGE":"hello again"}`)
	assert.Len(t, fx.out.sent, 1)
}

func TestReload(t *testing.T) {
	fx := newFixture(t, nil)
	line := `{"MESSAGE":"notice me","PRIORITY":"5"}`

	fx.process(t, line)
	require.Len(t, fx.out.sent, 1)

	var applied []string
	fx.pipeline.Reload(func() { applied = append(applied, "first") })
	fx.pipeline.Reload(func() {
		applied = append(applied, "second")
		fx.filter.SetThresholds(severity.Warning, nil)
	})
	assert.Empty(t, applied, "reload must wait for the next line")

	fx.process(t, line)
	assert.Equal(t, []string{"second"}, applied)
	assert.Len(t, fx.out.sent, 1)

	fx.process(t, line)
	assert.Equal(t, []string{"second"}, applied)
}

func TestReload_Framing(t *testing.T) {
	fx := newFixture(t, nil)
	fx.pipeline.Reload(func() {
		fx.pipeline.SetFraming(framing.GELF(framing.GELFOptions{Compression: framing.CompressionGzip}))
	})
	fx.process(t, `{"MESSAGE":"zipped"}`)

	require.Len(t, fx.out.sent, 1)
	dat := fx.out.sent[0].datagrams[0]
	assert.Equal(t, []byte{0x1f, 0x8b}, dat[:2])
}

func TestRun(t *testing.T) {
	fx := newFixture(t, nil)
	lines := strings.Join([]string{
		`{"MESSAGE":"one","PRIORITY":"6"}`,
		``,
		`{"MESSAGE":"two","PRIORITY":"7"}`,
		`{"MESSAGE":"three"}`,
	}, "\n")

	require.NoError(t, fx.pipeline.Run(context.Background(), input.Reader(strings.NewReader(lines))))
	require.Len(t, fx.out.sent, 2)
	assert.Equal(t, 4.0, fx.counter(t, "journalgelf_lines_total", nil))
	assert.Equal(t, 2.0, fx.counter(t, "journalgelf_records_sent_total", nil))
}
