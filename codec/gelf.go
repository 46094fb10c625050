package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/nicwaller/journalgelf"
	"github.com/nicwaller/journalgelf/severity"
	"github.com/valyala/fastjson"
)

// GELF encodes messages as GELF 1.1 JSON.
//
//	{
//	 "version": "1.1",
//	 "host": "example.org",
//	 "short_message": "A short message that helps you identify what is going on",
//	 "full_message": "Backtrace here\n\nmore stuff",
//	 "timestamp": 1385053862.3072,
//	 "level": 1,
//	 "_user_id": 9001,
//	 "_some_info": "foo"
//	}
//
// Fixed fields come first, additional fields follow sorted by name, so the
// same message always encodes to the same bytes.
func GELF() journalgelf.CodecPlugin {
	return &gelfCodec{}
}

type gelfCodec struct {
	parsers fastjson.ParserPool
}

func (p *gelfCodec) Encode(msg *journalgelf.Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("cannot encode nil message")
	}
	w := newObjectWriter()
	w.field("version", journalgelf.CoalesceStr(msg.Version, journalgelf.GELFVersion))
	w.field("host", journalgelf.CoalesceStr(msg.Host, journalgelf.DefaultHost))
	w.field("short_message", msg.ShortMessage)
	if msg.FullMessage != "" {
		w.field("full_message", msg.FullMessage)
	}
	if msg.Timestamp != nil {
		w.field("timestamp", json.Number(strconv.FormatFloat(*msg.Timestamp, 'f', -1, 64)))
	}
	if msg.Level != nil {
		w.field("level", msg.Level.Rank())
	}

	keys := make([]string, 0, len(msg.Extra))
	for k := range msg.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := journalgelf.ExtraKey(k)
		if key == "_id" {
			continue
		}
		w.field(key, extraValue(msg.Extra[k]))
	}
	return w.close()
}

// GELF only allows strings and numbers; booleans are kept since Graylog accepts them.
// Numbers that JSON or a float64 cannot carry are sent as their text.
func extraValue(v any) any {
	switch x := v.(type) {
	case string, bool, int, int64:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
		return x
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || !json.Valid([]byte(x)) {
			return string(x)
		}
		return x
	default:
		return journalgelf.Text(v)
	}
}

// objectWriter emits a JSON object with keys in call order.
type objectWriter struct {
	buf bytes.Buffer
	enc *json.Encoder
	n   int
	err error
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.enc = json.NewEncoder(&w.buf)
	// GELF consumers are not browsers
	w.enc.SetEscapeHTML(false)
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, value any) {
	if w.err != nil {
		return
	}
	if w.n > 0 {
		w.buf.WriteByte(',')
	}
	w.n++
	if w.err = w.enc.Encode(key); w.err != nil {
		return
	}
	w.trimNewline()
	w.buf.WriteByte(':')
	if w.err = w.enc.Encode(value); w.err != nil {
		return
	}
	w.trimNewline()
}

// json.Encoder terminates every value with a newline
func (w *objectWriter) trimNewline() {
	w.buf.Truncate(w.buf.Len() - 1)
}

func (w *objectWriter) close() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}

func (p *gelfCodec) Decode(dat []byte) (*journalgelf.Message, error) {
	parser := p.parsers.Get()
	defer p.parsers.Put(parser)

	v, err := parser.ParseBytes(dat)
	if err != nil {
		return nil, err
	}
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("gelf message must be a JSON object, got %s", v.Type())
	}
	if !v.Exists("short_message") {
		return nil, errors.New("gelf message has no short_message")
	}

	msg := journalgelf.NewMessage(string(v.GetStringBytes("host")), string(v.GetStringBytes("short_message")))
	msg.Version = string(v.GetStringBytes("version"))
	msg.FullMessage = string(v.GetStringBytes("full_message"))
	if ts := v.Get("timestamp"); ts != nil {
		f, err := ts.Float64()
		if err != nil {
			return nil, fmt.Errorf("timestamp: %w", err)
		}
		msg.SetTimestamp(f)
	}
	if lvl := v.Get("level"); lvl != nil {
		n, err := lvl.Int()
		if err != nil {
			return nil, fmt.Errorf("level: %w", err)
		}
		msg.SetLevel(severity.SystemFromNumeric(n))
	}

	obj.Visit(func(key []byte, v *fastjson.Value) {
		if !strings.HasPrefix(string(key), "_") {
			return
		}
		msg.Extra[string(key)] = goValue(v)
	})
	return msg, nil
}
