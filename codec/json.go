package codec

import (
	"encoding/json"
	"fmt"

	"github.com/nicwaller/journalgelf"
	"github.com/valyala/fastjson"
)

// Journal decodes the lines printed by `journalctl -o json`.
func Journal() *JournalCodec {
	return &JournalCodec{}
}

type JournalCodec struct {
	parsers fastjson.ParserPool
}

func (p *JournalCodec) Decode(dat []byte) (journalgelf.Record, error) {
	parser := p.parsers.Get()
	defer p.parsers.Put(parser)

	v, err := parser.ParseBytes(dat)
	if err != nil {
		return journalgelf.Record{}, err
	}
	obj, err := v.Object()
	if err != nil {
		return journalgelf.Record{}, fmt.Errorf("journal record must be a JSON object, got %s", v.Type())
	}

	rec := journalgelf.NewRecord()
	obj.Visit(func(key []byte, v *fastjson.Value) {
		rec.Set(string(key), goValue(v))
	})
	return rec, nil
}

// goValue copies a parsed value out of the parser's memory.
func goValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return json.Number(v.String())
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeArray:
		items := v.GetArray()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = goValue(item)
		}
		return out
	case fastjson.TypeObject:
		out := make(map[string]any)
		v.GetObject().Visit(func(key []byte, v *fastjson.Value) {
			out[string(key)] = goValue(v)
		})
		return out
	default:
		return nil
	}
}
