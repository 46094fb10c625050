package journalgelf

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"
)

// Record is one decoded journal entry, keyed by journal field name.
//
// Values keep their JSON shape: string, json.Number, bool, nil,
// []any or map[string]any.
type Record struct {
	Fields map[string]any
}

func NewRecord() Record {
	return Record{Fields: make(map[string]any)}
}

func (r *Record) Get(field string) (any, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// String returns the field rendered as text, see Text.
func (r *Record) String(field string) (string, bool) {
	v, ok := r.Fields[field]
	if !ok {
		return "", false
	}
	return Text(v), true
}

func (r *Record) Set(field string, value any) {
	r.Fields[field] = value
}

// TraverseFields visits the fields in name order.
// Getting an ordered set of keys is essential for deterministic encoding.
func (r *Record) TraverseFields(cb func(name string, value any)) {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cb(k, r.Fields[k])
	}
}

// Text renders a journal value as a string.
//
// journalctl prints fields that are not valid UTF-8 as arrays of byte
// values; those are turned back into text. Other arrays and objects are
// rendered as compact JSON.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []any:
		if b, ok := byteArray(x); ok {
			return strings.ToValidUTF8(string(b), string(utf8.RuneError))
		}
	}
	dat, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(dat)
}

func byteArray(values []any) ([]byte, bool) {
	if len(values) == 0 {
		return nil, false
	}
	b := make([]byte, 0, len(values))
	for _, v := range values {
		n, ok := v.(json.Number)
		if !ok {
			return nil, false
		}
		i, err := n.Int64()
		if err != nil || i < 0 || i > 255 {
			return nil, false
		}
		b = append(b, byte(i))
	}
	return b, true
}
