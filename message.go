package journalgelf

import (
	"strings"

	"github.com/nicwaller/journalgelf/severity"
)

const GELFVersion = "1.1"

// DefaultHost is used when a record carries no _HOSTNAME.
const DefaultHost = "undefined"

// Message is a GELF 1.1 event.
//
// Extra holds the additional fields with their leading underscore, e.g. "_team".
// Values are strings, numbers or booleans.
type Message struct {
	Version      string
	Host         string
	ShortMessage string
	FullMessage  string
	Timestamp    *float64
	Level        *severity.System
	Extra        map[string]any
}

func NewMessage(host, shortMessage string) *Message {
	return &Message{
		Version:      GELFVersion,
		Host:         CoalesceStr(host, DefaultHost),
		ShortMessage: shortMessage,
		Extra:        make(map[string]any),
	}
}

func (m *Message) SetTimestamp(ts float64) *Message {
	m.Timestamp = &ts
	return m
}

func (m *Message) SetLevel(level severity.System) *Message {
	m.Level = &level
	return m
}

// SetExtra adds an additional field, prefixing the name with "_" when missing.
// It reports false for "_id", which GELF reserves.
func (m *Message) SetExtra(name string, value any) bool {
	key := ExtraKey(name)
	if key == "_id" || key == "_" {
		return false
	}
	if m.Extra == nil {
		m.Extra = make(map[string]any)
	}
	m.Extra[key] = value
	return true
}

// ExtraKey is the GELF additional field name for name.
func ExtraKey(name string) string {
	if strings.HasPrefix(name, "_") {
		return name
	}
	return "_" + name
}

// CoalesceStr returns the first non-empty string.
func CoalesceStr(args ...string) string {
	for _, v := range args {
		if v != "" {
			return v
		}
	}
	return ""
}
