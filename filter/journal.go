package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/nicwaller/journalgelf"
	"github.com/nicwaller/journalgelf/codec"
	"github.com/nicwaller/journalgelf/severity"
)

// Journal field names with a dedicated place in the GELF message,
// or that are too noisy to forward.
const (
	FieldMessage   = "MESSAGE"
	FieldHostname  = "_HOSTNAME"
	FieldTimestamp = "__REALTIME_TIMESTAMP"
	FieldPriority  = "PRIORITY"
)

var ignoredFields = map[string]struct{}{
	FieldMessage:      {},
	FieldHostname:     {},
	FieldTimestamp:    {},
	FieldPriority:     {},
	"__CURSOR":        {},
	"_BOOT_ID":        {},
	"_MACHINE_ID":     {},
	"_SYSTEMD_CGROUP": {},
	"_SYSTEMD_SLICE":  {},
	// would become _id
	"id": {},
}

// Ignored reports whether a journal field is never copied as an additional field.
func Ignored(field string) bool {
	_, ok := ignoredFields[field]
	return ok
}

var (
	levelToken       = regexp.MustCompile(`level=([a-zA-Z]+)\b`)
	levelTokenStrict = regexp.MustCompile(`level=([a-zA-Z]+) `)
)

type JournalOptions struct {
	// SystemThreshold drops records whose PRIORITY is less severe.
	SystemThreshold severity.System
	// MessageThreshold drops records whose MESSAGE carries a level=<name>
	// token less severe than it. Nil disables the check.
	MessageThreshold *severity.Message
	// RequireTrailingSpace only recognises "level=<name> " followed by a space.
	RequireTrailingSpace bool
	StaticFields         StaticFields
}

// JournalFilter turns journal JSON lines into GELF messages.
// It is not safe for concurrent use; reconfigure it from the loop goroutine.
type JournalFilter struct {
	opts    JournalOptions
	decoder *codec.JournalCodec
}

func Journal(opts JournalOptions) *JournalFilter {
	if opts.StaticFields == nil {
		opts.StaticFields = StaticFields{}
	}
	return &JournalFilter{opts: opts, decoder: codec.Journal()}
}

func (f *JournalFilter) SetThresholds(system severity.System, message *severity.Message) {
	f.opts.SystemThreshold = system
	f.opts.MessageThreshold = message
}

func (f *JournalFilter) SetRequireTrailingSpace(strict bool) {
	f.opts.RequireTrailingSpace = strict
}

func (f *JournalFilter) SetStaticFields(fields StaticFields) {
	if fields == nil {
		fields = StaticFields{}
	}
	f.opts.StaticFields = fields
}

// Transform returns the GELF message for one line, or a *journalgelf.SkipError.
func (f *JournalFilter) Transform(line []byte) (*journalgelf.Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, journalgelf.Skip(journalgelf.SkipEmpty, nil)
	}

	rec, err := f.decoder.Decode(line)
	if err != nil {
		return nil, journalgelf.Skip(journalgelf.SkipMalformed, err)
	}

	raw, ok := rec.Get(FieldMessage)
	if !ok || raw == nil {
		return nil, journalgelf.Skip(journalgelf.SkipNoMessage, nil)
	}
	text := journalgelf.Text(raw)

	if f.opts.MessageThreshold != nil {
		if name, found := f.messageLevel(text); found {
			if level := severity.MessageFromName(name); !f.opts.MessageThreshold.Admits(level) {
				return nil, journalgelf.Skip(journalgelf.SkipFilteredBySeverity,
					fmt.Errorf("message level %s is below %s", level, *f.opts.MessageThreshold))
			}
		}
	}

	host, _ := rec.Get(FieldHostname)
	hostname, _ := host.(string)
	msg := journalgelf.NewMessage(hostname, text)

	if level, ok := priority(rec); ok {
		if !f.opts.SystemThreshold.Admits(level) {
			return nil, journalgelf.Skip(journalgelf.SkipFilteredBySeverity,
				fmt.Errorf("priority %s is below %s", level, f.opts.SystemThreshold))
		}
		msg.SetLevel(level)
	}

	if us, ok := numeric(rec, FieldTimestamp); ok {
		msg.SetTimestamp(float64(us) / 1_000_000)
	}

	rec.TraverseFields(func(name string, value any) {
		if Ignored(name) {
			return
		}
		msg.Extra["_"+name] = extraValue(value)
	})

	f.opts.StaticFields.Merge(msg)
	return msg, nil
}

func (f *JournalFilter) messageLevel(text string) (string, bool) {
	re := levelToken
	if f.opts.RequireTrailingSpace {
		re = levelTokenStrict
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// numeric reads a field that journalctl prints as a decimal string.
func numeric(rec journalgelf.Record, field string) (int64, bool) {
	n, err := parseNumeric(rec, field)
	return n, err == nil
}

// priority reads PRIORITY. Out of range values, including those past int64,
// are unknown priorities and map to debug.
func priority(rec journalgelf.Record) (severity.System, bool) {
	n, err := parseNumeric(rec, FieldPriority)
	switch {
	case errors.Is(err, strconv.ErrRange):
		return severity.Debug, true
	case err != nil:
		return 0, false
	case n < int64(severity.Emergency) || n > int64(severity.Debug):
		return severity.Debug, true
	}
	return severity.SystemFromNumeric(int(n)), true
}

var errNotNumeric = errors.New("not a decimal field")

func parseNumeric(rec journalgelf.Record, field string) (int64, error) {
	v, ok := rec.Get(field)
	if !ok {
		return 0, errNotNumeric
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	default:
		return 0, errNotNumeric
	}
	return strconv.ParseInt(s, 10, 64)
}

func extraValue(v any) any {
	switch x := v.(type) {
	case string, json.Number, bool:
		return x
	default:
		return journalgelf.Text(v)
	}
}
