package filter

import (
	"fmt"
	"strings"

	"github.com/nicwaller/journalgelf"
)

// StaticFields are added to every message, keyed by GELF additional field
// name (with the leading underscore). They replace record fields of the same name.
type StaticFields map[string]string

// NewStaticFields builds the static set from the team and service shortcuts
// and any name=value pairs. Empty shortcuts are left out.
func NewStaticFields(team, service string, fields map[string]string) StaticFields {
	s := make(StaticFields, len(fields)+2)
	for k, v := range fields {
		s.Replace(k, v)
	}
	if team != "" {
		s.Replace("team", team)
	}
	if service != "" {
		s.Replace("service", service)
	}
	return s
}

// Replace sets the value of a field, or adds the field if it doesn't already exist.
func (s StaticFields) Replace(name, value string) {
	s[journalgelf.ExtraKey(name)] = value
}

func (s StaticFields) Remove(name string) {
	delete(s, journalgelf.ExtraKey(name))
}

// Merge copies every static field into msg.
func (s StaticFields) Merge(msg *journalgelf.Message) {
	for k, v := range s {
		msg.SetExtra(k, v)
	}
}

// ParseField splits a "name=value" argument. The value may itself contain '='.
func ParseField(arg string) (string, string, error) {
	name, value, ok := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || name == "_" {
		return "", "", fmt.Errorf("field %q is not in name=value form", arg)
	}
	if journalgelf.ExtraKey(name) == "_id" {
		return "", "", fmt.Errorf("field %q is reserved by GELF", name)
	}
	return name, value, nil
}
