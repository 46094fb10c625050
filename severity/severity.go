// Package severity holds the two 8-level severity scales used to filter journal records.
//
// Both scales share the syslog ranks of RFC 5424: emergency is 0 and debug is 7.
// A lower rank is more severe, and a threshold T admits every rank <= T.
package severity

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	rankEmergency = iota
	rankAlert
	rankCritical
	rankError
	rankWarning
	rankNotice
	rankInfo
	rankDebug
)

var canonicalNames = [...]string{
	"emergency",
	"alert",
	"critical",
	"error",
	"warning",
	"notice",
	"info",
	"debug",
}

// System is the severity carried by the journal PRIORITY field.
type System uint8

const (
	Emergency System = rankEmergency
	Alert     System = rankAlert
	Critical  System = rankCritical
	Error     System = rankError
	Warning   System = rankWarning
	Notice    System = rankNotice
	Info      System = rankInfo
	Debug     System = rankDebug
)

// SystemFromNumeric maps a syslog priority to a System severity.
// Unknown priority is treated as maximally verbose, so records with an
// unexpected PRIORITY are only dropped by the strictest thresholds.
func SystemFromNumeric(n int) System {
	if n < rankEmergency || n > rankDebug {
		return Debug
	}
	return System(n)
}

// ParseSystem is the strict parser used for configuration values.
func ParseSystem(s string) (System, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < rankEmergency || n > rankDebug {
			return Debug, fmt.Errorf("system severity %d out of range 0-7", n)
		}
		return System(n), nil
	}
	if rank, ok := lookupName(s, systemAliases); ok {
		return System(rank), nil
	}
	return Debug, fmt.Errorf("unknown system severity %q", s)
}

func (s System) Rank() int { return int(s) }

func (s System) String() string { return nameOf(int(s)) }

// LessSevereThan reports whether s is more verbose than other.
func (s System) LessSevereThan(other System) bool { return s > other }

// Admits reports whether a record of severity v passes the threshold s.
func (s System) Admits(v System) bool { return !v.LessSevereThan(s) }

func (s System) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *System) UnmarshalText(text []byte) error {
	v, err := ParseSystem(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Message is the severity found in a "level=<name>" token inside the message body.
type Message uint8

const (
	MessageEmergency Message = rankEmergency
	MessageAlert     Message = rankAlert
	MessageCritical  Message = rankCritical
	MessageError     Message = rankError
	MessageWarning   Message = rankWarning
	MessageNotice    Message = rankNotice
	MessageInfo      Message = rankInfo
	MessageDebug     Message = rankDebug
)

// DefaultMessage is assigned to level names that match nothing known.
const DefaultMessage = MessageInfo

// MessageFromName matches name case-insensitively. It never fails.
func MessageFromName(name string) Message {
	if rank, ok := lookupName(strings.ToLower(strings.TrimSpace(name)), messageAliases); ok {
		return Message(rank)
	}
	return DefaultMessage
}

// ParseMessage is the strict parser used for configuration values.
func ParseMessage(s string) (Message, error) {
	if rank, ok := lookupName(strings.ToLower(strings.TrimSpace(s)), messageAliases); ok {
		return Message(rank), nil
	}
	return DefaultMessage, fmt.Errorf("unknown message severity %q", s)
}

func (m Message) Rank() int { return int(m) }

func (m Message) String() string { return nameOf(int(m)) }

func (m Message) LessSevereThan(other Message) bool { return m > other }

func (m Message) Admits(v Message) bool { return !v.LessSevereThan(m) }

func (m Message) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Message) UnmarshalText(text []byte) error {
	v, err := ParseMessage(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

var systemAliases = map[string]int{
	"emerg":         rankEmergency,
	"crit":          rankCritical,
	"err":           rankError,
	"warn":          rankWarning,
	"informational": rankInfo,
}

var messageAliases = map[string]int{
	"panic":         rankEmergency,
	"fatal":         rankAlert,
	"crit":          rankCritical,
	"err":           rankError,
	"warn":          rankWarning,
	"informational": rankInfo,
	"trace":         rankDebug,
}

func lookupName(name string, aliases map[string]int) (int, bool) {
	for rank, canonical := range canonicalNames {
		if canonical == name {
			return rank, true
		}
	}
	rank, ok := aliases[name]
	return rank, ok
}

func nameOf(rank int) string {
	if rank < 0 || rank >= len(canonicalNames) {
		return "rank(" + strconv.Itoa(rank) + ")"
	}
	return canonicalNames[rank]
}
