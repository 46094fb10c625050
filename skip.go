package journalgelf

import (
	"errors"
	"fmt"
)

// SkipReason says why a line produced no datagram.
type SkipReason int

const (
	SkipEmpty SkipReason = iota + 1
	SkipMalformed
	SkipNoMessage
	SkipFilteredBySeverity
	SkipOversized
)

func (r SkipReason) String() string {
	switch r {
	case SkipEmpty:
		return "empty"
	case SkipMalformed:
		return "malformed"
	case SkipNoMessage:
		return "no_message"
	case SkipFilteredBySeverity:
		return "filtered"
	case SkipOversized:
		return "oversized"
	default:
		return fmt.Sprintf("SkipReason(%d)", int(r))
	}
}

// SkipError is returned for records that are dropped. It is never fatal.
type SkipError struct {
	Reason SkipReason
	Err    error
}

func Skip(reason SkipReason, err error) error {
	return &SkipError{Reason: reason, Err: err}
}

func (e *SkipError) Error() string {
	if e.Err == nil {
		return "record skipped: " + e.Reason.String()
	}
	return "record skipped: " + e.Reason.String() + ": " + e.Err.Error()
}

func (e *SkipError) Unwrap() error { return e.Err }

// SkipReasonOf extracts the reason from an error chain.
func SkipReasonOf(err error) (SkipReason, bool) {
	var skip *SkipError
	if errors.As(err, &skip) {
		return skip.Reason, true
	}
	return 0, false
}
