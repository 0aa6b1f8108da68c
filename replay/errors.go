// Package replay implements the event-DAG scheduler that drives a decoded
// trace to completion, per spec.md §4.3: input events mutate simulation
// state directly, internal events are observed rather than injected, and
// special events are logged without ever being proceeded.
package replay

import "fmt"

// Kind names one of the error classes spec.md §7 enumerates.
type Kind string

// Error kinds. DecodeError/DuplicateLabel/InvariantUnknown/FatalInternal are
// structural and abort the run; UnknownEntity/Timeout/InvariantViolation are
// per-event and only mark the offending event.
const (
	KindDecodeError       Kind = "DecodeError"
	KindDuplicateLabel    Kind = "DuplicateLabel"
	KindInvariantUnknown  Kind = "InvariantUnknown"
	KindUnknownEntity     Kind = "UnknownEntity"
	KindTimeout           Kind = "Timeout"
	KindInvariantViolated Kind = "InvariantViolation"
	KindFatalInternal     Kind = "FatalInternal"
)

// An Error is a typed replay failure, grounded on the teacher's *ovs.Error
// pattern: a struct implementing error, with the underlying cause preserved
// for errors.Is/errors.As and a Kind tag for coarse-grained dispatch.
type Error struct {
	Kind  Kind
	Label string
	Err   error
}

func (e *Error) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("replay: %s (label=%s): %v", e.Kind, e.Label, e.Err)
	}
	return fmt.Sprintf("replay: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsStructural reports whether kind is one of the four structural error
// kinds that abort a replay run outright, per spec.md §7's recovery
// discipline ("Only structural errors... abort").
func (k Kind) IsStructural() bool {
	switch k {
	case KindDecodeError, KindDuplicateLabel, KindInvariantUnknown, KindFatalInternal:
		return true
	default:
		return false
	}
}

// IsTimeout reports whether err is a replay Timeout error, mirroring the
// teacher's ovs.IsPortNotExist predicate-helper idiom.
func IsTimeout(err error) bool {
	rerr, ok := err.(*Error)
	return ok && rerr.Kind == KindTimeout
}

// IsUnknownEntity reports whether err is a replay UnknownEntity error.
func IsUnknownEntity(err error) bool {
	rerr, ok := err.(*Error)
	return ok && rerr.Kind == KindUnknownEntity
}
