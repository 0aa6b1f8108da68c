package event

import (
	"errors"

	"github.com/ahassany/sts/fingerprint"
	"github.com/ahassany/sts/simulation"
)

// ErrSpecialEventProceeded is returned by InvariantViolation.Proceed: per
// spec.md §3, special events are logged but never executed by the
// replayer, so calling Proceed on one is a programming error.
var ErrSpecialEventProceeded = errors.New("event: special event must never be proceeded")

// InvariantViolation records that an invariant check returned violations;
// persistent violations may trigger drop-to-interactive, per spec.md §4.3.
type InvariantViolation struct {
	Base
	Violations  []string
	Persistent  bool
}

func NewInvariantViolation(label string, t EventTime, round int, violations []string, persistent bool) *InvariantViolation {
	return &InvariantViolation{Base: NewBase(label, t, round, false, nil), Violations: violations, Persistent: persistent}
}

func (e *InvariantViolation) Class() string { return "InvariantViolation" }
func (e *InvariantViolation) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("InvariantViolation")
}
func (e *InvariantViolation) Proceed(sim *simulation.Simulation) error {
	return ErrSpecialEventProceeded
}
