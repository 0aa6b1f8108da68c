// Package event implements the typed event hierarchy described in
// spec.md §3/§4.1: a tagged-sum Event interface dispatched by kind at the
// codec's decode site, rather than the source's class-subclass
// polymorphism (spec.md §9 design note). Every concrete event wraps the
// shared Base for its label/time/round/prunable/timed-out bookkeeping and
// implements Fingerprint and Proceed for its own semantics, calling into
// simulation.Simulation for any state mutation.
package event

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ahassany/sts/fingerprint"
	"github.com/ahassany/sts/simulation"
)

// ErrDuplicateLabel is returned by Labels.Reserve when a label has already
// been issued, per spec.md §4.1's "reusing a label MUST raise
// DuplicateLabel" contract.
var ErrDuplicateLabel = errors.New("event: duplicate label")

// ErrMalformedEvent is wrapped by codec decode errors that name a missing
// required field, per spec.md §4.1.
var ErrMalformedEvent = errors.New("event: malformed event")

// An EventTime is the wall-clock timestamp spec.md §3 stores as
// "[seconds since unix epoch, microseconds]".
type EventTime struct {
	Secs  int64
	Usecs int64
}

// Event is the abstract contract every concrete event type satisfies.
// Two events are equal iff same class and same label (spec.md §3); this
// package never defines an Equal method because Go struct/pointer identity
// over Label already gives callers that comparison for free when events are
// tracked by label in a map.
type Event interface {
	Label() string
	Class() string
	EventTime() EventTime
	LogicalRound() int
	SetLogicalRound(int)
	DependentLabels() []string
	Prunable() bool
	TimedOut() bool
	SetTimedOut(bool)
	Fingerprint() fingerprint.Fingerprint
}

// An InputEvent mutates simulation state when proceeded, per spec.md §3.
type InputEvent interface {
	Event
	Proceed(sim *simulation.Simulation) (bool, error)
}

// An InternalEvent is observed rather than injected: Proceed reports
// whether the awaited condition has now occurred, without itself causing
// it. TimeoutDisallowed events must be waited on indefinitely (spec.md
// §4.1).
type InternalEvent interface {
	Event
	Proceed(sim *simulation.Simulation) (bool, error)
	Whitelisted(sim *simulation.Simulation) bool
	TimeoutDisallowed() bool
}

// A SpecialEvent is logged but never executed by the replayer; its Proceed
// is a hard error, per spec.md §3.
type SpecialEvent interface {
	Event
	Proceed(sim *simulation.Simulation) error
}

// Base carries the attributes common to every concrete event, per spec.md
// §3's Event base class.
type Base struct {
	label            string
	eventTime        EventTime
	logicalRound     int
	dependentLabels  []string
	prunable         bool
	timedOut         bool
}

// NewBase constructs a Base. dependentLabels may be nil.
func NewBase(label string, t EventTime, logicalRound int, prunable bool, dependentLabels []string) Base {
	return Base{
		label:           label,
		eventTime:       t,
		logicalRound:    logicalRound,
		prunable:        prunable,
		dependentLabels: dependentLabels,
	}
}

func (b *Base) Label() string               { return b.label }
func (b *Base) EventTime() EventTime        { return b.eventTime }
func (b *Base) LogicalRound() int           { return b.logicalRound }
func (b *Base) SetLogicalRound(r int)       { b.logicalRound = r }
func (b *Base) DependentLabels() []string   { return b.dependentLabels }
func (b *Base) Prunable() bool              { return b.prunable }
func (b *Base) TimedOut() bool              { return b.timedOut }
func (b *Base) SetTimedOut(t bool)          { b.timedOut = t }

// Labels is the label generator described in spec.md §4.1: monotonically
// increasing integers prefixed by 'e' (input events) or 'i' (internal
// events), with issued labels tracked so a reused label is a hard error.
// This is an explicit context object per spec.md §9's "Global state" design
// note, not a package-level singleton.
type Labels struct {
	mu       sync.Mutex
	nextE    int
	nextI    int
	issued   map[string]bool
}

// NewLabels returns an empty label generator.
func NewLabels() *Labels {
	return &Labels{issued: make(map[string]bool)}
}

// NextInput returns the next unused input-event label ("e<n>").
func (l *Labels) NextInput() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		lbl := fmt.Sprintf("e%d", l.nextE)
		l.nextE++
		if !l.issued[lbl] {
			l.issued[lbl] = true
			return lbl
		}
	}
}

// NextInternal returns the next unused internal-event label ("i<n>").
func (l *Labels) NextInternal() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		lbl := fmt.Sprintf("i%d", l.nextI)
		l.nextI++
		if !l.issued[lbl] {
			l.issued[lbl] = true
			return lbl
		}
	}
}

// Reserve marks lbl as issued, used when loading labels from a decoded
// trace. It returns ErrDuplicateLabel if lbl was already issued.
func (l *Labels) Reserve(lbl string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.issued[lbl] {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, lbl)
	}
	l.issued[lbl] = true
	return nil
}
