package replay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ahassany/sts/event"
	"github.com/ahassany/sts/simulation"
)

// Outcome records how one trace event was resolved by a replay run.
type Outcome string

// Recognised outcomes.
const (
	OutcomeOK          Outcome = "ok"
	OutcomeTimedOut    Outcome = "timed_out"
	OutcomeFailed      Outcome = "failed"
	OutcomeWhitelisted Outcome = "whitelisted"
	OutcomeLogged      Outcome = "logged"
)

// An EventResult is one line of the replay's outcome log.
type EventResult struct {
	Label   string
	Class   string
	Outcome Outcome
}

// A Replayer drives one trace (event_dag) to completion against a
// Simulation, implementing the state machine in spec.md §4.3.
type Replayer struct {
	sim    *simulation.Simulation
	labels *event.Labels
	events []event.Event

	defaultTimeout   time.Duration
	pollInterval     time.Duration
	passThroughSends bool
	logger           *slog.Logger
	interactive      InteractiveHandler

	Results []EventResult
}

// An Option configures a Replayer at construction time, following the
// teacher's functional-options idiom for its Client/Buffer constructors.
type Option func(*Replayer)

// WithDefaultTimeout overrides the per-wait deadline (spec.md §4.3's
// default_timeout). Default: 5s.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Replayer) { r.defaultTimeout = d }
}

// WithPollInterval sets how often a waiting event re-checks its condition.
// Default: 10ms.
func WithPollInterval(d time.Duration) Option {
	return func(r *Replayer) { r.pollInterval = d }
}

// WithPassThroughSends auto-whitelists ControlMessageSend internal events
// rather than waiting for them to be observed, per spec.md §4.3's
// pass_through_sends parameter.
func WithPassThroughSends(b bool) Option {
	return func(r *Replayer) { r.passThroughSends = b }
}

// WithLogger overrides the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Replayer) { r.logger = l }
}

// WithFailToInteractive sets the simulation's fail_to_interactive flag
// (spec.md §4.3/§9): every CheckInvariants event that finds a violation
// drops to a human-driven shell before the run continues.
func WithFailToInteractive(b bool) Option {
	return func(r *Replayer) { r.sim.FailToInteractive = b }
}

// WithFailToInteractiveOnPersistentViolations is the same escape hatch,
// scoped to violations that persist across two consecutive checks.
func WithFailToInteractiveOnPersistentViolations(b bool) Option {
	return func(r *Replayer) { r.sim.FailToInteractiveOnPersistentViolations = b }
}

// WithInteractiveHandler overrides the drop-to-shell implementation.
// Default: DefaultInteractiveHandler.
func WithInteractiveHandler(h InteractiveHandler) Option {
	return func(r *Replayer) { r.interactive = h }
}

// New validates events against labels and sim's invariant-check registry
// and returns a Replayer ready to Run. Label collisions and references to
// unregistered invariant checks are structural errors that abort before the
// first event is proceeded, per spec.md §7.
func New(sim *simulation.Simulation, labels *event.Labels, events []event.Event, opts ...Option) (*Replayer, error) {
	r := &Replayer{
		sim:            sim,
		labels:         labels,
		events:         events,
		defaultTimeout: 5 * time.Second,
		pollInterval:   10 * time.Millisecond,
		logger:         slog.Default(),
		interactive:    DefaultInteractiveHandler,
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, e := range events {
		if err := labels.Reserve(e.Label()); err != nil {
			return nil, &Error{Kind: KindDuplicateLabel, Label: e.Label(), Err: err}
		}
		if ci, ok := e.(*event.CheckInvariants); ok {
			if !sim.HasInvariantCheck(ci.CheckName) {
				return nil, &Error{Kind: KindInvariantUnknown, Label: ci.Label(),
					Err: fmt.Errorf("replay: invariant check %q is not registered", ci.CheckName)}
			}
		}
	}

	return r, nil
}

// Run drives every event in order to completion, per spec.md §4.3's state
// machine. Per-event errors (unknown entity, timeout) are logged and do not
// abort the run; only structural failures do.
func (r *Replayer) Run() error {
	round := 0
	for _, e := range r.events {
		switch te := e.(type) {
		case event.SpecialEvent:
			r.logger.Warn("special event logged, not proceeded", "label", e.Label(), "class", e.Class())
			r.record(e, OutcomeLogged)
		case event.InternalEvent:
			if err := r.runInternal(te); err != nil {
				return err
			}
		case event.InputEvent:
			if err := r.runInput(te, &round); err != nil {
				return err
			}
		default:
			return &Error{Kind: KindFatalInternal, Label: e.Label(),
				Err: fmt.Errorf("replay: event %q implements neither InputEvent, InternalEvent, nor SpecialEvent", e.Class())}
		}
	}
	return nil
}

func (r *Replayer) record(e event.Event, outcome Outcome) {
	r.Results = append(r.Results, EventResult{Label: e.Label(), Class: e.Class(), Outcome: outcome})
}

func (r *Replayer) runInput(ie event.InputEvent, round *int) error {
	if ci, ok := ie.(*event.CheckInvariants); ok {
		return r.runCheckInvariants(ci, round)
	}

	deadline := time.Now().Add(r.defaultTimeout)
	for {
		ok, err := ie.Proceed(r.sim)
		if err != nil {
			r.logger.Error("input event failed", "label", ie.Label(), "class", ie.Class(), "err", err)
			r.record(ie, OutcomeFailed)
			return nil
		}
		if ok {
			*round++
			ie.SetLogicalRound(*round)
			r.record(ie, OutcomeOK)
			return nil
		}
		if time.Now().After(deadline) {
			ie.SetTimedOut(true)
			r.logger.Warn("input event timed out", "label", ie.Label(), "class", ie.Class())
			r.record(ie, OutcomeTimedOut)
			return nil
		}
		time.Sleep(r.pollInterval)
	}
}

// runCheckInvariants bypasses the generic InputEvent.Proceed so the
// replayer can see the violations CheckInvariants.Proceed otherwise
// discards, needed to decide whether to drop to an interactive shell.
func (r *Replayer) runCheckInvariants(ci *event.CheckInvariants, round *int) error {
	violations, persistent, err := r.sim.CheckInvariants(ci.CheckName, ci.LogicalRound())
	if err != nil {
		return &Error{Kind: KindInvariantUnknown, Label: ci.Label(), Err: err}
	}
	*round++
	ci.SetLogicalRound(*round)
	r.record(ci, OutcomeOK)

	if len(violations) > 0 {
		r.logger.Warn("invariant violation", "check", ci.CheckName, "violations", violations)
		if r.sim.FailToInteractive {
			if err := r.interactive(fmt.Sprintf("invariant violation in %q: %v", ci.CheckName, violations)); err != nil {
				return &Error{Kind: KindFatalInternal, Label: ci.Label(), Err: err}
			}
		}
	}
	if len(persistent) > 0 && r.sim.FailToInteractiveOnPersistentViolations {
		if err := r.interactive(fmt.Sprintf("persistent invariant violation: %v", persistent)); err != nil {
			return &Error{Kind: KindFatalInternal, Label: ci.Label(), Err: err}
		}
	}
	return nil
}

func (r *Replayer) runInternal(ie event.InternalEvent) error {
	if _, ok := ie.(*event.ControlMessageSend); ok && r.passThroughSends {
		r.record(ie, OutcomeWhitelisted)
		return nil
	}
	if ie.Whitelisted(r.sim) {
		r.record(ie, OutcomeWhitelisted)
		return nil
	}

	if ie.TimeoutDisallowed() {
		for {
			ok, err := ie.Proceed(r.sim)
			if err != nil {
				return &Error{Kind: KindFatalInternal, Label: ie.Label(), Err: err}
			}
			if ok {
				r.record(ie, OutcomeOK)
				return nil
			}
			time.Sleep(r.pollInterval)
		}
	}

	deadline := time.Now().Add(r.defaultTimeout)
	for {
		ok, err := ie.Proceed(r.sim)
		if err != nil {
			r.logger.Error("internal event failed", "label", ie.Label(), "class", ie.Class(), "err", err)
			r.record(ie, OutcomeFailed)
			return nil
		}
		if ok {
			r.record(ie, OutcomeOK)
			return nil
		}
		if time.Now().After(deadline) {
			ie.SetTimedOut(true)
			r.logger.Warn("internal event timed out", "label", ie.Label(), "class", ie.Class())
			r.record(ie, OutcomeTimedOut)
			return nil
		}
		time.Sleep(r.pollInterval)
	}
}
