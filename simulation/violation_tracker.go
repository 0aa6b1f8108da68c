package simulation

// A ViolationTracker records invariant violations keyed by logical round
// and flags ones that repeat across two consecutive CheckInvariants
// events, per spec.md §4.3/§Glossary's "persistent violation" definition.
type ViolationTracker struct {
	byRound    map[int][]string
	lastRound  int
	haveRound  bool
	persistent []string
}

// NewViolationTracker returns an empty tracker.
func NewViolationTracker() *ViolationTracker {
	return &ViolationTracker{byRound: make(map[int][]string)}
}

// Track records violations observed at round, recomputing the persistent
// set: a violation description counts as persistent when it also appeared
// in the immediately preceding recorded round.
func (v *ViolationTracker) Track(violations []string, round int) {
	v.byRound[round] = violations

	v.persistent = nil
	if v.haveRound && v.lastRound == round-1 {
		prev := v.byRound[v.lastRound]
		prevSet := make(map[string]bool, len(prev))
		for _, p := range prev {
			prevSet[p] = true
		}
		for _, cur := range violations {
			if prevSet[cur] {
				v.persistent = append(v.persistent, cur)
			}
		}
	}
	v.lastRound = round
	v.haveRound = true
}

// PersistentViolations returns the violations found persistent by the most
// recent Track call.
func (v *ViolationTracker) PersistentViolations() []string {
	return v.persistent
}

// ViolationsAt returns the violations recorded for round, or nil if none.
func (v *ViolationTracker) ViolationsAt(round int) []string {
	return v.byRound[round]
}

// AnyViolations reports whether any round on record had a non-empty
// violation list.
func (v *ViolationTracker) AnyViolations() bool {
	for _, vs := range v.byRound {
		if len(vs) > 0 {
			return true
		}
	}
	return false
}
