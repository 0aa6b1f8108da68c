// Package fingerprint implements the canonicalisation algebra shared by
// every trace event: a deterministic, hashable summary that defines
// functional equivalence of an event across two separate runs of the same
// controller software.
package fingerprint

import (
	"fmt"
	"sort"
	"strings"
)

// A Fingerprint is a structured equality key. Two fingerprints are equal
// iff they are structurally equal, as reported by Equal: same class tag,
// same payload.
//
// Fingerprint is implemented as an immutable tuple rather than an arbitrary
// struct so that its JSON encoding round-trips losslessly through a generic
// array, per spec.md §9 ("Fingerprint tuples vs lists"). The payload is held
// in a slice, so Fingerprint is not comparable with == and cannot be used
// as a map key; equality is tested with Equal.
type Fingerprint struct {
	class   string
	payload []interface{}
}

// New builds a Fingerprint tagged with class and carrying payload as its
// ordered tuple elements. Equal compares payload elements by their
// fmt.Sprint rendering, so a uint64 1 and a JSON-decoded float64 1 compare
// equal.
func New(class string, payload ...interface{}) Fingerprint {
	cp := make([]interface{}, len(payload))
	copy(cp, payload)
	return Fingerprint{class: class, payload: cp}
}

// Class returns the fingerprint's class tag, e.g. "SwitchFailure".
func (f Fingerprint) Class() string { return f.class }

// Payload returns a copy of the fingerprint's ordered tuple elements.
func (f Fingerprint) Payload() []interface{} {
	cp := make([]interface{}, len(f.payload))
	copy(cp, f.payload)
	return cp
}

// Tuple returns the fingerprint as a flat []interface{} with the class tag
// in position zero, suitable for JSON array encoding.
func (f Fingerprint) Tuple() []interface{} {
	t := make([]interface{}, 0, len(f.payload)+1)
	t = append(t, f.class)
	t = append(t, f.payload...)
	return t
}

// String renders a human-readable, stable representation of the
// fingerprint, useful for log lines and test failure messages.
func (f Fingerprint) String() string {
	var b strings.Builder
	b.WriteString(f.class)
	b.WriteByte('(')
	for i, p := range f.payload {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v", p)
	}
	b.WriteByte(')')
	return b.String()
}

// Equal reports whether f and other are structurally equal: same class tag
// and the same number of payload elements, each pair rendering identically
// under fmt.Sprint. It also serves go-cmp's Equal-method protocol; == does
// not apply to Fingerprint, whose payload is a slice.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.class != other.class || len(f.payload) != len(other.payload) {
		return false
	}
	for i := range f.payload {
		if fmt.Sprint(f.payload[i]) != fmt.Sprint(other.payload[i]) {
			return false
		}
	}
	return true
}

// FromTuple reconstructs a Fingerprint from a decoded JSON array: element
// zero is the class tag, the rest is the payload, in order. It is the
// inverse of Tuple and is used by the event codec when decoding the
// "fingerprint" field of a trace line.
func FromTuple(tuple []interface{}) (Fingerprint, error) {
	if len(tuple) == 0 {
		return Fingerprint{}, fmt.Errorf("fingerprint: empty tuple")
	}
	class, ok := tuple[0].(string)
	if !ok {
		return Fingerprint{}, fmt.Errorf("fingerprint: class tag must be a string, got %T", tuple[0])
	}
	return New(class, tuple[1:]...), nil
}

// sortedKeys is a small helper used by OFFingerprint to make its canonical
// match-field list order-independent: two messages that
// carry the same match criteria in different orders must fingerprint
// identically.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
