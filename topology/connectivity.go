package topology

// PolicyID names a reachability policy declared by an AddIntent/RemoveIntent
// event. It is opaque to the tracker; equality is all that matters.
type PolicyID string

// pairRecord is one (src-iface, dst-iface, policy) record filed under a
// (src-host, dst-host) pair, per spec.md §3/§4.6.
type pairRecord struct {
	srcIface string
	dstIface string
	policy   PolicyID
}

// isWildcard reports whether a remove call with these iface arguments
// should match every interface pair for the host pair, per spec.md §3
// ("Wildcards (iface=nil) on remove match all interface pairs"). Go has no
// null string, so the empty string plays the role of Python's None here;
// callers that truly need to match a record whose interface name is the
// empty string should not rely on wildcard removal.
func isWildcard(srcIface, dstIface string) bool {
	return srcIface == "" && dstIface == ""
}

func matches(r pairRecord, srcIface, dstIface string, wildcard bool) bool {
	if wildcard {
		return true
	}
	return r.srcIface == srcIface && r.dstIface == dstIface
}

// A ConnectivityTracker is the reachability policy ledger described in
// spec.md §3/§4.6: two symmetric (host,host)->set-of-record maps, a policy
// registry, and a default answer for pairs with no record at all.
//
// This is a direct port of the behaviour asserted by
// original_source/tests/unit/sts/topology/connectivity_tracker_test.py.
type ConnectivityTracker struct {
	DefaultConnected bool

	connected    map[string]map[string][]pairRecord
	disconnected map[string]map[string][]pairRecord
	policies     map[PolicyID]bool
}

// NewConnectivityTracker returns an empty tracker. defaultConnected is the
// answer IsConnected gives for a pair with no explicit record.
func NewConnectivityTracker(defaultConnected bool) *ConnectivityTracker {
	return &ConnectivityTracker{
		DefaultConnected: defaultConnected,
		connected:        make(map[string]map[string][]pairRecord),
		disconnected:     make(map[string]map[string][]pairRecord),
		policies:         make(map[PolicyID]bool),
	}
}

func ensure(m map[string]map[string][]pairRecord, h1, h2 string) {
	if _, ok := m[h1]; !ok {
		m[h1] = make(map[string][]pairRecord)
	}
	if _, ok := m[h1][h2]; !ok {
		m[h1][h2] = nil
	}
}

// AddConnectedHosts records that h1 (via srcIface) and h2 (via dstIface) are
// reachable under policy p.
func (t *ConnectivityTracker) AddConnectedHosts(h1, srcIface, h2, dstIface string, p PolicyID) {
	ensure(t.connected, h1, h2)
	t.connected[h1][h2] = append(t.connected[h1][h2], pairRecord{srcIface, dstIface, p})
	t.policies[p] = true
}

// AddDisconnectedHosts records that h1 (via srcIface) and h2 (via dstIface)
// are unreachable under policy p.
func (t *ConnectivityTracker) AddDisconnectedHosts(h1, srcIface, h2, dstIface string, p PolicyID) {
	ensure(t.disconnected, h1, h2)
	t.disconnected[h1][h2] = append(t.disconnected[h1][h2], pairRecord{srcIface, dstIface, p})
	t.policies[p] = true
}

// RemoveConnectedHosts strips matching connected records for (h1,h2). An
// empty srcIface and dstIface (the Go stand-in for Python's None) matches
// every interface pair recorded for (h1,h2), per spec.md §3. When
// removePolicy is true, every policy referenced by a removed record is also
// deregistered, matching
// original_source/tests/unit/sts/topology/connectivity_tracker_test.go.
func (t *ConnectivityTracker) RemoveConnectedHosts(h1, srcIface, h2, dstIface string, removePolicy bool) {
	t.removeFrom(t.connected, h1, srcIface, h2, dstIface, removePolicy)
}

// RemoveDisconnectedHosts strips matching disconnected records for (h1,h2).
func (t *ConnectivityTracker) RemoveDisconnectedHosts(h1, srcIface, h2, dstIface string, removePolicy bool) {
	t.removeFrom(t.disconnected, h1, srcIface, h2, dstIface, removePolicy)
}

func (t *ConnectivityTracker) removeFrom(m map[string]map[string][]pairRecord, h1, srcIface, h2, dstIface string, removePolicy bool) {
	records, ok := m[h1][h2]
	if !ok {
		return
	}
	wildcard := isWildcard(srcIface, dstIface)

	var kept []pairRecord
	var removed []PolicyID
	for _, r := range records {
		if matches(r, srcIface, dstIface, wildcard) {
			removed = append(removed, r.policy)
			continue
		}
		kept = append(kept, r)
	}
	if _, ok := m[h1]; ok {
		m[h1][h2] = kept
	}
	if removePolicy {
		for _, p := range removed {
			delete(t.policies, p)
		}
	}
}

// RemovePolicy erases every record referencing p from both maps and from the
// policy registry.
func (t *ConnectivityTracker) RemovePolicy(p PolicyID) {
	for h1, byDst := range t.connected {
		for h2, records := range byDst {
			var kept []pairRecord
			for _, r := range records {
				if r.policy != p {
					kept = append(kept, r)
				}
			}
			t.connected[h1][h2] = kept
		}
	}
	for h1, byDst := range t.disconnected {
		for h2, records := range byDst {
			var kept []pairRecord
			for _, r := range records {
				if r.policy != p {
					kept = append(kept, r)
				}
			}
			t.disconnected[h1][h2] = kept
		}
	}
	delete(t.policies, p)
}

// HasPolicy reports whether p has ever been declared and not yet fully
// removed.
func (t *ConnectivityTracker) HasPolicy(p PolicyID) bool {
	return t.policies[p]
}

// IsConnected answers the reachability question for (h1,h2), consulting in
// order: explicit connected records, explicit disconnected records, and
// finally DefaultConnected, per spec.md §4.6.
func (t *ConnectivityTracker) IsConnected(h1, h2 string) bool {
	if len(t.connected[h1][h2]) > 0 {
		return true
	}
	if len(t.disconnected[h1][h2]) > 0 {
		return false
	}
	return t.DefaultConnected
}

// ConnectedCount returns the number of connected records for (h1,h2), used
// by tests mirroring connectivity_tracker_test.go's len() assertions.
func (t *ConnectivityTracker) ConnectedCount(h1, h2 string) int {
	return len(t.connected[h1][h2])
}

// DisconnectedCount returns the number of disconnected records for (h1,h2).
func (t *ConnectivityTracker) DisconnectedCount(h1, h2 string) int {
	return len(t.disconnected[h1][h2])
}
