package fingerprint

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFingerprintTupleRoundTrip(t *testing.T) {
	var tests = []struct {
		desc string
		fp   Fingerprint
	}{
		{
			desc: "switch failure",
			fp:   New("SwitchFailure", uint64(1)),
		},
		{
			desc: "link failure with endpoints",
			fp:   New("LinkFailure", uint64(1), uint32(1), uint64(2), uint32(1)),
		},
		{
			desc: "no payload",
			fp:   New("NOPInput"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			tuple := tt.fp.Tuple()

			got, err := FromTuple(tuple)
			if err != nil {
				t.Fatalf("FromTuple: %v", err)
			}

			if !got.Equal(tt.fp) {
				t.Fatalf("round-trip mismatch: got %s, want %s", got, tt.fp)
			}
		})
	}
}

func TestFromTupleErrors(t *testing.T) {
	var tests = []struct {
		desc  string
		tuple []interface{}
	}{
		{desc: "empty tuple", tuple: nil},
		{desc: "non-string class", tuple: []interface{}{42}},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if _, err := FromTuple(tt.tuple); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLinkFailureFingerprintDiscrimination(t *testing.T) {
	// Scenario 2 from spec.md §8: LinkFailure(1,1,2,1) and LinkFailure(1,1,2,2)
	// must produce distinct fingerprints, and swapping endpoints must differ
	// again.
	a := New("LinkFailure", uint64(1), uint32(1), uint64(2), uint32(1))
	b := New("LinkFailure", uint64(1), uint32(1), uint64(2), uint32(2))
	c := New("LinkFailure", uint64(2), uint32(1), uint64(1), uint32(1))

	if a.Equal(b) {
		t.Fatal("LinkFailure fingerprints with different end ports must differ")
	}
	if a.Equal(c) {
		t.Fatal("LinkFailure fingerprints with swapped endpoints must differ")
	}
}

func TestDPFingerprintDiscrimination(t *testing.T) {
	mac1 := net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	mac2 := net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}

	p1 := Packet{Frame: FrameIPv4, SrcMAC: mac1, DstMAC: mac2,
		SrcIP: net.ParseIP("10.0.0.1"), DstIP: net.ParseIP("10.0.0.2"),
		Protocol: 6, SrcPort: 1000, DstPort: 80}
	p2 := p1
	p2.DstPort = 443

	if DPFingerprint(p1).Equal(DPFingerprint(p2)) {
		t.Fatal("packets with different destination ports must fingerprint differently")
	}

	p3 := p1
	got := DPFingerprint(p1)
	want := DPFingerprint(p3)
	if !got.Equal(want) {
		t.Fatalf("identical packets must fingerprint identically: %s != %s", got, want)
	}
}

func TestOFFingerprintIgnoresCookieAndOrdersMatchFields(t *testing.T) {
	// Two FlowMods differing only in match-field wire order must fingerprint
	// identically; the underlying message format has no Cookie/xid field at
	// all (by construction of FlowMod), matching spec.md's requirement.
	a := Message{Type: OFFlowMod, Body: &FlowMod{
		Table: 0, Priority: 100,
		Match:   map[string]string{"nw_src": "10.0.0.1", "nw_dst": "10.0.0.2"},
		Actions: []string{"output:1"},
	}}
	b := Message{Type: OFFlowMod, Body: &FlowMod{
		Table: 0, Priority: 100,
		Match:   map[string]string{"nw_dst": "10.0.0.2", "nw_src": "10.0.0.1"},
		Actions: []string{"output:1"},
	}}

	if diff := cmp.Diff(OFFingerprint(a).Tuple(), OFFingerprint(b).Tuple()); diff != "" {
		t.Fatalf("match-field order must not affect fingerprint (-got +want):\n%s", diff)
	}

	c := Message{Type: OFFlowMod, Body: &FlowMod{
		Table: 0, Priority: 100,
		Match:   map[string]string{"nw_src": "10.0.0.1", "nw_dst": "10.0.0.2"},
		Actions: []string{"output:2"},
	}}
	if OFFingerprint(a).Equal(OFFingerprint(c)) {
		t.Fatal("differing actions must produce a different fingerprint")
	}
}

func TestOFFingerprintWhitelistClasses(t *testing.T) {
	hello := OFFingerprint(Message{Type: OFHello})
	echo := OFFingerprint(Message{Type: OFEchoRequest})
	if hello.Equal(echo) {
		t.Fatal("distinct message types must not collide")
	}
}
