package event

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ahassany/sts/fingerprint"
)

func roundTrip(t *testing.T, e Event) Event {
	t.Helper()
	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

var cmpOpts = []cmp.Option{
	cmp.AllowUnexported(Base{}, controlMessageBase{}, ControllerStateChange{}, DeterministicValue{}, DataplanePermit{}),
	cmpopts.IgnoreFields(Base{}, "timedOut"),
	cmp.Comparer(func(a, b fingerprint.Fingerprint) bool { return a.Equal(b) }),
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		desc string
		e    Event
	}{
		{"switch failure", NewSwitchFailure("e0", EventTime{1, 2}, 0, 1)},
		{"switch recovery", NewSwitchRecovery("e1", EventTime{1, 2}, 0, 1)},
		{"link failure", NewLinkFailure("e2", EventTime{1, 2}, 0, 1, 1, 2, 1)},
		{"link recovery", NewLinkRecovery("e3", EventTime{1, 2}, 0, 1, 1, 2, 1)},
		{"controller failure", NewControllerFailure("e4", EventTime{1, 2}, 0, "c0")},
		{"controller recovery", NewControllerRecovery("e5", EventTime{1, 2}, 0, "c0")},
		{"host migration", NewHostMigration("e6", EventTime{1, 2}, 0, 1, 1, 2, 2, "h0", "eth0")},
		{"wait time", NewWaitTime("e7", EventTime{1, 2}, 0, 1.5)},
		{"check invariants", NewCheckInvariants("e8", EventTime{1, 2}, 0, "connectivity")},
		{"control channel block", NewControlChannelBlock("e9", EventTime{1, 2}, 0, 1, "c0")},
		{"control channel unblock", NewControlChannelUnblock("e10", EventTime{1, 2}, 0, 1, "c0")},
		{"block controller pair", NewBlockControllerPair("e11", EventTime{1, 2}, 0, "c0", "c1")},
		{"unblock controller pair", NewUnblockControllerPair("e12", EventTime{1, 2}, 0, "c0", "c1")},
		{"connect to controllers", NewConnectToControllers("e13", EventTime{1, 2}, 0)},
		{"link discovery", NewLinkDiscovery("e14", EventTime{1, 2}, 0, "c0", []string{"1", "2"})},
		{"nop input", NewNOPInput("e15", EventTime{1, 2}, 0)},
		{"ping event", NewPingEvent("e16", EventTime{1, 2}, 0, "h0", "h1", true)},
		{"add intent", NewAddIntent("e17", EventTime{1, 2}, 0, "c0", "i0", 1, 2, 1, 2, "aa:bb", "cc:dd", false, "l2", "", 0, "")},
		{"remove intent", NewRemoveIntent("e18", EventTime{1, 2}, 0, "c0", "i0", "", 0, "")},
		{"control message send", NewControlMessageSend("i0", EventTime{1, 2}, 0, fingerprint.New("OFHello"), 1, "c0", false)},
		{"control message receive", NewControlMessageReceive("i1", EventTime{1, 2}, 0, fingerprint.New("OFHello"), 1, "c0", false)},
		{"process flow mod", NewProcessFlowMod("i2", EventTime{1, 2}, 0, fingerprint.New("OFFlowMod"), 1, "c0", true)},
		{"controller state change", NewControllerStateChange("i3", EventTime{1, 2}, 0, fingerprint.New("StateChange"), "c0", false)},
		{"deterministic value", NewDeterministicValue("i4", EventTime{1, 2}, 0, fingerprint.New("Gettimeofday"), "c0", float64(42), false)},
		{"dataplane drop", NewDataplaneDrop("e19", EventTime{1, 2}, 0, fingerprint.New("DPFingerprint"), 1, 1, true)},
		{"dataplane permit", NewDataplanePermit("i5", EventTime{1, 2}, 0, fingerprint.New("DPFingerprint"), 1, 1, true, false)},
		{"invariant violation", NewInvariantViolation("s0", EventTime{1, 2}, 0, []string{"omega"}, true)},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := roundTrip(t, tt.e)
			if diff := cmp.Diff(tt.e, got, cmpOpts...); diff != "" {
				t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
			}
			if got.Fingerprint().Class() != tt.e.Fingerprint().Class() {
				t.Fatalf("fingerprint class mismatch: got %q want %q", got.Fingerprint().Class(), tt.e.Fingerprint().Class())
			}
		})
	}
}

func TestTrafficInjectionRoundTripsPacket(t *testing.T) {
	pkt := fingerprint.Packet{
		Frame:  fingerprint.FrameIPv4,
		SrcMAC: net.HardwareAddr{0, 0, 0, 0, 0, 1},
		DstMAC: net.HardwareAddr{0, 0, 0, 0, 0, 2},
		SrcIP:  net.ParseIP("10.0.0.1"),
		DstIP:  net.ParseIP("10.0.0.2"),
	}
	e := NewTrafficInjection("e0", EventTime{1, 2}, 0, "h0", pkt, true)

	got := roundTrip(t, e)
	ti, ok := got.(*TrafficInjection)
	if !ok {
		t.Fatalf("decoded type = %T, want *TrafficInjection", got)
	}
	if !fingerprint.DPFingerprint(ti.Packet).Equal(fingerprint.DPFingerprint(pkt)) {
		t.Fatalf("packet did not round-trip: got %s, want %s", ti.Packet, pkt)
	}
}

func TestDecodeMissingRequiredFieldErrors(t *testing.T) {
	_, err := Decode([]byte(`{"class":"SwitchFailure","label":"e0","event_time":[1,0],"logical_round":0}`))
	if err == nil {
		t.Fatal("expected error for missing dpid field")
	}
}

func TestDecodeToleratesUnknownFields(t *testing.T) {
	data := []byte(`{"class":"NOPInput","label":"e0","event_time":[1,0],"logical_round":0,"nonsense_field":true}`)
	if _, err := Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

func TestDecodeUnknownClassErrors(t *testing.T) {
	data := []byte(`{"class":"NotARealEvent","label":"e0","event_time":[1,0],"logical_round":0}`)
	if _, err := Decode(data); err == nil {
		t.Fatal("expected error for unknown class")
	}
}

func TestDecodeAppliesClassDefaults(t *testing.T) {
	// Omitting "prunable" on a WaitTime must default to false, per spec.md
	// §4.1's backward-compatibility rule.
	data := []byte(`{"class":"WaitTime","label":"e0","event_time":[1,0],"logical_round":0,"wait_time":2.5}`)
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Prunable() {
		t.Fatal("WaitTime should default prunable=false")
	}

	data = []byte(`{"class":"InvariantViolation","label":"s0","event_time":[1,0],"logical_round":0,"violations":["x"]}`)
	got, err = Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	iv := got.(*InvariantViolation)
	if !iv.Persistent {
		t.Fatal("InvariantViolation should default persistent=true")
	}
}

func TestDecodeMalformedJSONErrors(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
