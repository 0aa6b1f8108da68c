package openflow

import (
	"testing"

	"github.com/ahassany/sts/fingerprint"
)

func flowModFP(table uint8, priority uint16) fingerprint.Fingerprint {
	return fingerprint.OFFingerprint(fingerprint.Message{
		Type: fingerprint.OFFlowMod,
		Body: &fingerprint.FlowMod{
			Table:    table,
			Priority: priority,
			Match:    map[string]string{"in_port": "1"},
			Actions:  []string{"output:2"},
		},
	})
}

// TestFIFOOrderingWithinConnection covers spec.md §8 scenario 5: fp_B must
// not be schedulable while fp_A sits ahead of it in the same connection's
// queue, and releasing fp_A unblocks fp_B.
func TestFIFOOrderingWithinConnection(t *testing.T) {
	b := New()
	fpA := flowModFP(0, 100)
	fpB := flowModFP(0, 200)

	b.ObserveReceive(1, "c1", fpA)
	b.ObserveReceive(1, "c1", fpB)

	pendingB := PendingReceive{DPID: 1, ControllerID: "c1", Fingerprint: fpB}
	if b.MessageReceiptWaiting(pendingB) {
		t.Fatal("fp_B must not be at head while fp_A is queued ahead of it")
	}

	pendingA := PendingReceive{DPID: 1, ControllerID: "c1", Fingerprint: fpA}
	if !b.MessageReceiptWaiting(pendingA) {
		t.Fatal("fp_A should be at head")
	}
	if err := b.ScheduleReceive(pendingA); err != nil {
		t.Fatalf("ScheduleReceive(fp_A): %v", err)
	}

	if !b.MessageReceiptWaiting(pendingB) {
		t.Fatal("fp_B should now be at head after fp_A released")
	}
	if err := b.ScheduleReceive(pendingB); err != nil {
		t.Fatalf("ScheduleReceive(fp_B): %v", err)
	}
}

func TestScheduleRejectsMessageNotAtHead(t *testing.T) {
	b := New()
	fpA := flowModFP(0, 100)
	fpB := flowModFP(0, 200)
	b.ObserveSend(1, "c1", fpA)
	b.ObserveSend(1, "c1", fpB)

	err := b.ScheduleSend(PendingSend{DPID: 1, ControllerID: "c1", Fingerprint: fpB})
	if err == nil {
		t.Fatal("expected error scheduling fp_B before fp_A released")
	}
}

func TestDistinctConnectionsDoNotInterfere(t *testing.T) {
	b := New()
	fp := flowModFP(0, 100)
	b.ObserveSend(1, "c1", fp)

	if b.MessageSendWaiting(PendingSend{DPID: 2, ControllerID: "c1", Fingerprint: fp}) {
		t.Fatal("a different dpid must not see the message as waiting")
	}
	if b.MessageSendWaiting(PendingSend{DPID: 1, ControllerID: "c2", Fingerprint: fp}) {
		t.Fatal("a different controller id must not see the message as waiting")
	}
	if !b.MessageSendWaiting(PendingSend{DPID: 1, ControllerID: "c1", Fingerprint: fp}) {
		t.Fatal("expected fp waiting on its own connection")
	}
}

func TestFlowModGateIsPerSwitch(t *testing.T) {
	b := New()
	fp := flowModFP(1, 50)
	b.ObserveFlowMod(42, "c1", fp)

	if !b.FlowModWaiting(42, "c1", fp) {
		t.Fatal("expected flow_mod waiting on dpid 42")
	}
	if b.FlowModWaiting(43, "c1", fp) {
		t.Fatal("a different dpid's gate must be unaffected")
	}
	if err := b.ScheduleFlowMod(42, "c1", fp); err != nil {
		t.Fatalf("ScheduleFlowMod: %v", err)
	}
	if b.FlowModWaiting(42, "c1", fp) {
		t.Fatal("flow_mod should be released")
	}
}

func TestWhitelistBypassesGating(t *testing.T) {
	b := New()
	hello := fingerprint.OFFingerprint(fingerprint.Message{Type: fingerprint.OFHello})
	flowMod := flowModFP(0, 1)

	if !b.InWhitelist(hello) {
		t.Fatal("hello should be whitelisted")
	}
	if b.InWhitelist(flowMod) {
		t.Fatal("flow_mod should not be whitelisted")
	}
}

// TestBlockIsIdempotent covers spec.md §9 Open Question (b): calling Block
// on an already-blocked connection succeeds without error.
func TestBlockIsIdempotent(t *testing.T) {
	b := New()
	if err := b.Block(1, "c1"); err != nil {
		t.Fatalf("first Block: %v", err)
	}
	if err := b.Block(1, "c1"); err != nil {
		t.Fatalf("second Block on already-blocked connection should be a no-op success: %v", err)
	}
	if !b.IsBlocked(1, "c1") {
		t.Fatal("connection should remain blocked")
	}

	if err := b.Unblock(1, "c1"); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if b.IsBlocked(1, "c1") {
		t.Fatal("connection should be unblocked")
	}
	// Unblocking an already-unblocked connection is also a no-op success.
	if err := b.Unblock(1, "c1"); err != nil {
		t.Fatalf("redundant Unblock: %v", err)
	}
}

// TestBlockWithholdsScheduling covers spec.md §4.2's block/unblock gating
// contract: while a connection is blocked, a message sitting at the head of
// its send/receive/flow_mod queue must not be schedulable, even though
// ObserveSend/ObserveReceive/ObserveFlowMod keep accepting new messages;
// Unblock must restore exactly the pre-block behavior.
func TestBlockWithholdsScheduling(t *testing.T) {
	b := New()
	fp := flowModFP(0, 100)

	sendPending := PendingSend{DPID: 1, ControllerID: "c1", Fingerprint: fp}
	recvPending := PendingReceive{DPID: 1, ControllerID: "c1", Fingerprint: fp}

	b.ObserveSend(1, "c1", fp)
	b.ObserveReceive(1, "c1", fp)
	b.ObserveFlowMod(1, "c1", fp)

	if err := b.Block(1, "c1"); err != nil {
		t.Fatalf("Block: %v", err)
	}

	if b.MessageSendWaiting(sendPending) {
		t.Fatal("send must not be waiting on a blocked connection")
	}
	if err := b.ScheduleSend(sendPending); err == nil {
		t.Fatal("ScheduleSend must fail while the connection is blocked")
	}

	if b.MessageReceiptWaiting(recvPending) {
		t.Fatal("receive must not be waiting on a blocked connection")
	}
	if err := b.ScheduleReceive(recvPending); err == nil {
		t.Fatal("ScheduleReceive must fail while the connection is blocked")
	}

	if b.FlowModWaiting(1, "c1", fp) {
		t.Fatal("flow_mod must not be waiting on a blocked connection")
	}
	if err := b.ScheduleFlowMod(1, "c1", fp); err == nil {
		t.Fatal("ScheduleFlowMod must fail while the connection is blocked")
	}

	// Observations are still accepted while blocked.
	b.ObserveSend(1, "c1", flowModFP(0, 200))

	if err := b.Unblock(1, "c1"); err != nil {
		t.Fatalf("Unblock: %v", err)
	}

	if !b.MessageSendWaiting(sendPending) {
		t.Fatal("send should be waiting again once unblocked")
	}
	if err := b.ScheduleSend(sendPending); err != nil {
		t.Fatalf("ScheduleSend after Unblock: %v", err)
	}
	if !b.MessageReceiptWaiting(recvPending) {
		t.Fatal("receive should be waiting again once unblocked")
	}
	if err := b.ScheduleReceive(recvPending); err != nil {
		t.Fatalf("ScheduleReceive after Unblock: %v", err)
	}
	if !b.FlowModWaiting(1, "c1", fp) {
		t.Fatal("flow_mod should be waiting again once unblocked")
	}
	if err := b.ScheduleFlowMod(1, "c1", fp); err != nil {
		t.Fatalf("ScheduleFlowMod after Unblock: %v", err)
	}
}

func TestDropSwitchClearsOnlyThatDPIDsQueues(t *testing.T) {
	b := New()
	fpX := flowModFP(0, 1)
	fpY := flowModFP(0, 2)

	b.ObserveSend(1, "c1", fpX)
	b.ObserveReceive(1, "c1", fpX)
	b.ObserveFlowMod(1, "c1", fpX)
	b.ObserveSend(2, "c1", fpY)

	b.DropSwitch(1)

	if b.MessageSendWaiting(PendingSend{DPID: 1, ControllerID: "c1", Fingerprint: fpX}) {
		t.Fatal("dpid 1's send queue should have been dropped")
	}
	if b.MessageReceiptWaiting(PendingReceive{DPID: 1, ControllerID: "c1", Fingerprint: fpX}) {
		t.Fatal("dpid 1's receive queue should have been dropped")
	}
	if b.FlowModWaiting(1, "c1", fpX) {
		t.Fatal("dpid 1's flow_mod gate should have been dropped")
	}
	if !b.MessageSendWaiting(PendingSend{DPID: 2, ControllerID: "c1", Fingerprint: fpY}) {
		t.Fatal("a different dpid's queue must be unaffected by DropSwitch")
	}
}

func TestObserveCallbacksFire(t *testing.T) {
	var sendSeen, recvSeen fingerprint.Fingerprint
	b := New(
		OnSendObserved(func(dpid uint64, cid string, fp fingerprint.Fingerprint) { sendSeen = fp }),
		OnReceiveObserved(func(dpid uint64, cid string, fp fingerprint.Fingerprint) { recvSeen = fp }),
	)
	fp := flowModFP(0, 1)
	b.ObserveSend(1, "c1", fp)
	b.ObserveReceive(1, "c1", fp)

	if !sendSeen.Equal(fp) {
		t.Fatal("expected OnSendObserved callback to fire with fp")
	}
	if !recvSeen.Equal(fp) {
		t.Fatal("expected OnReceiveObserved callback to fire with fp")
	}
}
