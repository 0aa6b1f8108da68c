package simulation

import (
	"testing"

	"github.com/ahassany/sts/fingerprint"
	"github.com/ahassany/sts/openflow"
	"github.com/ahassany/sts/topology"
)

func newTestSimWithSwitch(dpid uint64, port uint32) *Simulation {
	s := New(nil)
	sw := &topology.Switch{ID: "s1", DPID: dpid, FailMode: topology.FailModeSecure,
		Ports: []*topology.Port{{Number: port, SwitchID: "s1", Admin: topology.PortUp}}}
	s.Topology.AddSwitch(sw)
	return s
}

func TestCrashRecoverSwitch(t *testing.T) {
	s := newTestSimWithSwitch(1, 1)
	if err := s.CrashSwitch(1); err != nil {
		t.Fatalf("CrashSwitch: %v", err)
	}
	if !s.SwitchCrashed(1) {
		t.Fatal("expected switch crashed")
	}
	if err := s.CrashSwitch(1); err == nil {
		t.Fatal("expected error crashing an already-crashed switch")
	}
	if err := s.RecoverSwitch(1); err != nil {
		t.Fatalf("RecoverSwitch: %v", err)
	}
	if s.SwitchCrashed(1) {
		t.Fatal("expected switch recovered")
	}
	if err := s.RecoverSwitch(1); err == nil {
		t.Fatal("expected error recovering a switch that is not crashed")
	}
}

func newTestSimWithFailMode(dpid uint64, port uint32, mode topology.FailMode, admin topology.PortAdmin) *Simulation {
	s := New(nil)
	sw := &topology.Switch{ID: "s1", DPID: dpid, FailMode: mode,
		Ports: []*topology.Port{{Number: port, SwitchID: "s1", Admin: admin}}}
	s.Topology.AddSwitch(sw)
	return s
}

func TestCrashSwitchDropsBufferOnlyForSecureFailMode(t *testing.T) {
	fp := fingerprint.New("Hello")
	pending := openflow.PendingSend{DPID: 1, ControllerID: "c1", Fingerprint: fp}

	secure := newTestSimWithFailMode(1, 1, topology.FailModeSecure, topology.PortUp)
	secure.Buffer.ObserveSend(1, "c1", fp)
	if err := secure.CrashSwitch(1); err != nil {
		t.Fatalf("CrashSwitch: %v", err)
	}
	if secure.Buffer.MessageSendWaiting(pending) {
		t.Fatal("secure fail mode should drop buffered messages on crash")
	}

	standalone := newTestSimWithFailMode(1, 1, topology.FailModeStandalone, topology.PortUp)
	standalone.Buffer.ObserveSend(1, "c1", fp)
	if err := standalone.CrashSwitch(1); err != nil {
		t.Fatalf("CrashSwitch: %v", err)
	}
	if !standalone.Buffer.MessageSendWaiting(pending) {
		t.Fatal("standalone fail mode must keep buffered messages on crash")
	}
}

func TestSwitchForwarding(t *testing.T) {
	standalone := newTestSimWithFailMode(1, 1, topology.FailModeStandalone, topology.PortUp)
	if !standalone.SwitchForwarding(1) {
		t.Fatal("uncrashed switch should report forwarding")
	}
	if err := standalone.CrashSwitch(1); err != nil {
		t.Fatalf("CrashSwitch: %v", err)
	}
	if !standalone.SwitchForwarding(1) {
		t.Fatal("crashed standalone switch should still report forwarding")
	}

	secure := newTestSimWithFailMode(1, 1, topology.FailModeSecure, topology.PortUp)
	if err := secure.CrashSwitch(1); err != nil {
		t.Fatalf("CrashSwitch: %v", err)
	}
	if secure.SwitchForwarding(1) {
		t.Fatal("crashed secure switch must not report forwarding")
	}
}

func TestPortCanCarryTraffic(t *testing.T) {
	s := newTestSimWithFailMode(1, 1, topology.FailModeSecure, topology.PortUp)
	if !s.PortCanCarryTraffic(1, 1) {
		t.Fatal("an up port should carry traffic")
	}
	if s.PortCanCarryTraffic(1, 99) {
		t.Fatal("an unknown port should not carry traffic")
	}
	if s.PortCanCarryTraffic(99, 1) {
		t.Fatal("an unknown switch should not carry traffic")
	}

	down := newTestSimWithFailMode(1, 1, topology.FailModeSecure, topology.PortDown)
	if down.PortCanCarryTraffic(1, 1) {
		t.Fatal("a down port should not carry traffic")
	}
}

func TestSeverRepairLink(t *testing.T) {
	s := New(nil)
	s.Topology.AddSwitch(&topology.Switch{ID: "s1", DPID: 1, Ports: []*topology.Port{{Number: 1, SwitchID: "s1"}}})
	s.Topology.AddSwitch(&topology.Switch{ID: "s2", DPID: 2, Ports: []*topology.Port{{Number: 1, SwitchID: "s2"}}})

	if err := s.SeverLink(1, 1, 2, 1); err != nil {
		t.Fatalf("SeverLink: %v", err)
	}
	if !s.LinkSevered(1, 1, 2, 1) {
		t.Fatal("expected link severed")
	}
	if err := s.SeverLink(1, 1, 2, 1); err == nil {
		t.Fatal("expected error severing an already-severed link")
	}
	if err := s.RepairLink(1, 1, 2, 1); err != nil {
		t.Fatalf("RepairLink: %v", err)
	}
	if s.LinkSevered(1, 1, 2, 1) {
		t.Fatal("expected link repaired")
	}
}

func TestControllerCrashRecover(t *testing.T) {
	s := New(nil)
	s.RegisterController(&Controller{ID: "c1"})

	if err := s.CrashController("c1"); err != nil {
		t.Fatalf("CrashController: %v", err)
	}
	c, _ := s.GetController("c1")
	if !c.Down {
		t.Fatal("expected controller down")
	}
	if err := s.CrashController("c1"); err == nil {
		t.Fatal("expected error crashing an already-down controller")
	}
	if err := s.RecoverController("c1"); err != nil {
		t.Fatalf("RecoverController: %v", err)
	}
	if c.Down {
		t.Fatal("expected controller up")
	}
}

func TestBlockControllerPairIsSymmetric(t *testing.T) {
	s := New(nil)
	s.RegisterController(&Controller{ID: "c1"})
	s.RegisterController(&Controller{ID: "c2"})

	if err := s.BlockControllerPair("c1", "c2"); err != nil {
		t.Fatalf("BlockControllerPair: %v", err)
	}
	if !s.ControllerPairBlocked("c2", "c1") {
		t.Fatal("expected pair blocked regardless of argument order")
	}
	if err := s.UnblockControllerPair("c2", "c1"); err != nil {
		t.Fatalf("UnblockControllerPair: %v", err)
	}
	if s.ControllerPairBlocked("c1", "c2") {
		t.Fatal("expected pair unblocked")
	}
}

func TestAddRemoveIntentAndPing(t *testing.T) {
	s := New(nil)
	s.Topology.AddHost(&topology.Host{ID: "h1", Interfaces: []*topology.Interface{{Name: "eth0", HostID: "h1"}}})
	s.Topology.AddHost(&topology.Host{ID: "h2", Interfaces: []*topology.Interface{{Name: "eth0", HostID: "h2"}}})
	s.Connectivity.DefaultConnected = false

	connected, err := s.Ping("h1", "h2")
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if connected {
		t.Fatal("expected disconnected before intent added")
	}

	if err := s.AddIntent("h1", "eth0", "h2", "eth0", "intent1"); err != nil {
		t.Fatalf("AddIntent: %v", err)
	}
	connected, err = s.Ping("h1", "h2")
	if err != nil || !connected {
		t.Fatalf("expected connected after intent, got %v err=%v", connected, err)
	}

	if err := s.RemoveIntent("intent1"); err != nil {
		t.Fatalf("RemoveIntent: %v", err)
	}
	connected, err = s.Ping("h1", "h2")
	if err != nil || connected {
		t.Fatalf("expected disconnected after intent removed, got %v err=%v", connected, err)
	}
}

func TestCheckInvariantsTracksPersistence(t *testing.T) {
	s := New(nil)
	callCount := 0
	s.RegisterInvariantCheck("always_fails", func(sim *Simulation) []string {
		callCount++
		return []string{"connectivity broken: h1<->h2"}
	})

	violations, persistent, err := s.CheckInvariants("always_fails", 0)
	if err != nil {
		t.Fatalf("CheckInvariants round 0: %v", err)
	}
	if len(violations) != 1 || len(persistent) != 0 {
		t.Fatalf("round 0: violations=%v persistent=%v", violations, persistent)
	}

	_, persistent, err = s.CheckInvariants("always_fails", 1)
	if err != nil {
		t.Fatalf("CheckInvariants round 1: %v", err)
	}
	if len(persistent) != 1 {
		t.Fatalf("round 1: expected persistent violation, got %v", persistent)
	}
}

func TestCheckInvariantsUnknownNameErrors(t *testing.T) {
	s := New(nil)
	if _, _, err := s.CheckInvariants("does_not_exist", 0); err == nil {
		t.Fatal("expected error for unregistered invariant check")
	}
}
