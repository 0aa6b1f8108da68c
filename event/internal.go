package event

import (
	"github.com/ahassany/sts/fingerprint"
	"github.com/ahassany/sts/openflow"
	"github.com/ahassany/sts/simulation"
)

// controlMessageBase carries the fields shared by ControlMessageSend,
// ControlMessageReceive, and ProcessFlowMod: an OFFingerprint plus the
// connection it travelled on, per spec.md §4.1.
type controlMessageBase struct {
	Base
	OFFP              fingerprint.Fingerprint
	DPID              uint64
	ControllerID      string
	timeoutDisallowed bool
}

func (e *controlMessageBase) TimeoutDisallowed() bool { return e.timeoutDisallowed }
func (e *controlMessageBase) Whitelisted(sim *simulation.Simulation) bool {
	return sim.Buffer.InWhitelist(e.OFFP)
}

// ControlMessageSend is logged when the OpenFlow buffer observes a
// switch->controller message.
type ControlMessageSend struct {
	controlMessageBase
}

func NewControlMessageSend(label string, t EventTime, round int, offp fingerprint.Fingerprint, dpid uint64, cid string, timeoutDisallowed bool) *ControlMessageSend {
	return &ControlMessageSend{controlMessageBase{
		Base: NewBase(label, t, round, false, nil), OFFP: offp, DPID: dpid,
		ControllerID: cid, timeoutDisallowed: timeoutDisallowed,
	}}
}

func (e *ControlMessageSend) Class() string { return "ControlMessageSend" }
func (e *ControlMessageSend) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("ControlMessageSend", e.OFFP, e.DPID, e.ControllerID)
}
func (e *ControlMessageSend) Proceed(sim *simulation.Simulation) (bool, error) {
	pending := openflow.PendingSend{DPID: e.DPID, ControllerID: e.ControllerID, Fingerprint: e.OFFP}
	if !sim.Buffer.MessageSendWaiting(pending) {
		return false, nil
	}
	if err := sim.Buffer.ScheduleSend(pending); err != nil {
		return false, err
	}
	return true, nil
}

// ControlMessageReceive is logged when the OpenFlow buffer observes a
// controller->switch message.
type ControlMessageReceive struct {
	controlMessageBase
}

func NewControlMessageReceive(label string, t EventTime, round int, offp fingerprint.Fingerprint, dpid uint64, cid string, timeoutDisallowed bool) *ControlMessageReceive {
	return &ControlMessageReceive{controlMessageBase{
		Base: NewBase(label, t, round, false, nil), OFFP: offp, DPID: dpid,
		ControllerID: cid, timeoutDisallowed: timeoutDisallowed,
	}}
}

func (e *ControlMessageReceive) Class() string { return "ControlMessageReceive" }
func (e *ControlMessageReceive) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("ControlMessageReceive", e.OFFP, e.DPID, e.ControllerID)
}
func (e *ControlMessageReceive) Proceed(sim *simulation.Simulation) (bool, error) {
	pending := openflow.PendingReceive{DPID: e.DPID, ControllerID: e.ControllerID, Fingerprint: e.OFFP}
	if !sim.Buffer.MessageReceiptWaiting(pending) {
		return false, nil
	}
	if err := sim.Buffer.ScheduleReceive(pending); err != nil {
		return false, err
	}
	return true, nil
}

// ProcessFlowMod is the per-switch counterpart of ControlMessageReceive,
// bounded to a single switch's flow table application gate (spec.md §4.2).
type ProcessFlowMod struct {
	controlMessageBase
}

func NewProcessFlowMod(label string, t EventTime, round int, offp fingerprint.Fingerprint, dpid uint64, cid string, timeoutDisallowed bool) *ProcessFlowMod {
	return &ProcessFlowMod{controlMessageBase{
		Base: NewBase(label, t, round, false, nil), OFFP: offp, DPID: dpid,
		ControllerID: cid, timeoutDisallowed: timeoutDisallowed,
	}}
}

func (e *ProcessFlowMod) Class() string { return "ProcessFlowMod" }
func (e *ProcessFlowMod) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("ProcessFlowMod", e.OFFP, e.DPID, e.ControllerID)
}
func (e *ProcessFlowMod) Proceed(sim *simulation.Simulation) (bool, error) {
	if !sim.Buffer.FlowModWaiting(e.DPID, e.ControllerID, e.OFFP) {
		return false, nil
	}
	if err := sim.Buffer.ScheduleFlowMod(e.DPID, e.ControllerID, e.OFFP); err != nil {
		return false, err
	}
	return true, nil
}

// ControllerStateChange is logged when a controller reports a state
// change over its sync channel; Proceed consumes the matching
// observation and acknowledges it.
type ControllerStateChange struct {
	Base
	InnerFP           fingerprint.Fingerprint
	ControllerID      string
	timeoutDisallowed bool
}

func NewControllerStateChange(label string, t EventTime, round int, inner fingerprint.Fingerprint, cid string, timeoutDisallowed bool) *ControllerStateChange {
	return &ControllerStateChange{Base: NewBase(label, t, round, false, nil), InnerFP: inner, ControllerID: cid, timeoutDisallowed: timeoutDisallowed}
}

func (e *ControllerStateChange) Class() string { return "ControllerStateChange" }
func (e *ControllerStateChange) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("ControllerStateChange", e.InnerFP, e.ControllerID)
}
func (e *ControllerStateChange) TimeoutDisallowed() bool { return e.timeoutDisallowed }
func (e *ControllerStateChange) Whitelisted(sim *simulation.Simulation) bool { return false }
func (e *ControllerStateChange) Proceed(sim *simulation.Simulation) (bool, error) {
	obs, ok := sim.ConsumeStateChangePending(e.ControllerID, e.InnerFP)
	if !ok {
		return false, nil
	}
	c, err := sim.GetController(e.ControllerID)
	if err != nil {
		return false, err
	}
	if c.Channel != nil {
		if err := c.Channel.AckPendingStateChange(obs.SessionID); err != nil {
			return false, err
		}
	}
	return true, nil
}

// DeterministicValue is logged when a controller asks for a value that
// would otherwise be nondeterministic (e.g. gettimeofday); Proceed replays
// the recorded value back down the sync channel.
type DeterministicValue struct {
	Base
	InnerFP           fingerprint.Fingerprint
	ControllerID      string
	Value             interface{}
	timeoutDisallowed bool
}

func NewDeterministicValue(label string, t EventTime, round int, inner fingerprint.Fingerprint, cid string, value interface{}, timeoutDisallowed bool) *DeterministicValue {
	return &DeterministicValue{Base: NewBase(label, t, round, false, nil), InnerFP: inner, ControllerID: cid, Value: value, timeoutDisallowed: timeoutDisallowed}
}

func (e *DeterministicValue) Class() string { return "DeterministicValue" }
func (e *DeterministicValue) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("DeterministicValue", e.InnerFP, e.ControllerID)
}
func (e *DeterministicValue) TimeoutDisallowed() bool { return e.timeoutDisallowed }
func (e *DeterministicValue) Whitelisted(sim *simulation.Simulation) bool { return false }
func (e *DeterministicValue) Proceed(sim *simulation.Simulation) (bool, error) {
	obs, ok := sim.ConsumeDeterministicValueRequest(e.ControllerID, e.InnerFP)
	if !ok {
		return false, nil
	}
	c, err := sim.GetController(e.ControllerID)
	if err != nil {
		return false, err
	}
	if c.Channel != nil {
		if err := c.Channel.SendDeterministicValue(obs.SessionID, e.Value); err != nil {
			return false, err
		}
	}
	return true, nil
}

// DataplanePermit is logged when a dataplane packet is allowed through
// rather than dropped. Passive mirrors DataplaneDrop's escape hatch
// (spec.md §9 Open Question a).
type DataplanePermit struct {
	Base
	DPFP              fingerprint.Fingerprint
	DPID              uint64
	PortNo            uint32
	Passive           bool
	timeoutDisallowed bool
}

func NewDataplanePermit(label string, t EventTime, round int, dpfp fingerprint.Fingerprint, dpid uint64, portNo uint32, passive, timeoutDisallowed bool) *DataplanePermit {
	return &DataplanePermit{Base: NewBase(label, t, round, false, nil), DPFP: dpfp, DPID: dpid, PortNo: portNo, Passive: passive, timeoutDisallowed: timeoutDisallowed}
}

func (e *DataplanePermit) Class() string { return "DataplanePermit" }
func (e *DataplanePermit) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("DataplanePermit", e.DPFP, e.DPID, e.PortNo)
}
func (e *DataplanePermit) TimeoutDisallowed() bool { return e.timeoutDisallowed }
func (e *DataplanePermit) Whitelisted(sim *simulation.Simulation) bool { return false }
func (e *DataplanePermit) Proceed(sim *simulation.Simulation) (bool, error) {
	if e.Passive {
		return true, nil
	}
	if !sim.PortCanCarryTraffic(e.DPID, e.PortNo) || !sim.SwitchForwarding(e.DPID) {
		// A packet can never be permitted through a down port or a switch
		// that isn't forwarding traffic.
		return false, nil
	}
	if sim.Dataplane == nil {
		return false, nil
	}
	return sim.Dataplane.DropBuffered(e.DPFP, e.DPID, e.PortNo), nil
}
