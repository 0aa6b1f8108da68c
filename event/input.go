package event

import (
	"time"

	"github.com/ahassany/sts/fingerprint"
	"github.com/ahassany/sts/simulation"
	"github.com/ahassany/sts/topology"
)

func simTopologyPolicy(intentID string) topology.PolicyID {
	return topology.PolicyID(intentID)
}

// SwitchFailure crashes a switch by disconnecting its controller
// connection(s), per spec.md §4.1.
type SwitchFailure struct {
	Base
	DPID uint64
}

func NewSwitchFailure(label string, t EventTime, round int, dpid uint64) *SwitchFailure {
	return &SwitchFailure{Base: NewBase(label, t, round, true, nil), DPID: dpid}
}

func (e *SwitchFailure) Class() string { return "SwitchFailure" }
func (e *SwitchFailure) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("SwitchFailure", e.DPID)
}
func (e *SwitchFailure) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.CrashSwitch(e.DPID); err != nil {
		return false, err
	}
	return true, nil
}

// SwitchRecovery reconnects a previously crashed switch.
type SwitchRecovery struct {
	Base
	DPID uint64
}

func NewSwitchRecovery(label string, t EventTime, round int, dpid uint64) *SwitchRecovery {
	return &SwitchRecovery{Base: NewBase(label, t, round, true, nil), DPID: dpid}
}

func (e *SwitchRecovery) Class() string { return "SwitchRecovery" }
func (e *SwitchRecovery) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("SwitchRecovery", e.DPID)
}
func (e *SwitchRecovery) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.RecoverSwitch(e.DPID); err != nil {
		// Any RecoverSwitch error (unknown dpid, switch not crashed) is
		// reported as "not yet" rather than propagated, so the replayer
		// retries the event until its timeout.
		return false, nil
	}
	return true, nil
}

// LinkFailure severs a link between two switch ports.
type LinkFailure struct {
	Base
	StartDPID, EndDPID         uint64
	StartPortNo, EndPortNo     uint32
}

func NewLinkFailure(label string, t EventTime, round int, startDPID uint64, startPort uint32, endDPID uint64, endPort uint32) *LinkFailure {
	return &LinkFailure{Base: NewBase(label, t, round, true, nil),
		StartDPID: startDPID, StartPortNo: startPort, EndDPID: endDPID, EndPortNo: endPort}
}

func (e *LinkFailure) Class() string { return "LinkFailure" }
func (e *LinkFailure) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("LinkFailure", e.StartDPID, e.StartPortNo, e.EndDPID, e.EndPortNo)
}
func (e *LinkFailure) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.SeverLink(e.StartDPID, e.StartPortNo, e.EndDPID, e.EndPortNo); err != nil {
		return false, err
	}
	return true, nil
}

// LinkRecovery repairs a previously severed link.
type LinkRecovery struct {
	Base
	StartDPID, EndDPID     uint64
	StartPortNo, EndPortNo uint32
}

func NewLinkRecovery(label string, t EventTime, round int, startDPID uint64, startPort uint32, endDPID uint64, endPort uint32) *LinkRecovery {
	return &LinkRecovery{Base: NewBase(label, t, round, true, nil),
		StartDPID: startDPID, StartPortNo: startPort, EndDPID: endDPID, EndPortNo: endPort}
}

func (e *LinkRecovery) Class() string { return "LinkRecovery" }
func (e *LinkRecovery) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("LinkRecovery", e.StartDPID, e.StartPortNo, e.EndDPID, e.EndPortNo)
}
func (e *LinkRecovery) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.RepairLink(e.StartDPID, e.StartPortNo, e.EndDPID, e.EndPortNo); err != nil {
		return false, err
	}
	return true, nil
}

// ControllerFailure marks a controller process down.
type ControllerFailure struct {
	Base
	ControllerID string
}

func NewControllerFailure(label string, t EventTime, round int, cid string) *ControllerFailure {
	return &ControllerFailure{Base: NewBase(label, t, round, true, nil), ControllerID: cid}
}

func (e *ControllerFailure) Class() string { return "ControllerFailure" }
func (e *ControllerFailure) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("ControllerFailure", e.ControllerID)
}
func (e *ControllerFailure) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.CrashController(e.ControllerID); err != nil {
		return false, err
	}
	return true, nil
}

// ControllerRecovery marks a controller process back up.
type ControllerRecovery struct {
	Base
	ControllerID string
}

func NewControllerRecovery(label string, t EventTime, round int, cid string) *ControllerRecovery {
	return &ControllerRecovery{Base: NewBase(label, t, round, true, nil), ControllerID: cid}
}

func (e *ControllerRecovery) Class() string { return "ControllerRecovery" }
func (e *ControllerRecovery) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("ControllerRecovery", e.ControllerID)
}
func (e *ControllerRecovery) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.RecoverController(e.ControllerID); err != nil {
		return false, err
	}
	return true, nil
}

// HostMigration moves a host's interface from one switch port to another.
type HostMigration struct {
	Base
	OldDPID, NewDPID         uint64
	OldPortNo, NewPortNo     uint32
	HostID, Interface        string
}

func NewHostMigration(label string, t EventTime, round int, oldDPID uint64, oldPort uint32, newDPID uint64, newPort uint32, hostID, iface string) *HostMigration {
	return &HostMigration{Base: NewBase(label, t, round, true, nil),
		OldDPID: oldDPID, OldPortNo: oldPort, NewDPID: newDPID, NewPortNo: newPort,
		HostID: hostID, Interface: iface}
}

func (e *HostMigration) Class() string { return "HostMigration" }
func (e *HostMigration) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("HostMigration", e.OldDPID, e.OldPortNo, e.NewDPID, e.NewPortNo, e.HostID)
}
func (e *HostMigration) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.MigrateHost(e.HostID, e.Interface, e.OldDPID, e.OldPortNo, e.NewDPID, e.NewPortNo); err != nil {
		return false, err
	}
	return true, nil
}

// TrafficInjection injects a dataplane packet at a host's access link.
type TrafficInjection struct {
	Base
	HostID  string
	Packet  fingerprint.Packet
}

func NewTrafficInjection(label string, t EventTime, round int, hostID string, pkt fingerprint.Packet, prunable bool) *TrafficInjection {
	return &TrafficInjection{Base: NewBase(label, t, round, prunable, nil), HostID: hostID, Packet: pkt}
}

func (e *TrafficInjection) Class() string { return "TrafficInjection" }
func (e *TrafficInjection) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("TrafficInjection", fingerprint.DPFingerprint(e.Packet), e.HostID)
}
func (e *TrafficInjection) Proceed(sim *simulation.Simulation) (bool, error) {
	// Packet delivery itself is the out-of-scope dataplane patch panel's
	// contract (spec.md §1); here we only assert the host exists.
	if _, err := sim.Topology.GetHost(e.HostID); err != nil {
		return false, err
	}
	return true, nil
}

// WaitTime pauses the simulation for a duration; controller processes
// continue running.
type WaitTime struct {
	Base
	Seconds float64
}

func NewWaitTime(label string, t EventTime, round int, seconds float64) *WaitTime {
	return &WaitTime{Base: NewBase(label, t, round, false, nil), Seconds: seconds}
}

func (e *WaitTime) Class() string                       { return "WaitTime" }
func (e *WaitTime) Fingerprint() fingerprint.Fingerprint { return fingerprint.New("WaitTime") }
func (e *WaitTime) Proceed(sim *simulation.Simulation) (bool, error) {
	time.Sleep(time.Duration(e.Seconds * float64(time.Second)))
	return true, nil
}

// CheckInvariants pauses the simulation to run a named invariant check.
type CheckInvariants struct {
	Base
	CheckName string
}

func NewCheckInvariants(label string, t EventTime, round int, checkName string) *CheckInvariants {
	return &CheckInvariants{Base: NewBase(label, t, round, false, nil), CheckName: checkName}
}

func (e *CheckInvariants) Class() string                       { return "CheckInvariants" }
func (e *CheckInvariants) Fingerprint() fingerprint.Fingerprint { return fingerprint.New("CheckInvariants") }
func (e *CheckInvariants) Proceed(sim *simulation.Simulation) (bool, error) {
	_, _, err := sim.CheckInvariants(e.CheckName, e.LogicalRound())
	if err != nil {
		return false, err
	}
	return true, nil
}

// ControlChannelBlock gates a switch<->controller connection.
type ControlChannelBlock struct {
	Base
	DPID         uint64
	ControllerID string
}

func NewControlChannelBlock(label string, t EventTime, round int, dpid uint64, cid string) *ControlChannelBlock {
	return &ControlChannelBlock{Base: NewBase(label, t, round, true, nil), DPID: dpid, ControllerID: cid}
}

func (e *ControlChannelBlock) Class() string { return "ControlChannelBlock" }
func (e *ControlChannelBlock) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("ControlChannelBlock", e.DPID, e.ControllerID)
}
func (e *ControlChannelBlock) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.BlockControlChannel(e.DPID, e.ControllerID); err != nil {
		return false, err
	}
	return true, nil
}

// ControlChannelUnblock reverses ControlChannelBlock.
type ControlChannelUnblock struct {
	Base
	DPID         uint64
	ControllerID string
}

func NewControlChannelUnblock(label string, t EventTime, round int, dpid uint64, cid string) *ControlChannelUnblock {
	return &ControlChannelUnblock{Base: NewBase(label, t, round, true, nil), DPID: dpid, ControllerID: cid}
}

func (e *ControlChannelUnblock) Class() string { return "ControlChannelUnblock" }
func (e *ControlChannelUnblock) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("ControlChannelUnblock", e.DPID, e.ControllerID)
}
func (e *ControlChannelUnblock) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.UnblockControlChannel(e.DPID, e.ControllerID); err != nil {
		return false, err
	}
	return true, nil
}

// DataplaneDrop removes an in-flight dataplane packet identified by
// fingerprint. Passive true (the default; spec.md §9 Open Question a)
// means this event always reports success without consulting the port,
// switch or dataplane state.
type DataplaneDrop struct {
	Base
	DPFP    fingerprint.Fingerprint
	DPID    uint64
	PortNo  uint32
	Passive bool
}

func NewDataplaneDrop(label string, t EventTime, round int, dpfp fingerprint.Fingerprint, dpid uint64, portNo uint32, passive bool) *DataplaneDrop {
	return &DataplaneDrop{Base: NewBase(label, t, round, true, nil), DPFP: dpfp, DPID: dpid, PortNo: portNo, Passive: passive}
}

func (e *DataplaneDrop) Class() string { return "DataplaneDrop" }
func (e *DataplaneDrop) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("DataplaneDrop", e.DPFP, e.DPID, e.PortNo)
}
func (e *DataplaneDrop) Proceed(sim *simulation.Simulation) (bool, error) {
	if e.Passive {
		return true, nil
	}
	if !sim.PortCanCarryTraffic(e.DPID, e.PortNo) || !sim.SwitchForwarding(e.DPID) {
		// A down port or a non-forwarding switch (crashed with a secure
		// FailMode) drops every packet by construction; there's nothing
		// buffered in the dataplane collaborator to consult.
		return true, nil
	}
	if sim.Dataplane == nil {
		return false, nil
	}
	return sim.Dataplane.DropBuffered(e.DPFP, e.DPID, e.PortNo), nil
}

// BlockControllerPair blocks connectivity between two controller processes.
type BlockControllerPair struct {
	Base
	CID1, CID2 string
}

func NewBlockControllerPair(label string, t EventTime, round int, cid1, cid2 string) *BlockControllerPair {
	return &BlockControllerPair{Base: NewBase(label, t, round, true, nil), CID1: cid1, CID2: cid2}
}

func (e *BlockControllerPair) Class() string { return "BlockControllerPair" }
func (e *BlockControllerPair) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("BlockControllerPair", e.CID1, e.CID2)
}
func (e *BlockControllerPair) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.BlockControllerPair(e.CID1, e.CID2); err != nil {
		return false, err
	}
	return true, nil
}

// UnblockControllerPair reverses BlockControllerPair.
type UnblockControllerPair struct {
	Base
	CID1, CID2 string
}

func NewUnblockControllerPair(label string, t EventTime, round int, cid1, cid2 string) *UnblockControllerPair {
	return &UnblockControllerPair{Base: NewBase(label, t, round, true, nil), CID1: cid1, CID2: cid2}
}

func (e *UnblockControllerPair) Class() string { return "UnblockControllerPair" }
func (e *UnblockControllerPair) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("UnblockControllerPair", e.CID1, e.CID2)
}
func (e *UnblockControllerPair) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.UnblockControllerPair(e.CID1, e.CID2); err != nil {
		return false, err
	}
	return true, nil
}

// ConnectToControllers marks the initial controller connection handshake.
type ConnectToControllers struct {
	Base
}

func NewConnectToControllers(label string, t EventTime, round int) *ConnectToControllers {
	return &ConnectToControllers{Base: NewBase(label, t, round, false, nil)}
}

func (e *ConnectToControllers) Class() string { return "ConnectToControllers" }
func (e *ConnectToControllers) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("ConnectToControllers")
}
func (e *ConnectToControllers) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.ConnectControllers(); err != nil {
		return false, err
	}
	return true, nil
}

// LinkDiscovery notifies a controller of a discovered link, a
// supplemented feature (SPEC_FULL.md §3) grounded on the source's
// deprecated-but-present LinkDiscovery class.
type LinkDiscovery struct {
	Base
	ControllerID string
	LinkAttrs    []string
}

func NewLinkDiscovery(label string, t EventTime, round int, cid string, linkAttrs []string) *LinkDiscovery {
	return &LinkDiscovery{Base: NewBase(label, t, round, true, nil), ControllerID: cid, LinkAttrs: linkAttrs}
}

func (e *LinkDiscovery) Class() string { return "LinkDiscovery" }
func (e *LinkDiscovery) Fingerprint() fingerprint.Fingerprint {
	payload := make([]interface{}, 0, len(e.LinkAttrs)+1)
	payload = append(payload, e.ControllerID)
	for _, a := range e.LinkAttrs {
		payload = append(payload, a)
	}
	return fingerprint.New("LinkDiscovery", payload...)
}
func (e *LinkDiscovery) Proceed(sim *simulation.Simulation) (bool, error) {
	c, err := sim.GetController(e.ControllerID)
	if err != nil {
		return false, err
	}
	if c.Channel == nil {
		return false, nil
	}
	return true, nil
}

// NOPInput does nothing. Useful for fenceposting.
type NOPInput struct {
	Base
}

func NewNOPInput(label string, t EventTime, round int) *NOPInput {
	return &NOPInput{Base: NewBase(label, t, round, false, nil)}
}

func (e *NOPInput) Class() string                       { return "NOPInput" }
func (e *NOPInput) Fingerprint() fingerprint.Fingerprint { return fingerprint.New("NOPInput") }
func (e *NOPInput) Proceed(sim *simulation.Simulation) (bool, error) { return true, nil }

// PingEvent issues a connectivity probe between two hosts.
type PingEvent struct {
	Base
	SrcHostID, DstHostID string
}

func NewPingEvent(label string, t EventTime, round int, src, dst string, prunable bool) *PingEvent {
	return &PingEvent{Base: NewBase(label, t, round, prunable, nil), SrcHostID: src, DstHostID: dst}
}

func (e *PingEvent) Class() string { return "PingEvent" }
func (e *PingEvent) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("PingEvent", e.SrcHostID, e.DstHostID)
}
func (e *PingEvent) Proceed(sim *simulation.Simulation) (bool, error) {
	return sim.Ping(e.SrcHostID, e.DstHostID)
}

// PolicyChange is the abstract base for AddIntent/RemoveIntent, carrying
// the controller-request-kind tag spec.md §3 names.
type PolicyChange struct {
	Base
	RequestType string
}

// AddIntent asks a controller to realise a reachability intent and, on
// success, records it with the connectivity tracker.
type AddIntent struct {
	PolicyChange
	ControllerID                               string
	IntentID                                   string
	SrcDPID, DstDPID                           uint64
	SrcPort, DstPort                           uint32
	SrcMAC, DstMAC                             string
	SrcHostID, SrcIface, DstHostID, DstIface   string
	StaticPath                                 bool
	IntentType, IntentIP, IntentURL            string
	IntentPort                                 int
}

func NewAddIntent(label string, t EventTime, round int, cid, intentID string, srcDPID, dstDPID uint64, srcPort, dstPort uint32, srcMAC, dstMAC string, staticPath bool, intentType, intentIP string, intentPort int, intentURL string) *AddIntent {
	return &AddIntent{
		PolicyChange: PolicyChange{Base: NewBase(label, t, round, true, nil), RequestType: "AddIntent"},
		ControllerID: cid, IntentID: intentID, SrcDPID: srcDPID, DstDPID: dstDPID,
		SrcPort: srcPort, DstPort: dstPort, SrcMAC: srcMAC, DstMAC: dstMAC,
		StaticPath: staticPath, IntentType: intentType, IntentIP: intentIP,
		IntentPort: intentPort, IntentURL: intentURL,
	}
}

func (e *AddIntent) Class() string { return "AddIntent" }
func (e *AddIntent) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("AddIntent", e.ControllerID, e.IntentID, e.SrcDPID, e.DstDPID,
		e.SrcPort, e.DstPort, e.SrcMAC, e.DstMAC, e.StaticPath, e.IntentType,
		e.IntentIP, e.IntentPort, e.IntentURL)
}
func (e *AddIntent) Proceed(sim *simulation.Simulation) (bool, error) {
	if e.SrcHostID == "" || e.DstHostID == "" {
		return false, nil
	}
	if err := sim.AddIntent(e.SrcHostID, e.SrcIface, e.DstHostID, e.DstIface, simTopologyPolicy(e.IntentID)); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveIntent retracts a previously added intent.
type RemoveIntent struct {
	PolicyChange
	ControllerID string
	IntentID     string
	IntentIP     string
	IntentPort   int
	IntentURL    string
}

func NewRemoveIntent(label string, t EventTime, round int, cid, intentID, intentIP string, intentPort int, intentURL string) *RemoveIntent {
	return &RemoveIntent{
		PolicyChange: PolicyChange{Base: NewBase(label, t, round, true, nil), RequestType: "RemoveIntent"},
		ControllerID: cid, IntentID: intentID, IntentIP: intentIP, IntentPort: intentPort, IntentURL: intentURL,
	}
}

func (e *RemoveIntent) Class() string { return "RemoveIntent" }
func (e *RemoveIntent) Fingerprint() fingerprint.Fingerprint {
	return fingerprint.New("RemoveIntent", e.ControllerID, e.IntentID, e.IntentIP, e.IntentPort, e.IntentURL)
}
func (e *RemoveIntent) Proceed(sim *simulation.Simulation) (bool, error) {
	if err := sim.RemoveIntent(simTopologyPolicy(e.IntentID)); err != nil {
		return false, err
	}
	return true, nil
}
