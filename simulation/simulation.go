// Package simulation owns the mutable state a replayed event stream acts
// on: the topology graph, the connectivity tracker, the OpenFlow buffer,
// and the registered controller sync channels. It exists to break the
// dependency cycle between the event package (whose Event.Proceed methods
// need to call into simulation state) and the replayer (which drives event
// proceed calls and also needs to reach the same state) — both depend on
// this package instead of on each other, per spec.md §9's "Cyclic
// references" design note.
package simulation

import (
	"fmt"
	"log/slog"

	"github.com/ahassany/sts/controllersync"
	"github.com/ahassany/sts/fingerprint"
	"github.com/ahassany/sts/openflow"
	"github.com/ahassany/sts/topology"
)

// A Controller is a simulated controller process: its sync channel plus the
// failure-state the replay core tracks for it, grounded on the teacher's
// Client type in shape (one stateful handle per remote endpoint).
type Controller struct {
	ID      string
	Channel *controllersync.Channel
	Down    bool
}

// A Simulation is the complete mutable state of one replay run.
type Simulation struct {
	Topology     *topology.Graph
	Connectivity *topology.ConnectivityTracker
	Buffer       *openflow.Buffer
	Violations   *ViolationTracker

	Logger *slog.Logger

	// FailToInteractive, if true, makes the replayer drop to an interactive
	// shell after any CheckInvariants event that finds a violation; the
	// replayer reads this flag itself. See spec.md §6.
	FailToInteractive bool
	// FailToInteractiveOnPersistentViolations is the same escape hatch for
	// persistent (multi-round) violations specifically.
	FailToInteractiveOnPersistentViolations bool

	crashedSwitches    map[uint64]bool
	severedLinks       map[string]bool
	downControllers    map[string]bool
	blockedCtrlPairs   map[string]bool
	controllers        map[string]*Controller
	invariantChecks    map[string]InvariantCheck
	dataplaneInjectors []func() error

	pendingStateChangeList  []StateChangeObservation
	pendingValueRequestList []ValueRequestObservation

	// Dataplane is the out-of-scope "dataplane patch panel" collaborator
	// (spec.md §1): packet delivery and buffered-packet lookup are referenced
	// only through this contract, never implemented here. With a nil
	// Dataplane, active (non-passive) DataplaneDrop/DataplanePermit events
	// whose port and switch can carry traffic report "not yet observed".
	Dataplane DataplaneController
}

// A DataplaneController is the contract spec.md §1 names for the external
// dataplane patch panel collaborator: buffered-packet lookup and removal
// for active-mode DataplaneDrop events.
type DataplaneController interface {
	DropBuffered(fp fingerprint.Fingerprint, dpid uint64, portNo uint32) bool
}

// An InvariantCheck inspects sim and returns a human-readable description
// of every violation found, or an empty slice if none, per spec.md §4.3's
// CheckInvariants input event.
type InvariantCheck func(sim *Simulation) []string

// New returns an empty Simulation. logger defaults to slog.Default() if nil.
func New(logger *slog.Logger) *Simulation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulation{
		Topology:         topology.NewGraph(),
		Connectivity:     topology.NewConnectivityTracker(true),
		Buffer:           openflow.New(),
		Violations:       NewViolationTracker(),
		Logger:           logger,
		crashedSwitches:  make(map[uint64]bool),
		severedLinks:     make(map[string]bool),
		downControllers:  make(map[string]bool),
		blockedCtrlPairs: make(map[string]bool),
		controllers:      make(map[string]*Controller),
		invariantChecks:  make(map[string]InvariantCheck),
	}
}

// RegisterController adds c to the set of controllers the simulation
// knows about, keyed by c.ID.
func (s *Simulation) RegisterController(c *Controller) {
	s.controllers[c.ID] = c
}

// GetController returns the registered controller for cid.
func (s *Simulation) GetController(cid string) (*Controller, error) {
	c, ok := s.controllers[cid]
	if !ok {
		return nil, fmt.Errorf("simulation: unknown controller %q", cid)
	}
	return c, nil
}

// RegisterInvariantCheck names check for lookup by CheckInvariants events,
// mirroring the teacher-pack's config.invariant_checks registry.
func (s *Simulation) RegisterInvariantCheck(name string, check InvariantCheck) {
	s.invariantChecks[name] = check
}

func linkKey(startDPID uint64, startPort uint32, endDPID uint64, endPort uint32) string {
	return fmt.Sprintf("%d:%d->%d:%d", startDPID, startPort, endDPID, endPort)
}

// CrashSwitch marks dpid as crashed, per spec.md §4.3's SwitchFailure input
// event. The switch's FailMode
// (SPEC_FULL.md §3) decides what happens to state already in flight: a
// secure switch drops everything, so its buffered control-plane messages
// are discarded along with the connection; a standalone switch keeps
// forwarding with its last flow table, so buffered messages are left in
// place to be delivered once the switch reconnects.
func (s *Simulation) CrashSwitch(dpid uint64) error {
	sw, err := s.Topology.GetSwitchByDPID(dpid)
	if err != nil {
		return err
	}
	if s.crashedSwitches[dpid] {
		return fmt.Errorf("simulation: switch %d is already crashed", dpid)
	}
	s.crashedSwitches[dpid] = true
	if sw.FailMode == topology.FailModeSecure {
		s.Buffer.DropSwitch(dpid)
	}
	s.Logger.Info("switch crashed", "dpid", dpid, "fail_mode", sw.FailMode)
	return nil
}

// RecoverSwitch reconnects a previously crashed switch, per spec.md §4.3's
// SwitchRecovery input event.
func (s *Simulation) RecoverSwitch(dpid uint64) error {
	sw, err := s.Topology.GetSwitchByDPID(dpid)
	if err != nil {
		return err
	}
	if !s.crashedSwitches[dpid] {
		return fmt.Errorf("simulation: switch %d is not crashed", dpid)
	}
	delete(s.crashedSwitches, dpid)
	s.Logger.Info("switch recovered", "dpid", dpid, "fail_mode", sw.FailMode)
	return nil
}

// SwitchCrashed reports whether dpid is currently crashed.
func (s *Simulation) SwitchCrashed(dpid uint64) bool {
	return s.crashedSwitches[dpid]
}

// SwitchForwarding reports whether dpid should be treated as still carrying
// dataplane traffic: true when it isn't crashed, or when it is crashed but
// its FailMode is standalone (keeps forwarding with its last flow table).
// A crashed secure-fail-mode switch reports false. Consulted by
// DataplaneDrop/DataplanePermit's Proceed logic (SPEC_FULL.md §3).
func (s *Simulation) SwitchForwarding(dpid uint64) bool {
	if !s.crashedSwitches[dpid] {
		return true
	}
	sw, err := s.Topology.GetSwitchByDPID(dpid)
	if err != nil {
		return false
	}
	return sw.FailMode == topology.FailModeStandalone
}

// PortCanCarryTraffic reports whether dpid's port portNo is administratively
// up, consulted by DataplaneDrop/DataplanePermit before fingerprint
// matching (SPEC_FULL.md §3). An unknown switch or port is treated as down:
// no traffic can cross a port the topology doesn't know about.
func (s *Simulation) PortCanCarryTraffic(dpid uint64, portNo uint32) bool {
	sw, err := s.Topology.GetSwitchByDPID(dpid)
	if err != nil {
		return false
	}
	p, err := s.Topology.GetPort(sw.ID, portNo)
	if err != nil {
		return false
	}
	return p.Admin == topology.PortUp
}

// SeverLink cuts the link between (startDPID,startPort) and
// (endDPID,endPort), per spec.md §4.3's LinkFailure input event.
func (s *Simulation) SeverLink(startDPID uint64, startPort uint32, endDPID uint64, endPort uint32) error {
	if _, _, _, _, err := s.resolveLinkSwitches(startDPID, startPort, endDPID, endPort); err != nil {
		return err
	}
	key := linkKey(startDPID, startPort, endDPID, endPort)
	if s.severedLinks[key] {
		return fmt.Errorf("simulation: link %s is already severed", key)
	}
	s.severedLinks[key] = true
	s.Logger.Info("link severed", "start_dpid", startDPID, "start_port", startPort, "end_dpid", endDPID, "end_port", endPort)
	return nil
}

// RepairLink restores a previously severed link.
func (s *Simulation) RepairLink(startDPID uint64, startPort uint32, endDPID uint64, endPort uint32) error {
	key := linkKey(startDPID, startPort, endDPID, endPort)
	if !s.severedLinks[key] {
		return fmt.Errorf("simulation: link %s is not severed", key)
	}
	delete(s.severedLinks, key)
	s.Logger.Info("link repaired", "start_dpid", startDPID, "start_port", startPort, "end_dpid", endDPID, "end_port", endPort)
	return nil
}

// LinkSevered reports whether the named link is currently severed.
func (s *Simulation) LinkSevered(startDPID uint64, startPort uint32, endDPID uint64, endPort uint32) bool {
	return s.severedLinks[linkKey(startDPID, startPort, endDPID, endPort)]
}

func (s *Simulation) resolveLinkSwitches(startDPID uint64, startPort uint32, endDPID uint64, endPort uint32) (*topology.Switch, *topology.Port, *topology.Switch, *topology.Port, error) {
	startSw, err := s.Topology.GetSwitchByDPID(startDPID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	endSw, err := s.Topology.GetSwitchByDPID(endDPID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	startP, err := s.Topology.GetPort(startSw.ID, startPort)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	endP, err := s.Topology.GetPort(endSw.ID, endPort)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return startSw, startP, endSw, endP, nil
}

// CrashController marks cid as down, per spec.md §4.3's ControllerFailure
// input event.
func (s *Simulation) CrashController(cid string) error {
	c, err := s.GetController(cid)
	if err != nil {
		return err
	}
	if c.Down {
		return fmt.Errorf("simulation: controller %q is already down", cid)
	}
	c.Down = true
	s.Logger.Info("controller crashed", "controller_id", cid)
	return nil
}

// RecoverController marks cid as back up, per spec.md §4.3's
// ControllerRecovery input event.
func (s *Simulation) RecoverController(cid string) error {
	c, err := s.GetController(cid)
	if err != nil {
		return err
	}
	if !c.Down {
		return fmt.Errorf("simulation: controller %q is not down", cid)
	}
	c.Down = false
	s.Logger.Info("controller recovered", "controller_id", cid)
	return nil
}

func controllerPairKey(cid1, cid2 string) string {
	if cid1 > cid2 {
		cid1, cid2 = cid2, cid1
	}
	return cid1 + "|" + cid2
}

// BlockControllerPair blocks connectivity between two controller processes,
// per spec.md §4.3's BlockControllerPair input event.
func (s *Simulation) BlockControllerPair(cid1, cid2 string) error {
	if _, err := s.GetController(cid1); err != nil {
		return err
	}
	if _, err := s.GetController(cid2); err != nil {
		return err
	}
	s.blockedCtrlPairs[controllerPairKey(cid1, cid2)] = true
	return nil
}

// UnblockControllerPair reverses BlockControllerPair.
func (s *Simulation) UnblockControllerPair(cid1, cid2 string) error {
	delete(s.blockedCtrlPairs, controllerPairKey(cid1, cid2))
	return nil
}

// ControllerPairBlocked reports whether cid1/cid2 are currently blocked
// from reaching each other.
func (s *Simulation) ControllerPairBlocked(cid1, cid2 string) bool {
	return s.blockedCtrlPairs[controllerPairKey(cid1, cid2)]
}

// BlockControlChannel gates dpid's connection to cid via the OpenFlow
// buffer, per spec.md §4.3's ControlChannelBlock input event. Blocking an
// already-blocked channel is a no-op success (spec.md §9 Open Question b).
func (s *Simulation) BlockControlChannel(dpid uint64, cid string) error {
	return s.Buffer.Block(dpid, cid)
}

// UnblockControlChannel reverses BlockControlChannel.
func (s *Simulation) UnblockControlChannel(dpid uint64, cid string) error {
	return s.Buffer.Unblock(dpid, cid)
}

// AddIntent records a reachability policy between two hosts' interfaces and
// registers it with the connectivity tracker, per spec.md §4.3's
// PolicyChange/AddIntent input event.
func (s *Simulation) AddIntent(srcHost, srcIface, dstHost, dstIface string, policy topology.PolicyID) error {
	if !s.Topology.HasHost(srcHost) {
		return fmt.Errorf("simulation: unknown host %q", srcHost)
	}
	if !s.Topology.HasHost(dstHost) {
		return fmt.Errorf("simulation: unknown host %q", dstHost)
	}
	s.Connectivity.AddConnectedHosts(srcHost, srcIface, dstHost, dstIface, policy)
	return nil
}

// RemoveIntent retracts a previously added policy.
func (s *Simulation) RemoveIntent(policy topology.PolicyID) error {
	if !s.Connectivity.HasPolicy(policy) {
		return fmt.Errorf("simulation: unknown policy %q", policy)
	}
	s.Connectivity.RemovePolicy(policy)
	return nil
}

// Ping reports whether srcHost can reach dstHost per the connectivity
// tracker's current records, per spec.md §4.3's PingEvent input event.
func (s *Simulation) Ping(srcHost, dstHost string) (bool, error) {
	if !s.Topology.HasHost(srcHost) {
		return false, fmt.Errorf("simulation: unknown host %q", srcHost)
	}
	if !s.Topology.HasHost(dstHost) {
		return false, fmt.Errorf("simulation: unknown host %q", dstHost)
	}
	return s.Connectivity.IsConnected(srcHost, dstHost), nil
}

// MigrateHost moves hostID's iface attachment from (oldDPID,oldPort) to
// (newDPID,newPort), per spec.md §4.1's HostMigration fingerprint
// `(class, old_dpid, old_port, new_dpid, new_port, host_id)`. A zero
// oldDPID means the host had no prior link (e.g. first attachment).
func (s *Simulation) MigrateHost(hostID, iface string, oldDPID uint64, oldPort uint32, newDPID uint64, newPort uint32) error {
	if !s.Topology.HasHost(hostID) {
		return fmt.Errorf("simulation: unknown host %q", hostID)
	}
	newSw, err := s.Topology.GetSwitchByDPID(newDPID)
	if err != nil {
		return err
	}
	if _, err := s.Topology.GetPort(newSw.ID, newPort); err != nil {
		return err
	}

	if oldDPID != 0 {
		if oldSw, err := s.Topology.GetSwitchByDPID(oldDPID); err == nil {
			_ = s.Topology.RemoveLink(topology.Link{
				Start: topology.Endpoint{NodeID: hostID, IfaceName: iface},
				End:   topology.Endpoint{NodeID: oldSw.ID, PortNo: oldPort},
			})
		}
	}

	return s.Topology.AddLink(topology.Link{
		Start: topology.Endpoint{NodeID: hostID, IfaceName: iface},
		End:   topology.Endpoint{NodeID: newSw.ID, PortNo: newPort},
	}, true)
}

// ConnectControllers marks the replay run as having issued its initial
// connection handshake to every registered controller, per spec.md §4.1's
// ConnectToControllers input event (fingerprint `(class,)`, no per-instance
// state beyond "did this happen").
func (s *Simulation) ConnectControllers() error {
	s.Logger.Info("connecting to controllers", "count", len(s.controllers))
	return nil
}

// HasInvariantCheck reports whether name is registered, used by the replayer
// to reject a trace referencing an unknown check before the run starts
// (spec.md §7's InvariantUnknown, "fatal at decode time").
func (s *Simulation) HasInvariantCheck(name string) bool {
	_, ok := s.invariantChecks[name]
	return ok
}

// CheckInvariants runs the invariant check registered under name and
// records the result in the violation tracker for round, per spec.md
// §4.3's CheckInvariants input event.
func (s *Simulation) CheckInvariants(name string, round int) ([]string, []string, error) {
	check, ok := s.invariantChecks[name]
	if !ok {
		return nil, nil, fmt.Errorf("simulation: unknown invariant check %q", name)
	}
	violations := check(s)
	s.Violations.Track(violations, round)
	return violations, s.Violations.PersistentViolations(), nil
}
