// Package topology implements the typed multigraph of hosts, switches,
// ports, and interfaces that the replay core's simulator mutates, plus the
// connectivity tracker that sits on top of it. See spec.md §3/§4.5/§4.6.
//
// This is a direct Go port of original_source/sts/topology/graph.py's
// TopologyGraph: the same node/edge typing, the same cascade-removal
// behaviour on host/switch removal, and the same "probe both candidate
// node-id schemes" trick for resolving a link's endpoints.
package topology

import (
	"fmt"
)

// NodeType distinguishes the four kinds of vertex the graph holds.
type NodeType int

// Node types, per spec.md §3.
const (
	NodeHost NodeType = iota
	NodeSwitch
	NodePort
	NodeInterface
)

func (t NodeType) String() string {
	switch t {
	case NodeHost:
		return "HOST"
	case NodeSwitch:
		return "SWITCH"
	case NodePort:
		return "PORT"
	case NodeInterface:
		return "INTERFACE"
	default:
		return "UNKNOWN"
	}
}

// EdgeType distinguishes a physical/access LINK from the virtual
// switch-port / host-interface attachment edge.
type EdgeType int

// Edge types, per spec.md §3.
const (
	EdgeLink EdgeType = iota
	EdgeInternalLink
)

// FailMode is the failure mode a switch uses when its control channel is
// down, adapted from the teacher's ovs.FailMode constants (SPEC_FULL.md §3).
type FailMode string

// FailMode values.
const (
	FailModeStandalone FailMode = "standalone"
	FailModeSecure     FailMode = "secure"
)

// PortAdmin is the administrative state of a switch port, adapted from the
// teacher's ovs.PortAction constants (SPEC_FULL.md §3).
type PortAdmin string

// PortAdmin values.
const (
	PortUp   PortAdmin = "up"
	PortDown PortAdmin = "down"
)

// A Host is a simulated end host with zero or more network interfaces.
type Host struct {
	ID         string
	Interfaces []*Interface
}

// An Interface is a host's network interface.
type Interface struct {
	Name   string
	HostID string
}

// A Switch is a simulated OpenFlow switch.
type Switch struct {
	ID       string
	DPID     uint64
	Ports    []*Port
	FailMode FailMode
}

// A Port is a switch's physical port.
type Port struct {
	Number   uint32
	SwitchID string
	Admin    PortAdmin
}

// An Endpoint names one side of a Link. NodeID is the raw switch or host
// domain id; depending on which of PortNo/IfaceName is meaningful, the
// endpoint resolves against the PORT or INTERFACE naming scheme (see
// resolveEndpoint). This mirrors the ambiguity the original Python
// implementation resolved at runtime by duck-typing the link object.
type Endpoint struct {
	NodeID    string
	PortNo    uint32
	IfaceName string
}

// A Link connects two Endpoints, either hosts' interfaces or switches'
// ports (or one of each, for an access link).
type Link struct {
	Start Endpoint
	End   Endpoint
}

type edgeAttrs struct {
	etype EdgeType
	bidir bool
	link  *Link
}

// A Graph is a directed multigraph of hosts, switches, ports, and
// interfaces. The zero value is not usable; use NewGraph.
type Graph struct {
	nodeTypes map[string]NodeType
	edges     map[string]map[string]edgeAttrs

	hosts      map[string]*Host
	switches   map[string]*Switch
	ports      map[string]*Port
	interfaces map[string]*Interface

	switchesByDPID map[uint64]string
}

// NewGraph returns an empty topology graph.
func NewGraph() *Graph {
	return &Graph{
		nodeTypes:  make(map[string]NodeType),
		edges:      make(map[string]map[string]edgeAttrs),
		hosts:          make(map[string]*Host),
		switches:       make(map[string]*Switch),
		ports:          make(map[string]*Port),
		interfaces:     make(map[string]*Interface),
		switchesByDPID: make(map[uint64]string),
	}
}

func hostNodeID(hostID string) string           { return "host:" + hostID }
func switchNodeID(switchID string) string       { return "switch:" + switchID }
func portNodeID(switchID string, no uint32) string {
	return fmt.Sprintf("port:%s:%d", switchID, no)
}
func ifaceNodeID(hostID, name string) string { return fmt.Sprintf("iface:%s:%s", hostID, name) }

func (g *Graph) hasNode(id string) bool {
	_, ok := g.nodeTypes[id]
	return ok
}

func (g *Graph) addNode(id string, t NodeType) {
	g.nodeTypes[id] = t
	if _, ok := g.edges[id]; !ok {
		g.edges[id] = make(map[string]edgeAttrs)
	}
}

func (g *Graph) addEdge(from, to string, attrs edgeAttrs) {
	if _, ok := g.edges[from]; !ok {
		g.edges[from] = make(map[string]edgeAttrs)
	}
	g.edges[from][to] = attrs
}

func (g *Graph) removeEdge(from, to string) {
	delete(g.edges[from], to)
}

func (g *Graph) outEdges(id string) map[string]edgeAttrs {
	return g.edges[id]
}

// AddHost adds h to the topology, auto-creating an INTERFACE node and a
// bidirectional INTERNAL_LINK edge for each of h's interfaces.
func (g *Graph) AddHost(h *Host) error {
	hid := hostNodeID(h.ID)
	if g.hasNode(hid) {
		return fmt.Errorf("topology: host %q already exists", h.ID)
	}
	g.addNode(hid, NodeHost)
	g.hosts[h.ID] = h

	for _, iface := range h.Interfaces {
		ifid := ifaceNodeID(h.ID, iface.Name)
		g.addNode(ifid, NodeInterface)
		g.interfaces[ifid] = iface
		g.addEdge(hid, ifid, edgeAttrs{etype: EdgeInternalLink, bidir: true})
		g.addEdge(ifid, hid, edgeAttrs{etype: EdgeInternalLink, bidir: true})
	}
	return nil
}

// HasHost reports whether hostID exists in the topology.
func (g *Graph) HasHost(hostID string) bool {
	t, ok := g.nodeTypes[hostNodeID(hostID)]
	return ok && t == NodeHost
}

// GetHost returns the Host object for hostID.
func (g *Graph) GetHost(hostID string) (*Host, error) {
	h, ok := g.hosts[hostID]
	if !ok {
		return nil, fmt.Errorf("topology: unknown host %q", hostID)
	}
	return h, nil
}

// RemoveHost removes host and cascades removal of its interfaces and every
// LINK incident to them, per spec.md §3 invariant (c).
func (g *Graph) RemoveHost(hostID string) error {
	h, err := g.GetHost(hostID)
	if err != nil {
		return err
	}
	for _, iface := range h.Interfaces {
		ifid := ifaceNodeID(hostID, iface.Name)
		g.removeNodeCascade(ifid)
		delete(g.interfaces, ifid)
	}
	g.removeNodeCascade(hostNodeID(hostID))
	delete(g.hosts, hostID)
	return nil
}

// AddSwitch adds s to the topology, auto-creating a PORT node and a
// bidirectional INTERNAL_LINK edge for each of s's ports.
func (g *Graph) AddSwitch(s *Switch) error {
	sid := switchNodeID(s.ID)
	if g.hasNode(sid) {
		return fmt.Errorf("topology: switch %q already exists", s.ID)
	}
	g.addNode(sid, NodeSwitch)
	g.switches[s.ID] = s
	g.switchesByDPID[s.DPID] = s.ID

	for _, p := range s.Ports {
		pid := portNodeID(s.ID, p.Number)
		g.addNode(pid, NodePort)
		g.ports[pid] = p
		g.addEdge(sid, pid, edgeAttrs{etype: EdgeInternalLink, bidir: true})
		g.addEdge(pid, sid, edgeAttrs{etype: EdgeInternalLink, bidir: true})
	}
	return nil
}

// HasSwitch reports whether switchID exists in the topology.
func (g *Graph) HasSwitch(switchID string) bool {
	t, ok := g.nodeTypes[switchNodeID(switchID)]
	return ok && t == NodeSwitch
}

// GetSwitch returns the Switch object for switchID.
func (g *Graph) GetSwitch(switchID string) (*Switch, error) {
	s, ok := g.switches[switchID]
	if !ok {
		return nil, fmt.Errorf("topology: unknown switch %q", switchID)
	}
	return s, nil
}

// RemoveSwitch removes switch and cascades removal of its ports and every
// LINK edge incident to any of them, per spec.md §3 invariant (c).
func (g *Graph) RemoveSwitch(switchID string) error {
	s, err := g.GetSwitch(switchID)
	if err != nil {
		return err
	}
	for _, p := range s.Ports {
		pid := portNodeID(switchID, p.Number)
		g.removeNodeCascade(pid)
		delete(g.ports, pid)
	}
	g.removeNodeCascade(switchNodeID(switchID))
	delete(g.switches, switchID)
	delete(g.switchesByDPID, s.DPID)
	return nil
}

// GetPort returns the Port object for switchID's port number no.
func (g *Graph) GetPort(switchID string, no uint32) (*Port, error) {
	p, ok := g.ports[portNodeID(switchID, no)]
	if !ok {
		return nil, fmt.Errorf("topology: unknown port %d on switch %q", no, switchID)
	}
	return p, nil
}

// GetSwitchByDPID returns the switch registered under dpid, per spec.md
// §4.1's switch lookup used by dataplane-facing control events.
func (g *Graph) GetSwitchByDPID(dpid uint64) (*Switch, error) {
	id, ok := g.switchesByDPID[dpid]
	if !ok {
		return nil, fmt.Errorf("topology: unknown switch dpid %d", dpid)
	}
	return g.GetSwitch(id)
}

// removeNodeCascade removes node and every edge incident to it (both
// directions), matching original_source's TopologyGraph._remove_node.
func (g *Graph) removeNodeCascade(id string) {
	for dst := range g.edges[id] {
		g.removeEdge(id, dst)
	}
	for src, adj := range g.edges {
		if _, ok := adj[id]; ok {
			g.removeEdge(src, id)
		}
	}
	delete(g.edges, id)
	delete(g.nodeTypes, id)
}

// resolveEndpoint implements spec.md §4.5's link endpoint resolution: given
// an Endpoint, probe both the PORT naming scheme and the INTERFACE naming
// scheme and pick whichever is present in the graph. Presence in both, or
// in neither, is an error.
func (g *Graph) resolveEndpoint(e Endpoint) (string, error) {
	portID := portNodeID(e.NodeID, e.PortNo)
	ifaceID := ifaceNodeID(e.NodeID, e.IfaceName)

	portOK := g.nodeTypes[portID] == NodePort && g.hasNode(portID)
	ifaceOK := g.nodeTypes[ifaceID] == NodeInterface && g.hasNode(ifaceID)

	switch {
	case portOK && ifaceOK:
		return "", fmt.Errorf("topology: ambiguous link endpoint for node %q: both a port and an interface scheme matched", e.NodeID)
	case portOK:
		return portID, nil
	case ifaceOK:
		return ifaceID, nil
	default:
		return "", fmt.Errorf("topology: no port or interface endpoint found for node %q", e.NodeID)
	}
}

// AddLink adds l to the topology. If bidir is true, two symmetric edges are
// added and a subsequent RemoveLink removes both (spec.md §3 invariant d).
func (g *Graph) AddLink(l Link, bidir bool) error {
	src, err := g.resolveEndpoint(l.Start)
	if err != nil {
		return err
	}
	dst, err := g.resolveEndpoint(l.End)
	if err != nil {
		return err
	}

	linkCopy := l
	g.addEdge(src, dst, edgeAttrs{etype: EdgeLink, bidir: bidir, link: &linkCopy})
	if bidir {
		g.addEdge(dst, src, edgeAttrs{etype: EdgeLink, bidir: bidir, link: &linkCopy})
	}
	return nil
}

// GetLink returns the Link object stored on the edge node1->node2 if that
// edge exists and is typed LINK. It is a hard error (data-model breach) for
// a non-LINK edge to exist between the pair, per spec.md §4.5.
func (g *Graph) GetLink(node1, node2 string) (*Link, error) {
	attrs, ok := g.edges[node1][node2]
	if !ok {
		return nil, nil
	}
	if attrs.etype != EdgeLink {
		return nil, fmt.Errorf("topology: edge %s->%s exists but is not a LINK", node1, node2)
	}
	return attrs.link, nil
}

// HasLink reports whether l (identified by its resolved endpoints) is
// currently present in the topology.
func (g *Graph) HasLink(l Link) (bool, error) {
	src, err := g.resolveEndpoint(l.Start)
	if err != nil {
		return false, err
	}
	dst, err := g.resolveEndpoint(l.End)
	if err != nil {
		return false, err
	}
	link, err := g.GetLink(src, dst)
	if err != nil {
		return false, err
	}
	return link != nil, nil
}

// RemoveLink removes l from the topology. If the stored edge is
// bidirectional, both directed edges are removed.
func (g *Graph) RemoveLink(l Link) error {
	src, err := g.resolveEndpoint(l.Start)
	if err != nil {
		return err
	}
	dst, err := g.resolveEndpoint(l.End)
	if err != nil {
		return err
	}
	attrs, ok := g.edges[src][dst]
	if !ok || attrs.etype != EdgeLink {
		return fmt.Errorf("topology: link not part of the graph: %s<->%s", src, dst)
	}
	g.removeEdge(src, dst)
	if attrs.bidir {
		g.removeEdge(dst, src)
	}
	return nil
}

// GetHostLinks returns every LINK edge incident to any of host's interfaces.
func (g *Graph) GetHostLinks(hostID string) ([]*Link, error) {
	h, err := g.GetHost(hostID)
	if err != nil {
		return nil, err
	}
	var links []*Link
	for _, iface := range h.Interfaces {
		ifid := ifaceNodeID(hostID, iface.Name)
		links = append(links, g.connectedLinks(ifid)...)
	}
	return links, nil
}

// GetSwitchLinks returns every LINK edge incident to any of switch's ports.
func (g *Graph) GetSwitchLinks(switchID string) ([]*Link, error) {
	s, err := g.GetSwitch(switchID)
	if err != nil {
		return nil, err
	}
	var links []*Link
	for _, p := range s.Ports {
		pid := portNodeID(switchID, p.Number)
		links = append(links, g.connectedLinks(pid)...)
	}
	return links, nil
}

func (g *Graph) connectedLinks(id string) []*Link {
	var links []*Link
	seen := make(map[*Link]bool)
	for _, attrs := range g.edges[id] {
		if attrs.etype == EdgeLink && !seen[attrs.link] {
			links = append(links, attrs.link)
			seen[attrs.link] = true
		}
	}
	for src, adj := range g.edges {
		if src == id {
			continue
		}
		if attrs, ok := adj[id]; ok && attrs.etype == EdgeLink && !seen[attrs.link] {
			links = append(links, attrs.link)
			seen[attrs.link] = true
		}
	}
	return links
}

// Hosts returns every host currently in the topology.
func (g *Graph) Hosts() []*Host {
	out := make([]*Host, 0, len(g.hosts))
	for _, h := range g.hosts {
		out = append(out, h)
	}
	return out
}

// Switches returns every switch currently in the topology.
func (g *Graph) Switches() []*Switch {
	out := make([]*Switch, 0, len(g.switches))
	for _, s := range g.switches {
		out = append(out, s)
	}
	return out
}

// Ports returns every port currently in the topology.
func (g *Graph) Ports() []*Port {
	out := make([]*Port, 0, len(g.ports))
	for _, p := range g.ports {
		out = append(out, p)
	}
	return out
}

// Interfaces returns every interface currently in the topology.
func (g *Graph) Interfaces() []*Interface {
	out := make([]*Interface, 0, len(g.interfaces))
	for _, i := range g.interfaces {
		out = append(out, i)
	}
	return out
}

// Links returns every LINK edge currently in the topology, without
// duplicating bidirectional pairs.
func (g *Graph) Links() []*Link {
	seen := make(map[*Link]bool)
	var out []*Link
	for _, adj := range g.edges {
		for _, attrs := range adj {
			if attrs.etype == EdgeLink && !seen[attrs.link] {
				out = append(out, attrs.link)
				seen[attrs.link] = true
			}
		}
	}
	return out
}
