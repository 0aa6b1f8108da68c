package main

import (
	"fmt"

	"github.com/ahassany/sts/topology"
)

// generateTopology builds the switch-only graph named by generator, per
// spec.md §6's `topology_generator` configuration field. Only the two
// generator shapes the original harness ships by default are implemented;
// an unrecognised name is a configuration error rather than a silent
// fallback.
func generateTopology(generator string, n int) (*topology.Graph, error) {
	switch generator {
	case "linear":
		return linearTopology(n), nil
	case "mesh":
		return meshTopology(n), nil
	default:
		return nil, fmt.Errorf("stsreplay: unknown topology_generator %q", generator)
	}
}

// linearTopology chains n switches s1..sn, each linked to its neighbor by a
// single bidirectional port pair.
func linearTopology(n int) *topology.Graph {
	g := topology.NewGraph()
	for i := 1; i <= n; i++ {
		addSwitch(g, i, 2)
	}
	for i := 1; i < n; i++ {
		linkSwitches(g, i, 2, i+1, 1)
	}
	return g
}

// meshTopology fully connects n switches, one port per peer.
func meshTopology(n int) *topology.Graph {
	g := topology.NewGraph()
	for i := 1; i <= n; i++ {
		addSwitch(g, i, n-1)
	}
	port := make([]uint32, n+1)
	for i := 1; i <= n; i++ {
		port[i] = 1
	}
	for i := 1; i <= n; i++ {
		for j := i + 1; j <= n; j++ {
			linkSwitches(g, i, port[i], j, port[j])
			port[i]++
			port[j]++
		}
	}
	return g
}

func addSwitch(g *topology.Graph, idx, numPorts int) {
	sw := &topology.Switch{
		ID:       fmt.Sprintf("s%d", idx),
		DPID:     uint64(idx),
		FailMode: topology.FailModeSecure,
	}
	for p := 1; p <= numPorts; p++ {
		sw.Ports = append(sw.Ports, &topology.Port{
			Number: uint32(p), SwitchID: sw.ID, Admin: topology.PortUp,
		})
	}
	_ = g.AddSwitch(sw)
}

func linkSwitches(g *topology.Graph, i int, pi uint32, j int, pj uint32) {
	_ = g.AddLink(topology.Link{
		Start: topology.Endpoint{NodeID: fmt.Sprintf("s%d", i), PortNo: pi},
		End:   topology.Endpoint{NodeID: fmt.Sprintf("s%d", j), PortNo: pj},
	}, true)
}
