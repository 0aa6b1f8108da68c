package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinearTopologyChainsSwitches(t *testing.T) {
	g, err := generateTopology("linear", 3)
	require.NoError(t, err)

	require.Len(t, g.Switches(), 3)
	links, err := g.GetSwitchLinks("s2")
	require.NoError(t, err)
	require.Len(t, links, 2)
}

func TestMeshTopologyFullyConnects(t *testing.T) {
	g, err := generateTopology("mesh", 4)
	require.NoError(t, err)

	require.Len(t, g.Switches(), 4)
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		links, err := g.GetSwitchLinks(id)
		require.NoError(t, err)
		require.Len(t, links, 3)
	}
}

func TestGenerateTopologyRejectsUnknownGenerator(t *testing.T) {
	_, err := generateTopology("fat_tree_k4", 4)
	require.Error(t, err)
}
