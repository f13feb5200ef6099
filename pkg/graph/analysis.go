package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/topo"
)

// Report describes the topology of a circulation graph
type Report struct {
	Nodes       int
	Connections int
	// Regions lists the node names of each connected region, largest first.
	// A well-formed building has exactly one region.
	Regions [][]string
}

// Connected reports whether every space can reach every other space
func (r Report) Connected() bool {
	return len(r.Regions) <= 1
}

// Analyze computes the connected regions of g
func Analyze(g *Graph) Report {
	components := topo.ConnectedComponents(g.Topology())

	regions := make([][]string, 0, len(components))
	for _, component := range components {
		names := make([]string, 0, len(component))
		for _, n := range component {
			names = append(names, g.Name(NodeID(n.ID())))
		}
		sort.Strings(names)
		regions = append(regions, names)
	}

	sort.SliceStable(regions, func(i, j int) bool {
		if len(regions[i]) != len(regions[j]) {
			return len(regions[i]) > len(regions[j])
		}
		return regions[i][0] < regions[j][0]
	})

	return Report{
		Nodes:       g.NodeCount(),
		Connections: g.EdgeCount() / 2,
		Regions:     regions,
	}
}
