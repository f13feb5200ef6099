package model

import (
	"strconv"

	"github.com/ritzau/circulation/pkg/graph"
)

// Graph is the serializable form of a circulation graph for API clients and the visualization layer.
// Each undirected connection appears once.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make([]*Node, 0),
		Edges: make([]*Edge, 0),
	}
}

// Node represents a space.
type Node struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Type   string `json:"type"`             // always "space" today
	Parent string `json:"parent,omitempty"` // region id when the graph is disconnected
	Degree int    `json:"degree"`
}

// Edge represents a walkable connection between two spaces.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"` // always "connection" today
	Weight float64 `json:"weight"`
}

// AddNode appends a node to the graph.
func (g *Graph) AddNode(node *Node) {
	g.Nodes = append(g.Nodes, node)
}

// AddEdge appends an edge to the graph.
func (g *Graph) AddEdge(edge *Edge) {
	g.Edges = append(g.Edges, edge)
}

// FromGraph converts g in node id order. Spaces outside the largest region
// carry their region id as Parent so clients can group them.
func FromGraph(g *graph.Graph) *Graph {
	out := NewGraph()
	if g == nil {
		return out
	}

	region := make(map[string]string)
	report := graph.Analyze(g)
	if !report.Connected() {
		for i, names := range report.Regions[1:] {
			for _, name := range names {
				region[name] = regionID(i + 1)
			}
		}
	}

	for _, n := range g.Nodes() {
		out.AddNode(&Node{
			ID:     n.Name,
			Label:  n.Name,
			Type:   "space",
			Parent: region[n.Name],
			Degree: g.OutDegree(n.ID),
		})
	}
	for _, e := range g.Edges() {
		if e.From > e.To {
			continue
		}
		out.AddEdge(&Edge{
			Source: g.Name(e.From),
			Target: g.Name(e.To),
			Type:   "connection",
			Weight: e.Weight,
		})
	}
	return out
}

func regionID(i int) string {
	return "region-" + strconv.Itoa(i)
}
