// Package graph holds the immutable circulation graph of a building model.
//
// Spaces become nodes with dense integer ids; each connectivity record
// becomes a pair of directed edges with equal weight. Adjacency lists keep
// the order in which records were read, which is what makes route searches
// deterministic when several routes tie.
package graph

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

var (
	// ErrDataSourceUnavailable indicates the model id did not resolve to connectivity data
	ErrDataSourceUnavailable = errors.New("graph: data source unavailable")
	// ErrEmptyGraph indicates no usable connectivity records were found
	ErrEmptyGraph = errors.New("graph: no usable connectivity records")
	// ErrMalformedRecord marks a single unusable record; it is reported as a diagnostic, never returned by Build
	ErrMalformedRecord = errors.New("graph: malformed record")
)

// NodeID is the dense identifier of a node, valid in [0, NodeCount)
type NodeID int

// Node is a named space in the building model
type Node struct {
	ID   NodeID
	Name string
}

// Edge is a directed, weighted connection
type Edge struct {
	From   NodeID
	To     NodeID
	Weight float64
}

// BuildStats summarizes how the records of a build were used
type BuildStats struct {
	Records    int // records read from the store
	Skipped    int // malformed records
	Duplicates int // records repeating an existing connection
}

// Graph is an immutable, bidirectional, weighted circulation graph.
// A Graph is never modified after the builder returns it and is safe to share between goroutines.
type Graph struct {
	modelID   string
	label     string
	nodes     []Node
	adjacency [][]Edge
	edgeCount int
	index     *PathIndex
	stats     BuildStats
	topology  *simple.WeightedUndirectedGraph
}

// ModelID returns the building model the graph was built from
func (g *Graph) ModelID() string {
	return g.modelID
}

// Label returns the label given at build time
func (g *Graph) Label() string {
	return g.label
}

// Stats returns the record statistics of the build
func (g *Graph) Stats() BuildStats {
	return g.stats
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges (twice the number of connections)
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// Index returns the name lookup built alongside the graph
func (g *Graph) Index() *PathIndex {
	return g.index
}

// Resolve is shorthand for g.Index().Resolve(name)
func (g *Graph) Resolve(name string) (NodeID, bool) {
	return g.index.Resolve(name)
}

// Node returns the node with the given id
func (g *Graph) Node(id NodeID) Node {
	return g.nodes[id]
}

// Name returns the name of the node with the given id
func (g *Graph) Name(id NodeID) string {
	return g.nodes[id].Name
}

// Nodes returns all nodes ordered by id
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// OutDegree returns the number of edges leaving id
func (g *Graph) OutDegree(id NodeID) int {
	return len(g.adjacency[id])
}

// EdgeAt returns the i-th outgoing edge of id in insertion order
func (g *Graph) EdgeAt(id NodeID, i int) Edge {
	return g.adjacency[id][i]
}

// Neighbors returns a copy of the outgoing edges of id in insertion order
func (g *Graph) Neighbors(id NodeID) []Edge {
	out := make([]Edge, len(g.adjacency[id]))
	copy(out, g.adjacency[id])
	return out
}

// Weight returns the weight of the edge from -> to
func (g *Graph) Weight(from, to NodeID) (float64, bool) {
	for _, e := range g.adjacency[from] {
		if e.To == to {
			return e.Weight, true
		}
	}
	return 0, false
}

// Edges returns every directed edge, grouped by source node in id order
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edgeCount)
	for _, adj := range g.adjacency {
		out = append(out, adj...)
	}
	return out
}

// Topology exposes the graph as a gonum weighted undirected graph for
// topological analysis. Node ids match NodeID values. Callers must not modify it.
func (g *Graph) Topology() *simple.WeightedUndirectedGraph {
	return g.topology
}

// PathIndex maps node names to dense ids
type PathIndex struct {
	ids   map[string]NodeID
	names []string
}

func newPathIndex() *PathIndex {
	return &PathIndex{ids: make(map[string]NodeID)}
}

// Resolve returns the id of the named node
func (p *PathIndex) Resolve(name string) (NodeID, bool) {
	id, ok := p.ids[name]
	return id, ok
}

// Name returns the name registered for id
func (p *PathIndex) Name(id NodeID) (string, bool) {
	if id < 0 || int(id) >= len(p.names) {
		return "", false
	}
	return p.names[id], true
}

// Len returns the number of indexed names
func (p *PathIndex) Len() int {
	return len(p.names)
}

// Names returns all names sorted alphabetically
func (p *PathIndex) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	sort.Strings(out)
	return out
}
