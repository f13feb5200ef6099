package model

import (
	"github.com/ritzau/circulation/pkg/graph"
	"github.com/ritzau/circulation/pkg/pathfind"
)

// Summary describes a built graph
type Summary struct {
	Model       string     `json:"model"`
	Label       string     `json:"label"`
	Nodes       int        `json:"nodes"`
	Connections int        `json:"connections"`
	Records     int        `json:"records"`
	Skipped     int        `json:"skipped"`    // malformed records left out
	Duplicates  int        `json:"duplicates"` // repeated pairs merged into one connection
	Connected   bool       `json:"connected"`
	Regions     [][]string `json:"regions,omitempty"` // only reported when the graph is disconnected
}

// Summarize reports the size and topology of g
func Summarize(g *graph.Graph) Summary {
	report := graph.Analyze(g)
	stats := g.Stats()
	s := Summary{
		Model:       g.ModelID(),
		Label:       g.Label(),
		Nodes:       report.Nodes,
		Connections: report.Connections,
		Records:     stats.Records,
		Skipped:     stats.Skipped,
		Duplicates:  stats.Duplicates,
		Connected:   report.Connected(),
	}
	if !s.Connected {
		s.Regions = report.Regions
	}
	return s
}

// RankedPath is a route with its 1-based rank
type RankedPath struct {
	Rank   int      `json:"rank"`
	Nodes  []string `json:"nodes"`
	Weight float64  `json:"weight"`
}

// RouteResponse is the API form of a search outcome. Paths is never null.
type RouteResponse struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Status  pathfind.Status `json:"status"`
	Paths   []RankedPath    `json:"paths"`
	Missing []string        `json:"missing,omitempty"`
}

// FromOutcome converts a search outcome for the route from..to
func FromOutcome(from, to string, out pathfind.Outcome) RouteResponse {
	resp := RouteResponse{
		From:    from,
		To:      to,
		Status:  out.Status,
		Paths:   make([]RankedPath, 0, len(out.Paths)),
		Missing: out.Missing,
	}
	for i, p := range out.Paths {
		resp.Paths = append(resp.Paths, RankedPath{Rank: i + 1, Nodes: p.Nodes, Weight: p.Weight})
	}
	return resp
}
