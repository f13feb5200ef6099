package graph

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/ritzau/circulation/pkg/diagnostics"
	"github.com/ritzau/circulation/pkg/store"
	gonum "gonum.org/v1/gonum/graph"
)

func diamondRecords() []store.Record {
	return []store.Record{
		{Source: "A", Target: "B", Weight: 1},
		{Source: "B", Target: "C", Weight: 1},
		{Source: "A", Target: "C", Weight: 3},
		{Source: "C", Target: "D", Weight: 1},
	}
}

func TestFromRecords(t *testing.T) {
	g, err := FromRecords("tower-a", "test", diamondRecords(), nil)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}

	if g.NodeCount() != 4 {
		t.Errorf("Expected 4 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 8 {
		t.Errorf("Expected 8 directed edges, got %d", g.EdgeCount())
	}
	if g.ModelID() != "tower-a" || g.Label() != "test" {
		t.Errorf("Unexpected model/label %q/%q", g.ModelID(), g.Label())
	}

	// Ids are dense and follow first appearance
	for i, name := range []string{"A", "B", "C", "D"} {
		id, ok := g.Resolve(name)
		if !ok {
			t.Fatalf("Node %s not found", name)
		}
		if id != NodeID(i) {
			t.Errorf("Expected %s to have id %d, got %d", name, i, id)
		}
		if g.Name(id) != name {
			t.Errorf("Name(%d) = %q, want %q", id, g.Name(id), name)
		}
	}

	if _, ok := g.Resolve("Z"); ok {
		t.Error("Unknown name should not resolve")
	}
}

func TestAdjacencyKeepsInsertionOrder(t *testing.T) {
	g, err := FromRecords("m", "test", diamondRecords(), nil)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}

	a, _ := g.Resolve("A")
	neighbors := g.Neighbors(a)
	if len(neighbors) != 2 {
		t.Fatalf("Expected A to have 2 neighbors, got %d", len(neighbors))
	}
	if g.Name(neighbors[0].To) != "B" || g.Name(neighbors[1].To) != "C" {
		t.Errorf("Expected neighbors [B C] in record order, got [%s %s]",
			g.Name(neighbors[0].To), g.Name(neighbors[1].To))
	}

	// Mutating the returned copy does not affect the graph
	neighbors[0].Weight = 99
	if w, _ := g.Weight(a, neighbors[0].To); w != 1 {
		t.Errorf("Graph mutated through Neighbors copy, weight now %v", w)
	}
}

func TestConnectionsAreBidirectional(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		var records []store.Record
		n := 2 + rng.Intn(10)
		for i := 0; i < rng.Intn(30)+1; i++ {
			a, b := rng.Intn(n), rng.Intn(n)
			if a == b {
				continue
			}
			records = append(records, store.Record{
				Source: fmt.Sprintf("space-%d", a),
				Target: fmt.Sprintf("space-%d", b),
				Weight: float64(rng.Intn(20)),
			})
		}
		if len(records) == 0 {
			continue
		}

		g, err := FromRecords("random", "property", records, nil)
		if err != nil {
			t.Fatalf("trial %d: FromRecords() error = %v", trial, err)
		}

		seen := make(map[[2]NodeID]bool)
		for _, e := range g.Edges() {
			if e.From == e.To {
				t.Fatalf("trial %d: self loop on %s", trial, g.Name(e.From))
			}
			if e.Weight < 0 {
				t.Fatalf("trial %d: negative weight %v", trial, e.Weight)
			}
			if seen[[2]NodeID{e.From, e.To}] {
				t.Fatalf("trial %d: duplicate edge %s->%s", trial, g.Name(e.From), g.Name(e.To))
			}
			seen[[2]NodeID{e.From, e.To}] = true

			back, ok := g.Weight(e.To, e.From)
			if !ok {
				t.Fatalf("trial %d: missing reverse edge %s->%s", trial, g.Name(e.To), g.Name(e.From))
			}
			if back != e.Weight {
				t.Fatalf("trial %d: asymmetric weight %v vs %v", trial, e.Weight, back)
			}
		}

		if g.Index().Len() != g.NodeCount() {
			t.Fatalf("trial %d: index has %d names for %d nodes", trial, g.Index().Len(), g.NodeCount())
		}
	}
}

func TestDuplicateConnectionKeepsLowestWeight(t *testing.T) {
	records := []store.Record{
		{Source: "Lobby", Target: "Stair", Weight: 5},
		{Source: "Stair", Target: "Lobby", Weight: 2},
		{Source: "Lobby", Target: "Stair", Weight: 9},
	}
	g, err := FromRecords("m", "test", records, nil)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}

	if g.EdgeCount() != 2 {
		t.Errorf("Expected one connection (2 edges), got %d edges", g.EdgeCount())
	}
	lobby, _ := g.Resolve("Lobby")
	stair, _ := g.Resolve("Stair")
	if w, _ := g.Weight(lobby, stair); w != 2 {
		t.Errorf("Expected weight 2, got %v", w)
	}
	if w, _ := g.Weight(stair, lobby); w != 2 {
		t.Errorf("Expected reverse weight 2, got %v", w)
	}
	if g.Stats().Duplicates != 2 {
		t.Errorf("Expected 2 duplicates, got %d", g.Stats().Duplicates)
	}
	if w := g.Topology().WeightedEdgeBetween(int64(lobby), int64(stair)).Weight(); w != 2 {
		t.Errorf("Topology weight = %v, want 2", w)
	}
}

func TestMalformedRecordsAreSkipped(t *testing.T) {
	records := append(diamondRecords(),
		store.Record{Source: "D", Target: "", Weight: 1},
		store.Record{Source: "E", Target: "F", Weight: -1},
	)
	diag := diagnostics.NewStack()

	g, err := FromRecords("m", "tower", records, diag)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}

	if diag.Count() != 2 {
		t.Errorf("Expected 2 diagnostics, got %d", diag.Count())
	}
	if g.NodeCount() != 4 {
		t.Errorf("Expected only valid nodes, got %d", g.NodeCount())
	}
	if _, ok := g.Resolve("E"); ok {
		t.Error("Node from malformed record should not exist")
	}
	if g.Stats().Skipped != 2 || g.Stats().Records != 6 {
		t.Errorf("Unexpected stats %+v", g.Stats())
	}

	msg, _ := diag.Pop()
	if !strings.Contains(msg, "malformed record") || !strings.Contains(msg, "record 6") {
		t.Errorf("Unexpected diagnostic %q", msg)
	}
}

func TestEmptyGraph(t *testing.T) {
	diag := diagnostics.NewStack()

	_, err := FromRecords("m", "tower", nil, diag)
	if !errors.Is(err, ErrEmptyGraph) {
		t.Errorf("Expected ErrEmptyGraph, got %v", err)
	}

	_, err = FromRecords("m", "tower", []store.Record{{Source: "A", Target: "A", Weight: 1}}, diag)
	if !errors.Is(err, ErrEmptyGraph) {
		t.Errorf("Expected ErrEmptyGraph when every record is malformed, got %v", err)
	}
	if diag.Count() != 3 {
		t.Errorf("Expected 3 diagnostics (two fatal, one malformed), got %d", diag.Count())
	}
}

func TestBuilderBuild(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	if err := s.Put(ctx, "tower-a", diamondRecords()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	diag := diagnostics.NewStack()
	b := NewBuilder(s, diag)

	g, err := b.Build(ctx, "tower-a", "circulation")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if g.NodeCount() != 4 {
		t.Errorf("Expected 4 nodes, got %d", g.NodeCount())
	}
	if diag.Count() != 0 {
		t.Errorf("Expected no diagnostics, got %v", diag.Drain())
	}

	_, err = b.Build(ctx, "missing", "circulation")
	if !errors.Is(err, ErrDataSourceUnavailable) {
		t.Errorf("Expected ErrDataSourceUnavailable, got %v", err)
	}
	if !errors.Is(err, store.ErrModelNotFound) {
		t.Errorf("Expected store cause to be preserved, got %v", err)
	}
	if diag.Count() != 1 {
		t.Errorf("Expected fatal build error to be reported as a diagnostic, got %d", diag.Count())
	}
}

func TestAnalyze(t *testing.T) {
	records := append(diamondRecords(),
		store.Record{Source: "Y", Target: "Z", Weight: 2},
	)
	g, err := FromRecords("m", "test", records, nil)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}

	report := Analyze(g)
	if report.Nodes != 6 || report.Connections != 5 {
		t.Errorf("Unexpected counts %+v", report)
	}
	if report.Connected() {
		t.Error("Expected graph with two regions to be reported as disconnected")
	}
	if len(report.Regions) != 2 {
		t.Fatalf("Expected 2 regions, got %d", len(report.Regions))
	}
	if strings.Join(report.Regions[0], ",") != "A,B,C,D" {
		t.Errorf("Expected largest region first, got %v", report.Regions[0])
	}
	if strings.Join(report.Regions[1], ",") != "Y,Z" {
		t.Errorf("Unexpected second region %v", report.Regions[1])
	}
}

func TestTopologyMatchesAdjacency(t *testing.T) {
	g, err := FromRecords("m", "test", diamondRecords(), nil)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}

	var topology gonum.Undirected = g.Topology()
	if n := topology.Nodes().Len(); n != g.NodeCount() {
		t.Errorf("Expected %d topology nodes, got %d", g.NodeCount(), n)
	}
	for _, e := range g.Edges() {
		if topology.EdgeBetween(int64(e.From), int64(e.To)) == nil {
			t.Errorf("Missing topology edge %s - %s", g.Name(e.From), g.Name(e.To))
		}
	}
	if !Analyze(g).Connected() {
		t.Error("Expected the diamond to be a single region")
	}
}
