package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ritzau/circulation/pkg/graph"
	"github.com/ritzau/circulation/pkg/pathfind"
	"github.com/ritzau/circulation/pkg/store"
)

func buildTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.FromRecords("hq", "HQ", []store.Record{
		{Source: "Lobby", Target: "Hall", Weight: 2},
		{Source: "Hall", Target: "Office", Weight: 1},
		{Source: "Lobby", Target: "Hall", Weight: 5},
		{Source: "Shed", Target: "Yard", Weight: 1},
	}, nil)
	if err != nil {
		t.Fatalf("FromRecords failed: %v", err)
	}
	return g
}

func TestFromGraph(t *testing.T) {
	out := FromGraph(buildTestGraph(t))

	if len(out.Nodes) != 5 {
		t.Fatalf("Expected 5 nodes, got %d", len(out.Nodes))
	}
	if len(out.Edges) != 3 {
		t.Fatalf("Expected each connection once, got %d edges", len(out.Edges))
	}
	if out.Edges[0].Source != "Lobby" || out.Edges[0].Target != "Hall" || out.Edges[0].Weight != 2 {
		t.Errorf("Unexpected first edge %+v", out.Edges[0])
	}

	parents := make(map[string]string)
	for _, n := range out.Nodes {
		parents[n.ID] = n.Parent
	}
	if parents["Lobby"] != "" || parents["Shed"] != "region-1" || parents["Yard"] != "region-1" {
		t.Errorf("Unexpected region grouping %v", parents)
	}

	if empty := FromGraph(nil); len(empty.Nodes) != 0 || empty.Edges == nil {
		t.Error("Expected an empty, non-nil graph for nil input")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(buildTestGraph(t))

	if s.Model != "hq" || s.Label != "HQ" {
		t.Errorf("Unexpected identity %q/%q", s.Model, s.Label)
	}
	if s.Nodes != 5 || s.Connections != 3 || s.Records != 4 || s.Duplicates != 1 {
		t.Errorf("Unexpected counts %+v", s)
	}
	if s.Connected || len(s.Regions) != 2 {
		t.Errorf("Expected two regions, got %v", s.Regions)
	}
}

func TestRouteResponseJSON(t *testing.T) {
	resp := FromOutcome("Lobby", "Moon", pathfind.Outcome{
		Status:  pathfind.StatusNodeNotFound,
		Missing: []string{"Moon"},
	})

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got := string(data)
	for _, want := range []string{`"status":"node_not_found"`, `"paths":[]`, `"missing":["Moon"]`} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %s in %s", want, got)
		}
	}

	resp = FromOutcome("Lobby", "Office", pathfind.Outcome{
		Status: pathfind.StatusFound,
		Paths:  pathfind.PathSet{{Nodes: []string{"Lobby", "Hall", "Office"}, Weight: 3}},
	})
	if resp.Paths[0].Rank != 1 || resp.Paths[0].Weight != 3 {
		t.Errorf("Unexpected ranked path %+v", resp.Paths[0])
	}
}
