package graph

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ritzau/circulation/pkg/diagnostics"
	"github.com/ritzau/circulation/pkg/logging"
	"github.com/ritzau/circulation/pkg/store"
	"gonum.org/v1/gonum/graph/simple"
)

// Builder reads connectivity records from a store and assembles graphs
type Builder struct {
	store  store.Store
	diag   *diagnostics.Stack
	logger *slog.Logger
}

// NewBuilder creates a builder. diag receives one message per skipped record and per fatal build error.
func NewBuilder(s store.Store, diag *diagnostics.Stack) *Builder {
	if diag == nil {
		diag = diagnostics.NewStack()
	}
	return &Builder{
		store:  s,
		diag:   diag,
		logger: logging.New("graph.builder"),
	}
}

// Build reads all records of modelID and returns a new graph.
//
// Fails with ErrDataSourceUnavailable when the store cannot resolve the model
// and with ErrEmptyGraph when no record survives validation. Malformed records
// are skipped and reported on the diagnostics stack.
func (b *Builder) Build(ctx context.Context, modelID, label string) (*Graph, error) {
	start := time.Now()
	b.logger.Info("building circulation graph", "model", modelID, "label", label, "source", b.store.Name())

	records, err := b.store.Records(ctx, modelID)
	if err != nil {
		err = fmt.Errorf("%w: model %q: %w", ErrDataSourceUnavailable, modelID, err)
		b.diag.Push(fmt.Sprintf("%s: %v", label, err))
		b.logger.Error("failed to read connectivity", "model", modelID, "error", err)
		return nil, err
	}

	g, err := FromRecords(modelID, label, records, b.diag)
	if err != nil {
		b.logger.Error("graph build failed", "model", modelID, "error", err)
		return nil, err
	}

	b.logger.Info("graph built",
		"model", modelID,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"skipped", g.stats.Skipped,
		"durationMs", time.Since(start).Milliseconds(),
	)
	return g, nil
}

// FromRecords assembles a graph from records already in memory.
// diag may be nil when the caller does not want diagnostics.
func FromRecords(modelID, label string, records []store.Record, diag *diagnostics.Stack) (*Graph, error) {
	a := newAssembler(modelID, label)
	a.stats.Records = len(records)

	for i, r := range records {
		if err := r.Validate(); err != nil {
			a.stats.Skipped++
			if diag != nil {
				diag.Push(fmt.Sprintf("%s: %v", label,
					fmt.Errorf("%w: record %d (%q -> %q): %v", ErrMalformedRecord, i+1, r.Source, r.Target, err)))
			}
			continue
		}
		a.addConnection(r.Source, r.Target, r.Weight)
	}

	if a.connections == 0 {
		err := fmt.Errorf("%w: model %q has %d records, %d malformed", ErrEmptyGraph, modelID, a.stats.Records, a.stats.Skipped)
		if diag != nil {
			diag.Push(fmt.Sprintf("%s: %v", label, err))
		}
		return nil, err
	}

	return a.finish(), nil
}

// assembler accumulates nodes and edges for a graph under construction
type assembler struct {
	g           *Graph
	pairs       map[[2]NodeID]int // (from, to) -> position in adjacency[from]
	connections int
	stats       BuildStats
}

func newAssembler(modelID, label string) *assembler {
	return &assembler{
		g: &Graph{
			modelID:  modelID,
			label:    label,
			index:    newPathIndex(),
			topology: simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		},
		pairs: make(map[[2]NodeID]int),
	}
}

// addNode registers a name and returns its id
func (a *assembler) addNode(name string) NodeID {
	if id, exists := a.g.index.ids[name]; exists {
		return id
	}

	id := NodeID(len(a.g.nodes))
	a.g.nodes = append(a.g.nodes, Node{ID: id, Name: name})
	a.g.adjacency = append(a.g.adjacency, nil)
	a.g.index.ids[name] = id
	a.g.index.names = append(a.g.index.names, name)
	a.g.topology.AddNode(simple.Node(id))
	return id
}

// addConnection adds the edge pair for one record. A repeated connection keeps the lower weight.
func (a *assembler) addConnection(source, target string, weight float64) {
	from := a.addNode(source)
	to := a.addNode(target)

	if pos, exists := a.pairs[[2]NodeID{from, to}]; exists {
		a.stats.Duplicates++
		if weight < a.g.adjacency[from][pos].Weight {
			a.g.adjacency[from][pos].Weight = weight
			back := a.pairs[[2]NodeID{to, from}]
			a.g.adjacency[to][back].Weight = weight
			a.setTopologyEdge(from, to, weight)
		}
		return
	}

	a.pairs[[2]NodeID{from, to}] = len(a.g.adjacency[from])
	a.g.adjacency[from] = append(a.g.adjacency[from], Edge{From: from, To: to, Weight: weight})
	a.pairs[[2]NodeID{to, from}] = len(a.g.adjacency[to])
	a.g.adjacency[to] = append(a.g.adjacency[to], Edge{From: to, To: from, Weight: weight})

	a.g.edgeCount += 2
	a.connections++
	a.setTopologyEdge(from, to, weight)
}

func (a *assembler) setTopologyEdge(from, to NodeID, weight float64) {
	a.g.topology.SetWeightedEdge(simple.WeightedEdge{
		F: simple.Node(from),
		T: simple.Node(to),
		W: weight,
	})
}

func (a *assembler) finish() *Graph {
	a.g.stats = a.stats
	return a.g
}
