// Package session owns the current circulation graph of a running process.
//
// A Session replaces the graph atomically on every successful build. Searches
// load the graph pointer once and run against that snapshot, so a rebuild
// never disturbs a search in flight. A failed build keeps the previous graph.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ritzau/circulation/pkg/diagnostics"
	"github.com/ritzau/circulation/pkg/graph"
	"github.com/ritzau/circulation/pkg/logging"
	"github.com/ritzau/circulation/pkg/metrics"
	"github.com/ritzau/circulation/pkg/pathfind"
	"github.com/ritzau/circulation/pkg/pubsub"
	"github.com/ritzau/circulation/pkg/store"
)

// ErrNoGraph is returned by searches before any build has succeeded
var ErrNoGraph = errors.New("session: no graph built")

// target names the model the session was last asked to build
type target struct {
	model string
	label string
}

// Session holds the graph, solver and diagnostics for one process
type Session struct {
	id        string
	store     store.Store
	builder   *graph.Builder
	solver    *pathfind.Solver
	diag      *diagnostics.Stack
	publisher pubsub.Publisher
	logger    *slog.Logger

	current atomic.Pointer[graph.Graph]
	target  atomic.Pointer[target]
	buildMu sync.Mutex
}

// Option configures a Session
type Option func(*settings)

type settings struct {
	publisher pubsub.Publisher
	solver    []pathfind.Option
	diag      *diagnostics.Stack
}

// WithPublisher publishes build progress on pubsub.TopicGraphStatus
func WithPublisher(p pubsub.Publisher) Option {
	return func(s *settings) {
		s.publisher = p
	}
}

// WithSolverOptions configures the route solver
func WithSolverOptions(opts ...pathfind.Option) Option {
	return func(s *settings) {
		s.solver = append(s.solver, opts...)
	}
}

// WithDiagnostics shares an existing diagnostics stack
func WithDiagnostics(d *diagnostics.Stack) Option {
	return func(s *settings) {
		s.diag = d
	}
}

// New creates a session reading connectivity from st
func New(st store.Store, opts ...Option) *Session {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.diag == nil {
		cfg.diag = diagnostics.NewStack()
	}

	id := uuid.NewString()
	return &Session{
		id:        id,
		store:     st,
		builder:   graph.NewBuilder(st, cfg.diag),
		solver:    pathfind.NewSolver(cfg.solver...),
		diag:      cfg.diag,
		publisher: cfg.publisher,
		logger:    logging.New("session").With("session", id[:8]),
	}
}

// ID returns the session's unique id
func (s *Session) ID() string {
	return s.id
}

// Solver returns the solver used for searches
func (s *Session) Solver() *pathfind.Solver {
	return s.solver
}

// Build reads modelID from the store and makes the result the current graph.
// label prefixes diagnostics and defaults to modelID. Builds are serialized.
// On failure the previous graph stays current.
func (s *Session) Build(ctx context.Context, modelID, label string) (*graph.Graph, error) {
	if label == "" {
		label = modelID
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	s.target.Store(&target{model: modelID, label: label})
	s.publish(pubsub.StateBuilding, pubsub.GraphStatus{
		State: pubsub.StateBuilding,
		Model: modelID,
		Label: label,
	})

	start := time.Now()
	g, err := s.builder.Build(ctx, modelID, label)
	if err != nil {
		metrics.RecordBuild(buildResult(err), time.Since(start), 0)
		s.publish(pubsub.StateError, pubsub.GraphStatus{
			State:   pubsub.StateError,
			Model:   modelID,
			Label:   label,
			Message: err.Error(),
		})
		if prev := s.current.Load(); prev != nil {
			s.logger.Warn("keeping previous graph", "model", prev.ModelID(), "error", err)
		}
		return nil, err
	}
	metrics.RecordBuild("ok", time.Since(start), g.Stats().Skipped)

	report := graph.Analyze(g)
	if !report.Connected() {
		s.logger.Warn("circulation graph has disconnected regions",
			"model", modelID,
			"regions", len(report.Regions),
			"largest", len(report.Regions[0]),
		)
	}

	s.current.Store(g)
	s.publish(pubsub.StateReady, pubsub.GraphStatus{
		State:       pubsub.StateReady,
		Model:       modelID,
		Label:       label,
		Nodes:       report.Nodes,
		Connections: report.Connections,
		Skipped:     g.Stats().Skipped,
		Regions:     len(report.Regions),
	})
	return g, nil
}

// Rebuild builds the model of the last Build call again
func (s *Session) Rebuild(ctx context.Context) (*graph.Graph, error) {
	t := s.target.Load()
	if t == nil {
		return nil, ErrNoGraph
	}
	return s.Build(ctx, t.model, t.label)
}

// Model returns the model id of the last Build call, or ""
func (s *Session) Model() string {
	if t := s.target.Load(); t != nil {
		return t.model
	}
	return ""
}

// Current returns the current graph, or nil before the first successful build
func (s *Session) Current() *graph.Graph {
	return s.current.Load()
}

// Route finds the shortest route on the current graph
func (s *Session) Route(ctx context.Context, start, end string) (pathfind.Outcome, error) {
	g := s.current.Load()
	if g == nil {
		return pathfind.Outcome{}, ErrNoGraph
	}

	began := time.Now()
	out, err := s.solver.Route(ctx, g, start, end)
	metrics.RecordSearch(metrics.KindShortest, searchStatus(out, err), time.Since(began))
	return out, err
}

// Routes finds up to k ranked routes on the current graph
func (s *Session) Routes(ctx context.Context, start, end string, k int) (pathfind.Outcome, error) {
	g := s.current.Load()
	if g == nil {
		return pathfind.Outcome{}, ErrNoGraph
	}

	began := time.Now()
	out, err := s.solver.Routes(ctx, g, start, end, k)
	metrics.RecordSearch(metrics.KindRanked, searchStatus(out, err), time.Since(began))
	return out, err
}

// Diagnostics returns the session's diagnostics stack
func (s *Session) Diagnostics() *diagnostics.Stack {
	return s.diag
}

// ResetDiagnostics discards every pending diagnostic
func (s *Session) ResetDiagnostics() {
	s.diag.Reset()
}

// Close releases the store
func (s *Session) Close() error {
	return s.store.Close()
}

func (s *Session) publish(eventType string, status pubsub.GraphStatus) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(pubsub.TopicGraphStatus, eventType, status); err != nil {
		s.logger.Debug("failed to publish graph status", "state", eventType, "error", err)
	}
}

func buildResult(err error) string {
	switch {
	case errors.Is(err, graph.ErrEmptyGraph):
		return "empty"
	case errors.Is(err, graph.ErrDataSourceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func searchStatus(out pathfind.Outcome, err error) string {
	if err != nil {
		return "aborted"
	}
	return out.Status.String()
}
