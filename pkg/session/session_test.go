package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ritzau/circulation/pkg/graph"
	"github.com/ritzau/circulation/pkg/pathfind"
	"github.com/ritzau/circulation/pkg/pubsub"
	"github.com/ritzau/circulation/pkg/store"
)

func officeRecords() []store.Record {
	return []store.Record{
		{Source: "Lobby", Target: "Corridor", Weight: 1},
		{Source: "Corridor", Target: "Kitchen", Weight: 1},
		{Source: "Lobby", Target: "Kitchen", Weight: 3},
		{Source: "Kitchen", Target: "Terrace", Weight: 1},
	}
}

func newOfficeSession(t *testing.T, opts ...Option) (*Session, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	if err := st.Put(context.Background(), "office", officeRecords()); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
	return New(st, opts...), st
}

func TestSearchBeforeBuild(t *testing.T) {
	s, _ := newOfficeSession(t)

	if s.Current() != nil {
		t.Fatal("Expected no graph before the first build")
	}
	if _, err := s.Route(context.Background(), "Lobby", "Terrace"); !errors.Is(err, ErrNoGraph) {
		t.Errorf("Expected ErrNoGraph, got %v", err)
	}
	if _, err := s.Rebuild(context.Background()); !errors.Is(err, ErrNoGraph) {
		t.Errorf("Expected ErrNoGraph from Rebuild, got %v", err)
	}
}

func TestBuildAndRoute(t *testing.T) {
	s, _ := newOfficeSession(t)
	ctx := context.Background()

	g, err := s.Build(ctx, "office", "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g != s.Current() {
		t.Error("Expected built graph to become current")
	}
	if s.Model() != "office" || g.Label() != "office" {
		t.Errorf("Expected model and label office, got %q/%q", s.Model(), g.Label())
	}

	out, err := s.Route(ctx, "Lobby", "Terrace")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if got := strings.Join(out.Best().Nodes, ","); got != "Lobby,Corridor,Kitchen,Terrace" {
		t.Errorf("Unexpected route %s", got)
	}

	out, err = s.Routes(ctx, "Lobby", "Terrace", 2)
	if err != nil {
		t.Fatalf("Routes failed: %v", err)
	}
	if len(out.Paths) != 2 || out.Paths[1].Weight != 4 {
		t.Errorf("Expected second route with weight 4, got %v", out.Paths)
	}

	out, err = s.Route(ctx, "Lobby", "Basement")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if out.Status != pathfind.StatusNodeNotFound {
		t.Errorf("Expected node_not_found, got %s", out.Status)
	}
}

func TestFailedRebuildKeepsPreviousGraph(t *testing.T) {
	s, st := newOfficeSession(t)
	ctx := context.Background()

	first, err := s.Build(ctx, "office", "Office")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Every row is malformed now
	if err := st.Put(ctx, "office", []store.Record{{Source: "Lobby", Target: "Lobby", Weight: 1}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := s.Rebuild(ctx); !errors.Is(err, graph.ErrEmptyGraph) {
		t.Fatalf("Expected ErrEmptyGraph, got %v", err)
	}
	if s.Current() != first {
		t.Error("Expected previous graph to stay current after a failed rebuild")
	}

	if _, err := s.Build(ctx, "missing", ""); !errors.Is(err, graph.ErrDataSourceUnavailable) {
		t.Fatalf("Expected ErrDataSourceUnavailable, got %v", err)
	}
	if s.Current() != first {
		t.Error("Expected previous graph to stay current after an unavailable model")
	}

	// One skipped record, one empty graph, one unavailable source
	if got := s.Diagnostics().Count(); got != 3 {
		t.Errorf("Expected 3 diagnostics, got %d: %v", got, s.Diagnostics().Drain())
	}
	msg, _ := s.Diagnostics().Pop()
	if !strings.HasPrefix(msg, "missing:") {
		t.Errorf("Expected newest diagnostic first, got %q", msg)
	}

	s.ResetDiagnostics()
	if s.Diagnostics().Count() != 0 {
		t.Error("Expected diagnostics to be empty after reset")
	}
}

func TestBuildPublishesStatus(t *testing.T) {
	pub := pubsub.NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub, err := pub.Subscribe(ctx, pubsub.TopicGraphStatus)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	s, _ := newOfficeSession(t, WithPublisher(pub))
	if _, err := s.Build(context.Background(), "office", ""); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var types []string
	for len(types) < 2 {
		select {
		case event := <-sub.Events():
			types = append(types, event.Type)
		case <-ctx.Done():
			t.Fatalf("Timeout waiting for status events, got %v", types)
		}
	}
	if types[0] != pubsub.StateBuilding || types[1] != pubsub.StateReady {
		t.Errorf("Expected building then ready, got %v", types)
	}
}

func TestSearchesDuringRebuild(t *testing.T) {
	s, _ := newOfficeSession(t, WithSolverOptions(pathfind.WithParallelSpurs(2)))
	ctx := context.Background()
	if _, err := s.Build(ctx, "office", ""); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			out, err := s.Routes(ctx, "Lobby", "Terrace", 3)
			if err != nil {
				errs <- err
				return
			}
			if out.Best().Weight != 3 {
				errs <- errors.New("unexpected best weight")
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := s.Rebuild(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
