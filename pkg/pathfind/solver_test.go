package pathfind

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/circulation/pkg/graph"
	"github.com/ritzau/circulation/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

func buildGraph(t *testing.T, records []store.Record) *graph.Graph {
	t.Helper()
	g, err := graph.FromRecords("test-model", "test", records, nil)
	require.NoError(t, err)
	return g
}

func diamond(t *testing.T) *graph.Graph {
	return buildGraph(t, []store.Record{
		{Source: "A", Target: "B", Weight: 1},
		{Source: "B", Target: "C", Weight: 1},
		{Source: "A", Target: "C", Weight: 3},
		{Source: "C", Target: "D", Weight: 1},
		{Source: "Y", Target: "Z", Weight: 1},
	})
}

// grid builds an n x n lattice with unit weights
func grid(t *testing.T, n int) *graph.Graph {
	var records []store.Record
	name := func(r, c int) string { return fmt.Sprintf("r%dc%d", r, c) }
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if c+1 < n {
				records = append(records, store.Record{Source: name(r, c), Target: name(r, c+1), Weight: 1})
			}
			if r+1 < n {
				records = append(records, store.Record{Source: name(r, c), Target: name(r+1, c), Weight: 1})
			}
		}
	}
	return buildGraph(t, records)
}

func TestShortestPathDiamond(t *testing.T) {
	g := diamond(t)

	p := ShortestPath(g, "A", "D")
	assert.Equal(t, []string{"A", "B", "C", "D"}, p.Nodes)
	assert.Equal(t, 3.0, p.Weight)
	assert.Equal(t, "A -> B -> C -> D (3)", p.String())
}

func TestShortestPathSameNode(t *testing.T) {
	g := diamond(t)

	for _, name := range []string{"A", "B", "C", "D", "Z"} {
		p := ShortestPath(g, name, name)
		assert.Equal(t, []string{name}, p.Nodes)
		assert.Equal(t, 0.0, p.Weight)
	}
}

func TestShortestPathUnknownAndDisconnected(t *testing.T) {
	g := diamond(t)

	assert.True(t, ShortestPath(g, "A", "Nowhere").Empty())
	assert.True(t, ShortestPath(g, "A", "Z").Empty())
	assert.Empty(t, KShortestPaths(g, "A", "Z", 3))
	assert.Empty(t, KShortestPaths(g, "Nowhere", "A", 3))
}

func TestRouteOutcomeDistinguishesFailures(t *testing.T) {
	g := diamond(t)
	s := NewSolver()
	ctx := context.Background()

	out, err := s.Route(ctx, g, "A", "Nowhere")
	require.NoError(t, err)
	assert.Equal(t, StatusNodeNotFound, out.Status)
	assert.Equal(t, []string{"Nowhere"}, out.Missing)
	assert.Empty(t, out.Paths)
	assert.ErrorIs(t, out.Err(), ErrNodeNotFound)
	assert.EqualError(t, out.Err(), "node not found: Nowhere")

	out, err = s.Route(ctx, g, "Ghost", "Ghost")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ghost"}, out.Missing)

	out, err = s.Route(ctx, g, "A", "Z")
	require.NoError(t, err)
	assert.Equal(t, StatusNoPath, out.Status)
	assert.Empty(t, out.Paths)
	assert.ErrorIs(t, out.Err(), ErrNoPath)

	out, err = s.Routes(ctx, g, "A", "D", 0)
	require.NoError(t, err)
	assert.Equal(t, StatusInvalidRank, out.Status)
	assert.ErrorIs(t, out.Err(), ErrInvalidRank)

	out, err = s.Route(ctx, g, "A", "D")
	require.NoError(t, err)
	assert.Equal(t, StatusFound, out.Status)
	assert.NoError(t, out.Err())
	assert.Equal(t, 3.0, out.Best().Weight)
}

func TestKShortestPathsDiamond(t *testing.T) {
	g := diamond(t)

	paths := KShortestPaths(g, "A", "D", 2)
	require.Len(t, paths, 2)
	assert.Equal(t, []string{"A", "B", "C", "D"}, paths[0].Nodes)
	assert.Equal(t, 3.0, paths[0].Weight)
	assert.Equal(t, []string{"A", "C", "D"}, paths[1].Nodes)
	assert.Equal(t, 4.0, paths[1].Weight)
}

func TestKShortestPathsExhausted(t *testing.T) {
	g := diamond(t)

	// Only two loopless routes exist from A to D
	paths := KShortestPaths(g, "A", "D", 10)
	assert.Len(t, paths, 2)

	paths = KShortestPaths(g, "A", "A", 3)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"A"}, paths[0].Nodes)

	assert.Empty(t, KShortestPaths(g, "A", "D", 0))
	assert.Empty(t, KShortestPaths(g, "A", "D", -2))
}

func TestKShortestOneMatchesShortest(t *testing.T) {
	g := grid(t, 5)

	shortest := ShortestPath(g, "r0c0", "r4c4")
	ranked := KShortestPaths(g, "r0c0", "r4c4", 1)
	require.Len(t, ranked, 1)
	assert.Equal(t, shortest, ranked[0])

	// The first rank of a longer search is the same route too
	ranked = KShortestPaths(g, "r0c0", "r4c4", 6)
	assert.Equal(t, shortest, ranked[0])
}

func TestTiesFollowRecordOrder(t *testing.T) {
	forward := buildGraph(t, []store.Record{
		{Source: "A", Target: "B", Weight: 1},
		{Source: "A", Target: "C", Weight: 1},
		{Source: "B", Target: "D", Weight: 1},
		{Source: "C", Target: "D", Weight: 1},
	})
	reversed := buildGraph(t, []store.Record{
		{Source: "A", Target: "C", Weight: 1},
		{Source: "A", Target: "B", Weight: 1},
		{Source: "C", Target: "D", Weight: 1},
		{Source: "B", Target: "D", Weight: 1},
	})

	assert.Equal(t, []string{"A", "B", "D"}, ShortestPath(forward, "A", "D").Nodes)
	assert.Equal(t, []string{"A", "C", "D"}, ShortestPath(reversed, "A", "D").Nodes)

	// Repeated searches give the same answer
	for i := 0; i < 20; i++ {
		assert.Equal(t, []string{"A", "B", "D"}, ShortestPath(forward, "A", "D").Nodes)
	}

	ranked := KShortestPaths(forward, "A", "D", 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, []string{"A", "C", "D"}, ranked[1].Nodes)
}

func TestZeroWeightConnections(t *testing.T) {
	g := buildGraph(t, []store.Record{
		{Source: "Door", Target: "Vestibule", Weight: 0},
		{Source: "Vestibule", Target: "Hall", Weight: 0},
		{Source: "Door", Target: "Hall", Weight: 0},
	})

	p := ShortestPath(g, "Door", "Hall")
	assert.Equal(t, 0.0, p.Weight)
	assert.Equal(t, []string{"Door", "Hall"}, p.Nodes)

	ranked := KShortestPaths(g, "Door", "Hall", 5)
	require.Len(t, ranked, 2)
	assert.Equal(t, []string{"Door", "Vestibule", "Hall"}, ranked[1].Nodes)
	assert.Equal(t, 0.0, ranked[1].Weight)
}

// simplePaths enumerates every loopless route and its weight by brute force
func simplePaths(g *graph.Graph, src, dst graph.NodeID) [][]graph.NodeID {
	var out [][]graph.NodeID
	visited := make([]bool, g.NodeCount())
	var walk func(u graph.NodeID, trail []graph.NodeID)
	walk = func(u graph.NodeID, trail []graph.NodeID) {
		trail = append(trail, u)
		if u == dst {
			out = append(out, append([]graph.NodeID(nil), trail...))
			return
		}
		visited[u] = true
		for _, e := range g.Neighbors(u) {
			if !visited[e.To] {
				walk(e.To, trail)
			}
		}
		visited[u] = false
	}
	walk(src, nil)
	return out
}

func routeWeight(g *graph.Graph, nodes []graph.NodeID) float64 {
	total := 0.0
	for i := 0; i+1 < len(nodes); i++ {
		w, _ := g.Weight(nodes[i], nodes[i+1])
		total += w
	}
	return total
}

func randomGraph(t *testing.T, rng *rand.Rand) *graph.Graph {
	n := 3 + rng.Intn(5)
	var records []store.Record
	// A spanning chain keeps most trials connected
	for i := 1; i < n; i++ {
		if rng.Intn(5) > 0 {
			records = append(records, store.Record{
				Source: fmt.Sprintf("n%d", i-1),
				Target: fmt.Sprintf("n%d", i),
				Weight: float64(1 + rng.Intn(9)),
			})
		}
	}
	for i := 0; i < n; i++ {
		a, b := rng.Intn(n), rng.Intn(n)
		if a == b {
			continue
		}
		records = append(records, store.Record{
			Source: fmt.Sprintf("n%d", a),
			Target: fmt.Sprintf("n%d", b),
			Weight: float64(rng.Intn(9)),
		})
	}
	if len(records) == 0 {
		records = append(records, store.Record{Source: "n0", Target: "n1", Weight: 1})
	}
	return buildGraph(t, records)
}

func TestShortestPathMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		g := randomGraph(t, rng)
		nodes := g.Nodes()
		src := nodes[rng.Intn(len(nodes))].ID
		dst := nodes[rng.Intn(len(nodes))].ID

		all := simplePaths(g, src, dst)
		p := ShortestPath(g, g.Name(src), g.Name(dst))

		if len(all) == 0 {
			assert.True(t, p.Empty(), "trial %d: expected no route", trial)
			continue
		}
		best := math.Inf(1)
		for _, nodes := range all {
			best = math.Min(best, routeWeight(g, nodes))
		}
		assert.Equal(t, best, p.Weight, "trial %d: %s", trial, p)

		// gonum's Dijkstra over the topology view agrees on the weight
		oracle := path.DijkstraFrom(simple.Node(src), g.Topology())
		assert.Equal(t, oracle.WeightTo(int64(dst)), p.Weight, "trial %d", trial)
	}
}

func TestKShortestPathsMatchBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1234))

	for trial := 0; trial < 150; trial++ {
		g := randomGraph(t, rng)
		nodes := g.Nodes()
		src := nodes[rng.Intn(len(nodes))].ID
		dst := nodes[rng.Intn(len(nodes))].ID
		k := 1 + rng.Intn(6)

		all := simplePaths(g, src, dst)
		weights := make([]float64, len(all))
		for i, nodes := range all {
			weights[i] = routeWeight(g, nodes)
		}
		sort.Float64s(weights)

		ranked := KShortestPaths(g, g.Name(src), g.Name(dst), k)
		expected := min(k, len(all))
		require.Len(t, ranked, expected, "trial %d", trial)

		seen := make(map[string]bool)
		for i, p := range ranked {
			assert.Equal(t, weights[i], p.Weight, "trial %d rank %d", trial, i+1)
			if i > 0 {
				assert.LessOrEqual(t, ranked[i-1].Weight, p.Weight, "trial %d not sorted", trial)
			}

			key := strings.Join(p.Nodes, ",")
			assert.False(t, seen[key], "trial %d duplicate route %s", trial, key)
			seen[key] = true

			// Loopless, and the reported weight matches the edges walked
			visited := make(map[string]bool)
			ids := make([]graph.NodeID, len(p.Nodes))
			for j, name := range p.Nodes {
				assert.False(t, visited[name], "trial %d route revisits %s", trial, name)
				visited[name] = true
				ids[j], _ = g.Resolve(name)
			}
			assert.Equal(t, routeWeight(g, ids), p.Weight)
		}
	}
}

func TestParallelSpursMatchSequential(t *testing.T) {
	g := grid(t, 6)
	ctx := context.Background()

	sequential, err := NewSolver().Routes(ctx, g, "r0c0", "r5c5", 12)
	require.NoError(t, err)
	parallel, err := NewSolver(WithParallelSpurs(4)).Routes(ctx, g, "r0c0", "r5c5", 12)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
	assert.Len(t, parallel.Paths, 12)
}

func TestSearchDoesNotModifyGraph(t *testing.T) {
	g := grid(t, 4)
	before := g.Edges()

	_ = KShortestPaths(g, "r0c0", "r3c3", 8)

	assert.Equal(t, before, g.Edges())
}

func TestCancellation(t *testing.T) {
	g := grid(t, 30)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSolver().Routes(ctx, g, "r0c0", "r29c29", 5)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewSolver(WithTimeout(time.Nanosecond)).Routes(context.Background(), g, "r0c0", "r29c29", 50)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Without a deadline the same search completes
	out, err := NewSolver().Route(context.Background(), g, "r0c0", "r29c29")
	require.NoError(t, err)
	assert.Equal(t, 58.0, out.Best().Weight)
}

// complete builds K_n with unit weights; every node pair is directly connected
func complete(t *testing.T, n int) *graph.Graph {
	var records []store.Record
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			records = append(records, store.Record{Source: fmt.Sprintf("n%d", i), Target: fmt.Sprintf("n%d", j), Weight: 1})
		}
	}
	return buildGraph(t, records)
}

func TestCancellationOnSmallDenseGraph(t *testing.T) {
	// Each spur search here pops far fewer nodes than the in-search check interval
	g := complete(t, 9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	began := time.Now()
	_, err := NewSolver().Routes(ctx, g, "n0", "n8", 20000)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(began), time.Second)

	began = time.Now()
	_, err = NewSolver(WithTimeout(20*time.Millisecond)).Routes(context.Background(), g, "n0", "n8", 20000)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(began), 2*time.Second)

	_, err = NewSolver(WithParallelSpurs(4), WithTimeout(20*time.Millisecond)).Routes(context.Background(), g, "n0", "n8", 20000)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
