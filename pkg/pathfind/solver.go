// Package pathfind searches circulation graphs for the shortest route and
// for ranked alternative routes between two named spaces.
//
// The shortest route uses Dijkstra's algorithm over non-negative weights.
// Alternatives use Yen's algorithm: each new rank deviates from the previous
// route at every node in turn, with the deviation searched on a private mask
// of the shared graph. Searches never modify the graph.
//
// Two API levels exist. ShortestPath and KShortestPaths return empty results
// for both unknown names and unreachable targets. Solver.Route and
// Solver.Routes return an Outcome whose Status tells the two apart and honor
// cancellation and timeouts.
package pathfind

import (
	"context"
	"log/slog"
	"time"

	"github.com/ritzau/circulation/pkg/graph"
	"github.com/ritzau/circulation/pkg/logging"
)

// Solver runs route searches with fixed options. A Solver holds no per-search
// state and is safe for concurrent use.
type Solver struct {
	opts   Options
	logger *slog.Logger
}

// NewSolver creates a solver
func NewSolver(opts ...Option) *Solver {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return &Solver{
		opts:   o,
		logger: logging.New("pathfind"),
	}
}

// Options returns the solver's configuration
func (s *Solver) Options() Options {
	return s.opts
}

// ShortestPath returns the minimum-weight route from start to end.
// The result is empty when either name is unknown or no route exists.
// A start equal to end yields the single-node route with weight 0.
func ShortestPath(g *graph.Graph, start, end string) Path {
	outcome, _ := NewSolver().Route(context.Background(), g, start, end)
	return outcome.Best()
}

// KShortestPaths returns up to k distinct loopless routes from start to end
// in non-decreasing weight order. The result is empty when k < 1, either name
// is unknown, or no route exists.
func KShortestPaths(g *graph.Graph, start, end string, k int) PathSet {
	outcome, _ := NewSolver().Routes(context.Background(), g, start, end, k)
	return outcome.Paths
}

// Route finds the shortest route. The error is non-nil only when ctx is
// cancelled or the solver timeout expires.
func (s *Solver) Route(ctx context.Context, g *graph.Graph, start, end string) (Outcome, error) {
	return s.Routes(ctx, g, start, end, 1)
}

// Routes finds up to k ranked alternative routes. With k == 1 it is a single
// shortest-path search. The error is non-nil only when ctx is cancelled or the
// solver timeout expires.
func (s *Solver) Routes(ctx context.Context, g *graph.Graph, start, end string, k int) (Outcome, error) {
	if k < 1 {
		return Outcome{Status: StatusInvalidRank}, nil
	}

	src, srcOK := g.Resolve(start)
	dst, dstOK := g.Resolve(end)
	if !srcOK || !dstOK {
		var missing []string
		if !srcOK {
			missing = append(missing, start)
		}
		if !dstOK && end != start {
			missing = append(missing, end)
		}
		return Outcome{Status: StatusNodeNotFound, Missing: missing}, nil
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	began := time.Now()
	var routes []route
	var err error
	if k == 1 {
		var r route
		var ok bool
		r, ok, err = dijkstra(ctx, g, src, dst, nil)
		if ok {
			routes = []route{r}
		}
	} else {
		routes, err = s.kShortest(ctx, g, src, dst, k)
	}
	if err != nil {
		s.logger.Warn("route search aborted", "from", start, "to", end, "k", k, "error", err)
		return Outcome{}, err
	}

	if len(routes) == 0 {
		return Outcome{Status: StatusNoPath}, nil
	}

	paths := make(PathSet, len(routes))
	for i, r := range routes {
		paths[i] = toPath(g, r)
	}
	s.logger.Debug("route search complete",
		"from", start,
		"to", end,
		"k", k,
		"found", len(paths),
		"weight", paths[0].Weight,
		"durationMs", time.Since(began).Milliseconds(),
	)
	return Outcome{Status: StatusFound, Paths: paths}, nil
}

func toPath(g *graph.Graph, r route) Path {
	names := make([]string, len(r.nodes))
	for i, id := range r.nodes {
		names[i] = g.Name(id)
	}
	return Path{Nodes: names, Weight: r.weight()}
}
