package pathfind

import (
	"container/heap"
	"context"
	"strconv"

	"github.com/ritzau/circulation/pkg/graph"
	"golang.org/x/sync/errgroup"
)

// candidate is a route waiting to be accepted
type candidate struct {
	route route
	seq   int
}

// candidateQueue orders pending routes by weight, then by discovery order
type candidateQueue []candidate

func (q candidateQueue) Len() int { return len(q) }

func (q candidateQueue) Less(i, j int) bool {
	wi, wj := q[i].route.weight(), q[j].route.weight()
	if wi != wj {
		return wi < wj
	}
	return q[i].seq < q[j].seq
}

func (q candidateQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *candidateQueue) Push(x any) { *q = append(*q, x.(candidate)) }

func (q *candidateQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// routeKey identifies a route by its node sequence
func routeKey(nodes []graph.NodeID) string {
	buf := make([]byte, 0, len(nodes)*4)
	for i, id := range nodes {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(id), 10)
	}
	return string(buf)
}

func hasPrefix(nodes, prefix []graph.NodeID) bool {
	if len(nodes) < len(prefix) {
		return false
	}
	for i := range prefix {
		if nodes[i] != prefix[i] {
			return false
		}
	}
	return true
}

// kShortest runs Yen's algorithm and returns up to k loopless routes in
// non-decreasing weight order. Fewer than k routes are returned when the
// graph runs out of distinct loopless routes.
func (s *Solver) kShortest(ctx context.Context, g *graph.Graph, src, dst graph.NodeID, k int) ([]route, error) {
	first, ok, err := dijkstra(ctx, g, src, dst, nil)
	if err != nil || !ok {
		return nil, err
	}

	accepted := []route{first}
	known := map[string]struct{}{routeKey(first.nodes): {}}
	pending := make(candidateQueue, 0)
	seq := 0

	for len(accepted) < k {
		// Short searches never reach the in-search check, so check once per rank too
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spurs, err := s.spurRoutes(ctx, g, dst, accepted)
		if err != nil {
			return nil, err
		}

		// Single aggregation point: candidates merge in spur order once every search of the rank is done
		for _, r := range spurs {
			if r == nil {
				continue
			}
			key := routeKey(r.nodes)
			if _, dup := known[key]; dup {
				continue
			}
			known[key] = struct{}{}
			seq++
			heap.Push(&pending, candidate{route: *r, seq: seq})
		}

		if pending.Len() == 0 {
			s.logger.Debug("route alternatives exhausted", "found", len(accepted), "requested", k)
			break
		}
		next := heap.Pop(&pending).(candidate)
		accepted = append(accepted, next.route)
	}

	return accepted, nil
}

// spurRoutes deviates from the most recently accepted route at each of its
// nodes except the last. Slot i holds the route that deviates at node i, or nil.
func (s *Solver) spurRoutes(ctx context.Context, g *graph.Graph, dst graph.NodeID, accepted []route) ([]*route, error) {
	last := accepted[len(accepted)-1]
	results := make([]*route, len(last.nodes)-1)

	if s.opts.Parallel <= 1 || len(results) < 2 {
		for i := range results {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := spurSearch(ctx, g, dst, accepted, i)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.opts.Parallel)
	for i := range results {
		eg.Go(func() error {
			r, err := spurSearch(egctx, g, dst, accepted, i)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// spurSearch builds the candidate that shares the first i+1 nodes of the last
// accepted route and then leaves it. Each call uses its own mask, so calls
// may run concurrently against the shared graph.
func spurSearch(ctx context.Context, g *graph.Graph, dst graph.NodeID, accepted []route, i int) (*route, error) {
	last := accepted[len(accepted)-1]
	root := last.nodes[:i+1]
	spur := root[i]

	m := newMask()
	// Block every accepted route that shares this root from leaving it the same way
	for _, p := range accepted {
		if len(p.nodes) > i+1 && hasPrefix(p.nodes, root) {
			m.hideEdge(p.nodes[i], p.nodes[i+1])
		}
	}
	// The root is already walked; revisiting it would form a loop
	for _, id := range root[:i] {
		m.hideNode(id)
	}

	tail, ok, err := dijkstra(ctx, g, spur, dst, m)
	if err != nil || !ok {
		return nil, err
	}

	base := last.cum[i]
	r := &route{
		nodes: make([]graph.NodeID, 0, i+len(tail.nodes)),
		cum:   make([]float64, 0, i+len(tail.nodes)),
	}
	r.nodes = append(r.nodes, root[:i]...)
	r.cum = append(r.cum, last.cum[:i]...)
	for j, id := range tail.nodes {
		r.nodes = append(r.nodes, id)
		r.cum = append(r.cum, base+tail.cum[j])
	}
	return r, nil
}
