package pathfind

import (
	"container/heap"
	"context"
	"math"

	"github.com/ritzau/circulation/pkg/graph"
)

// cancelCheckInterval is how many heap pops happen between context checks
const cancelCheckInterval = 256

// mask hides nodes and directed edges from one search without touching the graph.
// A nil mask hides nothing.
type mask struct {
	nodes map[graph.NodeID]struct{}
	edges map[[2]graph.NodeID]struct{}
}

func newMask() *mask {
	return &mask{
		nodes: make(map[graph.NodeID]struct{}),
		edges: make(map[[2]graph.NodeID]struct{}),
	}
}

func (m *mask) hideNode(id graph.NodeID) {
	m.nodes[id] = struct{}{}
}

func (m *mask) hideEdge(from, to graph.NodeID) {
	m.edges[[2]graph.NodeID{from, to}] = struct{}{}
}

func (m *mask) nodeHidden(id graph.NodeID) bool {
	if m == nil {
		return false
	}
	_, hidden := m.nodes[id]
	return hidden
}

func (m *mask) edgeHidden(from, to graph.NodeID) bool {
	if m == nil {
		return false
	}
	_, hidden := m.edges[[2]graph.NodeID{from, to}]
	return hidden
}

// route is a path in id space with the cumulative weight at each node
type route struct {
	nodes []graph.NodeID
	cum   []float64 // cum[i] is the weight from nodes[0] to nodes[i]
}

func (r route) weight() float64 {
	if len(r.cum) == 0 {
		return 0
	}
	return r.cum[len(r.cum)-1]
}

// frontierItem is an entry in the lazy decrease-key priority queue
type frontierItem struct {
	node graph.NodeID
	dist float64
	seq  int // push order, breaks distance ties deterministically
}

type frontier []frontierItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(frontierItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// dijkstra finds the minimum-weight route from src to dst avoiding whatever m hides.
//
// Distances only improve on a strictly shorter path, so among equal-weight
// routes the one discovered first wins. Discovery follows adjacency order,
// which is record order, so results are reproducible.
//
// Returns ok=false when dst is unreachable. The only error is ctx.Err().
func dijkstra(ctx context.Context, g *graph.Graph, src, dst graph.NodeID, m *mask) (route, bool, error) {
	if err := ctx.Err(); err != nil {
		return route{}, false, err
	}
	if m.nodeHidden(src) || m.nodeHidden(dst) {
		return route{}, false, nil
	}
	if src == dst {
		return route{nodes: []graph.NodeID{src}, cum: []float64{0}}, true, nil
	}

	n := g.NodeCount()
	dist := make([]float64, n)
	prev := make([]graph.NodeID, n)
	done := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[src] = 0

	pq := make(frontier, 0, n)
	seq := 0
	heap.Push(&pq, frontierItem{node: src, dist: 0, seq: seq})

	pops := 0
	for pq.Len() > 0 {
		pops++
		if pops%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return route{}, false, err
			}
		}

		item := heap.Pop(&pq).(frontierItem)
		u := item.node
		if done[u] {
			continue
		}
		done[u] = true
		if u == dst {
			break
		}

		for i := 0; i < g.OutDegree(u); i++ {
			e := g.EdgeAt(u, i)
			v := e.To
			if done[v] || m.nodeHidden(v) || m.edgeHidden(u, v) {
				continue
			}
			candidate := dist[u] + e.Weight
			if candidate < dist[v] {
				dist[v] = candidate
				prev[v] = u
				seq++
				heap.Push(&pq, frontierItem{node: v, dist: candidate, seq: seq})
			}
		}
	}

	if !done[dst] {
		return route{}, false, nil
	}

	var reversed []graph.NodeID
	for v := dst; v != -1; v = prev[v] {
		reversed = append(reversed, v)
	}
	r := route{
		nodes: make([]graph.NodeID, len(reversed)),
		cum:   make([]float64, len(reversed)),
	}
	for i := range reversed {
		id := reversed[len(reversed)-1-i]
		r.nodes[i] = id
		r.cum[i] = dist[id]
	}
	return r, true, nil
}
