// Package lens narrows a serialized circulation graph to the neighbourhood of
// selected spaces, for clients that only want to draw part of a building.
package lens

import (
	"github.com/ritzau/circulation/pkg/model"
)

// distanceQueueNode represents a node in the BFS queue
type distanceQueueNode struct {
	nodeID   string
	distance int
}

// ComputeDistances calculates the hop count from each space to the nearest
// selected space. Unreachable spaces and unknown selections are absent.
func ComputeDistances(graph *model.Graph, selectedNodes []string) map[string]int {
	distances := make(map[string]int)

	known := make(map[string]bool, len(graph.Nodes))
	for _, node := range graph.Nodes {
		known[node.ID] = true
	}

	// Build adjacency list (undirected graph for distance computation)
	adjacency := buildAdjacencyList(graph)

	// Initialize BFS queue with selected nodes at distance 0
	queue := []distanceQueueNode{}
	for _, nodeID := range selectedNodes {
		if !known[nodeID] {
			continue
		}
		if _, seen := distances[nodeID]; seen {
			continue
		}
		distances[nodeID] = 0
		queue = append(queue, distanceQueueNode{nodeID: nodeID, distance: 0})
	}

	// BFS traversal
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range adjacency[current.nodeID] {
			if _, exists := distances[neighbor]; !exists {
				newDistance := current.distance + 1
				distances[neighbor] = newDistance
				queue = append(queue, distanceQueueNode{nodeID: neighbor, distance: newDistance})
			}
		}
	}

	return distances
}

// Focus returns the spaces within maxHops of any selected space and the
// connections between them, in the order of the input graph. A negative
// maxHops keeps every reachable space.
func Focus(graph *model.Graph, selectedNodes []string, maxHops int) *model.Graph {
	distances := ComputeDistances(graph, selectedNodes)
	visible := func(id string) bool {
		d, ok := distances[id]
		return ok && (maxHops < 0 || d <= maxHops)
	}

	out := model.NewGraph()
	for _, node := range graph.Nodes {
		if visible(node.ID) {
			out.AddNode(node)
		}
	}
	for _, edge := range graph.Edges {
		if visible(edge.Source) && visible(edge.Target) {
			out.AddEdge(edge)
		}
	}
	return out
}

// buildAdjacencyList creates an undirected adjacency list from graph edges
func buildAdjacencyList(graph *model.Graph) map[string][]string {
	adjacency := make(map[string][]string)

	for _, edge := range graph.Edges {
		// Add both directions (undirected for distance computation)
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		adjacency[edge.Target] = append(adjacency[edge.Target], edge.Source)
	}

	return adjacency
}
