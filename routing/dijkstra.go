package routing

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
)

var ErrNegativeLength = errors.New("routing: negative or NaN edge length")

// Path is an ordered walk through the graph. A single node is a valid path
// of distance 0.
type Path struct {
	Nodes    []int64
	Distance float64 // meters
}

type PriorityQueueItem struct {
	NodeID   int64
	Priority float64
	Index    int
}

// PriorityQueue is a min-heap on Priority, ties broken by NodeID.
type PriorityQueue []*PriorityQueueItem

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority < pq[j].Priority
	}
	return pq[i].NodeID < pq[j].NodeID
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*PriorityQueueItem)
	item.Index = n
	*pq = append(*pq, item)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	*pq = old[0 : n-1]
	return item
}

// ShortestPath runs Dijkstra on edge lengths from startNode to endNode.
//
// found is false when endNode cannot be reached; that is an expected outcome
// and err stays nil. err is set only when an endpoint is missing from the
// graph (ErrNodeNotFound) or a negative length is met (ErrNegativeLength).
func ShortestPath(graph *Graph, startNode, endNode int64) (path Path, found bool, err error) {
	if !graph.HasNode(startNode) {
		return Path{}, false, fmt.Errorf("start node %d: %w", startNode, ErrNodeNotFound)
	}
	if !graph.HasNode(endNode) {
		return Path{}, false, fmt.Errorf("end node %d: %w", endNode, ErrNodeNotFound)
	}
	if startNode == endNode {
		return Path{Nodes: []int64{startNode}, Distance: 0}, true, nil
	}

	distances := map[int64]float64{startNode: 0}
	previous := make(map[int64]int64)
	visited := make(map[int64]bool)

	openSet := &PriorityQueue{}
	heap.Init(openSet)
	heap.Push(openSet, &PriorityQueueItem{NodeID: startNode, Priority: 0})

	for openSet.Len() > 0 {
		current := heap.Pop(openSet).(*PriorityQueueItem)
		u := current.NodeID
		if visited[u] {
			continue
		}
		visited[u] = true
		if u == endNode {
			break
		}

		for _, edge := range graph.Edges[u] {
			v := edge.ToID
			if visited[v] {
				continue
			}
			if edge.Length < 0 || math.IsNaN(edge.Length) {
				return Path{}, false, fmt.Errorf("edge %s length %f: %w", edge.Ref(), edge.Length, ErrNegativeLength)
			}

			newDist := distances[u] + edge.Length
			existing, seen := distances[v]
			switch {
			case !seen || newDist < existing:
				distances[v] = newDist
				previous[v] = u
				heap.Push(openSet, &PriorityQueueItem{NodeID: v, Priority: newDist})
			case newDist == existing && u < previous[v]:
				previous[v] = u
			}
		}
	}

	if !visited[endNode] {
		return Path{}, false, nil
	}

	nodes := []int64{endNode}
	for current := endNode; current != startNode; {
		prev, ok := previous[current]
		if !ok {
			return Path{}, false, fmt.Errorf("path reconstruction failed at node %d: %w", current, ErrBrokenPath)
		}
		nodes = append(nodes, prev)
		current = prev
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}

	return Path{Nodes: nodes, Distance: distances[endNode]}, true, nil
}
