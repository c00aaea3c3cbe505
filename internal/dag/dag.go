// Package dag provides the directed acyclic graph behind a pipeline's tasks.
// Nodes keep their insertion order, so every traversal is deterministic
// without relying on map iteration or alphabetical sorting.
package dag

import (
	"fmt"
	"slices"
)

// Node is a vertex of the graph.
type Node[T any] struct {
	// ID is the unique identifier (task id)
	ID string
	// Data holds the node payload
	Data T
}

// Graph is a directed acyclic graph of tasks.
type Graph[T any] struct {
	order   []string
	nodes   map[string]*Node[T]
	edges   map[string][]string // parent -> children (downstream)
	parents map[string][]string // child -> parents (upstream)
}

// NewGraph creates a new empty graph.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:   make(map[string]*Node[T]),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node. Node ids must be unique.
func (g *Graph[T]) AddNode(id string, data T) error {
	if id == "" {
		return fmt.Errorf("node id is empty")
	}
	if _, exists := g.nodes[id]; exists {
		return fmt.Errorf("node %q already exists", id)
	}
	g.nodes[id] = &Node[T]{ID: id, Data: data}
	g.order = append(g.order, id)
	return nil
}

// AddEdge adds a directed edge from parent to child (child runs after parent).
func (g *Graph[T]) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// Node returns a node by id.
func (g *Graph[T]) Node(id string) (*Node[T], bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Parents returns the upstream ids of a node in edge insertion order.
func (g *Graph[T]) Parents(id string) []string {
	return slices.Clone(g.parents[id])
}

// Children returns the downstream ids of a node in edge insertion order.
func (g *Graph[T]) Children(id string) []string {
	return slices.Clone(g.edges[id])
}

// Nodes returns all nodes in insertion order.
func (g *Graph[T]) Nodes() []*Node[T] {
	nodes := make([]*Node[T], 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph[T]) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph[T]) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph[T]) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	via := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				via[childID] = id
				if dfs(childID) {
					return true
				}
			} else if onStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = via[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	for _, id := range g.order {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// TopologicalSort returns nodes with every upstream before its downstream.
// Ties are broken by insertion order.
func (g *Graph[T]) TopologicalSort() ([]*Node[T], error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	visited := make(map[string]bool)
	result := make([]*Node[T], 0, len(g.order))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parentID := range g.parents[id] {
			visit(parentID)
		}
		result = append(result, g.nodes[id])
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// ExecutionLevels groups node ids by depth. Level 0 holds the roots;
// every node sits one level below its deepest upstream.
func (g *Graph[T]) ExecutionLevels() ([][]string, error) {
	sorted, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(sorted))
	var levels [][]string
	for _, node := range sorted {
		level := 0
		for _, parentID := range g.parents[node.ID] {
			if d := depth[parentID] + 1; d > level {
				level = d
			}
		}
		depth[node.ID] = level
		for len(levels) <= level {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], node.ID)
	}
	return levels, nil
}

// Roots returns nodes with no upstream, in insertion order.
func (g *Graph[T]) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes with no downstream, in insertion order.
func (g *Graph[T]) Leaves() []string {
	var leaves []string
	for _, id := range g.order {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}
