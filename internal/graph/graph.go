// Package graph provides a small directed acyclic graph over integer IDs.
// The refactorer uses it to order build actions so that producers come
// before the actions that consume their outputs.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned when an edge would close a dependency cycle.
var ErrCycle = errors.New("cycle detected")

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrSelfEdge is returned when an edge would create a self-loop.
var ErrSelfEdge = errors.New("self-referencing edge")

// DAG is a directed acyclic graph. Edges point from a node to its
// dependencies: if A consumes something B produces, there is an edge A -> B.
type DAG struct {
	// adjacency maps node -> set of dependency IDs (forward edges).
	adjacency map[int]map[int]bool
	// reverse maps node -> set of dependent IDs (backward edges).
	reverse map[int]map[int]bool
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		adjacency: make(map[int]map[int]bool),
		reverse:   make(map[int]map[int]bool),
	}
}

// AddNode adds id if it is not already present.
func (d *DAG) AddNode(id int) {
	if _, ok := d.adjacency[id]; ok {
		return
	}
	d.adjacency[id] = make(map[int]bool)
	d.reverse[id] = make(map[int]bool)
}

// Has reports whether id is a node.
func (d *DAG) Has(id int) bool {
	_, ok := d.adjacency[id]
	return ok
}

// AddEdge records that from depends on to. Both nodes must exist. An edge
// that already exists is a no-op; one that would close a cycle is rejected
// with ErrCycle and leaves the graph unchanged.
func (d *DAG) AddEdge(from, to int) error {
	if from == to {
		return fmt.Errorf("%w: %d", ErrSelfEdge, from)
	}
	if !d.Has(from) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, from)
	}
	if !d.Has(to) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, to)
	}
	if d.adjacency[from][to] {
		return nil
	}
	if d.hasPath(to, from) {
		return fmt.Errorf("%w: edge %d -> %d", ErrCycle, from, to)
	}
	d.adjacency[from][to] = true
	d.reverse[to][from] = true
	return nil
}

// TopologicalSort returns node IDs with every dependency before its
// dependents. Ties are broken by ascending ID so the order is deterministic.
func (d *DAG) TopologicalSort() ([]int, error) {
	inDegree := make(map[int]int, len(d.adjacency))
	var queue []int
	for id, deps := range d.adjacency {
		inDegree[id] = len(deps)
		if len(deps) == 0 {
			queue = append(queue, id)
		}
	}
	sort.Ints(queue)

	sorted := make([]int, 0, len(d.adjacency))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		var freed []int
		for dependent := range d.reverse[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Ints(freed)
		queue = append(queue, freed...)
		sort.Ints(queue)
	}

	if len(sorted) != len(d.adjacency) {
		return nil, fmt.Errorf("%w: not all nodes could be ordered (%d of %d)",
			ErrCycle, len(sorted), len(d.adjacency))
	}
	return sorted, nil
}

// hasPath reports whether there is a directed path from src to dst.
func (d *DAG) hasPath(src, dst int) bool {
	visited := make(map[int]bool)
	queue := []int{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range d.adjacency[cur] {
			if dep == dst {
				return true
			}
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return false
}
