// Package graph maintains the eager dependency edges between provider
// registrations and answers the two questions the container asks at build
// time: is the non-lazy part of the graph acyclic, and in which order should
// a dry run construct everything so that dependencies come first.
//
// Lazy references never become edges here; they are exactly the edges the
// container is allowed to leave dangling until first use.
package graph

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// NodeKey identifies a registration by its owning module and token.
type NodeKey struct {
	Module string
	Token  string
}

// String returns the node in module:token form.
func (k NodeKey) String() string {
	return k.Module + ":" + k.Token
}

// Graph is a directed graph of provider registrations. Edges point from a
// registration to the registrations it depends on.
type Graph struct {
	mu    sync.RWMutex
	nodes map[NodeKey]struct{}
	edges map[NodeKey][]NodeKey
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[NodeKey]struct{}),
		edges: make(map[NodeKey][]NodeKey),
	}
}

// AddNode adds a node without edges. Adding an existing node is a no-op.
func (g *Graph) AddNode(key NodeKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[key] = struct{}{}
}

// AddEdge records that from depends on to. Both endpoints are added to the
// node set if they are not present yet.
func (g *Graph) AddEdge(from, to NodeKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}
	g.edges[from] = append(g.edges[from], to)
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the direct dependencies of key.
func (g *Graph) Dependencies(key NodeKey) []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()
	deps := make([]NodeKey, len(g.edges[key]))
	copy(deps, g.edges[key])
	sortKeys(deps)
	return deps
}

// Dependents returns the nodes that depend on key.
func (g *Graph) Dependents(key NodeKey) []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var result []NodeKey
	for from, tos := range g.edges {
		for _, to := range tos {
			if to == key {
				result = append(result, from)
				break
			}
		}
	}
	sortKeys(result)
	return result
}

// DetectCycles walks the graph and returns a CycleError describing the first
// cycle found, or nil if the graph is acyclic.
func (g *Graph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.detectCyclesLocked()
}

func (g *Graph) detectCyclesLocked() error {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[NodeKey]int, len(g.nodes))
	var path []NodeKey

	var visit func(key NodeKey) *CycleError
	visit = func(key NodeKey) *CycleError {
		state[key] = visiting
		path = append(path, key)

		for _, dep := range g.sortedEdges(key) {
			switch state[dep] {
			case visiting:
				// Slice the current path from the first occurrence of dep
				// so the reported cycle starts and ends at the same node.
				start := 0
				for i, n := range path {
					if n == dep {
						start = i
						break
					}
				}
				cycle := make([]NodeKey, len(path)-start)
				copy(cycle, path[start:])
				return &CycleError{Node: dep, Path: cycle}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		state[key] = done
		return nil
	}

	for _, key := range g.sortedNodes() {
		if state[key] == unvisited {
			if err := visit(key); err != nil {
				return err
			}
		}
	}

	return nil
}

// TopologicalSort returns all nodes ordered so that every node appears after
// its dependencies. The order is deterministic: ties are broken by node name.
func (g *Graph) TopologicalSort() ([]NodeKey, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Kahn's algorithm over the reversed edges: a node is ready once all of
	// its dependencies have been emitted.
	remaining := make(map[NodeKey]int, len(g.nodes))
	dependents := make(map[NodeKey][]NodeKey, len(g.nodes))
	for node := range g.nodes {
		remaining[node] = 0
	}
	for from, tos := range g.edges {
		for _, to := range tos {
			remaining[from]++
			dependents[to] = append(dependents[to], from)
		}
	}

	var queue []NodeKey
	for node, n := range remaining {
		if n == 0 {
			queue = append(queue, node)
		}
	}
	sortKeys(queue)

	result := make([]NodeKey, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		ready := make([]NodeKey, 0, len(dependents[current]))
		for _, dep := range dependents[current] {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sortKeys(ready)
		queue = append(queue, ready...)
	}

	if len(result) != len(g.nodes) {
		// The unsorted remainder contains at least one cycle; report it.
		if err := g.detectCyclesLocked(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("graph: %d of %d nodes could not be ordered", len(g.nodes)-len(result), len(g.nodes))
	}

	return result, nil
}

// WriteDOT writes the graph in Graphviz DOT format, one box per
// registration, dependencies left to right.
func (g *Graph) WriteDOT(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, err := fmt.Fprintln(w, "digraph providers {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box];")

	ids := make(map[NodeKey]string, len(g.nodes))
	for i, node := range g.sortedNodes() {
		id := fmt.Sprintf("n%d", i)
		ids[node] = id
		fmt.Fprintf(w, "  %s [label=%q];\n", id, node.String())
	}

	for _, from := range g.sortedNodes() {
		for _, to := range g.sortedEdges(from) {
			fmt.Fprintf(w, "  %s -> %s;\n", ids[from], ids[to])
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// sortedNodes returns all nodes in name order. Caller must hold the lock.
func (g *Graph) sortedNodes() []NodeKey {
	nodes := make([]NodeKey, 0, len(g.nodes))
	for node := range g.nodes {
		nodes = append(nodes, node)
	}
	sortKeys(nodes)
	return nodes
}

// sortedEdges returns the dependencies of key in name order. Caller must
// hold the lock.
func (g *Graph) sortedEdges(key NodeKey) []NodeKey {
	edges := make([]NodeKey, len(g.edges[key]))
	copy(edges, g.edges[key])
	sortKeys(edges)
	return edges
}

func sortKeys(keys []NodeKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Module != keys[j].Module {
			return keys[i].Module < keys[j].Module
		}
		return keys[i].Token < keys[j].Token
	})
}
