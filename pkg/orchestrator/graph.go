// Copyright 2024 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package orchestrator drives a rendered multi-output recipe through its
// dependency graph (spec.md §4.11): it orders outputs by the
// pin_subpackage/inherit edges between them, resolves each output's
// deferred pins once its producer is known, and runs the remaining
// pipeline stages per output with bounded matrix parallelism across
// variant combinations.
package orchestrator

import (
	"fmt"
	"sort"
)

// Node is one output of a rendered recipe: a package output or a
// staging-only output, identified by the package name it produces (empty
// for an anonymous staging-only output, of which a recipe may have at most
// one — spec.md §3's "multi-output forbids top-level package/requirements
// and carries an outputs sequence").
type Node struct {
	Index       int
	Name        string
	InheritFrom string
	Pins        []string
}

// Graph is the dependency graph over one recipe's outputs.
type Graph struct {
	Nodes   []Node
	dependsOn map[int][]int
}

// BuildGraph resolves each node's Pins and InheritFrom references against
// the other nodes' Name, producing a dependency graph. A pin or inherit
// reference naming an unknown output is an error.
func BuildGraph(nodes []Node) (*Graph, error) {
	byName := make(map[string]int, len(nodes))
	for _, n := range nodes {
		if n.Name == "" {
			continue
		}
		if _, dup := byName[n.Name]; dup {
			return nil, fmt.Errorf("duplicate output name %q", n.Name)
		}
		byName[n.Name] = n.Index
	}

	deps := make(map[int][]int, len(nodes))
	for _, n := range nodes {
		var edges []int
		add := func(name string) error {
			idx, ok := byName[name]
			if !ok {
				return fmt.Errorf("output %q references unknown output %q", n.Name, name)
			}
			if idx != n.Index {
				edges = append(edges, idx)
			}
			return nil
		}
		if n.InheritFrom != "" {
			if err := add(n.InheritFrom); err != nil {
				return nil, err
			}
		}
		for _, pin := range n.Pins {
			if err := add(pin); err != nil {
				return nil, err
			}
		}
		deps[n.Index] = edges
	}

	return &Graph{Nodes: nodes, dependsOn: deps}, nil
}

// TopoOrder returns a topological order over the graph's nodes using
// Kahn's algorithm with a positional tie-break: among nodes whose
// dependencies are all satisfied, the lowest-index one is always emitted
// next, so build order is deterministic and matches declaration order
// wherever the dependency graph doesn't force otherwise (grounded on
// sbinet-staging-aligot's topoSort, which sorts its ready set the same way
// before visiting it).
func (g *Graph) TopoOrder() ([]int, error) {
	indegree := make(map[int]int, len(g.Nodes))
	dependents := make(map[int][]int, len(g.Nodes))
	for _, n := range g.Nodes {
		indegree[n.Index] = 0
	}
	for idx, deps := range g.dependsOn {
		indegree[idx] = len(deps)
		for _, d := range deps {
			dependents[d] = append(dependents[d], idx)
		}
	}

	var ready []int
	for idx, deg := range indegree {
		if deg == 0 {
			ready = append(ready, idx)
		}
	}
	sort.Ints(ready)

	var order []int
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		newlyReady := make([]int, 0)
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				newlyReady = append(newlyReady, dep)
			}
		}
		sort.Ints(newlyReady)
		ready = mergeSorted(ready, newlyReady)
	}

	if len(order) != len(g.Nodes) {
		return nil, fmt.Errorf("dependency cycle detected among outputs")
	}
	return order, nil
}

// mergeSorted merges two already-ascending slices into one ascending slice.
func mergeSorted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
