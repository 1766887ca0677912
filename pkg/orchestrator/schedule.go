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

package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
	"github.com/rbuild-dev/rbuild/pkg/render"
)

// BuiltInfo is what a completed node contributes to its dependents' pin
// resolution: the version and build string of the package it produced.
type BuiltInfo struct {
	Version     string
	BuildString string
}

// BuildFunc builds one node: provisioning its environment, running its
// build script (or restoring it from the staging cache when
// node.InheritFrom is set), post-processing, packaging, and testing. rec's
// Requirements have already had every pin this node can resolve rewritten
// to a concrete constraint before BuildFunc is called.
type BuildFunc func(ctx context.Context, node Node, rec *recipe.Recipe) (BuiltInfo, error)

// ExistingLookup reports whether an output already has an archive on disk
// and, if so, the version/build string a dependent's pin resolves against
// (taken from the existing archive rather than rebuilding it).
type ExistingLookup func(name string) (info BuiltInfo, exists bool)

// Run builds every node of r's dependency graph, skipping nodes policy
// excludes, resolving each node's deferred pins against its
// already-completed dependencies before invoking build, and running
// independent nodes concurrently up to concurrency at a time (spec.md
// §4.11, §5's bounded worker-pool matrix parallelism). It returns the
// first error encountered; once a build fails the shared context is
// canceled and no new builds start, while builds already running are
// waited for.
func Run(ctx context.Context, r *recipe.Recipe, policy Policy, concurrency int, exists ExistingLookup, build BuildFunc) error {
	nodes, err := NodesFromRecipe(r)
	if err != nil {
		return fmt.Errorf("discovering outputs: %w", err)
	}
	graph, err := BuildGraph(nodes)
	if err != nil {
		return fmt.Errorf("building output dependency graph: %w", err)
	}
	order, err := graph.TopoOrder()
	if err != nil {
		return err
	}
	order, err = policy.Truncate(nodes, order)
	if err != nil {
		return err
	}
	included := make(map[int]bool, len(order))
	for _, idx := range order {
		included[idx] = true
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	built := make(map[string]BuiltInfo, len(nodes))

	indegree := make(map[int]int, len(nodes))
	dependents := make(map[int][]int, len(nodes))
	for _, idx := range order {
		for _, dep := range graph.dependsOn[idx] {
			if !included[dep] {
				continue
			}
			indegree[idx]++
			dependents[dep] = append(dependents[dep], idx)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	ready := make(chan int, len(order))
	remaining := len(order)
	for _, idx := range order {
		if indegree[idx] == 0 {
			ready <- idx
		}
	}

	var schedMu sync.Mutex
	scheduleDependents := func(idx int) {
		schedMu.Lock()
		defer schedMu.Unlock()
		for _, dep := range dependents[idx] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready <- dep
			}
		}
	}

	for remaining > 0 {
		var idx int
		select {
		case idx = <-ready:
		case <-ctx.Done():
			// A prior build failed; stop dispatching new work and let
			// g.Wait() below surface the error. Dependents of the failed
			// node never reach ready, so draining stops here rather than
			// blocking forever.
			remaining = 0
			continue
		}
		remaining--
		node := nodes[idx]

		if policy.SkipExisting && exists != nil {
			if info, ok := exists(node.Name); ok {
				if node.Name != "" {
					mu.Lock()
					built[node.Name] = info
					mu.Unlock()
				}
				scheduleDependents(idx)
				continue
			}
		}

		g.Go(func() error {
			req := nodeRequirements(r, node)
			resolver := func(name string) (string, string, error) {
				mu.Lock()
				info, ok := built[name]
				mu.Unlock()
				if !ok {
					return "", "", fmt.Errorf("pin_subpackage(%s) referenced before it was built", name)
				}
				return info.Version, info.BuildString, nil
			}
			if req != nil {
				tmp := &recipe.Recipe{Requirements: req}
				if err := render.ResolvePins(tmp, resolver); err != nil {
					return fmt.Errorf("output %q: %w", node.Name, err)
				}
			}

			info, err := build(ctx, node, r)
			if err != nil {
				return fmt.Errorf("output %q: %w", node.Name, err)
			}
			if node.Name != "" {
				mu.Lock()
				built[node.Name] = info
				mu.Unlock()
			}
			scheduleDependents(idx)
			return nil
		})
	}

	return g.Wait()
}

// nodeRequirements returns the *recipe.Requirements backing node within r,
// the same pointer render.Render populated, so rewriting it in place is
// visible to every later reader of r.
func nodeRequirements(r *recipe.Recipe, node Node) *recipe.Requirements {
	if !r.IsMultiOutput() {
		return r.Requirements
	}
	return r.Outputs[node.Index].Requirements
}
