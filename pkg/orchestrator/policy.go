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

import "fmt"

// Policy controls which outputs of a topological order actually get built.
// build.skip is resolved earlier, during variant expansion
// (pkg/variant.FilterSkipped discards a whole combination before it's ever
// rendered), so it never reaches this package.
type Policy struct {
	// SkipExisting skips building a node whose archive already exists
	// on disk (rattler-build's --skip-existing).
	SkipExisting bool
	// UpTo, if set, truncates the build order so only outputs up to and
	// including the named one are built (--up-to).
	UpTo string
}

// Truncate applies UpTo to a topological order, returning an error if the
// named output doesn't exist among nodes.
func (p Policy) Truncate(nodes []Node, order []int) ([]int, error) {
	if p.UpTo == "" {
		return order, nil
	}
	for i, idx := range order {
		if nodes[idx].Name == p.UpTo {
			return order[:i+1], nil
		}
	}
	return nil, fmt.Errorf("--up-to: no output named %q", p.UpTo)
}
