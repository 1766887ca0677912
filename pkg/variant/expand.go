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

package variant

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// Expand runs the full discovery -> matrix -> skip-filtering pipeline
// (spec.md §4.3 steps 1-3) over one output's Stage 0 tree. The returned
// combinations are ordered lexicographically (step 5's tie-break) and are
// each a superset of the output's eventual used_variant: pkg/render performs
// the per-combination compaction (step 4) once it knows exactly which
// template sites a concrete render touched.
func Expand(root *yaml.Node, skipExprs []string, cfg *Config) ([]Combination, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	usedKeys, err := Discover(root, cfg)
	if err != nil {
		return nil, fmt.Errorf("discovering variant keys: %w", err)
	}

	combos := BuildMatrix(usedKeys, cfg)

	combos, err = FilterSkipped(combos, skipExprs, cfg)
	if err != nil {
		return nil, fmt.Errorf("filtering build.skip combinations: %w", err)
	}

	if len(combos) == 0 {
		// No variant key was referenced anywhere: the output has exactly
		// one combination, the empty one.
		combos = []Combination{{}}
	}

	return combos, nil
}

// ValidateConfig checks cfg's zip_keys groups reference equal-length value
// lists (spec.md §3 invariant), reusing pkg/recipe's shared validator.
func ValidateConfig(cfg *Config) error {
	return recipe.ValidateZipKeys(cfg.ZipKeys, cfg.Values)
}
