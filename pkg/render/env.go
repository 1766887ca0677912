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

// Package render performs the Stage 1 concrete rendering pass (spec.md §4.3
// renderer, §3 Stage 1 recipe / build hash / build string): it binds one
// variant combination's values, evaluates a recipe's context entries in
// declaration order, resolves every if/then/else clause to its single
// concrete branch, substitutes every remaining ${{ ... }} site, and decodes
// the result into a concrete recipe.Recipe.
package render

import (
	"fmt"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
	"github.com/rbuild-dev/rbuild/pkg/template"
	"github.com/rbuild-dev/rbuild/pkg/variant"
)

// BuildEnv constructs the concrete Env a recipe is rendered against: combo's
// variant bindings plus extraVars (fixed, non-variant context such as
// target_platform/build_platform defaults), followed by a first rendering
// pass over contextEntries in declaration order so that later entries may
// reference earlier ones (spec.md §4.1 "Two-pass rendering").
func BuildEnv(combo variant.Combination, cfg *variant.Config, contextEntries []recipe.ContextEntry, extraVars map[string]string) (*template.Env, error) {
	env := variant.ConcreteEnv(combo, cfg)
	for k, v := range extraVars {
		if _, bound := env.Vars[k]; !bound {
			env.Vars[k] = template.Str(v)
		}
	}

	for _, entry := range contextEntries {
		rendered, err := template.RenderString(entry.Value, env)
		if err != nil {
			return nil, fmt.Errorf("rendering context.%s: %w", entry.Name, err)
		}
		env.Vars[entry.Name] = template.Str(rendered)
	}

	return env, nil
}
