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

	"github.com/rbuild-dev/rbuild/pkg/template"
)

// ConcreteEnv builds a template.Env bound to combo's concrete values, with
// every configured variant key registered so references to it are recorded
// in UsedKeys. pkg/render reuses this to build the environment it renders
// a whole recipe tree against.
func ConcreteEnv(combo Combination, cfg *Config) *template.Env {
	return concreteEnv(combo, cfg)
}

// concreteEnv builds a template.Env bound to combo's concrete values, for
// re-rendering build.skip and for per-combination compaction.
func concreteEnv(combo Combination, cfg *Config) *template.Env {
	env := template.NewEnv()
	env.Symbolic = false
	for fn, f := range template.DomainFunctions() {
		env.Functions[fn] = f
	}
	for key := range cfg.Values {
		env.VariantKeys[key] = true
	}
	for k, v := range combo {
		env.Vars[k] = template.Str(v)
	}
	return env
}

// SkipCombination reports whether combo must be discarded because one of
// skipExprs evaluates truthy against it (spec.md §4.3 step 3).
func SkipCombination(skipExprs []string, combo Combination, cfg *Config) (bool, error) {
	if len(skipExprs) == 0 {
		return false, nil
	}
	env := concreteEnv(combo, cfg)
	for _, expr := range skipExprs {
		v, err := template.EvalExpr(expr, env)
		if err != nil {
			return false, fmt.Errorf("evaluating build.skip entry %q: %w", expr, err)
		}
		if v.Truthy() {
			return true, nil
		}
	}
	return false, nil
}

// FilterSkipped returns the subset of combos for which none of skipExprs
// evaluates truthy.
func FilterSkipped(combos []Combination, skipExprs []string, cfg *Config) ([]Combination, error) {
	if len(skipExprs) == 0 {
		return combos, nil
	}
	out := make([]Combination, 0, len(combos))
	for _, c := range combos {
		skip, err := SkipCombination(skipExprs, c, cfg)
		if err != nil {
			return nil, err
		}
		if !skip {
			out = append(out, c)
		}
	}
	return out, nil
}
