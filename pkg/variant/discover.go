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
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
	"github.com/rbuild-dev/rbuild/pkg/template"
)

// depVersionUnspecifiedRe matches a bare dependency spec with no version
// constraint (just a package name), e.g. "openssl" but not "openssl >=3.0".
var depVersionUnspecifiedRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// discoveryEnv builds a symbolic template.Env seeded with every known
// variant key bound to Undetermined, so that any reference to it is
// recorded in UsedKeys.
func discoveryEnv(cfg *Config) *template.Env {
	env := template.NewEnv()
	env.Symbolic = true
	for fn, f := range template.DomainFunctions() {
		env.Functions[fn] = f
	}
	for key := range cfg.Values {
		env.VariantKeys[key] = true
		env.Vars[key] = template.Undetermined()
	}
	return env
}

// Discover walks root's if/then/else clauses and ${{ ... }} scalar sites
// symbolically, returning the set of variant keys referenced anywhere in the
// tree (spec.md §4.3 step 1) plus the set of bare, version-unspecified
// dependency names found in any requirements bucket — each of those becomes
// an implicit variant key whose candidate values come from the variant
// config (conventionally seeded by an external index, but here simply the
// configured values for that key, if any).
func Discover(root *yaml.Node, cfg *Config) (usedKeys map[string]bool, err error) {
	env := discoveryEnv(cfg)

	ifFn := func(expr string) error {
		_, err := template.EvalExpr(expr, env)
		if err != nil {
			return fmt.Errorf("discovering if-clause %q: %w", expr, err)
		}
		return nil
	}
	scalarFn := func(text string) error {
		return template.DiscoverString(text, env)
	}

	if err := recipe.DiscoverConditionals(root, ifFn, scalarFn); err != nil {
		return nil, err
	}

	discoverImplicitDeps(root, env)

	return env.UsedKeys, nil
}

// discoverImplicitDeps walks every requirements: bucket (build/host/run) in
// root looking for bare dependency names (no version constraint); each one
// that also names a configured variant key is recorded as used, matching
// spec.md §4.3 step 1's "the bare dependency name becomes an implicit
// variant key" rule.
func discoverImplicitDeps(root *yaml.Node, env *template.Env) {
	var walk func(node *yaml.Node, inRequirements bool)
	walk = func(node *yaml.Node, inRequirements bool) {
		if node == nil {
			return
		}
		switch node.Kind {
		case yaml.MappingNode:
			for i := 0; i+1 < len(node.Content); i += 2 {
				key := node.Content[i].Value
				walk(node.Content[i+1], inRequirements || key == "requirements")
			}
		case yaml.SequenceNode:
			for _, item := range node.Content {
				if inRequirements && item.Kind == yaml.ScalarNode && depVersionUnspecifiedRe.MatchString(item.Value) {
					env.MarkUsed(item.Value)
				}
				walk(item, inRequirements)
			}
		}
	}
	walk(root, false)
}
