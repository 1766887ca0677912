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

package recipe

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// EvalIfFunc evaluates the raw text of an `if:` clause and reports whether
// it is truthy. Concrete (Stage 1) callers error if the result can't be
// determined; symbolic (discovery) callers never call this — discovery
// instead explores both branches via DiscoverConditionals.
type EvalIfFunc func(expr string) (bool, error)

func mappingPairs(node *yaml.Node) map[string]*yaml.Node {
	m := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		m[node.Content[i].Value] = node.Content[i+1]
	}
	return m
}

// isConditional reports whether node is a mapping of the form
// {if: ..., then: ..., else: ...} (else optional).
func isConditional(node *yaml.Node) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	pairs := mappingPairs(node)
	if _, ok := pairs["if"]; !ok {
		return false
	}
	if _, ok := pairs["then"]; !ok {
		return false
	}
	for k := range pairs {
		if k != "if" && k != "then" && k != "else" {
			return false
		}
	}
	return true
}

// ResolveConditionals performs the Stage 1 (concrete) splice: every
// if/then/else map is replaced by its selected branch, and a branch that
// resolves to a sequence is spliced (not nested) into its parent sequence
// (spec.md §4.2.1). A nil return with no error means "this field is absent"
// (an else-less conditional whose condition was false).
func ResolveConditionals(node *yaml.Node, evalIf EvalIfFunc) (*yaml.Node, error) {
	if node == nil {
		return nil, nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return node, nil
		}
		resolved, err := ResolveConditionals(node.Content[0], evalIf)
		if err != nil {
			return nil, err
		}
		node.Content[0] = resolved
		return node, nil

	case yaml.MappingNode:
		if isConditional(node) {
			pairs := mappingPairs(node)
			truthy, err := evalIf(strings.TrimSpace(pairs["if"].Value))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", node.Line, err)
			}
			var branch *yaml.Node
			if truthy {
				branch = pairs["then"]
			} else {
				branch = pairs["else"]
			}
			return ResolveConditionals(branch, evalIf)
		}
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: node.Tag, Line: node.Line, Column: node.Column}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			val, err := ResolveConditionals(node.Content[i+1], evalIf)
			if err != nil {
				return nil, err
			}
			if val == nil {
				continue
			}
			out.Content = append(out.Content, key, val)
		}
		return out, nil

	case yaml.SequenceNode:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: node.Tag, Line: node.Line, Column: node.Column}
		for _, item := range node.Content {
			if isConditional(item) {
				pairs := mappingPairs(item)
				truthy, err := evalIf(strings.TrimSpace(pairs["if"].Value))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", item.Line, err)
				}
				var branch *yaml.Node
				if truthy {
					branch = pairs["then"]
				} else {
					branch = pairs["else"]
				}
				resolved, err := ResolveConditionals(branch, evalIf)
				if err != nil {
					return nil, err
				}
				if resolved == nil {
					continue
				}
				if resolved.Kind == yaml.SequenceNode {
					out.Content = append(out.Content, resolved.Content...)
				} else {
					out.Content = append(out.Content, resolved)
				}
				continue
			}
			resolved, err := ResolveConditionals(item, evalIf)
			if err != nil {
				return nil, err
			}
			if resolved == nil {
				continue
			}
			out.Content = append(out.Content, resolved)
		}
		return out, nil

	default:
		return node, nil
	}
}

// DiscoverIfFunc is called once per `if:` clause encountered during
// discovery, with the bare condition text (not a ${{ ... }} site — the if
// clause text is always a raw expression). The callback is expected to
// evaluate it against a symbolic environment purely for its side effect of
// recording touched variant keys; the condition's value does not matter to
// DiscoverConditionals, which always walks both branches.
type DiscoverIfFunc func(expr string) error

// DiscoverScalarFunc is called once per plain (non-conditional) scalar node
// encountered during discovery, with the scalar's raw text, which may embed
// zero or more ${{ ... }} sites. The callback should evaluate just the
// embedded sites, not the scalar as a whole expression.
type DiscoverScalarFunc func(text string) error

// DiscoverConditionals walks every if/then/else clause and plain scalar in
// node, invoking ifFn for the `if` text and scalarFn for every plain scalar,
// and recursing into BOTH branches of each conditional (the concrete variant
// binding isn't known yet, so both arms must be explored to find every
// variant key a combination might depend on).
func DiscoverConditionals(node *yaml.Node, ifFn DiscoverIfFunc, scalarFn DiscoverScalarFunc) error {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		for _, c := range node.Content {
			if err := DiscoverConditionals(c, ifFn, scalarFn); err != nil {
				return err
			}
		}
		return nil

	case yaml.MappingNode:
		if isConditional(node) {
			pairs := mappingPairs(node)
			if err := ifFn(strings.TrimSpace(pairs["if"].Value)); err != nil {
				return err
			}
			if err := DiscoverConditionals(pairs["then"], ifFn, scalarFn); err != nil {
				return err
			}
			return DiscoverConditionals(pairs["else"], ifFn, scalarFn)
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			if err := DiscoverConditionals(node.Content[i+1], ifFn, scalarFn); err != nil {
				return err
			}
		}
		return nil

	case yaml.SequenceNode:
		for _, item := range node.Content {
			if err := DiscoverConditionals(item, ifFn, scalarFn); err != nil {
				return err
			}
		}
		return nil

	case yaml.ScalarNode:
		return scalarFn(node.Value)

	default:
		return nil
	}
}
