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

package render

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rbuild-dev/rbuild/pkg/template"
)

// RenderTree substitutes every ${{ ... }} site found in node's scalar
// values, returning a new tree (node and its ancestors are never mutated in
// place — the same Stage 0 tree is rendered once per variant combination, so
// sharing scalar nodes across calls would let one render corrupt another's
// input).
func RenderTree(node *yaml.Node, env *template.Env) (*yaml.Node, error) {
	if node == nil {
		return nil, nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		out := &yaml.Node{Kind: yaml.DocumentNode, Tag: node.Tag}
		for _, c := range node.Content {
			rc, err := RenderTree(c, env)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, rc)
		}
		return out, nil

	case yaml.MappingNode:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: node.Tag, Line: node.Line, Column: node.Column}
		for i := 0; i+1 < len(node.Content); i += 2 {
			val, err := RenderTree(node.Content[i+1], env)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, node.Content[i], val)
		}
		return out, nil

	case yaml.SequenceNode:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: node.Tag, Line: node.Line, Column: node.Column}
		for _, item := range node.Content {
			rendered, err := RenderTree(item, env)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, rendered)
		}
		return out, nil

	case yaml.ScalarNode:
		if !template.HasSites(node.Value) {
			return node, nil
		}
		rendered, err := template.RenderString(node.Value, env)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		out := *node
		out.Value = rendered
		out.Tag = "!!str"
		return &out, nil

	default:
		return node, nil
	}
}
