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

package main

import "gopkg.in/yaml.v3"

// extractRawBuildFields walks root for the two pieces of pre-render text
// pkg/variant.Expand and pkg/provision.ResolvePrefixes each need before any
// template substitution has happened: every build.skip expression (root's
// own, and every output's) and, per output index (0 for a single-output
// recipe), the raw requirements.build list, used only to detect a
// compiler(...) call.
func extractRawBuildFields(root *yaml.Node) (skipExprs []string, rawBuildReqs map[int][]string) {
	rawBuildReqs = map[int][]string{}

	collect := func(idx int, node *yaml.Node) {
		build := mappingLookup(node, "build")
		skipExprs = append(skipExprs, rawStringList(mappingLookup(build, "skip"))...)
		reqs := mappingLookup(node, "requirements")
		rawBuildReqs[idx] = rawStringList(mappingLookup(reqs, "build"))
	}

	if outputs := mappingLookup(root, "outputs"); outputs != nil && outputs.Kind == yaml.SequenceNode {
		for i, out := range outputs.Content {
			collect(i, out)
		}
		return skipExprs, rawBuildReqs
	}

	collect(0, root)
	return skipExprs, rawBuildReqs
}

func mappingLookup(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func rawStringList(node *yaml.Node) []string {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}
	case yaml.SequenceNode:
		out := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			out = append(out, item.Value)
		}
		return out
	default:
		return nil
	}
}
