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

	"gopkg.in/yaml.v3"
)

// Stage0 is the parsed-but-unrendered recipe tree: span-preserving, with
// if/then/else clauses and ${{ ... }} sites intact.
type Stage0 struct {
	Root          *yaml.Node
	Context       []ContextEntry
	IsMultiOutput bool
	Warnings      []string
}

// ParseStage0 decodes raw recipe YAML into a Stage0 tree: it validates the
// top-level schema, splits out `context:` into an ordered slice, normalizes
// `about:` field aliases, and warns on comment-style selectors, all without
// evaluating any template expression (spec.md §4.2).
func ParseStage0(data []byte) (*Stage0, error) {
	warnings := DetectCommentSelectors(data)

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("recipe is not valid YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, &ParseError{Message: "recipe document is empty"}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Span:    Span{Line: root.Line, Column: root.Column},
			Message: "recipe root must be a mapping",
		}
	}

	var parseErrs []*ParseError
	pairs := mappingPairs(root)

	for key, val := range pairs {
		if !topLevelFields[key] {
			parseErrs = append(parseErrs, &ParseError{
				Span:    Span{Line: val.Line, Column: val.Column},
				Message: fmt.Sprintf("unknown top-level field %q", key),
			})
		}
	}

	_, hasOutputs := pairs["outputs"]
	_, hasPackage := pairs["package"]
	_, hasRequirements := pairs["requirements"]
	if hasOutputs && (hasPackage || hasRequirements) {
		parseErrs = append(parseErrs, &ParseError{
			Span:    Span{Line: root.Line, Column: root.Column},
			Message: "multi-output recipes (outputs:) must not set top-level package or requirements",
		})
	}

	if len(parseErrs) > 0 {
		errs := DedupeErrors(parseErrs)
		return nil, errs[0]
	}

	var contextEntries []ContextEntry
	if ctxNode, ok := pairs["context"]; ok {
		if ctxNode.Kind != yaml.MappingNode {
			return nil, &ParseError{
				Span:    Span{Line: ctxNode.Line, Column: ctxNode.Column},
				Message: "context must be a mapping",
			}
		}
		for i := 0; i+1 < len(ctxNode.Content); i += 2 {
			contextEntries = append(contextEntries, ContextEntry{
				Name:  ctxNode.Content[i].Value,
				Value: ctxNode.Content[i+1].Value,
			})
		}
	}

	normalizeAboutAliases(root)

	return &Stage0{
		Root:          root,
		Context:       contextEntries,
		IsMultiOutput: hasOutputs,
		Warnings:      warnings,
	}, nil
}

// normalizeAboutAliases rewrites deprecated about: keys (home, dev_url) to
// their canonical names in place, at the root and within each output.
func normalizeAboutAliases(root *yaml.Node) {
	rewriteOne := func(scope *yaml.Node) {
		pairs := mappingPairs(scope)
		about, ok := pairs["about"]
		if !ok || about.Kind != yaml.MappingNode {
			return
		}
		for i := 0; i < len(about.Content); i += 2 {
			key := about.Content[i]
			if canonical, changed := NormalizeAboutAliasKey(key.Value); changed {
				key.Value = canonical
			}
		}
	}
	rewriteOne(root)
	pairs := mappingPairs(root)
	if outputs, ok := pairs["outputs"]; ok && outputs.Kind == yaml.SequenceNode {
		for _, out := range outputs.Content {
			rewriteOne(out)
		}
	}
}

// Decode resolves every if/then/else clause in the Stage0 tree against
// evalIf and decodes the result into a concrete Recipe. Decode does not
// render ${{ ... }} scalar sites; callers pass the output through
// pkg/render for that.
func (s *Stage0) Decode(evalIf EvalIfFunc) (*Recipe, error) {
	resolved, err := ResolveConditionals(s.Root, evalIf)
	if err != nil {
		return nil, err
	}
	var r Recipe
	if err := resolved.Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding recipe: %w", err)
	}
	r.Context = s.Context
	if err := ValidateRecipe(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ValidateRecipe applies the cross-field invariants from spec.md §3 that
// aren't expressible as YAML schema alone.
func ValidateRecipe(r *Recipe) error {
	validatePackage := func(p *Package) error {
		if p == nil {
			return nil
		}
		if err := ValidatePackageName(p.Name); err != nil {
			return err
		}
		return ValidatePackageVersion(p.Version)
	}

	if !r.IsMultiOutput() {
		if err := validatePackage(r.Package); err != nil {
			return err
		}
		for _, src := range r.Source {
			if err := ValidateSource(src); err != nil {
				return err
			}
		}
		return nil
	}

	if len(r.Outputs) == 0 {
		return &ParseError{Message: "outputs must not be empty"}
	}
	for i, out := range r.Outputs {
		if err := validatePackage(out.Package); err != nil {
			return fmt.Errorf("outputs[%d]: %w", i, err)
		}
		for _, src := range out.Source {
			if err := ValidateSource(src); err != nil {
				return fmt.Errorf("outputs[%d]: %w", i, err)
			}
		}
	}
	return nil
}
