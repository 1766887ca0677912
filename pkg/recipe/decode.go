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

// decodeStringList accepts either a scalar ("one item") or a sequence of
// scalars, which is how several recipe fields (script commands, patches,
// skip expressions) are conventionally written.
func decodeStringList(node *yaml.Node) ([]string, error) {
	if node == nil {
		return nil, nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: expected a scalar list item", item.Line)
			}
			out = append(out, item.Value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("line %d: expected a scalar or a list of scalars", node.Line)
	}
}

// UnmarshalYAML implements the Script union: a bare command, a list of
// commands, or an object with interpreter/env/content/secrets.
func (s *Script) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode, yaml.SequenceNode:
		cmds, err := decodeStringList(node)
		if err != nil {
			return err
		}
		s.Content = cmds
		return nil
	case yaml.MappingNode:
		type shadow struct {
			Interpreter string            `yaml:"interpreter,omitempty"`
			Env         map[string]string `yaml:"env,omitempty"`
			Content     yaml.Node         `yaml:"content,omitempty"`
			SecretEnv   []string          `yaml:"secrets,omitempty"`
		}
		var sh shadow
		if err := node.Decode(&sh); err != nil {
			return err
		}
		s.Interpreter = sh.Interpreter
		s.Env = sh.Env
		s.SecretEnv = sh.SecretEnv
		if sh.Content.Kind != 0 {
			cmds, err := decodeStringList(&sh.Content)
			if err != nil {
				return err
			}
			s.Content = cmds
		}
		return nil
	default:
		return fmt.Errorf("line %d: invalid script value", node.Line)
	}
}

// UnmarshalYAML implements the Inherit union: a bare staging-output name, or
// an object with from/run_exports.
func (in *Inherit) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		in.From = node.Value
		return nil
	}
	type shadow struct {
		From       string `yaml:"from"`
		RunExports *bool  `yaml:"run_exports,omitempty"`
	}
	var sh shadow
	if err := node.Decode(&sh); err != nil {
		return err
	}
	in.From = sh.From
	in.RunExports = sh.RunExports
	return nil
}

// UnmarshalYAML implements the Test discriminated union: one of
// script/python/perl/r/downstream/package_contents.
func (t *Test) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: a tests entry must be a mapping", node.Line)
	}
	pairs := mappingPairs(node)

	if v, ok := pairs["script"]; ok {
		cmds, err := decodeStringList(v)
		if err != nil {
			return err
		}
		st := &ScriptTest{Commands: cmds}
		if reqNode, ok := pairs["requirements"]; ok {
			if err := reqNode.Decode(&st.Requirements); err != nil {
				return err
			}
		}
		if filesNode, ok := pairs["files"]; ok {
			if err := filesNode.Decode(&st.Files); err != nil {
				return err
			}
		}
		t.Kind = TestScript
		t.Script = st
		return nil
	}
	if v, ok := pairs["python"]; ok {
		pt := &PythonTest{}
		if err := v.Decode(pt); err != nil {
			return err
		}
		t.Kind = TestPython
		t.Python = pt
		return nil
	}
	if v, ok := pairs["perl"]; ok {
		pt := &PerlTest{}
		if err := v.Decode(pt); err != nil {
			return err
		}
		t.Kind = TestPerl
		t.Perl = pt
		return nil
	}
	if v, ok := pairs["r"]; ok {
		rt := &RTest{}
		if err := v.Decode(rt); err != nil {
			return err
		}
		t.Kind = TestR
		t.R = rt
		return nil
	}
	if v, ok := pairs["downstream"]; ok {
		t.Kind = TestDownstream
		t.Downstream = &DownstreamTest{Package: v.Value}
		return nil
	}
	if v, ok := pairs["package_contents"]; ok {
		pc := &PackageContentsTest{}
		if err := v.Decode(pc); err != nil {
			return err
		}
		t.Kind = TestPackageContents
		t.Contents = pc
		return nil
	}
	return fmt.Errorf("line %d: tests entry has none of script/python/perl/r/downstream/package_contents", node.Line)
}

// UnmarshalYAML implements the FilterSpec union: a bare glob list (treated
// as `include`), or an object with include/exclude.
func (f *FilterSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode, yaml.SequenceNode:
		globs, err := decodeStringList(node)
		if err != nil {
			return err
		}
		f.Include = globs
		return nil
	case yaml.MappingNode:
		type shadow struct {
			Include []string `yaml:"include,omitempty"`
			Exclude []string `yaml:"exclude,omitempty"`
		}
		var sh shadow
		if err := node.Decode(&sh); err != nil {
			return err
		}
		f.Include = sh.Include
		f.Exclude = sh.Exclude
		return nil
	default:
		return fmt.Errorf("line %d: invalid filter value", node.Line)
	}
}

// UnmarshalYAML implements the PrefixDetection.ignore union: `true` disables
// detection entirely, `false` is a no-op, and a list of globs disables it
// only for matching paths.
func (p *PrefixDetection) UnmarshalYAML(node *yaml.Node) error {
	type shadow struct {
		Force  ForceFileType `yaml:"force_file_type,omitempty"`
		Ignore yaml.Node     `yaml:"ignore,omitempty"`
	}
	var sh shadow
	if err := node.Decode(&sh); err != nil {
		return err
	}
	p.Force = sh.Force
	switch sh.Ignore.Kind {
	case 0:
		// unset
	case yaml.ScalarNode:
		if sh.Ignore.Value == "true" {
			p.IgnoreAll = true
		} else if sh.Ignore.Value != "false" && sh.Ignore.Value != "" {
			p.Ignore = []string{sh.Ignore.Value}
		}
	case yaml.SequenceNode:
		globs, err := decodeStringList(&sh.Ignore)
		if err != nil {
			return err
		}
		p.Ignore = globs
	}
	return nil
}

// UnmarshalYAML parses one `python.entry_points` item of the form
// "name = module:func".
func (e *PythonEntryPoint) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: entry point must be a string", node.Line)
	}
	name, rest, ok := strings.Cut(node.Value, "=")
	if !ok {
		return fmt.Errorf("line %d: entry point %q must be of the form 'name = module:func'", node.Line, node.Value)
	}
	module, fn, ok := strings.Cut(strings.TrimSpace(rest), ":")
	if !ok {
		return fmt.Errorf("line %d: entry point %q must be of the form 'name = module:func'", node.Line, node.Value)
	}
	e.Name = strings.TrimSpace(name)
	e.Module = strings.TrimSpace(module)
	e.Func = strings.TrimSpace(fn)
	return nil
}
