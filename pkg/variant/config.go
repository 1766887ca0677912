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

// Package variant expands a Stage 0 recipe tree into the set of concrete
// variant combinations it must be rendered and built for (spec.md §4.3).
package variant

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config is a merged variant configuration: a mapping from key to an ordered
// sequence of candidate values, plus zip_keys groups and the set of keys
// that pin their value to the build's own version (pin_run_as_build).
type Config struct {
	Values        map[string][]string
	ZipKeys       [][]string
	PinRunAsBuild []string
}

type rawConfig struct {
	ZipKeys       [][]string          `yaml:"zip_keys,omitempty"`
	PinRunAsBuild []string            `yaml:"pin_run_as_build,omitempty"`
	Values        map[string][]string `yaml:",inline"`
}

// LoadFile parses one variant-config YAML document.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading variant config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes one variant-config YAML document. Because rawConfig's inline
// map can't coexist with yaml.v3's strict unmarshal of named fields, the
// reserved keys are decoded first and then stripped before reading the
// remaining keys as variant values.
func Parse(data []byte) (*Config, error) {
	var generic map[string]yaml.Node
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("variant config is not valid YAML: %w", err)
	}
	cfg := &Config{Values: map[string][]string{}}
	for key, node := range generic {
		switch key {
		case "zip_keys":
			if err := node.Decode(&cfg.ZipKeys); err != nil {
				return nil, fmt.Errorf("zip_keys: %w", err)
			}
		case "pin_run_as_build":
			if err := node.Decode(&cfg.PinRunAsBuild); err != nil {
				return nil, fmt.Errorf("pin_run_as_build: %w", err)
			}
		default:
			var values []string
			switch node.Kind {
			case yaml.ScalarNode:
				values = []string{node.Value}
			case yaml.SequenceNode:
				if err := node.Decode(&values); err != nil {
					return nil, fmt.Errorf("variant key %q: %w", key, err)
				}
			default:
				return nil, fmt.Errorf("variant key %q: expected a scalar or list of scalars", key)
			}
			cfg.Values[key] = values
		}
	}
	return cfg, nil
}

// Merge layers override on top of base: override's values replace base's for
// any key present in both, zip_keys/pin_run_as_build from override are
// appended after base's (duplicates are not deduplicated here — ValidateZipKeys
// catches a malformed group later). Matches the documented precedence order:
// auto-discovered variants.yaml first, then each `-m` file in the order given.
func Merge(base, override *Config) *Config {
	out := &Config{
		Values: make(map[string][]string, len(base.Values)+len(override.Values)),
	}
	for k, v := range base.Values {
		out.Values[k] = v
	}
	for k, v := range override.Values {
		out.Values[k] = v
	}
	out.ZipKeys = append(append([][]string{}, base.ZipKeys...), override.ZipKeys...)
	out.PinRunAsBuild = append(append([]string{}, base.PinRunAsBuild...), override.PinRunAsBuild...)
	return out
}

// MergeAll folds a sequence of configs left to right, each one overriding
// the keys of everything before it.
func MergeAll(configs ...*Config) *Config {
	if len(configs) == 0 {
		return &Config{Values: map[string][]string{}}
	}
	out := configs[0]
	for _, c := range configs[1:] {
		out = Merge(out, c)
	}
	return out
}

// SortedKeys returns cfg's variant keys in lexicographic order, useful for
// deterministic iteration.
func (c *Config) SortedKeys() []string {
	keys := make([]string, 0, len(c.Values))
	for k := range c.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
