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

import "sort"

// Combination is one concrete key -> value binding across every discovered
// variant axis.
type Combination map[string]string

// pair is one (key, value) binding, used for lexicographic tie-breaking.
type pair struct {
	key, value string
}

// sortedPairs returns c's bindings as a lexicographically sorted slice of (key,
// value) pairs, which both names the combination and orders it against its
// siblings (spec.md §4.3: "lexicographic order over (key, value) pairs").
func (c Combination) sortedPairs() []pair {
	pairs := make([]pair, 0, len(c))
	for k, v := range c {
		pairs = append(pairs, pair{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	return pairs
}

// Less reports whether c sorts before other by their sorted (key, value)
// pair sequences.
func (c Combination) Less(other Combination) bool {
	a, b := c.sortedPairs(), other.sortedPairs()
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].key != b[i].key {
			return a[i].key < b[i].key
		}
		if a[i].value != b[i].value {
			return a[i].value < b[i].value
		}
	}
	return len(a) < len(b)
}

// zipGroupFor returns the zip_keys group key belongs to, or nil if it isn't
// part of one.
func zipGroupFor(cfg *Config, key string) []string {
	for _, group := range cfg.ZipKeys {
		for _, k := range group {
			if k == key {
				return group
			}
		}
	}
	return nil
}

// BuildMatrix computes the Cartesian product of usedKeys' candidate values
// from cfg, respecting zip_keys lockstep grouping: every key in a zip group
// advances together and the group is dropped entirely if any of its keys is
// missing from usedKeys (spec.md §4.3 step 2). Duplicate combinations are
// eliminated. Results are returned in lexicographic order over their sorted
// (key, value) pairs.
func BuildMatrix(usedKeys map[string]bool, cfg *Config) []Combination {
	// axes is the list of independent advancement units: either a single
	// free key, or an entire zip group advancing together.
	type axis struct {
		keys   []string
		values [][]string // values[i] is the value tuple for position i
	}

	seenGroup := map[string]bool{}
	var axes []axis

	keys := make([]string, 0, len(usedKeys))
	for k := range usedKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if seenGroup[key] {
			continue
		}
		group := zipGroupFor(cfg, key)
		if group == nil {
			vals, ok := cfg.Values[key]
			if !ok || len(vals) == 0 {
				continue
			}
			tuples := make([][]string, len(vals))
			for i, v := range vals {
				tuples[i] = []string{v}
			}
			axes = append(axes, axis{keys: []string{key}, values: tuples})
			continue
		}

		complete := true
		for _, gk := range group {
			if !usedKeys[gk] {
				complete = false
				break
			}
		}
		for _, gk := range group {
			seenGroup[gk] = true
		}
		if !complete {
			continue
		}

		length := -1
		for _, gk := range group {
			if length == -1 {
				length = len(cfg.Values[gk])
			}
		}
		tuples := make([][]string, length)
		for i := range tuples {
			tup := make([]string, len(group))
			for j, gk := range group {
				tup[j] = cfg.Values[gk][i]
			}
			tuples[i] = tup
		}
		axes = append(axes, axis{keys: group, values: tuples})
	}

	combos := []Combination{{}}
	for _, ax := range axes {
		var next []Combination
		for _, base := range combos {
			for _, tup := range ax.values {
				c := make(Combination, len(base)+len(ax.keys))
				for k, v := range base {
					c[k] = v
				}
				for i, k := range ax.keys {
					c[k] = tup[i]
				}
				next = append(next, c)
			}
		}
		combos = next
	}

	combos = dedupeCombinations(combos)
	sort.Slice(combos, func(i, j int) bool { return combos[i].Less(combos[j]) })
	return combos
}

func dedupeCombinations(combos []Combination) []Combination {
	seen := map[string]bool{}
	out := make([]Combination, 0, len(combos))
	for _, c := range combos {
		var key string
		for _, p := range c.sortedPairs() {
			key += p.key + "=" + p.value + "\x00"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
