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

package orchestrator

import (
	"fmt"
	"strings"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
	"github.com/rbuild-dev/rbuild/pkg/template"
)

// NodesFromRecipe extracts one Node per output of a rendered recipe (one
// node for the whole recipe if it's single-output), scanning each output's
// requirement lists for deferred pin_subpackage placeholders left by
// render.Render to discover the edges render.ResolvePins will later need
// resolved in order.
func NodesFromRecipe(r *recipe.Recipe) ([]Node, error) {
	if !r.IsMultiOutput() {
		name := ""
		if r.Package != nil {
			name = r.Package.Name
		}
		pins, err := pinsIn(r.Requirements)
		if err != nil {
			return nil, err
		}
		return []Node{{Index: 0, Name: name, Pins: pins}}, nil
	}

	nodes := make([]Node, 0, len(r.Outputs))
	for i, o := range r.Outputs {
		name := ""
		if o.Package != nil {
			name = o.Package.Name
		}
		inherit := ""
		if o.Inherit != nil {
			inherit = o.Inherit.From
		}
		pins, err := pinsIn(o.Requirements)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		nodes = append(nodes, Node{Index: i, Name: name, InheritFrom: inherit, Pins: pins})
	}
	return nodes, nil
}

// pinsIn collects the distinct subpackage names referenced by req's
// deferred pins, in first-seen order.
func pinsIn(req *recipe.Requirements) ([]string, error) {
	if req == nil {
		return nil, nil
	}

	seen := map[string]bool{}
	var names []string
	collect := func(list []string) error {
		for _, s := range list {
			if !template.HasPinToken(s) {
				continue
			}
			found, err := pinNamesIn(s)
			if err != nil {
				return err
			}
			for _, n := range found {
				if !seen[n] {
					seen[n] = true
					names = append(names, n)
				}
			}
		}
		return nil
	}

	lists := [][]string{req.Build, req.Host, req.Run, req.RunConstraints}
	if req.RunExports != nil {
		lists = append(lists, req.RunExports.Weak, req.RunExports.Strong)
	}
	for _, l := range lists {
		if err := collect(l); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// pinSentinelOpen/pinSentinelClose mirror the bracketing template.EncodePin
// uses, so a pin token embedded anywhere within a larger dependency string
// can be located without template exporting its internal scanner.
const (
	pinSentinelOpen  = "\x00PIN\x01"
	pinSentinelClose = "\x00"
)

func pinNamesIn(s string) ([]string, error) {
	var names []string
	rest := s
	for {
		idx := strings.Index(rest, pinSentinelOpen)
		if idx < 0 {
			break
		}
		afterOpen := rest[idx+len(pinSentinelOpen):]
		end := strings.Index(afterOpen, pinSentinelClose)
		if end < 0 {
			return nil, fmt.Errorf("unterminated pin token in %q", s)
		}
		token := rest[idx : idx+len(pinSentinelOpen)+end+len(pinSentinelClose)]
		pin, ok := template.DecodePin(token)
		if !ok {
			return nil, fmt.Errorf("malformed pin token in %q", s)
		}
		names = append(names, pin.Name)
		rest = rest[idx+len(pinSentinelOpen)+end+len(pinSentinelClose):]
	}
	return names, nil
}
