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
	"strconv"
	"strings"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
	"github.com/rbuild-dev/rbuild/pkg/template"
)

// PinResolver answers a deferred pin: given the pin's subpackage name, it
// returns the version string to constrain against (the producing output's
// package version for pin_subpackage, or its host-resolved version for
// pin_compatible) and the build string to constrain against, if the pin
// requested one. Callers (the orchestrator) build this from the dependency
// graph once every output it names has been built or resolved.
type PinResolver func(name string) (version, buildString string, err error)

// ResolvePins replaces every deferred-pin placeholder left by Render in r's
// requirement lists with its final constraint string, using resolve to look
// up each pin's referenced subpackage (spec.md §9 "Deferred pins": resolved
// by the orchestrator in topological order, once the producing output's
// build is known).
func ResolvePins(r *recipe.Recipe, resolve PinResolver) error {
	rewrite := func(list []string) error {
		for i, s := range list {
			if !template.HasPinToken(s) {
				continue
			}
			out, err := resolvePinTokens(s, resolve)
			if err != nil {
				return err
			}
			list[i] = out
		}
		return nil
	}

	rewriteReqs := func(req *recipe.Requirements) error {
		if req == nil {
			return nil
		}
		for _, list := range [][]string{req.Build, req.Host, req.Run, req.RunConstraints} {
			if err := rewrite(list); err != nil {
				return err
			}
		}
		if req.RunExports != nil {
			if err := rewrite(req.RunExports.Weak); err != nil {
				return err
			}
			if err := rewrite(req.RunExports.Strong); err != nil {
				return err
			}
		}
		return nil
	}

	if err := rewriteReqs(r.Requirements); err != nil {
		return err
	}
	for i := range r.Outputs {
		if err := rewriteReqs(r.Outputs[i].Requirements); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}
	return nil
}

// resolvePinTokens replaces every encoded pin token found within s (a
// dependency-string that may be entirely a pin token, e.g. from a bare
// pin_subpackage(...) site) with its resolved constraint text.
func resolvePinTokens(s string, resolve PinResolver) (string, error) {
	var b strings.Builder
	rest := s
	for {
		idx := strings.Index(rest, "\x00PIN\x01")
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:idx])
		end := strings.Index(rest[idx+1:], "\x00")
		if end < 0 {
			return "", fmt.Errorf("unterminated pin token in %q", s)
		}
		token := rest[idx : idx+1+end+1]
		pin, ok := template.DecodePin(token)
		if !ok {
			return "", fmt.Errorf("malformed pin token in %q", s)
		}
		resolved, err := resolvePin(pin, resolve)
		if err != nil {
			return "", err
		}
		b.WriteString(resolved)
		rest = rest[idx+1+end+1:]
	}
	return b.String(), nil
}

func resolvePin(pin *template.DeferredPin, resolve PinResolver) (string, error) {
	version, buildString, err := resolve(pin.Name)
	if err != nil {
		return "", fmt.Errorf("resolving pin_subpackage(%s): %w", pin.Name, err)
	}
	if pin.HasExplicit {
		return pin.Explicit, nil
	}

	var constraint string
	switch {
	case pin.Exact:
		constraint = version
		if buildString != "" {
			constraint = version + " " + buildString
		}
	case pin.LowerBound != "" || pin.UpperBound != "":
		bounds := make([]string, 0, 2)
		if pin.LowerBound != "" {
			bounds = append(bounds, fmt.Sprintf(">=%s", applyBound(version, pin.LowerBound)))
		}
		if pin.UpperBound != "" {
			upper := applyBound(version, pin.UpperBound)
			if strings.Trim(pin.UpperBound, "x.") == "" {
				// An x-pattern upper bound bumps the last kept segment.
				parts := strings.Split(upper, ".")
				if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
					parts[len(parts)-1] = strconv.Itoa(n + 1)
				}
				upper = strings.Join(parts, ".") + ".0a0"
			}
			bounds = append(bounds, fmt.Sprintf("<%s", upper))
		}
		constraint = strings.Join(bounds, ",")
	default:
		constraint = version
	}
	return pin.Name + " " + constraint, nil
}

// applyBound truncates version to the number of dot-separated segments
// named by bound (e.g. "x.x" against "1.2.3" yields "1.2"). resolvePin uses
// the result as is for a lower bound and, for an upper bound, bumps its last
// segment and appends ".0a0" ("x.x" against "1.2.3" yields "<1.3.0a0"). A
// bound that isn't an all-"x" pattern is returned unchanged (a literal
// override).
func applyBound(version, bound string) string {
	for _, c := range bound {
		if c != 'x' && c != '.' {
			return bound
		}
	}
	segments := strings.Count(bound, "x")
	parts := strings.Split(version, ".")
	if segments > len(parts) {
		segments = len(parts)
	}
	return strings.Join(parts[:segments], ".")
}
