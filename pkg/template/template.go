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

package template

import "fmt"

const (
	openDelim  = "${{"
	closeDelim = "}}"
)

// Site is one ${{ ... }} interpolation found in recipe text.
type Site struct {
	// Start and End are byte offsets of the whole "${{ ... }}" construct
	// within the scanned string, including the delimiters.
	Start, End int
	// Expr is the raw text between the delimiters, not yet parsed.
	Expr string
}

// Split scans s for every ${{ ... }} site. It is quote-aware: a "}}" inside
// a single- or double-quoted string literal does not close the site.
func Split(s string) ([]Site, error) {
	var sites []Site
	i := 0
	n := len(s)
	for i < n {
		start := indexFrom(s, openDelim, i)
		if start == -1 {
			break
		}
		exprStart := start + len(openDelim)
		end, exprEnd, err := findClose(s, exprStart)
		if err != nil {
			return nil, fmt.Errorf("unterminated %s at offset %d", openDelim, start)
		}
		sites = append(sites, Site{
			Start: start,
			End:   end,
			Expr:  s[exprStart:exprEnd],
		})
		i = end
	}
	return sites, nil
}

func indexFrom(s, sub string, from int) int {
	for i := from; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// findClose returns (end, exprEnd) where end is the offset just past the
// closing "}}" and exprEnd is the offset of the closing delimiter itself,
// skipping over quoted string contents.
func findClose(s string, from int) (int, int, error) {
	i := from
	n := len(s)
	for i < n {
		c := s[i]
		if c == '\'' || c == '"' {
			quote := c
			i++
			for i < n && s[i] != quote {
				if s[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				i++
			}
			if i >= n {
				return 0, 0, fmt.Errorf("unterminated string literal")
			}
			i++
			continue
		}
		if i+len(closeDelim) <= n && s[i:i+len(closeDelim)] == closeDelim {
			return i + len(closeDelim), i, nil
		}
		i++
	}
	return 0, 0, fmt.Errorf("no closing %s found", closeDelim)
}

// HasSites reports whether s contains at least one ${{ ... }} site, without
// the cost of a full parse.
func HasSites(s string) bool {
	return indexFrom(s, openDelim, 0) != -1
}

// EvalExpr parses and evaluates a single expression body (the text between
// ${{ and }}, not including the delimiters) against env.
func EvalExpr(expr string, env *Env) (Value, error) {
	node, err := Parse(expr)
	if err != nil {
		return Value{}, err
	}
	return Eval(node, env)
}

// RenderString substitutes every ${{ ... }} site in s with the string form
// of its evaluated value. Used for Stage 1 concrete rendering; Stage 0
// discovery instead calls EvalExpr directly against each site to explore
// conditionals without needing a fully concrete string.
func RenderString(s string, env *Env) (string, error) {
	sites, err := Split(s)
	if err != nil {
		return "", err
	}
	if len(sites) == 0 {
		return s, nil
	}

	var out []byte
	last := 0
	for _, site := range sites {
		out = append(out, s[last:site.Start]...)
		v, err := EvalExpr(site.Expr, env)
		if err != nil {
			return "", fmt.Errorf("evaluating %q: %w", site.Expr, err)
		}
		if v.IsUndetermined() {
			return "", fmt.Errorf("expression %q is undetermined outside of variant discovery", site.Expr)
		}
		out = append(out, v.AsString()...)
		last = site.End
	}
	out = append(out, s[last:]...)
	return string(out), nil
}

// DiscoverString evaluates every ${{ ... }} site in s against a symbolic Env
// purely to record which variant keys it touches (Env.UsedKeys), without
// requiring the result to be concrete. Errors from genuinely malformed
// expressions still propagate; Undetermined results are expected and
// ignored.
func DiscoverString(s string, env *Env) error {
	sites, err := Split(s)
	if err != nil {
		return err
	}
	for _, site := range sites {
		if _, err := EvalExpr(site.Expr, env); err != nil {
			return fmt.Errorf("discovering %q: %w", site.Expr, err)
		}
	}
	return nil
}
