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

import "fmt"

// Span locates a diagnostic within the recipe source text.
type Span struct {
	Line, Column, Length int
}

func (s Span) String() string { return fmt.Sprintf("%d:%d", s.Line, s.Column) }

// ParseError is the span-annotated diagnostic raised for any Stage 0
// structural or schema problem (spec.md §4.2, §7 RecipeParseError).
type ParseError struct {
	Span       Span
	Message    string
	Suggestion string
}

func (e *ParseError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Span, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("%s: %s", e.Span, e.Message)
}

// DedupeErrors removes duplicate diagnostics that share a span and message,
// so a single root cause is reported once (spec.md §4.2: "exactly one error
// per root cause when possible").
func DedupeErrors(errs []*ParseError) []*ParseError {
	seen := make(map[string]bool, len(errs))
	out := make([]*ParseError, 0, len(errs))
	for _, e := range errs {
		key := fmt.Sprintf("%d:%d:%s", e.Span.Line, e.Span.Column, e.Message)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
