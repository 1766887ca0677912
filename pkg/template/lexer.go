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

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

// lex tokenizes a single ${{ ... }} expression body (the text between the
// delimiters has already been extracted by Split).
func lex(expr string) ([]token, error) {
	var toks []token
	i := 0
	n := len(expr)

	for i < n {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'' || c == '"':
			start := i
			quote := c
			i++
			var sb strings.Builder
			closed := false
			for i < n {
				if expr[i] == '\\' && i+1 < n {
					sb.WriteByte(expr[i+1])
					i += 2
					continue
				}
				if expr[i] == quote {
					i++
					closed = true
					break
				}
				sb.WriteByte(expr[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal at position %d", start)
			}
			toks = append(toks, token{kind: tokString, val: sb.String(), pos: start})
		case isDigit(c):
			start := i
			isFloat := false
			for i < n && (isDigit(expr[i]) || expr[i] == '.') {
				if expr[i] == '.' {
					isFloat = true
				}
				i++
			}
			kind := tokInt
			if isFloat {
				kind = tokFloat
			}
			toks = append(toks, token{kind: kind, val: expr[start:i], pos: start})
		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(expr[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, val: expr[start:i], pos: start})
		default:
			// punctuation, possibly multi-char
			two := ""
			if i+1 < n {
				two = expr[i : i+2]
			}
			switch two {
			case "==", "!=", "<=", ">=", "||", "&&":
				toks = append(toks, token{kind: tokPunct, val: two, pos: i})
				i += 2
				continue
			}
			switch c {
			case '(', ')', '[', ']', ',', '.', '|', '=', '<', '>', '+', '-', '*', '/', '%', ':', '{', '}':
				toks = append(toks, token{kind: tokPunct, val: string(c), pos: i})
				i++
			default:
				return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
			}
		}
	}

	toks = append(toks, token{kind: tokEOF, pos: n})
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
