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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexBasic(t *testing.T) {
	toks, err := lex(`compiler('c') == "gcc_x86_64" and 1 + 2.5`)
	require.NoError(t, err)

	var kinds []tokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.kind)
	}
	require.Equal(t, []tokenKind{
		tokIdent, tokPunct, tokString, tokPunct,
		tokPunct, tokString,
		tokIdent,
		tokInt, tokPunct, tokFloat,
		tokEOF,
	}, kinds)
}

func TestLexStringEscapes(t *testing.T) {
	toks, err := lex(`"a\"b"`)
	require.NoError(t, err)
	require.Equal(t, `a"b`, toks[0].val)
}

func TestLexUnterminatedString(t *testing.T) {
	_, err := lex(`"abc`)
	require.Error(t, err)
}

func TestLexMultiCharOperators(t *testing.T) {
	toks, err := lex(`a >= b && c != d || e`)
	require.NoError(t, err)
	var ops []string
	for _, tok := range toks {
		if tok.kind == tokPunct {
			ops = append(ops, tok.val)
		}
	}
	require.Equal(t, []string{">=", "&&", "!=", "||"}, ops)
}

func TestLexUnexpectedCharacter(t *testing.T) {
	_, err := lex(`a ~ b`)
	require.Error(t, err)
}
