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

func TestSplitFindsSites(t *testing.T) {
	sites, err := Split(`hello ${{ name }}, version ${{ version }}!`)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	require.Equal(t, " name ", sites[0].Expr)
	require.Equal(t, " version ", sites[1].Expr)
}

func TestSplitIgnoresClosingBraceInString(t *testing.T) {
	sites, err := Split(`${{ "}}" }} rest`)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	require.Equal(t, ` "}}" `, sites[0].Expr)
}

func TestSplitUnterminated(t *testing.T) {
	_, err := Split(`${{ name `)
	require.Error(t, err)
}

func TestHasSites(t *testing.T) {
	require.True(t, HasSites(`${{ x }}`))
	require.False(t, HasSites(`plain text`))
}

func TestRenderString(t *testing.T) {
	env := NewEnv()
	env.Vars["package"] = Value{Kind: KindMap, Map: map[string]Value{
		"name":    Str("mypkg"),
		"version": Str("1.2.3"),
	}}

	out, err := RenderString(`${{ package.name }}-${{ package.version }}.tar.gz`, env)
	require.NoError(t, err)
	require.Equal(t, "mypkg-1.2.3.tar.gz", out)
}

func TestRenderStringNoSites(t *testing.T) {
	env := NewEnv()
	out, err := RenderString("plain text", env)
	require.NoError(t, err)
	require.Equal(t, "plain text", out)
}

func TestRenderStringRejectsUndetermined(t *testing.T) {
	env := NewEnv()
	env.Symbolic = true

	_, err := RenderString(`${{ unknown_variant_key }}`, env)
	require.Error(t, err)
}

func TestDiscoverStringMarksUsedKeys(t *testing.T) {
	env := NewEnv()
	env.Symbolic = true
	env.Vars["python"] = Str("3.11")
	env.VariantKeys["python"] = true

	err := DiscoverString(`build for ${{ python }} when ${{ openssl_variant == "3" }}`, env)
	require.NoError(t, err)
	require.True(t, env.UsedKeys["python"])
}
