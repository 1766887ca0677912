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

func TestFiltersStringOps(t *testing.T) {
	env := NewEnv()
	v, err := EvalExpr(`"HeLLo" | lower`, env)
	require.NoError(t, err)
	require.Equal(t, "hello", v.Str)

	v, err = EvalExpr(`"  x  " | trim`, env)
	require.NoError(t, err)
	require.Equal(t, "x", v.Str)

	v, err = EvalExpr(`"a-b-c" | replace("-", "_")`, env)
	require.NoError(t, err)
	require.Equal(t, "a_b_c", v.Str)
}

func TestFiltersSequenceOps(t *testing.T) {
	env := NewEnv()
	v, err := EvalExpr(`[3, 1, 2] | sort`, env)
	require.NoError(t, err)
	require.Equal(t, []Value{Int(1), Int(2), Int(3)}, v.List)

	v, err = EvalExpr(`[1, 2, 3] | reverse`, env)
	require.NoError(t, err)
	require.Equal(t, []Value{Int(3), Int(2), Int(1)}, v.List)

	v, err = EvalExpr(`[1, 1, 2] | unique | length`, env)
	require.NoError(t, err)
	require.Equal(t, int64(2), v.Int)

	v, err = EvalExpr(`["a", "b"] | join(",")`, env)
	require.NoError(t, err)
	require.Equal(t, "a,b", v.Str)
}

func TestFiltersDefault(t *testing.T) {
	env := NewEnv()
	env.Symbolic = false
	env.Vars["x"] = Undefined()
	v, err := EvalExpr(`x | default("fallback")`, env)
	require.NoError(t, err)
	require.Equal(t, "fallback", v.Str)
}

func TestFiltersVersionToBuildstring(t *testing.T) {
	env := NewEnv()
	v, err := EvalExpr(`"1.2-3+local" | version_to_buildstring`, env)
	require.NoError(t, err)
	require.Equal(t, "1.2_3", v.Str)
}

func TestFiltersMinMax(t *testing.T) {
	env := NewEnv()
	v, err := EvalExpr(`[3, 1, 2] | min`, env)
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Int)

	v, err = EvalExpr(`[3, 1, 2] | max`, env)
	require.NoError(t, err)
	require.Equal(t, int64(3), v.Int)
}
