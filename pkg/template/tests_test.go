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

func TestIsDefinedUndefined(t *testing.T) {
	env := NewEnv()
	env.Vars["x"] = Undefined()

	v, err := EvalExpr(`x is undefined`, env)
	require.NoError(t, err)
	require.True(t, v.Truthy())

	v, err = EvalExpr(`x is not defined`, env)
	require.NoError(t, err)
	require.True(t, v.Truthy())
}

func TestIsTypeTests(t *testing.T) {
	env := NewEnv()
	env.Vars["n"] = Int(4)
	env.Vars["s"] = Str("hi")

	v, err := EvalExpr(`n is integer`, env)
	require.NoError(t, err)
	require.True(t, v.Truthy())

	v, err = EvalExpr(`n is even`, env)
	require.NoError(t, err)
	require.True(t, v.Truthy())

	v, err = EvalExpr(`s is string`, env)
	require.NoError(t, err)
	require.True(t, v.Truthy())
}

func TestIsStartingEndingWith(t *testing.T) {
	env := NewEnv()
	env.Vars["s"] = Str("libfoo.so")

	v, err := EvalExpr(`s is startingwith("lib")`, env)
	require.NoError(t, err)
	require.True(t, v.Truthy())

	v, err = EvalExpr(`s is endingwith(".so")`, env)
	require.NoError(t, err)
	require.True(t, v.Truthy())
}
