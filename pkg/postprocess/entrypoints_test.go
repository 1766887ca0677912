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

package postprocess

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func TestLowerPythonEntryPointsNoEntryPointsIsNoop(t *testing.T) {
	paths := []string{"bin/foo"}
	out, link := LowerPythonEntryPoints(paths, recipe.PythonOptions{}, nil)
	require.Equal(t, paths, out)
	require.Nil(t, link)
}

func TestLowerPythonEntryPointsDropsLauncherFile(t *testing.T) {
	paths := []string{"bin/mycli", "site-packages/mypkg/__init__.py"}
	opts := recipe.PythonOptions{EntryPoints: []recipe.PythonEntryPoint{{Name: "mycli", Module: "mypkg.cli", Func: "main"}}}

	out, link := LowerPythonEntryPoints(paths, opts, nil)
	require.Equal(t, []string{"site-packages/mypkg/__init__.py"}, out)
	require.NotNil(t, link)
	require.Equal(t, "python", link.NoarchType)
	require.Equal(t, opts.EntryPoints, link.EntryPoints)
}

func TestLowerPythonEntryPointsUsesProvidedPredicate(t *testing.T) {
	paths := []string{"Scripts/mycli.exe"}
	opts := recipe.PythonOptions{EntryPoints: []recipe.PythonEntryPoint{{Name: "mycli"}}}

	out, _ := LowerPythonEntryPoints(paths, opts, func(name string) bool { return name == "mycli.exe" })
	require.Empty(t, out)
}
