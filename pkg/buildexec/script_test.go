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

package buildexec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func TestCompileScriptDefaultsUnixInterpreter(t *testing.T) {
	s, err := CompileScript(recipe.Script{Content: []string{"echo hi"}}, FamilyLinux)
	require.NoError(t, err)
	require.Equal(t, []string{"/bin/sh"}, s.Argv)
	require.Equal(t, "echo hi", s.Content)
}

func TestCompileScriptDefaultsWindowsInterpreter(t *testing.T) {
	s, err := CompileScript(recipe.Script{Content: []string{"echo hi"}}, FamilyWindows)
	require.NoError(t, err)
	require.Equal(t, []string{"cmd.exe", "/c"}, s.Argv)
}

func TestCompileScriptInjectsCmdErrorLevelGuards(t *testing.T) {
	s, err := CompileScript(recipe.Script{Content: []string{"configure.bat", "", "make.bat"}}, FamilyWindows)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(s.Content, "configure.bat"))
	require.Contains(t, s.Content, "if %errorlevel% neq 0 exit %errorlevel%")
	lines := strings.Split(s.Content, "\n")
	require.Equal(t, "configure.bat", lines[0])
	require.Equal(t, "if %errorlevel% neq 0 exit %errorlevel%", lines[1])
}

func TestCompileScriptRejectsInvalidShellSyntax(t *testing.T) {
	_, err := CompileScript(recipe.Script{Content: []string{"if true; then"}}, FamilyLinux)
	require.Error(t, err)
}

func TestCompileScriptHonorsExplicitInterpreter(t *testing.T) {
	s, err := CompileScript(recipe.Script{Interpreter: "/usr/bin/python3", Content: []string{"print('hi')"}}, FamilyLinux)
	require.NoError(t, err)
	require.Equal(t, []string{"/usr/bin/python3"}, s.Argv)
}

func TestCompileScriptSplitsMultiArgInterpreter(t *testing.T) {
	s, err := CompileScript(recipe.Script{Interpreter: "/bin/bash -e"}, FamilyLinux)
	require.NoError(t, err)
	require.Equal(t, []string{"/bin/bash", "-e"}, s.Argv)
}
