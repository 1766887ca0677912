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

package provision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeActivationScript(t *testing.T, prefix, name, content string) {
	t.Helper()
	dir := filepath.Join(prefix, "etc", "conda", "activate.d")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeEnvVarFile(t *testing.T, prefix, name, content string) {
	t.Helper()
	dir := filepath.Join(prefix, "etc", "conda", "env_vars.d")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestActivateSourcesScriptsInLexicographicOrder(t *testing.T) {
	prefix := t.TempDir()
	writeActivationScript(t, prefix, "10-first.sh", "export GREETING=hello")
	writeActivationScript(t, prefix, "20-second.sh", "export GREETING=\"$GREETING world\"")

	env, err := Activate(context.Background(), nil, prefix)
	require.NoError(t, err)
	require.Equal(t, "hello world", env["GREETING"])
}

func TestActivateLoadsEnvVarFilesLastWins(t *testing.T) {
	prefix := t.TempDir()
	writeEnvVarFile(t, prefix, "10-first.json", `{"FOO":"a"}`)
	writeEnvVarFile(t, prefix, "20-second.json", `{"FOO":"b"}`)

	env, err := Activate(context.Background(), nil, prefix)
	require.NoError(t, err)
	require.Equal(t, "b", env["FOO"])
}

func TestActivateWithNoActivationDirIsNoop(t *testing.T) {
	env, err := Activate(context.Background(), map[string]string{"X": "1"}, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "1", env["X"])
}

func TestActivateBuildPrefixBeforeHost(t *testing.T) {
	build := t.TempDir()
	host := t.TempDir()
	writeActivationScript(t, build, "10-build.sh", "export STAGE=build")
	writeActivationScript(t, host, "10-host.sh", "export STAGE=\"${STAGE}+host\"")

	env, err := Activate(context.Background(), nil, build, host)
	require.NoError(t, err)
	require.Equal(t, "build+host", env["STAGE"])
}
