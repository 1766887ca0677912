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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func TestLocalSandboxRunsCompiledScript(t *testing.T) {
	work := t.TempDir()
	sb := NewLocalSandbox()
	cfg := &Config{
		Name:    "test",
		WorkDir: work,
		Env:     map[string]string{"PATH": os.Getenv("PATH"), "GREETING": "hi"},
	}

	require.NoError(t, sb.StartPod(context.Background(), cfg))
	defer func() { require.NoError(t, sb.TerminatePod(context.Background(), cfg)) }()

	script, err := CompileScript(recipe.Script{Content: []string{`echo "$GREETING" > out.txt`}}, FamilyLinux)
	require.NoError(t, err)
	argv := append([]string{}, script.Argv...)
	argv = append(argv, scriptCommandArgs(script)...)

	require.NoError(t, sb.Run(context.Background(), cfg, nil, argv...))

	data, err := os.ReadFile(filepath.Join(work, "out.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi\n", string(data))
}
