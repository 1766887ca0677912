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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chainguard-dev/clog/slogtest"
	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return slogtest.Context(t)
}

func TestProcessDropsAlwaysExcludedAndRegistersRemainingFiles(t *testing.T) {
	prefix := t.TempDir()
	before, err := CaptureManifest(prefix)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(prefix, "share", "doc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "share", "doc", "readme.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "module.la"), []byte("x"), 0o644))

	after, err := CaptureManifest(prefix)
	require.NoError(t, err)

	result, err := Process(testContext(t), Options{
		HostPrefix: prefix,
		Before:     before,
		After:      after,
		Build:      recipe.Build{},
	})
	require.NoError(t, err)

	var names []string
	for _, p := range result.Paths {
		names = append(names, p.Path)
	}
	require.Contains(t, names, "share/doc")
	require.Contains(t, names, "share/doc/readme.txt")
	require.NotContains(t, names, "module.la")
}

func TestProcessNoarchPythonLowersEntryPoints(t *testing.T) {
	prefix := t.TempDir()
	before, err := CaptureManifest(prefix)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(prefix, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "bin", "mycli"), []byte("#!/usr/bin/env python\n"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(prefix, "lib", "python3.11", "site-packages"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "lib", "python3.11", "site-packages", "mypkg.py"), []byte("x"), 0o644))

	after, err := CaptureManifest(prefix)
	require.NoError(t, err)

	result, err := Process(testContext(t), Options{
		HostPrefix: prefix,
		Before:     before,
		After:      after,
		Build: recipe.Build{
			Noarch: recipe.NoarchPython,
			Python: recipe.PythonOptions{
				EntryPoints: []recipe.PythonEntryPoint{{Name: "mycli", Module: "mypkg", Func: "main"}},
			},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result.LinkJSON)

	var names []string
	for _, p := range result.Paths {
		names = append(names, p.Path)
	}
	require.NotContains(t, names, "bin/mycli")
	require.Contains(t, names, "site-packages/mypkg.py")
}

func TestProcessHashesRegularFiles(t *testing.T) {
	prefix := t.TempDir()
	before, err := CaptureManifest(prefix)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(prefix, "data.txt"), []byte("hello world"), 0o644))

	after, err := CaptureManifest(prefix)
	require.NoError(t, err)

	result, err := Process(testContext(t), Options{HostPrefix: prefix, Before: before, After: after})
	require.NoError(t, err)
	require.Len(t, result.Paths, 1)
	require.NotEmpty(t, result.Paths[0].SHA256)
	require.Equal(t, int64(len("hello world")), result.Paths[0].SizeInBytes)
}
