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

package stagingcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/provision"
	"github.com/rbuild-dev/rbuild/pkg/variant"
)

func TestSaveRestoreRoundTripsNewFilesAndWorkDir(t *testing.T) {
	root := t.TempDir()
	hostPrefix := t.TempDir()
	workDir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(hostPrefix, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(hostPrefix, "lib", "libfoo.a"), []byte("archive"), 0o644))
	require.NoError(t, os.Symlink("libfoo.a", filepath.Join(hostPrefix, "lib", "libfoo.so")))

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "build.log"), []byte("ok"), 0o644))

	key := ComputeKey(
		[]provision.SolvedPackage{{Name: "zlib", Version: "1.3", Build: "h1"}},
		variant.Combination{"python": "3.11"},
		[]string{"python"},
		"linux-64", "linux-64",
	)
	meta := Metadata{Package: "zlib-static", HostPlatform: "linux-64", BuildPlatform: "linux-64"}

	require.NoError(t, Save(root, key, meta, hostPrefix, []string{"lib/libfoo.a", "lib/libfoo.so"}, workDir))

	hit, err := Store{Root: root}.Lookup(key)
	require.NoError(t, err)
	require.True(t, hit)

	destPrefix := t.TempDir()
	destWork := t.TempDir()
	got, err := Restore(root, key, destPrefix, destWork)
	require.NoError(t, err)
	require.Equal(t, "zlib-static", got.Package)

	content, err := os.ReadFile(filepath.Join(destPrefix, "lib", "libfoo.a"))
	require.NoError(t, err)
	require.Equal(t, "archive", string(content))

	target, err := os.Readlink(filepath.Join(destPrefix, "lib", "libfoo.so"))
	require.NoError(t, err)
	require.Equal(t, "libfoo.a", target)

	log, err := os.ReadFile(filepath.Join(destWork, "build.log"))
	require.NoError(t, err)
	require.Equal(t, "ok", string(log))
}

func TestLookupFalseWhenEntryAbsent(t *testing.T) {
	key := ComputeKey(
		[]provision.SolvedPackage{{Name: "zlib", Version: "1.3", Build: "h1"}},
		variant.Combination{"python": "3.11"},
		[]string{"python"},
		"linux-64", "linux-64",
	)
	hit, err := (Store{Root: t.TempDir()}).Lookup(key)
	require.NoError(t, err)
	require.False(t, hit)
}
