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

package source

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
}

func TestExtractArchiveHoistsSingleTopLevelDir(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pkg.tar.gz")
	writeTarGz(t, archivePath, map[string]string{
		"pkg-1.0/README":     "hello",
		"pkg-1.0/src/main.c": "int main(){}",
	})

	dest := t.TempDir()
	hoisted, err := extractArchive(archivePath, "pkg.tar.gz", dest)
	require.NoError(t, err)
	require.True(t, hoisted)

	data, err := os.ReadFile(filepath.Join(dest, "README"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
	_, err = os.Stat(filepath.Join(dest, "src", "main.c"))
	require.NoError(t, err)
}

func TestExtractArchiveDoesNotHoistMultipleTopLevelEntries(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "pkg.tar.gz")
	writeTarGz(t, archivePath, map[string]string{
		"a.txt": "a",
		"b.txt": "b",
	})

	dest := t.TempDir()
	hoisted, err := extractArchive(archivePath, "pkg.tar.gz", dest)
	require.NoError(t, err)
	require.False(t, hoisted)

	_, err = os.Stat(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "b.txt"))
	require.NoError(t, err)
}

func TestExtractArchiveRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{Name: "../../etc/passwd", Mode: 0o644, Size: 1}
	require.NoError(t, tw.WriteHeader(hdr))
	_, err = tw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	dest := t.TempDir()
	_, err = extractArchive(archivePath, "evil.tar.gz", dest)
	require.Error(t, err)
}

func TestExtractArchiveCopiesUnrecognizedFileThrough(t *testing.T) {
	dir := t.TempDir()
	plainPath := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(plainPath, []byte("just a file"), 0o644))

	dest := t.TempDir()
	hoisted, err := extractArchive(plainPath, "plain.txt", dest)
	require.NoError(t, err)
	require.False(t, hoisted)
	data, err := os.ReadFile(filepath.Join(dest, "plain.txt"))
	require.NoError(t, err)
	require.Equal(t, "just a file", string(data))
}
