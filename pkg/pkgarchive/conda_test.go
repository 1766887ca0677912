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

package pkgarchive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func TestWriteCondaProducesThreeStoredMembers(t *testing.T) {
	in := sampleInputs()
	entries, err := BuildTree(in)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteConda(&buf, "hello", "1.0.0", "h1234567_0", entries, in, CondaOptions{}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		require.Equal(t, zip.Store, f.Method)
	}
	require.Contains(t, names, "metadata.json")
	require.Contains(t, names, "info-hello-1.0.0-h1234567_0.tar.zst")
	require.Contains(t, names, "pkg-hello-1.0.0-h1234567_0.tar.zst")
}

func TestWriteCondaInfoTarContainsIndexJSON(t *testing.T) {
	in := sampleInputs()
	entries, err := BuildTree(in)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteConda(&buf, "hello", "1.0.0", "h1234567_0", entries, in, CondaOptions{}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var infoZst []byte
	for _, f := range zr.File {
		if f.Name == "info-hello-1.0.0-h1234567_0.tar.zst" {
			rc, err := f.Open()
			require.NoError(t, err)
			infoZst, err = io.ReadAll(rc)
			require.NoError(t, err)
			rc.Close()
		}
	}
	require.NotEmpty(t, infoZst)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	tarBytes, err := dec.DecodeAll(infoZst, nil)
	require.NoError(t, err)

	tr := tar.NewReader(bytes.NewReader(tarBytes))
	var found bool
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if hdr.Name == "info/index.json" {
			found = true
		}
	}
	require.True(t, found)
}
