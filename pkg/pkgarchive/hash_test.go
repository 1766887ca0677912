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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPayloadMatchesDirectSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	entries := []Entry{{Path: "f", SourcePath: path}, {Path: "meta", Content: []byte("x")}}
	sums, err := HashPayload(context.Background(), entries, 2)
	require.NoError(t, err)

	want := sha256.Sum256([]byte("hello world"))
	require.Equal(t, hex.EncodeToString(want[:]), sums["f"])
	require.NotContains(t, sums, "meta")
}
