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
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
)

// HashPayload computes the SHA-256 of every payload entry's real file
// concurrently, returning a map from relative path to hex digest. The
// digests can be compared with the paths.json sha256 fields, which
// pkg/postprocess computes separately (spec.md §8 invariant 3).
func HashPayload(ctx context.Context, entries []Entry, concurrency int) (map[string]string, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make(map[string]string, len(entries))
	var mu sync.Mutex

	for _, e := range entries {
		if e.SourcePath == "" {
			continue
		}
		e := e
		g.Go(func() error {
			sum, err := hashFile(e.SourcePath)
			if err != nil {
				return err
			}
			mu.Lock()
			results[e.Path] = sum
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func hashFile(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return "", err
		}
		h := sha256.Sum256([]byte(target))
		return hex.EncodeToString(h[:]), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
