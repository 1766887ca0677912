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
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zealic/xignore"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// fetchPath copies src.Path (resolved relative to opts.RecipeDir) into
// dest, honoring .gitignore-style exclusions unless UseGitignore is
// explicitly false.
func fetchPath(_ context.Context, src recipe.Source, dest string, opts Options) (*Result, error) {
	srcPath := src.Path
	if !filepath.IsAbs(srcPath) {
		srcPath = filepath.Join(opts.RecipeDir, srcPath)
	}

	useGitignore := true
	if src.UseGitignore != nil {
		useGitignore = *src.UseGitignore
	}

	var ignorePatterns []*xignore.Pattern
	if useGitignore {
		var err error
		ignorePatterns, err = loadGitignorePatterns(srcPath)
		if err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("path source %s: %w", srcPath, err)
	}
	if !info.IsDir() {
		return nil, copyTreeSingleFile(srcPath, dest)
	}

	if err := copyTree(srcPath, dest, ignorePatterns); err != nil {
		return nil, err
	}
	return &Result{Kind: recipe.SourcePathKind}, nil
}

func copyTreeSingleFile(srcPath, dest string) (*Result, error) { //nolint:unparam // Result kept for call-site symmetry
	dst := filepath.Join(dest, filepath.Base(srcPath))
	if err := copyFile(srcPath, dst); err != nil {
		return nil, err
	}
	return &Result{Kind: recipe.SourcePathKind}, nil
}

func loadGitignorePatterns(root string) ([]*xignore.Pattern, error) {
	ignorePath := filepath.Join(root, ".gitignore")
	f, err := os.Open(ignorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	ignF := xignore.Ignorefile{}
	if err := ignF.FromReader(f); err != nil {
		return nil, err
	}

	patterns := make([]*xignore.Pattern, 0, len(ignF.Patterns))
	for _, rule := range ignF.Patterns {
		p := xignore.NewPattern(rule)
		if err := p.Prepare(); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func isIgnored(patterns []*xignore.Pattern, relPath string) bool {
	for _, p := range patterns {
		if p.Match(relPath) {
			return true
		}
	}
	return false
}

func copyTree(srcRoot, dstRoot string, ignorePatterns []*xignore.Pattern) error {
	return filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.Name() == ".git" && d.IsDir() {
			return filepath.SkipDir
		}
		if isIgnored(ignorePatterns, rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		dst := filepath.Join(dstRoot, rel)
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		if d.Type()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, dst)
		}
		return copyFile(path, dst)
	})
}
