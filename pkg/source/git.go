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
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

func fetchGit(ctx context.Context, src recipe.Source, dest string, opts Options) (*Result, error) {
	key := gitCacheKey(src)
	cacheDir, err := cachePath(opts.CacheDir, key)
	if err != nil {
		return nil, err
	}
	bareDir := filepath.Join(cacheDir, "repo.git")

	var resolvedRev string
	if err := withCacheLock(opts.CacheDir, key, func() error {
		if cacheEntryExists(cacheDir) {
			return nil
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return err
		}
		_ = os.RemoveAll(bareDir)

		cloneOpts := &git.CloneOptions{
			URL:        src.Git,
			Tags:       git.AllTags,
			NoCheckout: true,
		}
		if src.Depth != nil && *src.Depth > 0 {
			cloneOpts.Depth = *src.Depth
		}
		if src.Tag != "" {
			cloneOpts.ReferenceName = plumbing.NewTagReferenceName(src.Tag)
			cloneOpts.SingleBranch = true
		} else if src.Branch != "" {
			cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
			cloneOpts.SingleBranch = true
		}

		repo, err := git.PlainCloneContext(ctx, bareDir, true, cloneOpts)
		if err != nil {
			return fmt.Errorf("cloning %s: %w", src.Git, err)
		}

		rev := src.Rev
		if rev == "" {
			head, err := repo.Head()
			if err != nil {
				return fmt.Errorf("resolving HEAD of %s: %w", src.Git, err)
			}
			rev = head.Hash().String()
		} else {
			if _, err := repo.ResolveRevision(plumbing.Revision(rev)); err != nil {
				return fmt.Errorf("resolving rev %s in %s: %w", rev, src.Git, err)
			}
		}
		resolvedRev = rev

		if err := os.WriteFile(filepath.Join(cacheDir, "REV"), []byte(resolvedRev), 0o644); err != nil {
			return err
		}
		return markCacheEntryComplete(cacheDir)
	}); err != nil {
		return nil, err
	}

	if resolvedRev == "" {
		raw, err := os.ReadFile(filepath.Join(cacheDir, "REV"))
		if err != nil {
			return nil, fmt.Errorf("reading cached git revision: %w", err)
		}
		resolvedRev = string(raw)
	}

	if err := checkoutWorktree(ctx, bareDir, resolvedRev, dest, src.LFS); err != nil {
		return nil, err
	}

	return &Result{
		Kind:        recipe.SourceGitKind,
		CacheKey:    key,
		ResolvedRev: resolvedRev,
	}, nil
}

// checkoutWorktree materializes rev from the cached bare repository bareDir
// into dest by cloning locally (go-git does not support checking out a bare
// repo's tree directly into an arbitrary path) and checking out rev there.
// When lfs is set, git-lfs pull runs before .git/ is removed, since it needs
// the repository metadata to smudge pointer files.
func checkoutWorktree(ctx context.Context, bareDir, rev, dest string, lfs bool) error {
	repo, err := git.PlainClone(dest, false, &git.CloneOptions{
		URL: bareDir,
	})
	if err != nil {
		return fmt.Errorf("checking out worktree: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Hash:  plumbing.NewHash(rev),
		Force: true,
	}); err != nil {
		return fmt.Errorf("checking out %s: %w", rev, err)
	}

	if lfs {
		if err := resolveLFSPointers(ctx, dest); err != nil {
			return fmt.Errorf("resolving git LFS pointers: %w", err)
		}
	}

	// The recipe tree wants plain source files, not the .git/ metadata
	// directory checked out alongside them.
	return os.RemoveAll(filepath.Join(dest, ".git"))
}

// resolveLFSPointers replaces any Git LFS pointer files under dir with
// their real blob content by shelling out to the git-lfs CLI (go-git has no
// native LFS smudge support).
func resolveLFSPointers(ctx context.Context, dir string) error {
	return runCommand(ctx, dir, "git", "lfs", "pull")
}
