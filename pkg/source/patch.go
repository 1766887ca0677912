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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// applyPatch applies a single unified diff at patchPath against workDir by
// shelling out to `patch -p1`, matching the conda-build convention for
// recipe-supplied patches.
func applyPatch(ctx context.Context, workDir, patchPath string) error {
	f, err := os.Open(patchPath)
	if err != nil {
		return err
	}
	defer f.Close()

	cmd := exec.CommandContext(ctx, "patch", "-p1", "--no-backup-if-mismatch") //nolint:gosec // patchPath comes from the recipe, run in the recipe's own build sandbox
	cmd.Dir = workDir
	cmd.Stdin = f
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("patch -p1 < %s: %w: %s", patchPath, err, stderr.String())
	}
	return nil
}

// runCommand runs name with args in dir, returning combined stderr on
// failure for diagnostics.
func runCommand(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // name/args are fixed call sites (git lfs pull), not recipe-controlled
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, stderr.String())
	}
	return nil
}
