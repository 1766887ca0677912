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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// LocalSandbox runs build scripts directly on the host via os/exec, with no
// namespace, container or VM isolation. It exists so this system has a
// working Sandbox out of the box (cmd/rbuild's default); a real deployment
// is expected to supply its own isolating Sandbox, the same way it supplies
// its own Solver subprocess (spec.md §6's external-tool boundary applies to
// both).
type LocalSandbox struct {
	runningDir map[string]string
}

// NewLocalSandbox constructs a LocalSandbox.
func NewLocalSandbox() *LocalSandbox {
	return &LocalSandbox{runningDir: map[string]string{}}
}

func (s *LocalSandbox) Close() error { return nil }

func (s *LocalSandbox) Name() string { return "local" }

func (s *LocalSandbox) TestUsability(context.Context) bool { return true }

func (s *LocalSandbox) TempDir() string { return "" }

// StartPod creates cfg.WorkDir (the only "pod" state a non-isolating
// sandbox has) and records it for Run/TerminatePod.
func (s *LocalSandbox) StartPod(_ context.Context, cfg *Config) error {
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("creating work dir %s: %w", cfg.WorkDir, err)
	}
	s.runningDir[cfg.Name] = cfg.WorkDir
	return nil
}

// Run executes cmd directly, with cfg.Env (plus envOverride) as its
// environment and cfg.WorkDir as its working directory. Mounts are not
// bind-mounted (there is no namespace to mount into); cfg.Mounts' host
// paths are expected to already be reachable at the guest paths recorded in
// cfg.Env (PREFIX, SRC_DIR, ...), which is true on a host run where guest
// and host share one filesystem.
func (s *LocalSandbox) Run(ctx context.Context, cfg *Config, envOverride map[string]string, cmd ...string) error {
	if len(cmd) == 0 {
		return fmt.Errorf("buildexec: empty command")
	}
	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...) //nolint:gosec // cmd is the recipe's own compiled build script, run in its own prefix
	c.Dir = cfg.WorkDir
	c.Env = mergedEnvSlice(cfg.Env, envOverride)

	var stderr bytes.Buffer
	c.Stdout = os.Stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("%v: %w: %s", cmd, err, stderr.String())
	}
	return nil
}

func (s *LocalSandbox) TerminatePod(_ context.Context, cfg *Config) error {
	delete(s.runningDir, cfg.Name)
	return nil
}

func mergedEnvSlice(base, override map[string]string) []string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}
