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
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
)

// Execute starts cfg's pod, runs its compiled script to completion, and
// always tears the pod down afterward, returning a *BuildScriptFailed if the
// script itself is what failed. A pod start failure is returned as a plain
// wrapped error; a teardown failure is only logged.
func Execute(ctx context.Context, sandbox Sandbox, cfg *Config) error {
	log := clog.FromContext(ctx)

	if cfg.Script == nil {
		return fmt.Errorf("buildexec: Config.Script is required")
	}

	log.Infof("starting build pod %s", cfg.Name)
	if err := sandbox.StartPod(ctx, cfg); err != nil {
		return fmt.Errorf("starting pod for %s: %w", cfg.Name, err)
	}
	defer func() {
		if err := sandbox.TerminatePod(ctx, cfg); err != nil {
			log.Warnf("terminating pod for %s: %v", cfg.Name, err)
		}
	}()

	argv := append([]string{}, cfg.Script.Argv...)
	argv = append(argv, scriptCommandArgs(cfg.Script)...)

	log.Infof("running build script for %s", cfg.Name)
	if err := sandbox.Run(ctx, cfg, nil, argv...); err != nil {
		return newBuildScriptFailed(cfg.Name, err)
	}
	return nil
}

// scriptCommandArgs returns the arguments appended after the interpreter
// argv to have it execute the script body. POSIX shells take `-c <content>`;
// cmd.exe's `/c` (already the last element of Argv) takes the rest of the
// command line directly as the script to run.
func scriptCommandArgs(s *CompiledScript) []string {
	if len(s.Argv) > 0 && isCmdInterpreter(s.Argv[0]) {
		return []string{s.Content}
	}
	return []string{"-c", s.Content}
}
