// Copyright 2022 Chainguard, Inc.
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

import "context"

// Config describes one build-script invocation handed to a Sandbox: the
// prefixes and source tree to bind-mount, the environment to run with, and
// the compiled script itself. The sandbox implementation that actually
// isolates the process (namespaces, a VM, a remote executor, ...) lives
// outside this module; Config is the contract between this package and it.
type Config struct {
	// Name identifies this build for logging and temp-directory naming; it
	// embeds enough of the output's identity (package name, build hash) to
	// tell concurrent builds of different outputs apart.
	Name string

	// Mounts maps host paths to guest paths for sandboxes that bind-mount:
	// whatever the caller adds (host/build prefixes, source tree, recipe
	// dir), at the guest paths that Env's PREFIX and SRC_DIR refer to.
	Mounts map[string]string

	WorkDir string
	Env     map[string]string
	Script  *CompiledScript

	Platform string
}

// Debugger is an optional interface sandboxes can implement to support
// dropping into an interactive shell inside a failed or paused build.
type Debugger interface {
	Debug(ctx context.Context, cfg *Config, envOverride map[string]string, cmd ...string) error
}

// Sandbox is the hand-off point between this package and whatever isolates
// the build script's execution. Sandboxing itself (namespaces, VMs, remote
// workers) is an external collaborator; this package only composes Config
// and interprets the result.
type Sandbox interface {
	Close() error
	Name() string
	TestUsability(ctx context.Context) bool

	StartPod(ctx context.Context, cfg *Config) error
	// Run executes cmd inside the pod started by StartPod, with envOverride
	// merged on top of cfg.Env.
	Run(ctx context.Context, cfg *Config, envOverride map[string]string, cmd ...string) error
	TerminatePod(ctx context.Context, cfg *Config) error

	// TempDir returns the sandbox's preferred base for temporary
	// directories, or "" if the system default is fine.
	TempDir() string
}
