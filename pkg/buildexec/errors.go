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

import "fmt"

// ExitError is the interface a Sandbox's Run error may optionally satisfy to
// let BuildScriptFailed carry the exit code and captured output alongside
// the underlying error.
type ExitError interface {
	error
	ExitCode() int
	Output() string
}

// BuildScriptFailed reports a non-zero exit from a build script, as
// distinct from an error standing up or tearing down the sandbox itself.
// ExitCode and Output are populated on a best-effort basis: they are only
// available when the Sandbox's error satisfies ExitError.
type BuildScriptFailed struct {
	Name     string
	ExitCode int
	Output   string
	Err      error
}

func (e *BuildScriptFailed) Error() string {
	return fmt.Sprintf("build script for %s failed: %v", e.Name, e.Err)
}

func (e *BuildScriptFailed) Unwrap() error { return e.Err }

func newBuildScriptFailed(name string, err error) *BuildScriptFailed {
	failed := &BuildScriptFailed{Name: name, Err: err}
	if ee, ok := err.(ExitError); ok {
		failed.ExitCode = ee.ExitCode()
		failed.Output = ee.Output()
	}
	return failed
}
