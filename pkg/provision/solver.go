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

// Package provision materializes build/host dependency environments: it
// invokes the external solver, installs the packages it resolves at the
// well-known prefixes, propagates run-exports, and activates the result
// (spec.md §4.5).
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// SolveRequest is the JSON request sent to the external solver subprocess
// (spec.md §6): a list of match specs against a list of channels for one
// platform.
type SolveRequest struct {
	Channels []string `json:"channels"`
	Specs    []string `json:"specs"`
	Platform string   `json:"platform"`
}

// SolvedPackage is one resolved entry of the solver's response.
type SolvedPackage struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Build       string   `json:"build"`
	BuildNumber int      `json:"build_number"`
	Channel     string   `json:"channel"`
	URL         string   `json:"url"`
	Depends     []string `json:"depends,omitempty"`
	Constrains  []string `json:"constrains,omitempty"`
	Noarch      string   `json:"noarch,omitempty"`
}

type solveResponse struct {
	Packages []SolvedPackage `json:"packages"`
	Error    string          `json:"error,omitempty"`
}

// SolverError reports a failure from the external solver, preserving the
// request that failed (spec.md §7: "Surfaced with the original match specs
// and channels").
type SolverError struct {
	Request SolveRequest
	Err     error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solving specs %v against channels %v: %v", e.Request.Specs, e.Request.Channels, e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }

// Solver resolves a set of match specs against a set of channels into a
// concrete, installable package list.
type Solver interface {
	Solve(ctx context.Context, req SolveRequest) ([]SolvedPackage, error)
}

// SubprocessSolver invokes an external solver binary, writing req as JSON on
// stdin and parsing a solveResponse from stdout. Per spec.md §6 the
// invocation is retried once on transient (non-solver) failure.
type SubprocessSolver struct {
	Command string
	Args    []string
	Timeout time.Duration
}

const defaultSolverTimeout = 5 * time.Minute

func (s SubprocessSolver) Solve(ctx context.Context, req SolveRequest) ([]SolvedPackage, error) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = defaultSolverTimeout
	}

	pkgs, err := s.attempt(ctx, req, timeout)
	if err != nil && isTransient(err) {
		// One retry on transient failure (process start/IO errors), not on a
		// solver-reported unsatisfiable-specs error.
		pkgs, err = s.attempt(ctx, req, timeout)
	}
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}

func (s SubprocessSolver) attempt(ctx context.Context, req SolveRequest, timeout time.Duration) ([]SolvedPackage, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, &SolverError{Request: req, Err: err}
	}

	cmd := exec.CommandContext(runCtx, s.Command, s.Args...) //nolint:gosec // solver command is operator-configured, not recipe-controlled
	cmd.Stdin = bytes.NewReader(reqJSON)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil, &SolverError{Request: req, Err: fmt.Errorf("%w: %s", err, stderr.String())}
		}
		return nil, &SolverError{Request: req, Err: execStartError{err}}
	}

	var resp solveResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, &SolverError{Request: req, Err: fmt.Errorf("parsing solver response: %w", err)}
	}
	if resp.Error != "" {
		return nil, &SolverError{Request: req, Err: fmt.Errorf("%s", resp.Error)}
	}
	return resp.Packages, nil
}

// execStartError distinguishes a failure to even launch the solver process
// (transient: worth one retry) from a solver-reported resolution failure.
type execStartError struct{ err error }

func (e execStartError) Error() string { return e.err.Error() }
func (e execStartError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var startErr execStartError
	return errors.As(err, &startErr)
}
