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

package testharness

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/rbuild-dev/rbuild/pkg/buildexec"
	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// Status is the outcome of one test entry.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome records what happened when running one `tests:` entry.
type Outcome struct {
	Index  int
	Kind   recipe.TestKind
	Status Status
	Detail string
}

// EnvConfig builds the buildexec.Config for one test index: the fresh
// environment containing the just-built package plus declared test
// dependencies, with WorkDir set to the restored `info/tests/<i>/`
// directory (spec.md §4.10: "the harness restores info/tests/<i>/ as the
// test's working directory, then executes").
type EnvConfig func(index int) (*buildexec.Config, error)

// Run executes every script/python/perl/r test against sandbox, in order,
// and records downstream tests as skipped without executing them (the
// binding decision for the Open Question spec.md leaves unresolved:
// downstream tests are parsed but never built). package_contents tests are
// not run here at all: they're enforced at build time by
// CheckPackageContents, before the archive is ever written, so by test
// time they've already either failed the build or passed.
func Run(ctx context.Context, sandbox buildexec.Sandbox, fam buildexec.PlatformFamily, tests []recipe.Test, envFor EnvConfig) ([]Outcome, error) {
	log := clog.FromContext(ctx)
	outcomes := make([]Outcome, 0, len(tests))

	for i, test := range tests {
		if test.Kind == recipe.TestDownstream {
			pkg := ""
			if test.Downstream != nil {
				pkg = test.Downstream.Package
			}
			log.Infof("test %d: skipping downstream test against %s", i, pkg)
			outcomes = append(outcomes, Outcome{Index: i, Kind: test.Kind, Status: StatusSkipped, Detail: pkg})
			continue
		}
		if test.Kind == recipe.TestPackageContents {
			outcomes = append(outcomes, Outcome{Index: i, Kind: test.Kind, Status: StatusSkipped, Detail: "enforced at build time"})
			continue
		}

		commands, err := commandsForTest(test)
		if err != nil {
			return outcomes, fmt.Errorf("test %d: %w", i, err)
		}

		cfg, err := envFor(i)
		if err != nil {
			return outcomes, fmt.Errorf("test %d: building environment: %w", i, err)
		}

		script, err := buildexec.CompileScript(recipe.Script{Content: commands}, fam)
		if err != nil {
			return outcomes, fmt.Errorf("test %d: compiling script: %w", i, err)
		}
		cfg.Script = script

		log.Infof("test %d: running %s test", i, test.Kind)
		if err := buildexec.Execute(ctx, sandbox, cfg); err != nil {
			outcomes = append(outcomes, Outcome{Index: i, Kind: test.Kind, Status: StatusFailed, Detail: err.Error()})
			continue
		}
		outcomes = append(outcomes, Outcome{Index: i, Kind: test.Kind, Status: StatusPassed})
	}
	return outcomes, nil
}

// commandsForTest turns a test's declarative fields into the shell command
// lines buildexec.CompileScript compiles and buildexec.Execute runs, the
// same path a build script takes.
func commandsForTest(test recipe.Test) ([]string, error) {
	switch test.Kind {
	case recipe.TestScript:
		if test.Script == nil {
			return nil, fmt.Errorf("kind script but Script is nil")
		}
		return test.Script.Commands, nil

	case recipe.TestPython:
		if test.Python == nil {
			return nil, fmt.Errorf("kind python but Python is nil")
		}
		var imports []string
		for _, m := range test.Python.Imports {
			imports = append(imports, fmt.Sprintf("import %s", m))
		}
		cmd := []string{fmt.Sprintf("python -c %s", shellQuote(strings.Join(imports, "\n")))}
		if test.Python.PipCheck {
			cmd = append(cmd, "pip check")
		}
		return cmd, nil

	case recipe.TestPerl:
		if test.Perl == nil {
			return nil, fmt.Errorf("kind perl but Perl is nil")
		}
		var uses []string
		for _, m := range test.Perl.Uses {
			uses = append(uses, fmt.Sprintf("use %s;", m))
		}
		return []string{fmt.Sprintf("perl -e %s", shellQuote(strings.Join(uses, " ")))}, nil

	case recipe.TestR:
		if test.R == nil {
			return nil, fmt.Errorf("kind r but R is nil")
		}
		var libs []string
		for _, l := range test.R.Libraries {
			libs = append(libs, fmt.Sprintf("library(%s)", l))
		}
		return []string{fmt.Sprintf("Rscript -e %s", shellQuote(strings.Join(libs, "; ")))}, nil

	default:
		return nil, fmt.Errorf("unsupported test kind %q", test.Kind)
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
