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
	"fmt"
	"strings"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// TestsOverview is info/tests/tests.yaml: one entry per declared test, naming
// its kind and asset directory.
type TestsOverview struct {
	Tests []TestOverviewEntry `yaml:"tests"`
}

type TestOverviewEntry struct {
	Index int    `yaml:"index"`
	Kind  string `yaml:"kind"`
}

// TestTimeDependencies is tests/<i>/test_time_dependencies.json for a script
// test: the extra run/build requirements it declares beyond the package's
// own run deps.
type TestTimeDependencies struct {
	Run   []string `json:"run,omitempty"`
	Build []string `json:"build,omitempty"`
}

// PythonTestJSON is tests/<i>/python_test.json.
type PythonTestJSON struct {
	Imports  []string `json:"imports"`
	PipCheck bool     `json:"pip_check,omitempty"`
}

// PackageContentsJSON is tests/<i>/package_contents.json.
type PackageContentsJSON struct {
	Files        []string `json:"files,omitempty"`
	SitePackages []string `json:"site_packages,omitempty"`
	Bin          []string `json:"bin,omitempty"`
	Lib          []string `json:"lib,omitempty"`
	Include      []string `json:"include,omitempty"`
	Strict       bool     `json:"strict,omitempty"`
}

// TestAssets is the set of files written under info/tests/<i>/ for one test
// entry, keyed by filename.
type TestAssets struct {
	Index int
	Kind  recipe.TestKind
	Files map[string][]byte
}

// BuildTestAssets renders every declared test into its tests/<i>/ asset
// directory (spec.md §4.10). Downstream tests are recorded in the overview
// with no asset files: per the Open Question decision they are parsed but
// never executed (pkg/testharness reports them Skipped).
func BuildTestAssets(tests []recipe.Test) ([]TestAssets, TestsOverview, error) {
	assets := make([]TestAssets, 0, len(tests))
	overview := TestsOverview{Tests: make([]TestOverviewEntry, 0, len(tests))}

	for i, t := range tests {
		overview.Tests = append(overview.Tests, TestOverviewEntry{Index: i, Kind: string(t.Kind)})

		a := TestAssets{Index: i, Kind: t.Kind, Files: map[string][]byte{}}
		switch t.Kind {
		case recipe.TestScript:
			if t.Script == nil {
				return nil, overview, fmt.Errorf("test %d: kind script but Script is nil", i)
			}
			a.Files["run_test.sh"] = []byte("#!/bin/sh\nset -e\n" + strings.Join(t.Script.Commands, "\n") + "\n")
			a.Files["run_test.bat"] = []byte(batchGuardedScript(t.Script.Commands))
			deps := TestTimeDependencies{Run: t.Script.Requirements.Run, Build: t.Script.Requirements.Build}
			b, err := marshalJSON(deps)
			if err != nil {
				return nil, overview, err
			}
			a.Files["test_time_dependencies.json"] = b
		case recipe.TestPython:
			if t.Python == nil {
				return nil, overview, fmt.Errorf("test %d: kind python but Python is nil", i)
			}
			b, err := marshalJSON(PythonTestJSON{Imports: t.Python.Imports, PipCheck: t.Python.PipCheck})
			if err != nil {
				return nil, overview, err
			}
			a.Files["python_test.json"] = b
		case recipe.TestPerl:
			if t.Perl == nil {
				return nil, overview, fmt.Errorf("test %d: kind perl but Perl is nil", i)
			}
			b, err := marshalJSON(struct {
				Uses []string `json:"uses"`
			}{t.Perl.Uses})
			if err != nil {
				return nil, overview, err
			}
			a.Files["perl_test.json"] = b
		case recipe.TestR:
			if t.R == nil {
				return nil, overview, fmt.Errorf("test %d: kind r but R is nil", i)
			}
			b, err := marshalJSON(struct {
				Libraries []string `json:"libraries"`
			}{t.R.Libraries})
			if err != nil {
				return nil, overview, err
			}
			a.Files["r_test.json"] = b
		case recipe.TestPackageContents:
			if t.Contents == nil {
				return nil, overview, fmt.Errorf("test %d: kind package_contents but Contents is nil", i)
			}
			b, err := marshalJSON(PackageContentsJSON{
				Files:        t.Contents.Files,
				SitePackages: t.Contents.SitePackages,
				Bin:          t.Contents.Bin,
				Lib:          t.Contents.Lib,
				Include:      t.Contents.Include,
				Strict:       t.Contents.Strict,
			})
			if err != nil {
				return nil, overview, err
			}
			a.Files["package_contents.json"] = b
		case recipe.TestDownstream:
			// No asset files: recorded in the overview only.
		default:
			return nil, overview, fmt.Errorf("test %d: unknown kind %q", i, t.Kind)
		}
		assets = append(assets, a)
	}
	return assets, overview, nil
}

// batchGuardedScript mirrors pkg/buildexec's cmd.exe errorlevel guard
// injection (spec.md §4.6) for test scripts run on Windows.
func batchGuardedScript(commands []string) string {
	var b strings.Builder
	b.WriteString("@echo off\n")
	for _, c := range commands {
		b.WriteString(c)
		b.WriteString("\nif %errorlevel% neq 0 exit %errorlevel%\n")
	}
	return b.String()
}
