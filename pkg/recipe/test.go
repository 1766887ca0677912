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

package recipe

// TestKind discriminates the variant carried by a Test.
type TestKind string

const (
	TestScript           TestKind = "script"
	TestPython           TestKind = "python"
	TestPerl             TestKind = "perl"
	TestR                TestKind = "r"
	TestDownstream       TestKind = "downstream"
	TestPackageContents  TestKind = "package_contents"
)

// Test is one `tests:` entry. Exactly one of the variant fields is set; Kind
// records which.
type Test struct {
	Kind TestKind

	Script     *ScriptTest
	Python     *PythonTest
	Perl       *PerlTest
	R          *RTest
	Downstream *DownstreamTest
	Contents   *PackageContentsTest
}

// ScriptTest runs an ordered list of commands against a fresh environment
// containing the just-built package.
type ScriptTest struct {
	Commands []string `yaml:"script"`
	Requirements struct {
		Run   []string `yaml:"run,omitempty"`
		Build []string `yaml:"build,omitempty"`
	} `yaml:"requirements,omitempty"`
	Files struct {
		Source []string `yaml:"source,omitempty"`
		Recipe []string `yaml:"recipe,omitempty"`
	} `yaml:"files,omitempty"`
}

// PythonTest imports a list of modules and optionally runs `pip check`.
type PythonTest struct {
	Imports  []string `yaml:"imports"`
	PipCheck bool     `yaml:"pip_check,omitempty"`
}

// PerlTest verifies a list of modules are `use`-able.
type PerlTest struct {
	Uses []string `yaml:"uses"`
}

// RTest verifies a list of R libraries load.
type RTest struct {
	Libraries []string `yaml:"libraries"`
}

// DownstreamTest names a reverse-dependency package to test-build against
// this output. Per the Open Question decision, these are parsed but never
// executed; pkg/testharness records them as Skipped.
type DownstreamTest struct {
	Package string `yaml:"downstream"`
}

// PackageContentsTest asserts the built package contains files matching the
// given globs. Evaluated at packaging time (before archive creation), not at
// test time, so a missing file fails the build rather than the test.
type PackageContentsTest struct {
	Files       []string `yaml:"files,omitempty"`
	SitePackages []string `yaml:"site_packages,omitempty"`
	Bin         []string `yaml:"bin,omitempty"`
	Lib         []string `yaml:"lib,omitempty"`
	Include     []string `yaml:"include,omitempty"`
	Strict      bool     `yaml:"strict,omitempty"`
}
