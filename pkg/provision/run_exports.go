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

package provision

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// PackageRunExports is one installed package's declared run-exports, read
// from its info/run_exports.json.
type PackageRunExports struct {
	Package string
	Weak    []string
	Strong  []string
}

type runExportsFile struct {
	Weak   []string `json:"weak,omitempty"`
	Strong []string `json:"strong,omitempty"`
}

// ReadRunExports reads run_exports.json from pkg's info directory. A
// missing file means the package declares no run-exports.
func ReadRunExports(pkgName, infoDir string) (*PackageRunExports, error) {
	raw, err := os.ReadFile(filepath.Join(infoDir, "run_exports.json"))
	if os.IsNotExist(err) {
		return &PackageRunExports{Package: pkgName}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run_exports.json for %s: %w", pkgName, err)
	}
	var f runExportsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing run_exports.json for %s: %w", pkgName, err)
	}
	return &PackageRunExports{Package: pkgName, Weak: f.Weak, Strong: f.Strong}, nil
}

// PropagateRunExports merges host and build run-exports into run per
// spec.md §4.5: all of a host package's weak+strong run-exports propagate;
// only a build package's strong run-exports do. Each candidate is dropped if
// it matches ignore.ByName or originates from a package in
// ignore.FromPackage.
func PropagateRunExports(host, build []PackageRunExports, ignore *recipe.IgnoreRunExports, run []string) []string {
	seen := make(map[string]bool, len(run))
	for _, r := range run {
		seen[r] = true
	}
	out := append([]string{}, run...)

	add := func(pkg PackageRunExports, specs []string) {
		if ignoredPackage(pkg.Package, ignore) {
			return
		}
		for _, spec := range specs {
			if ignoredName(spec, ignore) {
				continue
			}
			if seen[spec] {
				continue
			}
			seen[spec] = true
			out = append(out, spec)
		}
	}

	for _, pkg := range host {
		add(pkg, pkg.Weak)
		add(pkg, pkg.Strong)
	}
	for _, pkg := range build {
		add(pkg, pkg.Strong)
	}

	return out
}

func ignoredPackage(pkgName string, ignore *recipe.IgnoreRunExports) bool {
	if ignore == nil {
		return false
	}
	for _, name := range ignore.FromPackage {
		if name == pkgName {
			return true
		}
	}
	return false
}

func ignoredName(spec string, ignore *recipe.IgnoreRunExports) bool {
	if ignore == nil {
		return false
	}
	name := matchSpecName(spec)
	for _, ignored := range ignore.ByName {
		if ignored == name {
			return true
		}
	}
	return false
}

// matchSpecName extracts the bare package name from a match spec string
// ("openssl >=1.1,<2" -> "openssl").
func matchSpecName(spec string) string {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return spec
	}
	return fields[0]
}
