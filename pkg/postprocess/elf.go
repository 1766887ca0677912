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

package postprocess

import (
	"bytes"
	"context"
	"debug/elf"
	"debug/macho"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

var elfMagic = []byte("\x7fELF")

// isELF sniffs the first four bytes of path for the ELF magic number, the
// same check distri's build driver uses before ever shelling out to a
// binary-relocation tool.
func isELF(path string) (bool, error) {
	buf, err := readMagic(path)
	if err != nil {
		return false, err
	}
	return bytes.Equal(buf, elfMagic), nil
}

// machoMagics are the native-endian 32/64-bit and fat Mach-O magic numbers,
// each byte order, per debug/macho's own FatMagic/Magic32/Magic64 constants.
var machoMagics = [][]byte{
	{0xfe, 0xed, 0xfa, 0xce}, {0xce, 0xfa, 0xed, 0xfe}, // 32-bit
	{0xfe, 0xed, 0xfa, 0xcf}, {0xcf, 0xfa, 0xed, 0xfe}, // 64-bit
	{0xca, 0xfe, 0xba, 0xbe}, {0xbe, 0xba, 0xfe, 0xca}, // fat
}

// isMachO reports whether path starts with one of the Mach-O (or fat
// Mach-O) magic numbers.
func isMachO(path string) (bool, error) {
	buf, err := readMagic(path)
	if err != nil {
		return false, err
	}
	for _, m := range machoMagics {
		if bytes.Equal(buf, m) {
			return true, nil
		}
	}
	return false, nil
}

func readMagic(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path is a file inside the prefix being packaged, not user input
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var buf [4]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return buf[:], nil
}

// linuxSystemAllowlist is the built-in set of libraries treated as always
// provided by the base system on Linux (spec.md §4.7.3's "allow-listed
// system library set").
var linuxSystemAllowlist = []string{
	"linux-vdso.so.1",
	"ld-linux-x86-64.so.2", "ld-linux-aarch64.so.1", "ld-linux.so.2",
	"libc.so.6", "libm.so.6", "libdl.so.2", "libpthread.so.0",
	"librt.so.1", "libresolv.so.2", "libutil.so.1", "libnsl.so.1",
	"libgcc_s.so.1",
}

// darwinSystemAllowlist is the macOS equivalent.
var darwinSystemAllowlist = []string{
	"/usr/lib/libSystem.B.dylib",
	"/usr/lib/libobjc.A.dylib",
	"/usr/lib/libc++.1.dylib",
	"/System/Library/Frameworks/CoreFoundation.framework/Versions/A/CoreFoundation",
}

type relocateResult struct {
	overlinked []LinkIssue
	needed     []string
}

// relocateBinary rewrites rpaths/install names on rel (an ELF or Mach-O
// binary) and classifies its linked dependencies, per spec.md §4.7.3.
// Files that are neither ELF nor Mach-O are left untouched.
func relocateBinary(ctx context.Context, prefix, rel, abs string, linking recipe.DynamicLinking) (*relocateResult, error) {
	log := clog.FromContext(ctx)

	if ok, err := isELF(abs); err != nil {
		return nil, err
	} else if ok {
		needed, err := elfNeededLibraries(abs)
		if err != nil {
			log.Warnf("reading ELF dependencies of %s: %v", rel, err)
			return nil, nil
		}
		if err := rewriteELFRpath(ctx, prefix, abs, linking); err != nil {
			return nil, fmt.Errorf("rewriting rpath of %s: %w", rel, err)
		}
		result := classifyLinks(rel, needed, linking, linuxSystemAllowlist)
		result.needed = needed
		return result, nil
	}

	if ok, err := isMachO(abs); err != nil {
		return nil, err
	} else if ok {
		needed, err := machoNeededLibraries(abs)
		if err != nil {
			log.Warnf("reading Mach-O dependencies of %s: %v", rel, err)
			return nil, nil
		}
		if err := rewriteMachOInstallNames(ctx, prefix, abs, needed); err != nil {
			return nil, fmt.Errorf("rewriting install names of %s: %w", rel, err)
		}
		result := classifyLinks(rel, needed, linking, darwinSystemAllowlist)
		result.needed = needed
		return result, nil
	}

	return nil, nil
}

func elfNeededLibraries(path string) ([]string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parsing ELF %s: %w", path, err)
	}
	defer f.Close()
	return f.ImportedLibraries()
}

func machoNeededLibraries(path string) ([]string, error) {
	f, err := macho.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parsing Mach-O %s: %w", path, err)
	}
	defer f.Close()
	return f.ImportedLibraries()
}

// classifyLinks buckets each needed library into system-allowlisted (left
// alone) or missing (an overlinking candidate, unless missing_dso_allowlist
// matches). Process then drops the candidates the package itself ships, so
// package-provided libraries are left alone too.
func classifyLinks(rel string, needed []string, linking recipe.DynamicLinking, systemAllowlist []string) *relocateResult {
	var result relocateResult
	for _, lib := range needed {
		base := filepath.Base(lib)
		if containsString(systemAllowlist, lib) || containsString(systemAllowlist, base) {
			continue
		}
		if containsString(linking.RpathAllowlist, lib) {
			continue
		}
		if globMatchesAny(linking.MissingDSOAllowlist, base) {
			continue
		}
		result.overlinked = append(result.overlinked, LinkIssue{Binary: rel, Library: lib})
	}
	return &result
}

// unusedDependencies reports each run dependency whose declared provided
// libraries share nothing with the set of libraries actually linked by any
// binary in the package (spec.md §4.7.3's overdepending check).
func unusedDependencies(runDeps []string, provided map[string][]string, linked map[string]bool) []LinkIssue {
	var out []LinkIssue
	for _, dep := range runDeps {
		libs, ok := provided[dep]
		if !ok || len(libs) == 0 {
			continue
		}
		used := false
		for _, lib := range libs {
			if linked[lib] {
				used = true
				break
			}
		}
		if !used {
			out = append(out, LinkIssue{Library: dep})
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func globMatchesAny(globs []string, name string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

// rewriteELFRpath sets the binary's RUNPATH to $ORIGIN-relative entries
// derived from linking.EffectiveRpaths (each resolved relative to the
// prefix root, then re-expressed relative to the binary's own directory),
// and drops any existing RPATH entry pointing outside the prefix unless
// rpath_allowlist matches it.
func rewriteELFRpath(ctx context.Context, prefix, abs string, linking recipe.DynamicLinking) error {
	existing, err := patchelf(ctx, "--print-rpath", abs)
	if err != nil {
		return err
	}

	binDir := filepath.Dir(abs)
	var kept []string
	for _, entry := range strings.Split(strings.TrimSpace(existing), ":") {
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "$ORIGIN") || containsString(linking.RpathAllowlist, entry) {
			kept = append(kept, entry)
		}
	}

	var origins []string
	for _, rpath := range linking.EffectiveRpaths() {
		target := filepath.Join(prefix, rpath)
		rel, err := filepath.Rel(binDir, target)
		if err != nil {
			continue
		}
		origins = append(origins, "$ORIGIN/"+filepath.ToSlash(rel))
	}
	newRpath := strings.Join(append(origins, kept...), ":")

	if newRpath == "" {
		_, err := patchelf(ctx, "--remove-rpath", abs)
		return err
	}
	_, err = patchelf(ctx, "--set-rpath", newRpath, abs)
	return err
}

func patchelf(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "patchelf", args...) //nolint:gosec // fixed tool, args are our own construction
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("patchelf %v: %w: %s", args, err, errOut.String())
	}
	return out.String(), nil
}

// rewriteMachOInstallNames rewrites each load command in abs that points
// into prefix to an @loader_path-relative form, and (for dylibs) sets the
// install name similarly, per spec.md §4.7.3.
func rewriteMachOInstallNames(ctx context.Context, prefix, abs string, needed []string) error {
	binDir := filepath.Dir(abs)

	for _, dep := range needed {
		if !strings.HasPrefix(dep, prefix) {
			continue
		}
		rel, err := filepath.Rel(binDir, dep)
		if err != nil {
			continue
		}
		newPath := "@loader_path/" + filepath.ToSlash(rel)
		if _, err := installNameTool(ctx, "-change", dep, newPath, abs); err != nil {
			return err
		}
	}

	if strings.HasPrefix(abs, prefix) {
		rel, err := filepath.Rel(binDir, abs)
		if err == nil {
			// Only dylibs carry a meaningful install name; install_name_tool
			// is a no-op (non-fatal) on executables, so errors here are
			// swallowed rather than surfaced.
			_, _ = installNameTool(ctx, "-id", "@rpath/"+filepath.ToSlash(rel), abs)
		}
	}

	return nil
}

func installNameTool(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "install_name_tool", args...) //nolint:gosec // fixed tool, args are our own construction
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("install_name_tool %v: %w: %s", args, err, errOut.String())
	}
	return out.String(), nil
}
