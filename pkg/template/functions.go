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

package template

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DomainFunctions returns the registry of recipe domain functions:
// compiler, stdlib, pin_subpackage, pin_compatible, cdt, match, env.get,
// env.exists, load_from_file and git.*. Callers merge this into Env.Functions
// alongside the variant/context bindings in Env.Vars.
func DomainFunctions() map[string]Func {
	return map[string]Func{
		"compiler":       fnCompiler,
		"stdlib":         fnStdlib,
		"pin_subpackage": fnPinSubpackage,
		"pin_compatible": fnPinCompatible,
		"cdt":            fnCDT,
		"match":          fnMatch,
		"env.get":        fnEnvGet,
		"env.exists":     fnEnvExists,
		"load_from_file": fnLoadFromFile,
		"git.latest_tag":     fnGitLatestTag,
		"git.latest_tag_rev": fnGitLatestTagRev,
		"git.head_rev":       fnGitHeadRev,
	}
}

func lookupVariant(env *Env, key string, fallback string) string {
	if v, ok := env.Vars[key]; ok && env.VariantKeys[key] {
		env.UsedKeys[key] = true
		return v.AsString()
	}
	if v, ok := env.Vars[key]; ok {
		return v.AsString()
	}
	return fallback
}

func fnCompiler(env *Env, args []Value, _ map[string]Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("compiler() takes exactly one argument")
	}
	lang := args[0].AsString()
	if lang == "" {
		return Undetermined(), nil
	}
	compilerName := lookupVariant(env, lang+"_compiler", defaultCompiler(lang))
	version := lookupVariant(env, lang+"_compiler_version", "")
	platform := lookupVariant(env, "target_platform", "noarch")

	spec := fmt.Sprintf("%s_%s", compilerName, platform)
	if version != "" {
		spec += " " + version + ".*"
	}
	return Str(spec), nil
}

func fnStdlib(env *Env, args []Value, _ map[string]Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("stdlib() takes exactly one argument")
	}
	lang := args[0].AsString()
	if lang == "" {
		return Undetermined(), nil
	}
	stdlibName := lookupVariant(env, lang+"_stdlib", lang+"_stdlib")
	version := lookupVariant(env, lang+"_stdlib_version", "")
	platform := lookupVariant(env, "target_platform", "noarch")

	spec := fmt.Sprintf("%s_%s", stdlibName, platform)
	if version != "" {
		spec += " " + version + ".*"
	}
	return Str(spec), nil
}

func defaultCompiler(lang string) string {
	switch lang {
	case "c":
		return "gcc"
	case "cxx":
		return "gxx"
	case "fortran":
		return "gfortran"
	case "rust":
		return "rust"
	case "go":
		return "go"
	default:
		return lang + "_compiler_stub"
	}
}

func parsePinKwargs(kwargs map[string]Value) *DeferredPin {
	p := &DeferredPin{}
	if v, ok := kwargs["lower_bound"]; ok {
		p.LowerBound = v.AsString()
	}
	if v, ok := kwargs["upper_bound"]; ok {
		p.UpperBound = v.AsString()
	}
	if v, ok := kwargs["exact"]; ok {
		p.Exact = v.Truthy()
	}
	if v, ok := kwargs["build"]; ok {
		p.Build = v.AsString()
	}
	if v, ok := kwargs["min_pin"]; ok {
		p.LowerBound = v.AsString()
	}
	if v, ok := kwargs["max_pin"]; ok {
		p.UpperBound = v.AsString()
	}
	return p
}

func fnPinSubpackage(_ *Env, args []Value, kwargs map[string]Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("pin_subpackage() takes exactly one positional argument")
	}
	p := parsePinKwargs(kwargs)
	p.Name = args[0].AsString()
	p.Compatible = false
	return Value{Kind: KindDeferredPin, Pin: p}, nil
}

func fnPinCompatible(_ *Env, args []Value, kwargs map[string]Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("pin_compatible() takes exactly one positional argument")
	}
	p := parsePinKwargs(kwargs)
	p.Name = args[0].AsString()
	p.Compatible = true
	return Value{Kind: KindDeferredPin, Pin: p}, nil
}

// fnCDT maps a bare package name to the Core Dependency Tree package name
// conventionally used to depend on host-system libraries from a glibc-linked
// build (e.g. "libx11-devel" -> "libx11-devel-cos6-x86_64").
func fnCDT(env *Env, args []Value, _ map[string]Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("cdt() takes exactly one argument")
	}
	name := args[0].AsString()
	platform := lookupVariant(env, "target_platform", "linux-64")
	arch := "x86_64"
	if idx := strings.LastIndex(platform, "-"); idx >= 0 {
		switch platform[idx+1:] {
		case "64":
			arch = "x86_64"
		case "aarch64":
			arch = "aarch64"
		case "ppc64le":
			arch = "ppc64le"
		default:
			arch = platform[idx+1:]
		}
	}
	return Str(fmt.Sprintf("%s-cos6-%s", name, arch)), nil
}

// fnMatch implements the `match(spec, version)` domain function: spec is a
// comma-separated list of conda-style version constraints (">=1.2,<2.0"),
// and the call reports whether version satisfies all of them.
func fnMatch(_ *Env, args []Value, _ map[string]Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, fmt.Errorf("match() takes exactly two arguments")
	}
	spec := args[0].AsString()
	version := args[1].AsString()
	ok, err := matchVersionSpec(spec, version)
	if err != nil {
		return Value{}, err
	}
	return Bool(ok), nil
}

func matchVersionSpec(spec, version string) (bool, error) {
	clauses := strings.Split(spec, ",")
	vparts := splitVersion(version)
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		op, rest := splitOp(clause)
		cmp := compareVersions(vparts, splitVersion(rest))
		var ok bool
		switch op {
		case "==":
			ok = cmp == 0
		case "!=":
			ok = cmp != 0
		case ">=":
			ok = cmp >= 0
		case "<=":
			ok = cmp <= 0
		case ">":
			ok = cmp > 0
		case "<":
			ok = cmp < 0
		case "~=":
			ok = cmp >= 0 && strings.HasPrefix(version, rest[:max(0, len(rest)-2)])
		default:
			ok = cmp == 0
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func splitOp(clause string) (string, string) {
	for _, op := range []string{">=", "<=", "==", "!=", "~=", ">", "<"} {
		if strings.HasPrefix(clause, op) {
			return op, strings.TrimSpace(clause[len(op):])
		}
	}
	return "==", clause
}

func splitVersion(v string) []int {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == '.' || r == '_' })
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return out
		}
		out = append(out, n)
	}
	return out
}

func compareVersions(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func fnEnvGet(env *Env, args []Value, _ map[string]Value) (Value, error) {
	if len(args) < 1 {
		return Value{}, fmt.Errorf("env.get() requires a variable name")
	}
	name := args[0].AsString()
	if v, ok := env.OSEnv[name]; ok {
		return Str(v), nil
	}
	if v, ok := os.LookupEnv(name); ok {
		return Str(v), nil
	}
	if len(args) > 1 {
		return args[1], nil
	}
	return Value{}, fmt.Errorf("environment variable %q is not set", name)
}

func fnEnvExists(env *Env, args []Value, _ map[string]Value) (Value, error) {
	if len(args) < 1 {
		return Value{}, fmt.Errorf("env.exists() requires a variable name")
	}
	name := args[0].AsString()
	if _, ok := env.OSEnv[name]; ok {
		return Bool(true), nil
	}
	_, ok := os.LookupEnv(name)
	return Bool(ok), nil
}

func fnLoadFromFile(env *Env, args []Value, _ map[string]Value) (Value, error) {
	if !env.Experimental {
		return Value{}, fmt.Errorf("load_from_file() requires the experimental feature flag")
	}
	if len(args) != 1 {
		return Value{}, fmt.Errorf("load_from_file() takes exactly one argument")
	}
	data, err := os.ReadFile(args[0].AsString())
	if err != nil {
		return Value{}, fmt.Errorf("load_from_file: %w", err)
	}
	return Str(string(data)), nil
}

func gitLsRemote(ctx context.Context, url string, extra ...string) (string, error) {
	args := append([]string{"ls-remote"}, extra...)
	args = append(args, url)
	cmd := exec.CommandContext(ctx, "git", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git ls-remote %s: %w: %s", url, err, stderr.String())
	}
	return stdout.String(), nil
}

func fnGitLatestTag(env *Env, args []Value, _ map[string]Value) (Value, error) {
	if !env.Experimental {
		return Value{}, fmt.Errorf("git.latest_tag() requires the experimental feature flag")
	}
	if len(args) != 1 {
		return Value{}, fmt.Errorf("git.latest_tag() takes exactly one argument")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	out, err := gitLsRemote(ctx, args[0].AsString(), "--tags", "--sort=-v:refname")
	if err != nil {
		return Value{}, err
	}
	tag, err := firstRefName(out, "refs/tags/")
	if err != nil {
		return Value{}, err
	}
	return Str(tag), nil
}

func fnGitLatestTagRev(env *Env, args []Value, _ map[string]Value) (Value, error) {
	if !env.Experimental {
		return Value{}, fmt.Errorf("git.latest_tag_rev() requires the experimental feature flag")
	}
	if len(args) != 1 {
		return Value{}, fmt.Errorf("git.latest_tag_rev() takes exactly one argument")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	out, err := gitLsRemote(ctx, args[0].AsString(), "--tags", "--sort=-v:refname")
	if err != nil {
		return Value{}, err
	}
	rev, err := firstRevision(out)
	if err != nil {
		return Value{}, err
	}
	return Str(rev), nil
}

func fnGitHeadRev(env *Env, args []Value, _ map[string]Value) (Value, error) {
	if !env.Experimental {
		return Value{}, fmt.Errorf("git.head_rev() requires the experimental feature flag")
	}
	if len(args) != 1 {
		return Value{}, fmt.Errorf("git.head_rev() takes exactly one argument")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	out, err := gitLsRemote(ctx, args[0].AsString(), "HEAD")
	if err != nil {
		return Value{}, err
	}
	rev, err := firstRevision(out)
	if err != nil {
		return Value{}, err
	}
	return Str(rev), nil
}

func firstRefName(lsRemoteOutput, prefix string) (string, error) {
	for _, line := range strings.Split(lsRemoteOutput, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		if strings.HasPrefix(fields[1], prefix) {
			return strings.TrimPrefix(fields[1], prefix), nil
		}
	}
	return "", fmt.Errorf("no matching ref found")
}

func firstRevision(lsRemoteOutput string) (string, error) {
	for _, line := range strings.Split(lsRemoteOutput, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 {
			return fields[0], nil
		}
	}
	return "", fmt.Errorf("no revisions found")
}
