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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Activate sources each prefix's etc/conda/activate.d/*.sh scripts (in
// lexicographic order, build prefix first, then host) and loads each
// prefix's etc/conda/env_vars.d/*.json files (lexicographic order, later
// files overriding earlier ones), returning base merged with every
// environment variable the activation process set or changed.
func Activate(ctx context.Context, base map[string]string, prefixesInOrder ...string) (map[string]string, error) {
	env := make(map[string]string, len(base))
	for k, v := range base {
		env[k] = v
	}

	for _, prefix := range prefixesInOrder {
		if err := sourceActivationScripts(ctx, prefix, env); err != nil {
			return nil, err
		}
		if err := loadEnvVarFiles(prefix, env); err != nil {
			return nil, err
		}
	}

	return env, nil
}

func sourceActivationScripts(ctx context.Context, prefix string, env map[string]string) error {
	dir := filepath.Join(prefix, "etc", "conda", "activate.d")
	scripts, err := sortedGlob(dir, "*.sh")
	if err != nil {
		return err
	}

	for _, script := range scripts {
		if err := runActivationScript(ctx, script, env); err != nil {
			return fmt.Errorf("sourcing %s: %w", script, err)
		}
	}
	return nil
}

// runActivationScript parses and interprets script with mvdan.cc/sh/v3,
// seeding it with env's current values and writing back whatever the script
// set or changed. This sources the script the way a real shell would
// without shelling out to one.
func runActivationScript(ctx context.Context, scriptPath string, env map[string]string) error {
	content, err := os.ReadFile(scriptPath) // #nosec G304 -- activation script path comes from an installed package under the build prefix
	if err != nil {
		return err
	}
	file, err := syntax.NewParser().Parse(strings.NewReader(string(content)), scriptPath)
	if err != nil {
		return fmt.Errorf("parsing: %w", err)
	}

	environ := make([]string, 0, len(env))
	for k, v := range env {
		environ = append(environ, k+"="+v)
	}

	runner, err := interp.New(
		interp.Env(expand.ListEnviron(environ...)),
		interp.StdIO(nil, io.Discard, io.Discard),
	)
	if err != nil {
		return err
	}
	if err := runner.Run(ctx, file); err != nil {
		return err
	}

	for name, v := range runner.Vars {
		if v.Kind != expand.String {
			continue
		}
		env[name] = v.Str
	}
	return nil
}

type envVarFile map[string]string

func loadEnvVarFiles(prefix string, env map[string]string) error {
	dir := filepath.Join(prefix, "etc", "conda", "env_vars.d")
	files, err := sortedGlob(dir, "*.json")
	if err != nil {
		return err
	}
	for _, f := range files {
		raw, err := os.ReadFile(f) // #nosec G304 -- env-var file path comes from an installed package under the build prefix
		if err != nil {
			return err
		}
		var vars envVarFile
		if err := json.Unmarshal(raw, &vars); err != nil {
			return fmt.Errorf("parsing %s: %w", f, err)
		}
		for k, v := range vars {
			env[k] = v
		}
	}
	return nil
}

func sortedGlob(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	sort.Strings(matches)
	return matches, nil
}
