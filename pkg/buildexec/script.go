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

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
	"mvdan.cc/sh/v3/syntax"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

const (
	defaultUnixInterpreter    = "/bin/sh"
	defaultWindowsInterpreter = "cmd.exe /c"
)

// CompiledScript is a build script ready to hand to a sandbox: an
// interpreter argv and the script text it should run.
type CompiledScript struct {
	Argv    []string
	Content string
}

// CompileScript resolves `build.script`'s interpreter, splits it into an
// argv, joins Content into a single script body, and (for POSIX shells)
// validates the body parses before ever handing it to the sandbox.
func CompileScript(s recipe.Script, fam PlatformFamily) (*CompiledScript, error) {
	interpreter := s.Interpreter
	if interpreter == "" {
		if fam == FamilyWindows {
			interpreter = defaultWindowsInterpreter
		} else {
			interpreter = defaultUnixInterpreter
		}
	}

	argv, err := shlex.Split(interpreter)
	if err != nil {
		return nil, fmt.Errorf("splitting interpreter %q: %w", interpreter, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty interpreter")
	}

	content := strings.Join(s.Content, "\n")
	if isPOSIXShell(argv[0]) {
		if _, err := syntax.NewParser().Parse(strings.NewReader(content), argv[0]); err != nil {
			return nil, fmt.Errorf("invalid build script: %w", err)
		}
	}

	if fam == FamilyWindows && isCmdInterpreter(argv[0]) {
		content = guardCmdErrorLevels(content)
	}

	return &CompiledScript{Argv: argv, Content: content}, nil
}

// isPOSIXShell reports whether interpreter is a shell mvdan.cc/sh/v3 can
// parse. cmd.exe and interpreters like "python3" are opaque to it.
func isPOSIXShell(interpreter string) bool {
	base := interpreter
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	switch base {
	case "bash", "sh", "dash", "zsh":
		return true
	default:
		return false
	}
}

func isCmdInterpreter(interpreter string) bool {
	base := strings.ToLower(interpreter)
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '\\'); idx >= 0 {
		base = base[idx+1:]
	}
	return base == "cmd.exe" || base == "cmd"
}

// guardCmdErrorLevels inserts an `if %errorlevel% neq 0 exit %errorlevel%`
// check after every non-blank command line, since cmd.exe does not abort a
// batch script on a failing command the way `set -e` does for a shell.
func guardCmdErrorLevels(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines)*2)
	for _, line := range lines {
		out = append(out, line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, "if %errorlevel% neq 0 exit %errorlevel%")
	}
	return strings.Join(out, "\n")
}
