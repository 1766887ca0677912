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
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/moby/patternmatcher"

	"github.com/rbuild-dev/rbuild/pkg/recipe"
)

// textSniffLength is the number of leading bytes inspected for a NUL byte
// when deciding whether a file qualifies as text (spec.md §4.7.4).
const textSniffLength = 10240

// PlaceholderTooShort is raised when a binary file's placeholder
// registration can't be satisfied because the host prefix is shorter than
// the minimum install-time padding budget.
type PlaceholderTooShort struct {
	Path           string
	PrefixLength   int
	RequiredLength int
}

func (e *PlaceholderTooShort) Error() string {
	return fmt.Sprintf("prefix placeholder too short for %s: have %d bytes, need %d", e.Path, e.PrefixLength, e.RequiredLength)
}

// minPaddedPrefixLength is the length the provisioner pads the host prefix
// directory name to, so that any realistic install prefix fits when the
// installer performs its in-place NUL-padded byte replacement.
const minPaddedPrefixLength = 255

// detectPrefixPlaceholder decides whether rel/abs should carry a
// prefix_placeholder entry, and in which mode, per build.prefix_detection.
func detectPrefixPlaceholder(prefix, rel, abs string, detection recipe.PrefixDetection) (mode FileMode, placeholder string, err error) {
	if detection.IgnoreAll {
		return "", "", nil
	}
	ignored, err := matchesAny(detection.Ignore, rel)
	if err != nil {
		return "", "", err
	}
	if ignored {
		return "", "", nil
	}

	forcedText, err := matchesAny(detection.Force.Text, rel)
	if err != nil {
		return "", "", err
	}
	forcedBinary, err := matchesAny(detection.Force.Binary, rel)
	if err != nil {
		return "", "", err
	}

	data, err := os.ReadFile(abs) //nolint:gosec // abs is a file inside the prefix being packaged, not user input
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", rel, err)
	}
	sniffLen := len(data)
	if sniffLen > textSniffLength {
		sniffLen = textSniffLength
	}

	isText := forcedText
	if !forcedText && !forcedBinary {
		isText = !bytes.Contains(data[:sniffLen], []byte{0})
	}
	if !bytes.Contains(data, []byte(prefix)) {
		return "", "", nil
	}

	if isText {
		return FileModeText, filepath.ToSlash(prefix), nil
	}

	// Binary mode is Unix-only (spec.md §4.7.4).
	if runtime.GOOS == "windows" {
		return "", "", nil
	}
	if len(prefix) < minPaddedPrefixLength {
		return "", "", &PlaceholderTooShort{Path: rel, PrefixLength: len(prefix), RequiredLength: minPaddedPrefixLength}
	}
	return FileModeBinary, prefix, nil
}

func matchesAny(globs []string, rel string) (bool, error) {
	if len(globs) == 0 {
		return false, nil
	}
	matcher, err := patternmatcher.New(globs)
	if err != nil {
		return false, fmt.Errorf("compiling prefix_detection globs: %w", err)
	}
	return matcher.Matches(rel)
}
