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

import "fmt"

// LinkIssue names one offending library (Overlinking) or declared
// dependency (Overdepending), and the binary it was found on.
type LinkIssue struct {
	Binary  string
	Library string
}

// OverlinkingError reports binaries linking against a library that
// resolves to neither a package-provided nor an allow-listed system
// library (spec.md §4.7.3, §7).
type OverlinkingError struct {
	Issues []LinkIssue
}

func (e *OverlinkingError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("overlinking: %s links against unresolved library %s", e.Issues[0].Binary, e.Issues[0].Library)
	}
	return fmt.Sprintf("overlinking: %d unresolved library link(s)", len(e.Issues))
}

// OverdependingError reports declared run dependencies that provide no
// library actually linked by any binary in the package.
type OverdependingError struct {
	Issues []LinkIssue
}

func (e *OverdependingError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("overdepending: declared dependency %s provides no library actually linked", e.Issues[0].Library)
	}
	return fmt.Sprintf("overdepending: %d unused declared dependenc(ies)", len(e.Issues))
}
