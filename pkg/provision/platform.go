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

import "runtime"

// hostNativePlatform returns the conda-style platform string for the
// machine this process runs on, used to solve the build environment (which
// always runs natively, even in a cross build targeting a different
// target_platform).
func hostNativePlatform() string {
	var os string
	switch runtime.GOOS {
	case "darwin":
		os = "osx"
	case "windows":
		os = "win"
	default:
		os = "linux"
	}

	var arch string
	switch runtime.GOARCH {
	case "amd64":
		arch = "64"
	case "arm64":
		arch = "aarch64"
		if os != "linux" {
			arch = "arm64"
		}
	case "386":
		arch = "32"
	default:
		arch = runtime.GOARCH
	}

	return os + "-" + arch
}
