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

package stagingcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbuild-dev/rbuild/pkg/provision"
	"github.com/rbuild-dev/rbuild/pkg/variant"
)

func TestComputeKeyInvariantUnderPackageReordering(t *testing.T) {
	a := []provision.SolvedPackage{{Name: "zlib", Version: "1.3", Build: "h1"}, {Name: "libc", Version: "2.39", Build: "h2"}}
	b := []provision.SolvedPackage{{Name: "libc", Version: "2.39", Build: "h2"}, {Name: "zlib", Version: "1.3", Build: "h1"}}
	used := variant.Combination{"python": "3.11"}

	k1 := ComputeKey(a, used, []string{"python"}, "linux-64", "linux-64")
	k2 := ComputeKey(b, used, []string{"python"}, "linux-64", "linux-64")
	require.Equal(t, k1, k2)
}

func TestComputeKeyChangesWithVariant(t *testing.T) {
	pkgs := []provision.SolvedPackage{{Name: "zlib", Version: "1.3", Build: "h1"}}
	k1 := ComputeKey(pkgs, variant.Combination{"python": "3.11"}, []string{"python"}, "linux-64", "linux-64")
	k2 := ComputeKey(pkgs, variant.Combination{"python": "3.12"}, []string{"python"}, "linux-64", "linux-64")
	require.NotEqual(t, k1, k2)
}

func TestComputeKeyIgnoresUnreferencedVariantKeys(t *testing.T) {
	pkgs := []provision.SolvedPackage{{Name: "zlib", Version: "1.3", Build: "h1"}}
	k1 := ComputeKey(pkgs, variant.Combination{"python": "3.11", "zlib": "1.3"}, []string{"python"}, "linux-64", "linux-64")
	k2 := ComputeKey(pkgs, variant.Combination{"python": "3.11", "zlib": "1.2"}, []string{"python"}, "linux-64", "linux-64")
	require.Equal(t, k1, k2)
}
