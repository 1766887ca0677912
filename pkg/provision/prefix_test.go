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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePrefixesMergesWithoutHost(t *testing.T) {
	p := ResolvePrefixes("/work/build", "/work/host", false, []string{"make"})
	require.True(t, p.Merged)
	require.Equal(t, p.Build, p.Host)
}

func TestResolvePrefixesSeparatesWithHost(t *testing.T) {
	p := ResolvePrefixes("/work/build", "/work/host", true, nil)
	require.False(t, p.Merged)
	require.Equal(t, "/work/build", p.Build)
	require.Equal(t, "/work/host", p.Host)
}

func TestResolvePrefixesSeparatesOnCompilerCall(t *testing.T) {
	p := ResolvePrefixes("/work/build", "/work/host", false, []string{"${{ compiler('c') }}"})
	require.False(t, p.Merged)
}
