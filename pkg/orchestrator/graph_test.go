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

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopoOrderRespectsInheritAndPinEdges(t *testing.T) {
	nodes := []Node{
		{Index: 0, Name: "libfoo"},
		{Index: 1, Name: "libfoo-static", InheritFrom: "libfoo"},
		{Index: 2, Name: "foo-tools", Pins: []string{"libfoo"}},
	}
	g, err := BuildGraph(nodes)
	require.NoError(t, err)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestTopoOrderPositionalTieBreak(t *testing.T) {
	nodes := []Node{
		{Index: 0, Name: "c"},
		{Index: 1, Name: "b"},
		{Index: 2, Name: "a"},
	}
	g, err := BuildGraph(nodes)
	require.NoError(t, err)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestBuildGraphErrorsOnUnknownReference(t *testing.T) {
	nodes := []Node{{Index: 0, Name: "a", Pins: []string{"missing"}}}
	_, err := BuildGraph(nodes)
	require.Error(t, err)
}

func TestTopoOrderErrorsOnCycle(t *testing.T) {
	nodes := []Node{
		{Index: 0, Name: "a", Pins: []string{"b"}},
		{Index: 1, Name: "b", Pins: []string{"a"}},
	}
	g, err := BuildGraph(nodes)
	require.NoError(t, err)
	_, err = g.TopoOrder()
	require.Error(t, err)
}
