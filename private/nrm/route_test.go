// Copyright 2025 Photonpath Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nrm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
)

func TestMakeRouteEntriesParsesSolutionRows(t *testing.T) {
	_, topo := writeLineTopology(t)
	result := &Result{
		Cost: 1.2,
		Stdout: strings.Join([]string{
			"GLPSOL--GLPK LP/MIP Solver",
			"# A_1 WDM4_1 A_2 WDM4_1 1 1 0 0 0",
			"# A_2 WDM4_1 B_1 WDM4_1 1 1 0 0 0",
			"# B_1 WDM4_1 B_2 WDM4_1 0 1 0 0 0",
			"INTEGER OPTIMAL SOLUTION FOUND",
		}, "\n"),
	}
	route, err := result.MakeRouteEntries(topo)
	require.NoError(t, err)
	// Rows without both x and c are dropped.
	require.Len(t, route.Entries, 2)
	assert.Equal(t, "A_1", route.Entries[0].Src.Port.FullName)
	assert.True(t, route.Entries[0].Go)
}

func TestMakeRouteEntriesRejectsUnknownNames(t *testing.T) {
	_, topo := writeLineTopology(t)
	result := &Result{Stdout: "# NOPE WDM4_1 A_2 WDM4_1 1 1 0 0 0"}
	_, err := result.MakeRouteEntries(topo)
	assert.Error(t, err)
}

func TestMakeConnEntries(t *testing.T) {
	_, topo := writeLineTopology(t)
	result := &Result{Stdout: strings.Join([]string{
		"# A_1 WDM4_1 A_2 WDM4_1 1 0",
		"# A_2 WDM4_1 B_1 WDM4_1 0 0",
		"INTEGER OPTIMAL SOLUTION FOUND",
	}, "\n")}
	route, err := result.MakeConnEntries(topo)
	require.NoError(t, err)
	require.NotNil(t, route)
	require.Len(t, route.Entries, 1)
	assert.False(t, route.Entries[0].X)
	assert.True(t, route.Entries[0].C)
}

func TestMakeConnEntriesInfeasible(t *testing.T) {
	_, topo := writeLineTopology(t)
	result := &Result{Stdout: "PROBLEM HAS NO PRIMAL FEASIBLE SOLUTION"}
	route, err := result.MakeConnEntries(topo)
	require.NoError(t, err)
	assert.Nil(t, route)
}

func lineRoute(t *testing.T) (*Route, PortChannel, *topology.Topology) {
	t.Helper()
	_, topo := writeLineTopology(t)
	ch := topo.ChannelByFullNo("WDM4_1")
	hops := [][2]string{
		{"A_1", "A_2"}, {"A_2", "B_1"}, {"B_1", "B_2"},
	}
	route := &Route{}
	for _, hop := range hops {
		route.Entries = append(route.Entries, &RouteEntry{
			Src: PortChannel{topo.PortByName(hop[0]), ch},
			Dst: PortChannel{topo.PortByName(hop[1]), ch},
			X:   true, C: true, Go: true,
		})
	}
	return route, PortChannel{Port: topo.PortByName("A_1"), Ch: ch}, topo
}

func TestMakePathListWalksInOrder(t *testing.T) {
	route, src, _ := lineRoute(t)
	list, err := route.MakePathList(src, true)
	require.NoError(t, err)
	var names []string
	for _, pc := range list {
		names = append(names, pc.Port.FullName)
	}
	assert.Equal(t, []string{"A_1", "A_2", "B_1", "B_2"}, names)
}

func TestDumpRouteRendersHops(t *testing.T) {
	route, src, topo := lineRoute(t)
	text, err := route.DumpRoute(topo, src)
	require.NoError(t, err)
	assert.Contains(t, text, "go route")
	assert.Contains(t, text, "back route")
	assert.Contains(t, text, "A_1")
	assert.Contains(t, text, "(WDM4_1)")
}

func TestMergePFRouteDedups(t *testing.T) {
	route, _, _ := lineRoute(t)
	before := len(route.Entries)
	route.MergePFRoute(route.Entries)
	assert.Len(t, route.Entries, before)
}

func TestResultOrdering(t *testing.T) {
	cheap := &Result{Cost: 1.0}
	costly := &Result{Cost: 2.0}
	none := &Result{Cost: solver.NotFoundCost}
	assert.True(t, lessResult(cheap, costly))
	assert.True(t, lessResult(costly, none))
}
