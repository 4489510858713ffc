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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/pathfinder"
	"github.com/photonpath/nrm/private/nrm/nrmtest"
	"github.com/photonpath/nrm/private/storage"
)

// lineTopologyXML is a three-component line A - B - C with one optical
// WDM table of two channels.
const lineTopologyXML = `<topology>
  <design>
    <channelInfo>
      <channelTable id="WDM4" type="optical">
        <channel no="1"/>
        <channel no="2"/>
      </channelTable>
      <channelTable id="ODU" type="electrical"/>
    </channelInfo>
  </design>
  <components>
    <comp ref="A">
      <ports>
        <port number="1" name="/T_A_IN1" io="input" supportChannel="WDM4"/>
        <port number="2" name="/T_A_OUT1" io="output" supportChannel="WDM4"/>
      </ports>
    </comp>
    <comp ref="B">
      <ports>
        <port number="1" name="/T_B_IN1" io="input" supportChannel="WDM4"/>
        <port number="2" name="/T_B_OUT1" io="output" supportChannel="WDM4"/>
      </ports>
    </comp>
    <comp ref="C">
      <ports>
        <port number="1" name="/T_C_IN1" io="input" supportChannel="WDM4"/>
        <port number="2" name="/T_C_OUT1" io="output" supportChannel="WDM4"/>
      </ports>
    </comp>
  </components>
  <nets>
    <net code="1" name="/AB">
      <node ref="A" pin="2"/>
      <node ref="B" pin="1"/>
      <cost>0.1</cost>
    </net>
    <net code="2" name="/BC">
      <node ref="B" pin="2"/>
      <node ref="C" pin="1"/>
      <cost>0.1</cost>
    </net>
  </nets>
</topology>`

const testKey = "topo.xml"

func lineSolution(ch string) nrmtest.Solution {
	hops := [][2]string{
		{"A_1", "A_2"}, {"A_2", "B_1"}, {"B_1", "B_2"},
		{"B_2", "C_1"}, {"C_1", "C_2"},
	}
	rows := make([]string, len(hops))
	for i, hop := range hops {
		rows[i] = fmt.Sprintf("# %s %s %s %s 1 1 0 0 0", hop[0], ch, hop[1], ch)
	}
	return nrmtest.Solution{Rows: rows, Cost: 1.2}
}

func writeLineTopology(t *testing.T) (string, *topology.Topology) {
	t.Helper()
	dir := t.TempDir()
	topoFile := filepath.Join(dir, testKey)
	require.NoError(t, os.WriteFile(topoFile, []byte(lineTopologyXML), 0o644))
	topo, err := topology.Load(topoFile, filepath.Join(dir, "ac"))
	require.NoError(t, err)
	return dir, topo
}

func newTestHandler(t *testing.T, stub solver.Runner) (*Handler, *Engine, *storage.Store) {
	t.Helper()
	log.Discard()
	dir, topo := writeLineTopology(t)
	glpkDir := filepath.Join(dir, "glpk")
	require.NoError(t, os.MkdirAll(pathfinder.DataDir(glpkDir), 0o755))
	for _, ch := range topo.Channels() {
		skel := pathfinder.MakePFSkeleton(topo, nil, ch, false)
		base := pathfinder.PFDataBase(glpkDir, testKey, ch.FullNo)
		require.NoError(t, os.WriteFile(base+".data", []byte(skel.Data), 0o644))
		require.NoError(t, pathfinder.SaveVarIdxTable(
			base+pathfinder.VarIdxFileExt, skel.VT))
	}
	store := storage.New(filepath.Join(dir, "db"))
	registry, err := NewRegistry(topo, store, false)
	require.NoError(t, err)
	engine, err := NewEngine(topo, glpkDir, testKey, 0,
		stub, solver.NewDriver(), registry)
	require.NoError(t, err)
	return NewHandler(engine, nil), engine, store
}

func lineStub() *nrmtest.StubRunner {
	return &nrmtest.StubRunner{
		PF: map[string]nrmtest.Solution{
			"WDM4_1": lineSolution("WDM4_1"),
			"WDM4_2": lineSolution("WDM4_2"),
		},
	}
}

func TestPathFindReturnsRoute(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	reply := h.Handle(context.Background(), "pathfind -s A_1 -d C_2")
	assert.Contains(t, reply, "go route")
	// The lowest channel wins the cost tiebreak.
	assert.Contains(t, reply, "WDM4_1")
	assert.Contains(t, reply, "A_1")
	assert.Contains(t, reply, "C_2")
}

func TestPathFindDoesNotMutateState(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	h.Handle(context.Background(), "pathfind -s A_1 -d C_2")
	assert.Equal(t, "No Reservation", h.Handle(context.Background(), "query"))
}

func TestReserveExhaustsChannels(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	ctx := context.Background()

	first := h.Handle(ctx, "reserve -s A_1 -d C_2")
	assert.Contains(t, first, "id=1, globalId=urn:uuid:")

	// The second reservation cannot reuse channel 1 and moves on.
	second := h.Handle(ctx, "reserve -s A_1 -d C_2")
	assert.Contains(t, second, "id=2, globalId=urn:uuid:")

	// All channels exhausted.
	third := h.Handle(ctx, "reserve -s A_1 -d C_2")
	assert.Contains(t, third, "PROBLEM HAS NO PRIMAL FEASIBLE SOLUTION")
}

func TestReserveExplicitChannels(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	ctx := context.Background()
	h.Handle(ctx, "reserve -s A_1 -d C_2 -ch WDM4_1 WDM4_2")
	second := h.Handle(ctx, "reserve -s A_1 -d C_2 -ch WDM4_1 WDM4_2")
	assert.Contains(t, second, "id=2")

	reply := h.Handle(ctx, "query -g 2")
	assert.Contains(t, reply, "WDM4_2")
}

func TestReserveChannelRange(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	reply := h.Handle(context.Background(),
		"reserve -s A_1 -d C_2 -ch WDM4_1..WDM4_2")
	assert.Contains(t, reply, "id=1")
}

func TestTerminateRestoresProjection(t *testing.T) {
	h, engine, _ := newTestHandler(t, lineStub())
	ctx := context.Background()

	before := len(engine.Registry().UsedXEntries().Entries)
	h.Handle(ctx, "reserve -s A_1 -d C_2")
	require.NotEmpty(t, engine.Registry().UsedXEntries().Entries)

	reply := h.Handle(ctx, "terminate -g 1")
	assert.Contains(t, reply, "delete from memory: 1")
	assert.Len(t, engine.Registry().UsedXEntries().Entries, before)
}

func TestTerminateUnknownID(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	reply := h.Handle(context.Background(), "terminate -g 99")
	assert.Contains(t, reply, "cannot find reservation: 99")
}

func TestTerminateAllThenReserveIsDeterministic(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	ctx := context.Background()

	first := h.Handle(ctx, "reserve -s A_1 -d C_2")
	require.Contains(t, first, "id=1")
	firstRoute := h.Handle(ctx, "query -g 1")

	assert.Equal(t, "delete all reservation from memory",
		h.Handle(ctx, "TERMINATEALL"))
	assert.Equal(t, "No Reservation", h.Handle(ctx, "query"))

	again := h.Handle(ctx, "reserve -s A_1 -d C_2")
	require.Contains(t, again, "id=1")
	againRoute := h.Handle(ctx, "query -g 1")
	assert.Equal(t, stripGlobalID(firstRoute), stripGlobalID(againRoute))
}

func stripGlobalID(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "globalId") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func TestWriteDBAndReload(t *testing.T) {
	h, engine, store := newTestHandler(t, lineStub())
	ctx := context.Background()

	h.Handle(ctx, "reserve -s A_1 -d C_2")
	reply := h.Handle(ctx, "writeDB")
	assert.Contains(t, reply, "1 entries written to the DB")

	var wantGlobalID string
	for gid := range engine.Registry().byGlobal {
		wantGlobalID = gid
	}

	// Restart: a fresh registry loaded from the durable store.
	reloaded, err := NewRegistry(engine.Topology(), store, true)
	require.NoError(t, err)
	rsv, err := reloaded.Get(wantGlobalID, false)
	require.NoError(t, err)
	require.NotNil(t, rsv)
	assert.Equal(t, 1, rsv.ShortID)
	assert.Equal(t, "A_1", rsv.Request.Src)
}

func TestWriteDBTwiceWritesOnce(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	ctx := context.Background()
	h.Handle(ctx, "reserve -s A_1 -d C_2")
	h.Handle(ctx, "writeDB")
	reply := h.Handle(ctx, "writeDB")
	assert.Contains(t, reply, "0 entries written to the DB")
}

func TestSrcEqualsDstZeroHop(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	reply := h.Handle(context.Background(), "pathfind -s A_1 -d A_1")
	assert.Contains(t, reply, "go route")
	assert.NotContains(t, reply, "ERROR")
}

func TestUnknownSubcommandReturnsUsage(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	reply := h.Handle(context.Background(), "bogus -s x")
	assert.Contains(t, reply, "usage: pathfind")
	assert.Contains(t, reply, "usage: TERMINATEALL")
}

func TestUnknownFlagReturnsUsage(t *testing.T) {
	h, _, _ := newTestHandler(t, lineStub())
	reply := h.Handle(context.Background(), "reserve -s A_1 -d C_2 -frobnicate")
	assert.Contains(t, reply, "usage: reserve")
}

func TestWdmsaRoundRobin(t *testing.T) {
	_, engine, _ := newTestHandler(t, lineStub())
	var got []string
	for i := 0; i < 3; i++ {
		chs, err := engine.makeChannels(nil, true)
		require.NoError(t, err)
		require.Len(t, chs, 1)
		got = append(got, chs[0].FullNo)
	}
	assert.Equal(t, []string{"WDM4_1", "WDM4_2", "WDM4_1"}, got)
}

func TestEroSplitRequests(t *testing.T) {
	_, engine, _ := newTestHandler(t, lineStub())
	topo := engine.Topology()
	req := newRequest(topo,
		PortChannel{Port: topo.PortByName("A_1")},
		PortChannel{Port: topo.PortByName("C_2")},
		topo.Channels(),
		[]*topology.Port{topo.PortByName("B_1")},
		false, &Route{}, &Route{})
	reqs := engine.eroSplitRequests(req)
	require.Len(t, reqs, 2)
	assert.Equal(t, "A_1", reqs[0].Src.Port.FullName)
	assert.Equal(t, "B_1", reqs[0].Dst.Port.FullName)
	require.Len(t, reqs[0].NextUsedEro, 1)
	assert.Equal(t, "C_2", reqs[0].NextUsedEro[0].FullName)
	assert.Equal(t, "B_1", reqs[1].Src.Port.FullName)
	assert.Equal(t, "C_2", reqs[1].Dst.Port.FullName)
	assert.Nil(t, reqs[1].NextUsedEro)
	// The segments share the accumulated used routes.
	assert.Same(t, reqs[0].UsedRoute, reqs[1].UsedRoute)
}

func TestDeltmpAndDumpglpsolToggles(t *testing.T) {
	h, engine, _ := newTestHandler(t, lineStub())
	ctx := context.Background()
	assert.Contains(t, h.Handle(ctx, "deltmp false"),
		"Delete GLPK temporary files : false")
	assert.False(t, engine.Driver().DelTmp())
	assert.Contains(t, h.Handle(ctx, "dumpglpsol true"),
		"Dump glpsol output : true")
	assert.True(t, engine.Driver().DumpOutput())
}

func TestReserveProjectsInuseTuples(t *testing.T) {
	h, engine, _ := newTestHandler(t, lineStub())
	ctx := context.Background()
	h.Handle(ctx, "reserve -s A_1 -d C_2")

	engine.registry.RLock()
	used := engine.registry.UsedXEntries()
	engine.registry.RUnlock()
	require.NotEmpty(t, used.Entries)
	tuples := used.XTuples()
	assert.Contains(t, tuples, pathfinder.Tuple{
		SrcPort: "A_1", SrcCh: "WDM4_1", DstPort: "A_2", DstCh: "WDM4_1",
	})
}
