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

package pathfinder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/topology"
)

const compileTopoXML = `<topology>
  <design>
    <channelInfo>
      <channelTable id="WDM4" type="optical">
        <channel no="1"/>
        <channel no="2"/>
      </channelTable>
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
  </components>
  <nets>
    <net code="1" name="/AB">
      <node ref="A" pin="2"/>
      <node ref="B" pin="1"/>
      <cost>0.25</cost>
    </net>
  </nets>
</topology>`

func loadCompileTopology(t *testing.T) *topology.Topology {
	t.Helper()
	log.Discard()
	file := filepath.Join(t.TempDir(), "topo.xml")
	require.NoError(t, os.WriteFile(file, []byte(compileTopoXML), 0o644))
	topo, err := topology.Load(file, t.TempDir())
	require.NoError(t, err)
	return topo
}

func TestMakePFSkeleton(t *testing.T) {
	topo := loadCompileTopology(t)
	ch := topo.ChannelByFullNo("WDM4_1")
	skel := MakePFSkeleton(topo, nil, ch, true)

	assert.Contains(t, skel.Data, "set V :=")
	assert.Contains(t, skel.Data, "param vt default 0 :=")
	assert.Contains(t, skel.Data, "param NUM_VARS := ")
	assert.Contains(t, skel.Data, "param widthOK default 1 :=")
	assert.Contains(t, skel.Data, "set ChannelRange[WDM4_1] := WDM4_1;")
	assert.Contains(t, skel.Data, "set OUT_OF_SERVICES")
	assert.Contains(t, skel.Data, "param pair default 0 :=")
	// The net cost of the A -> B edge appears with its channel.
	assert.Contains(t, skel.Data, "[A_2,WDM4_1,B_1,WDM4_1] 0.25")
	assert.Contains(t, skel.Model, "set AllChannels;")
	assert.Contains(t, skel.Model, "param nextCh{AllChannels} symbolic;")
}

func TestVarIdxTableIsInjective(t *testing.T) {
	topo := loadCompileTopology(t)
	ch := topo.ChannelByFullNo("WDM4_1")
	skel := MakePFSkeleton(topo, nil, ch, false)
	vt := skel.VT

	// Every assigned id is unique and the count matches NUM_VARS.
	seen := map[int]bool{}
	for _, idx := range vt.Conn2Idx {
		assert.GreaterOrEqual(t, idx, MinVarIdx)
		assert.False(t, seen[idx], "duplicate var id %d", idx)
		seen[idx] = true
	}
	assert.Len(t, seen, vt.Size())

	// The three feasible transitions of the line on one channel.
	assert.True(t, vt.HasConnection("A_1", "WDM4_1", "A_2", "WDM4_1"))
	assert.True(t, vt.HasConnection("A_2", "WDM4_1", "B_1", "WDM4_1"))
	assert.True(t, vt.HasConnection("B_1", "WDM4_1", "B_2", "WDM4_1"))
	assert.False(t, vt.HasConnection("B_2", "WDM4_1", "A_1", "WDM4_1"))
	assert.Equal(t, 3, vt.Size())
}

func TestVarIdxTableRoundTrip(t *testing.T) {
	topo := loadCompileTopology(t)
	ch := topo.ChannelByFullNo("WDM4_1")
	skel := MakePFSkeleton(topo, nil, ch, false)

	file := filepath.Join(t.TempDir(), "skel.vt")
	require.NoError(t, SaveVarIdxTable(file, skel.VT))
	loaded, err := LoadVarIdxTable(file)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, skel.VT.Conn2Idx, loaded.Conn2Idx)
	assert.Equal(t, skel.VT.Size(), loaded.Size())
}

func TestLoadVarIdxTableMissing(t *testing.T) {
	loaded, err := LoadVarIdxTable(filepath.Join(t.TempDir(), "nope.vt"))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSolvecTargets(t *testing.T) {
	frag, err := glpk.Parse(
		"# s.t. one{AvailableConnection} : c[i, j, k, l] = 1;")
	require.NoError(t, err)
	model := glpk.NewModel("WSS", frag)
	model.AddComponent("N1", true)
	model.AddComponent("N2", true)
	model.AddComponent("N3", true)
	noCon := glpk.NewModel("EDFA", frag)
	noCon.AddComponent("N9", false)
	models := map[string]*glpk.Model{"WSS": model, "EDFA": noCon}

	t.Run("zero chunks everything together", func(t *testing.T) {
		lists := SolvecTargets(models, 0)
		require.Len(t, lists, 1)
		require.Len(t, lists[0], 1)
		assert.Equal(t, []string{"N1", "N2", "N3"}, lists[0][0].Comps)
		assert.Equal(t, 1, lists[0][0].Idx)
	})

	t.Run("chunked by num_comps", func(t *testing.T) {
		lists := SolvecTargets(models, 2)
		require.Len(t, lists, 1)
		require.Len(t, lists[0], 2)
		assert.Equal(t, []string{"N1", "N2"}, lists[0][0].Comps)
		assert.Equal(t, []string{"N3"}, lists[0][1].Comps)
		assert.Equal(t, 2, lists[0][1].Idx)
	})
}

func TestInstanceRenderPF(t *testing.T) {
	topo := loadCompileTopology(t)
	ch := topo.ChannelByFullNo("WDM4_1")
	skel := MakePFSkeleton(topo, nil, ch, false)
	_, ports := PFTargets(topo, ch.TableID)

	inst := Instance{
		Src:          "A_1",
		Dst:          "B_2",
		Channels:     []*topology.Channel{ch},
		NextEroPorts: []string{"B_1"},
		UsedX: []Tuple{
			{SrcPort: "A_1", SrcCh: "WDM4_1", DstPort: "A_2", DstCh: "WDM4_1"},
		},
		UsedC: []Tuple{
			{SrcPort: "A_1", SrcCh: "WDM4_1", DstPort: "A_2", DstCh: "WDM4_1"},
			{SrcPort: "A_1", SrcCh: "WDM4_1", DstPort: "A_2", DstCh: "WDM4_1"},
		},
	}
	overlay := inst.RenderPF(ports, skel.VT)
	assert.Contains(t, overlay, "param src := A_1;")
	assert.Contains(t, overlay, "param dst := B_2;")
	assert.Contains(t, overlay, "set NextEroPorts := B_1;")
	assert.Contains(t, overlay, "param inuse_X default 0 :=")
	assert.Contains(t, overlay, "[A_1,WDM4_1,A_2,WDM4_1] 1")
	// The same activation used by two reservations counts twice.
	assert.Contains(t, overlay, "[A_1,WDM4_1,A_2,WDM4_1] 2")
	assert.True(t, strings.HasSuffix(overlay, "end;"+glpk.RET))
}

func TestInstanceSkipsUnknownTuples(t *testing.T) {
	topo := loadCompileTopology(t)
	ch := topo.ChannelByFullNo("WDM4_1")
	skel := MakePFSkeleton(topo, nil, ch, false)
	_, ports := PFTargets(topo, ch.TableID)

	inst := Instance{
		Src:      "A_1",
		Dst:      "B_2",
		Channels: []*topology.Channel{ch},
		UsedX: []Tuple{
			// No variable exists for this reverse transition.
			{SrcPort: "B_2", SrcCh: "WDM4_1", DstPort: "A_1", DstCh: "WDM4_1"},
		},
	}
	overlay := inst.RenderPF(ports, skel.VT)
	assert.NotContains(t, overlay, "[B_2,WDM4_1,A_1,WDM4_1]")
}
