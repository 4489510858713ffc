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

package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonpath/nrm/pkg/log"
)

const testXML = `<topology>
  <design>
    <channelInfo>
      <channelTable id="WDM8" type="optical">
        <channel no="1"/>
        <channel no="2"/>
        <channel no="3"/>
      </channelTable>
      <channelTable id="ODU2" type="electrical">
        <channel no="1"/>
      </channelTable>
    </channelInfo>
  </design>
  <components>
    <comp ref="N1">
      <field name="Model">WSS_100</field>
      <field name="Controller">10.0.0.1</field>
      <field name="Socket">5100</field>
      <field name="Cost" GLPKchannelTableId="WDM8">{"Cost":[{"i":"*","j":"*","k":2,"l":"*","cost":0.2}]}</field>
      <ports>
        <port number="1" name="/T_N1_IN1" io="input" supportChannel="WDM8"/>
        <port number="2" name="/T_N1_OUT1" io="output" supportChannel="WDM8"/>
      </ports>
    </comp>
    <comp ref="N2">
      <ports>
        <port number="1" name="/T_N2_IN1" supportChannel="ANY"/>
        <port number="2" name="/T_N2_OUT1" supportChannel="ANY"/>
      </ports>
    </comp>
    <comp ref="P1">
      <ports>
        <port number="1" name="/T_P1_OUT1" io="output" supportChannel="WDM8"/>
        <port number="2" name="/T_P1_IN1" io="input" supportChannel="WDM8"/>
      </ports>
    </comp>
  </components>
  <nets>
    <net code="1" name="/P1N1">
      <node ref="P1" pin="1"/>
      <node ref="N1" pin="1"/>
      <cost>0.1</cost>
    </net>
    <net code="2" name="/N1N2">
      <node ref="N1" pin="2"/>
      <node ref="N2" pin="1"/>
      <cost>0.3</cost>
    </net>
    <net code="3" name="/broken">
      <node ref="NOPE" pin="1"/>
      <node ref="N2" pin="2"/>
      <cost>0.1</cost>
    </net>
  </nets>
</topology>`

func loadTestTopology(t *testing.T) *Topology {
	t.Helper()
	log.Discard()
	file := filepath.Join(t.TempDir(), "topo.xml")
	require.NoError(t, os.WriteFile(file, []byte(testXML), 0o644))
	topo, err := Load(file, t.TempDir())
	require.NoError(t, err)
	return topo
}

func TestLoadDropsNonOpticalTables(t *testing.T) {
	topo := loadTestTopology(t)
	require.Len(t, topo.Tables(), 1)
	assert.Equal(t, "WDM8", topo.Tables()[0].ID)
	assert.True(t, topo.Tables()[0].IsWDM())
	assert.Len(t, topo.Channels(), 3)
	assert.Equal(t, "WDM8_2", topo.Channels()[1].FullNo)
}

func TestComponentFields(t *testing.T) {
	topo := loadTestTopology(t)
	n1 := topo.ComponentByName("N1")
	require.NotNil(t, n1)
	assert.Equal(t, "WSS_100", n1.Model)
	assert.True(t, n1.HasController())
	assert.Equal(t, "WDM8", n1.TableID)
	require.Len(t, n1.Cost(), 1)
	assert.Equal(t, 0.2, n1.Cost()[0].Cost)
	assert.True(t, n1.Cost()[0].I.IsWildcard())

	n2 := topo.ComponentByName("N2")
	assert.False(t, n2.HasController())
	assert.True(t, n2.Supports("WDM8"))

	assert.True(t, topo.ComponentByName("P1").IsPseudo())
}

func TestPortDirectionInference(t *testing.T) {
	topo := loadTestTopology(t)
	// N2's ports carry no io attribute; the direction comes from the
	// trailing IN/OUT token of the display name.
	in := topo.PortByName("N2_1")
	require.NotNil(t, in)
	assert.True(t, in.IsIn())
	assert.False(t, in.IsOut())
	out := topo.PortByName("N2_2")
	assert.True(t, out.IsOut())
}

func TestOppositePorts(t *testing.T) {
	topo := loadTestTopology(t)
	in := topo.PortByName("N1_1")
	require.True(t, in.HasOpposite())
	assert.Equal(t, "N1_2", in.Opposite().FullName)
}

func TestBrokenNetIsDropped(t *testing.T) {
	topo := loadTestTopology(t)
	// Nets 1 and 2 survive; net 3 references an unknown component.
	assert.Len(t, topo.PortPairs(), 2)
}

func TestHasConnection(t *testing.T) {
	topo := loadTestTopology(t)
	ch := topo.ChannelByFullNo("WDM8_1")
	ch2 := topo.ChannelByFullNo("WDM8_2")

	// Internal same-channel transition of a component without compiled
	// constraints.
	assert.True(t, topo.HasConnection(
		topo.PortByName("N1_1"), ch, topo.PortByName("N1_2"), ch))
	assert.False(t, topo.HasConnection(
		topo.PortByName("N1_1"), ch, topo.PortByName("N1_2"), ch2))

	// Terminals have no internal switching.
	assert.False(t, topo.HasConnection(
		topo.PortByName("P1_2"), ch, topo.PortByName("P1_1"), ch))

	// Inter-component transition along a net.
	assert.True(t, topo.HasConnection(
		topo.PortByName("P1_1"), ch, topo.PortByName("N1_1"), ch))
	assert.False(t, topo.HasConnection(
		topo.PortByName("N1_1"), ch, topo.PortByName("P1_1"), ch))
}

func TestFlowMaps(t *testing.T) {
	topo := loadTestTopology(t)
	outs := topo.PortByName("N1_1").FlowOuts()
	require.Len(t, outs, 1)
	assert.Equal(t, "N1_2", outs[0].FullName)

	ins := topo.PortByName("N1_1").FlowIns()
	require.Len(t, ins, 1)
	assert.Equal(t, "P1_1", ins[0].FullName)
}

func TestChannelLookup(t *testing.T) {
	topo := loadTestTopology(t)
	assert.Nil(t, topo.ChannelByFullNo("WDM8_9"))
	assert.NotNil(t, topo.ChannelByFullNo("WDM8_3"))
}

func TestSelector(t *testing.T) {
	sel := Selector("1-3,7")
	nums := sel.Nums()
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true, 7: true}, nums)
	assert.True(t, sel.MatchChannel(2))
	assert.False(t, sel.MatchChannel(5))
	assert.True(t, Selector("*").MatchChannel(42))
}
