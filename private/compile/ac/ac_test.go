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

package ac

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/pathfinder"
)

const acTopoXML = `<topology>
  <design>
    <channelInfo>
      <channelTable id="WDM4" type="optical">
        <channel no="1"/>
        <channel no="2"/>
      </channelTable>
    </channelInfo>
  </design>
  <components>
    <comp ref="N1">
      <field name="Model">WSSX</field>
      <field name="GLPK" GLPKchannelTableId="WDM4">set AvailableConnection := {i in InputPort, j in Channels, k in OutputPort, l in Channels : j = l &amp;&amp; k = i + 1}; s.t. demux{AvailableConnection} : c[i, j, k, l] = 1;</field>
      <ports>
        <port number="1" name="/T_N1_IN1" io="input" supportChannel="WDM4"/>
        <port number="2" name="/T_N1_OUT1" io="output" supportChannel="WDM4"/>
      </ports>
    </comp>
  </components>
  <nets/>
</topology>`

func loadACTopology(t *testing.T) *topology.Topology {
	t.Helper()
	log.Discard()
	file := filepath.Join(t.TempDir(), "topo.xml")
	require.NoError(t, os.WriteFile(file, []byte(acTopoXML), 0o644))
	topo, err := topology.Load(file, "")
	require.NoError(t, err)
	return topo
}

func TestChannelsData(t *testing.T) {
	topo := loadACTopology(t)
	data := channelsData(topo)
	assert.Contains(t, data, "set Channels_WDM4 := WDM4_1 WDM4_2;")
	assert.Contains(t, data, "set AllChannels := WDM4_1 WDM4_2;")
	assert.Contains(t, data, "param chNo := WDM4_1 1 WDM4_2 2;")
	assert.Contains(t, data, "end;")
}

func TestModelText(t *testing.T) {
	topo := loadACTopology(t)
	comp := topo.ComponentByName("N1")
	text, err := modelText(comp, channelsDef(topo))
	require.NoError(t, err)

	// Channel names are qualified by the component's table id.
	assert.Contains(t, text, "Channels_WDM4")
	assert.NotContains(t, text, " Channels ")
	// The set condition rewrites raw channel indices to chNo lookups.
	assert.Contains(t, text, "chNo[j] = chNo[l]")
	// Port sets come from the port directions.
	assert.Contains(t, text, "set InputPort := {1};")
	assert.Contains(t, text, "set OutputPort := {2};")
	// Constraints are commented; the pathfinder compiler re-reads them.
	assert.Contains(t, text, "# s.t. demux")
	assert.Contains(t, text, "display AvailableConnection;")
}

func TestParseConnTuples(t *testing.T) {
	stdout := `Display statement at line 8
(1,WDM4_1,2,WDM4_1)
(1,WDM4_2,2,WDM4_2)
noise
# 1 WDM4_1 2 WDM4_1 1
`
	conns := parseConnTuples(stdout)
	require.Len(t, conns, 3)
	assert.Equal(t, Conn{InPin: 1, InCh: "WDM4_1", OutPin: 2, OutCh: "WDM4_1"}, conns[0])
}

func TestRenderCut(t *testing.T) {
	cut := renderCut(2, []Conn{
		{InPin: 1, InCh: "WDM4_1", OutPin: 2, OutCh: "WDM4_1"},
		{InPin: 1, InCh: "WDM4_2", OutPin: 2, OutCh: "WDM4_2"},
	})
	assert.Equal(t,
		"s.t. cut_2 : c[1,'WDM4_1',2,'WDM4_1'] + c[1,'WDM4_2',2,'WDM4_2'] <= 1;",
		cut)
}

// scriptRunner answers solver calls from a canned output sequence.
type scriptRunner struct {
	outputs []solver.Output
	next    atomic.Int64
}

func (r *scriptRunner) Run(ctx context.Context, work solver.Work) (solver.Output, error) {
	i := int(r.next.Add(1)) - 1
	if i >= len(r.outputs) {
		return solver.Output{
			Stdout: "PROBLEM HAS NO PRIMAL FEASIBLE SOLUTION",
			Cost:   solver.NotFoundCost,
		}, nil
	}
	return r.outputs[i], nil
}

func TestMakeEnumeratesWithCuts(t *testing.T) {
	topo := loadACTopology(t)
	glpkDir := t.TempDir()
	runner := &scriptRunner{outputs: []solver.Output{
		{Stdout: "(1,WDM4_1,2,WDM4_1)\n"},
		{Stdout: "(1,WDM4_2,2,WDM4_2)\n"},
		// The third solve is infeasible: enumeration is complete.
		{Stdout: "PROBLEM HAS NO PRIMAL FEASIBLE SOLUTION", Cost: solver.NotFoundCost},
	}}
	err := Make(context.Background(), topo, runner, Params{
		GLPKDir:            glpkDir,
		SolvecTemplateFile: filepath.Join(glpkDir, "missing-template.model"),
	})
	require.NoError(t, err)

	acDir := pathfinder.ACDir(glpkDir)
	conn, err := os.ReadFile(filepath.Join(acDir, "WSSX.conn.txt"))
	require.NoError(t, err)
	assert.Equal(t, "(1,WDM4_1,2,WDM4_1)\n(1,WDM4_2,2,WDM4_2)\n", string(conn))

	model, err := os.ReadFile(filepath.Join(acDir, "WSSX.model"))
	require.NoError(t, err)
	assert.Contains(t, string(model), "# s.t. demux")

	channels, err := os.ReadFile(filepath.Join(acDir, "channels.data"))
	require.NoError(t, err)
	assert.Contains(t, string(channels), "set AllChannels")
}
