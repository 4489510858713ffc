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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonpath/nrm/pkg/glpk"
)

const modelFragment = `set InputPort := {1};
set OutputPort := {2};
set AvailableConnection := {i in InputPort, j in Channels_WDM4, k in OutputPort, l in Channels_WDM4 : chNo[j] = chNo[l]};
# s.t. demux{AvailableConnection} : c[i, j, k, l] = 1;
# s.t. input{j in Channels_WDM4, k in OutputPort} : sum{i in InputPort} c[i, j, k, j] <= 1;
`

func parseTestModel(t *testing.T) *glpk.Model {
	t.Helper()
	frag, err := glpk.Parse(modelFragment)
	require.NoError(t, err)
	m := glpk.NewModel("WSS", frag)
	m.AddComponent("N1", true)
	return m
}

func TestEmitModelConstraints(t *testing.T) {
	out := emitModelConstraints(parseTestModel(t), "c2")

	assert.Contains(t, out, "# WSS")
	// The AvailableConnection domain expands over the per-component sets
	// with a vt guard.
	assert.Contains(t, out, "WSS_demux{")
	assert.Contains(t, out, "Comps_WSS")
	assert.Contains(t, out, "FlowInChannels[i]")
	assert.Contains(t, out, "IJK2Ls[i, j, k]")
	assert.Contains(t, out, "vt[i, j, k, l] > 0")
	// The c variables are rewritten through the vt table.
	assert.Contains(t, out, "c2[vt[i, j, k, l]]")
	assert.NotContains(t, out, "c2[i, j, k, l]")
	// The summation constraint binds its ports per component.
	assert.Contains(t, out, "sum{")
	assert.Contains(t, out, "OutputPort[comp]")
}

func TestEmitModelConstraintsSolvecVariable(t *testing.T) {
	out := emitModelConstraints(parseTestModel(t), "c")
	assert.Contains(t, out, "c[vt[i, j, k, l]]")
}

func TestSplitBaseModel(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "base.model")
	content := "head\n" + ConstraintStatements + "\ntail\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	head, tail, err := splitBaseModel(file)
	require.NoError(t, err)
	assert.Contains(t, head, "head")
	assert.Contains(t, head, ConstraintStatements)
	assert.Equal(t, "\ntail\n", tail)

	require.NoError(t, os.WriteFile(file, []byte("no marker"), 0o644))
	_, _, err = splitBaseModel(file)
	assert.Error(t, err)
}

func TestFixDomain(t *testing.T) {
	d, err := glpk.ParseDomain(
		"i in InputPort, j in Channels_WDM4, k in OutputPort, l in Channels_WDM4")
	require.NoError(t, err)
	hasVars := map[string]bool{}
	out := fixDomain(d, hasVars)
	assert.Equal(t,
		"i in InputPort[comp],j in FlowInChannels[i],"+
			"k in FlowOutPorts[i],l in IJK2Ls[i,j,k]", out)
	assert.True(t, hasVars["l"])
}
