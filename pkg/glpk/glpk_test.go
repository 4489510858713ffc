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

package glpk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, "Gray1_3", Escape("Gray1.3"))
	assert.Equal(t, "WDM32", Escape("WDM32"))
	assert.Equal(t, "a_b_c", Escape("a-b c"))
}

func TestNaturalLess(t *testing.T) {
	assert.True(t, NaturalLess("N2", "N10"))
	assert.False(t, NaturalLess("N10", "N2"))
	assert.True(t, NaturalLess("WDM32_1", "WDM32_2"))
	assert.True(t, NaturalLess("WDM32_9", "WDM32_10"))
	assert.True(t, NaturalLess("A", "B"))
}

func TestSortNatural(t *testing.T) {
	names := []string{"N10", "N2", "N1_11", "N1_2"}
	SortNatural(names)
	assert.Equal(t, []string{"N1_2", "N1_11", "N2", "N10"}, names)
}

func TestExpandNumSets(t *testing.T) {
	assert.Equal(t, "set A := {1,2,3,4,5};", ExpandNumSets("set A := {1..5};"))
	assert.Equal(t, "set A := {1,3,5,7,9};", ExpandNumSets("set A := {1..9 by 2};"))
	assert.Equal(t, "set A := {1, 2};", ExpandNumSets("set A := {1, 2};"))
}

func TestTupleKeys(t *testing.T) {
	assert.Equal(t, "a@c1#b@c2", TupleKey("a", "c1", "b", "c2"))
	assert.Equal(t, "a@c1#b@undef", TupleKeyIJK("a", "c1", "b"))
}

func TestParseDomain(t *testing.T) {
	d, err := ParseDomain(
		"i in InputPort, j in Channels_WDM32 : chNo[j] = chNo[l]")
	require.NoError(t, err)
	assert.Equal(t, "chNo[j] = chNo[l]", d.Cond)
	require.Len(t, d.Bindings, 2)
	assert.Equal(t, Binding{Var: "i", Set: "InputPort"}, d.Bindings[0])
	assert.Equal(t, Binding{Var: "j", Set: "Channels_WDM32"}, d.Bindings[1])
}

func TestParseVarDim4(t *testing.T) {
	v, err := ParseVarDim4("i, j, k, l")
	require.NoError(t, err)
	assert.Equal(t, "i,j,k,l", v.Type())

	v, err = ParseVarDim4("i, j + 1, k, j + 1")
	require.NoError(t, err)
	assert.Equal(t, "i,j,k,j", v.Type())
	assert.Equal(t, "i, j + 1, k, j + 1", v.String())

	_, err = ParseVarDim4("a, j, k, l")
	assert.Error(t, err)
	_, err = ParseVarDim4("i, j, k")
	assert.Error(t, err)
}

const fragmentText = `set InputPort := {1, 3};
set OutputPort := {2, 4};
set AvailableConnection := {i in InputPort, j in Channels_WDM32, k in OutputPort, l in Channels_WDM32 : chNo[j] = chNo[l] && k = i + 1};
# s.t. demux{AvailableConnection} : c[i, j, k, l] = 1;
# s.t. input{j in Channels_WDM32, k in OutputPort} : sum{i in InputPort} c[i, j, k, j] <= 1;
`

func TestParseFragment(t *testing.T) {
	frag, err := Parse(fragmentText)
	require.NoError(t, err)

	require.Contains(t, frag.SetDefs, "InputPort")
	assert.Equal(t, []int{1, 3}, frag.SetDefs["InputPort"].Nums)
	ac := frag.SetDefs["AvailableConnection"]
	require.NotNil(t, ac.Domain)
	assert.Equal(t, "chNo[j] = chNo[l] && k = i + 1", ac.Domain.Cond)

	// The constraints are read through the comment prefix.
	require.Len(t, frag.StDefs, 2)
	demux := frag.StDefs[0]
	assert.Equal(t, "demux", demux.Name)
	require.NotNil(t, demux.Var)
	assert.Equal(t, 1, demux.Var.Num)
	assert.Equal(t, "AvailableConnection", demux.Domain.Text)

	input := frag.StDefs[1]
	assert.Equal(t, "input", input.Name)
	require.NotNil(t, input.Sum)
	assert.Equal(t, "<=", input.Sum.Op)
	assert.Equal(t, 1, input.Sum.Num)
	assert.Equal(t, "i,j,k,j", input.Sum.VarC.Type())
}

func TestConstraintDomainExpandsAvailableConnection(t *testing.T) {
	frag, err := Parse(fragmentText)
	require.NoError(t, err)
	d := frag.ConstraintDomain(frag.StDefs[0])
	require.Len(t, d.Bindings, 4)
	assert.Equal(t, "j = l", d.Cond)
}

func TestFormat(t *testing.T) {
	out := Format("set A:={1,2};")
	assert.Equal(t, "set A := {1, 2};\n", out)
}

func TestModelControllerFlag(t *testing.T) {
	frag, err := Parse(fragmentText)
	require.NoError(t, err)
	m := NewModel("WSS", frag)
	m.AddComponent("N1", true)
	m.AddComponent("N2", false)
	assert.True(t, m.HasController)
	assert.Equal(t, []string{"N1", "N2"}, m.Components)
}
