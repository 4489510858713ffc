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
	"encoding/gob"
	"os"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/topology"
)

// Variable index bounds. Zero means "no variable".
const (
	MinVarIdx = 1
	NoVarIdx  = MinVarIdx - 1
)

// VarIdxTable is the injective map from (in-port, in-channel, out-port,
// out-channel) tuples to dense positive variable ids, together with the
// per-port channel views derived while it is built. It is created when the
// skeleton data is compiled, persisted next to the skeleton, and restored
// at serve time.
type VarIdxTable struct {
	Conn2Idx map[string]int
	FlowInCh map[string]map[string]bool
	IJK2L    map[string]map[string]bool
	// Text is the rendered "param vt" section of the skeleton data.
	Text    string
	NextIdx int
}

func newVarIdxTable() *VarIdxTable {
	return &VarIdxTable{
		Conn2Idx: map[string]int{},
		FlowInCh: map[string]map[string]bool{},
		IJK2L:    map[string]map[string]bool{},
		NextIdx:  MinVarIdx,
	}
}

func (t *VarIdxTable) add(inPort, inCh, outPort, outCh string) int {
	key := glpk.TupleKey(inPort, inCh, outPort, outCh)
	t.Conn2Idx[key] = t.NextIdx
	addToSet(t.FlowInCh, inPort, inCh)
	addToSet(t.FlowInCh, outPort, outCh)
	addToSet(t.IJK2L, glpk.TupleKeyIJK(inPort, inCh, outPort), outCh)
	idx := t.NextIdx
	t.NextIdx++
	return idx
}

func addToSet(m map[string]map[string]bool, key, val string) {
	s := m[key]
	if s == nil {
		s = map[string]bool{}
		m[key] = s
	}
	s[val] = true
}

// Size returns the number of variables, i.e. NUM_VARS.
func (t *VarIdxTable) Size() int {
	return len(t.Conn2Idx)
}

// Idx returns the variable id of a tuple, or NoVarIdx.
func (t *VarIdxTable) Idx(inPort, inCh, outPort, outCh string) int {
	return t.Conn2Idx[glpk.TupleKey(inPort, inCh, outPort, outCh)]
}

// HasConnection reports whether the tuple has a variable.
func (t *VarIdxTable) HasConnection(inPort, inCh, outPort, outCh string) bool {
	return t.Idx(inPort, inCh, outPort, outCh) != NoVarIdx
}

// FlowInChannels returns the channels seen on a port, naturally ordered.
func (t *VarIdxTable) FlowInChannels(port string) []string {
	return sortedKeys(t.FlowInCh[port])
}

// FlowOutChannels returns the out-channels of an (in-port, in-channel,
// out-port) triple, naturally ordered.
func (t *VarIdxTable) FlowOutChannels(inPort, inCh, outPort string) []string {
	return sortedKeys(t.IJK2L[glpk.TupleKeyIJK(inPort, inCh, outPort)])
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	glpk.SortNatural(keys)
	return keys
}

// buildVarIdxTable enumerates the feasible tuples of the target ports on
// the given channels, assigns dense variable ids and renders the
// "param vt" section.
func buildVarIdxTable(
	topo *topology.Topology,
	channels []*topology.Channel,
	targetPorts []*topology.Port,
) *VarIdxTable {

	targets := portSet(targetPorts)
	t := newVarIdxTable()
	var b buffer
	b.printParamDef("vt", NoVarIdx)
	for _, ch := range channels {
		tbl := newPortIdxTable()
		for _, inPort := range targetPorts {
			for _, outPort := range inPort.FlowOuts() {
				if !targets[outPort.FullName] {
					continue
				}
				if !topo.HasConnection(inPort, ch, outPort, ch) {
					continue
				}
				idx := t.add(inPort.FullName, ch.FullNo, outPort.FullName, ch.FullNo)
				tbl.add(inPort.FullName, outPort.FullName, idx)
			}
		}
		tbl.printPerIJL(&b, ch.FullNo, ch.FullNo)
	}
	b.endStatement()
	b.printParam("NUM_VARS")
	b.printAny(intString(t.Size()))
	b.endStatement()
	t.Text = b.String()
	return t
}

func portSet(ports []*topology.Port) map[string]bool {
	s := make(map[string]bool, len(ports))
	for _, p := range ports {
		s[p.FullName] = true
	}
	return s
}

// SaveVarIdxTable persists the table beside its skeleton file.
func SaveVarIdxTable(file string, t *VarIdxTable) error {
	fd, err := os.Create(file)
	if err != nil {
		return serrors.Wrap("writing varidx table", err, "file", file)
	}
	defer fd.Close()
	if err := gob.NewEncoder(fd).Encode(t); err != nil {
		return serrors.Wrap("encoding varidx table", err, "file", file)
	}
	return nil
}

// LoadVarIdxTable restores a persisted table. Missing files yield a nil
// table without error so callers may rebuild.
func LoadVarIdxTable(file string) (*VarIdxTable, error) {
	fd, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, serrors.Wrap("reading varidx table", err, "file", file)
	}
	defer fd.Close()
	var t VarIdxTable
	if err := gob.NewDecoder(fd).Decode(&t); err != nil {
		log.Info("varidx table load failed, rebuilding", "file", file, "err", err)
		return nil, nil
	}
	return &t, nil
}
