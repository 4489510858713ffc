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
	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/topology"
)

// Tuple is one concrete (port@channel -> port@channel) selection, the
// unit of the in-use projection.
type Tuple struct {
	SrcPort string
	SrcCh   string
	DstPort string
	DstCh   string
}

// Instance is the request-time overlay appended to a copied skeleton data
// file before a solve.
type Instance struct {
	Src string
	Dst string
	// Channels are the trial channels of this solve.
	Channels []*topology.Channel
	// NextEroPorts are the ports the current segment must not use as
	// transit.
	NextEroPorts []string
	// UsedX are the in-use pathfinding tuples of the live registry.
	UsedX []Tuple
	// UsedC are the in-use activation tuples of the live registry; the
	// same tuple appears once per reservation that activates it.
	UsedC []Tuple
}

func (inst *Instance) printSrcDst(b *buffer) {
	b.printParam("src")
	b.printAny(inst.Src)
	b.endStatement()
	b.printParam("dst")
	b.printAny(inst.Dst)
	b.endStatement()
}

// printInuse writes one in-use parameter. Tuples outside the target port
// scope or without a variable are skipped; the latter indicates that the
// topology changed underneath a reservation and is logged.
func (inst *Instance) printInuse(
	b *buffer, name string, tuples []Tuple, targets map[string]bool,
	vt *VarIdxTable, counted bool,
) {
	b.printParamDef(name, 0)
	for _, inCh := range inst.Channels {
		for _, outCh := range inst.Channels {
			counts := map[Tuple]int{}
			var order []Tuple
			for _, tp := range tuples {
				if tp.SrcCh != inCh.FullNo || tp.DstCh != outCh.FullNo {
					continue
				}
				if !targets[tp.SrcPort] || !targets[tp.DstPort] {
					continue
				}
				if !vt.HasConnection(tp.SrcPort, inCh.FullNo, tp.DstPort, outCh.FullNo) {
					log.Info("no connection for reserved route, topology may have changed",
						"src", tp.SrcPort, "dst", tp.DstPort, "ch", inCh.FullNo)
					continue
				}
				key := Tuple{tp.SrcPort, inCh.FullNo, tp.DstPort, outCh.FullNo}
				if counts[key] == 0 {
					order = append(order, key)
				}
				counts[key]++
			}
			tbl := newPortIdxTable()
			for _, key := range order {
				val := 1
				if counted {
					val = counts[key]
				}
				tbl.add(key.SrcPort, key.DstPort, val)
			}
			tbl.printPerIJKL(b, inCh.FullNo, outCh.FullNo)
		}
	}
	b.endStatement()
}

// RenderPF renders the overlay of a global (pf) solve.
func (inst *Instance) RenderPF(targetPorts []*topology.Port, vt *VarIdxTable) string {
	targets := portSet(targetPorts)
	var b buffer
	inst.printSrcDst(&b)
	b.printSetDef("NextEroPorts")
	b.printList(inst.NextEroPorts, true)
	b.endStatement()
	inst.printInuse(&b, "inuse_C", inst.UsedC, targets, vt, true)
	inst.printInuse(&b, "inuse_X", inst.UsedX, targets, vt, false)
	b.printAny("end;" + glpk.RET)
	return b.String()
}

// RenderSolvec renders the overlay of one per-device solve. usedComps are
// the controller-bearing components touched by the selected route,
// restricted to the target chunk; usedPorts are the ports of the selected
// route.
func (inst *Instance) RenderSolvec(
	topo *topology.Topology,
	target *SolvecTarget,
	usedComps []*topology.Component,
	usedPorts []string,
	vt *VarIdxTable,
) string {

	targetPorts := SolvecPorts(topo, target)
	scope := &skeletonScope{
		topo:        topo,
		solvec:      true,
		channels:    inst.Channels,
		target:      target,
		targetComps: usedComps,
		targetPorts: targetPorts,
		targetSet:   portSet(targetPorts),
	}
	var b buffer
	inst.printSrcDst(&b)

	// Ports of the selected route within the target components.
	inChunk := map[string]bool{}
	for _, c := range usedComps {
		inChunk[c.Name] = true
	}
	var vinuse []string
	seen := map[string]bool{}
	for _, name := range usedPorts {
		p := topo.PortByName(name)
		if p == nil || seen[name] {
			continue
		}
		if !inChunk[topo.ComponentByPort(p).Name] {
			continue
		}
		seen[name] = true
		vinuse = append(vinuse, name)
	}
	b.printSetDef("Vinuse")
	b.printList(vinuse, true)
	b.endStatement()

	scope.buildComps(&b, nil)
	scope.buildPortSets(&b, nil)
	scope.buildFlowInOut(&b)
	scope.buildIJK2Ls(&b, vt)
	inst.printInuse(&b, "inuse_X", inst.UsedX, scope.targetSet, vt, false)
	b.printAny("end;" + glpk.RET)
	return b.String()
}
