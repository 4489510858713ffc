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
	"sort"
	"strconv"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/topology"
)

// nextChEnd is the nextCh value of the last channel; it never appears in
// any channel set, so conditions on nextCh[j] fail closed.
const nextChEnd = "END"

// Skeleton is the compiled skeleton of one data file together with its
// variable table.
type Skeleton struct {
	Data  string
	Model string
	VT    *VarIdxTable
}

// skeletonScope carries the shared state of one skeleton emission.
type skeletonScope struct {
	topo        *topology.Topology
	solvec      bool
	writeModel  bool
	channels    []*topology.Channel
	models      map[string]*glpk.Model
	target      *SolvecTarget
	targetComps []*topology.Component
	targetPorts []*topology.Port
	targetSet   map[string]bool
}

// PFTargets computes the component and port scope of a global (pf)
// problem for one channel table: all components supporting the table and,
// unless the topology has a single table, only their ports compatible
// with it.
func PFTargets(topo *topology.Topology, tableID string) (
	[]*topology.Component, []*topology.Port) {

	comps := topo.SupportComps(tableID)
	if len(topo.Tables()) == 1 {
		return comps, topo.Ports()
	}
	var ports []*topology.Port
	for _, comp := range comps {
		for _, p := range comp.Ports() {
			if p.SameSupportChannel(tableID) {
				ports = append(ports, p)
			}
		}
	}
	sort.Slice(ports, func(i, j int) bool {
		return glpk.NaturalLess(ports[i].FullName, ports[j].FullName)
	})
	return comps, ports
}

// SolvecPorts returns all ports of the target components, components in
// natural order.
func SolvecPorts(topo *topology.Topology, target *SolvecTarget) []*topology.Port {
	names := append([]string(nil), target.Comps...)
	glpk.SortNatural(names)
	var ports []*topology.Port
	for _, name := range names {
		comp := topo.ComponentByName(name)
		if comp == nil {
			continue
		}
		ports = append(ports, comp.Ports()...)
	}
	return ports
}

// MakePFSkeleton compiles the skeleton data (and, when writeModel is set,
// the model-side declarations) of the global problem for one channel.
func MakePFSkeleton(
	topo *topology.Topology,
	models map[string]*glpk.Model,
	ch *topology.Channel,
	writeModel bool,
) *Skeleton {

	comps, ports := PFTargets(topo, ch.TableID)
	s := &skeletonScope{
		topo:        topo,
		writeModel:  writeModel,
		channels:    []*topology.Channel{ch},
		models:      models,
		targetComps: comps,
		targetPorts: ports,
		targetSet:   portSet(ports),
	}
	return s.build()
}

// MakeSolvecSkeleton compiles the skeleton of one per-device sub-problem.
// All channels are in scope.
func MakeSolvecSkeleton(
	topo *topology.Topology,
	target *SolvecTarget,
	writeModel bool,
) *Skeleton {

	ports := SolvecPorts(topo, target)
	s := &skeletonScope{
		topo:        topo,
		solvec:      true,
		writeModel:  writeModel,
		channels:    topo.Channels(),
		target:      target,
		targetPorts: ports,
		targetSet:   portSet(ports),
	}
	return s.build()
}

func (s *skeletonScope) build() *Skeleton {
	var data, model buffer

	// set V
	data.printSetDef("V")
	data.printPorts(s.targetPorts, false)
	data.endStatement()

	if !s.solvec || s.writeModel {
		s.buildComps(&data, &model)
		s.buildPortSets(&data, &model)
	}
	if !s.solvec {
		s.buildFlowInOut(&data)
	}
	s.buildChannels(&data, &model)

	vt := buildVarIdxTable(s.topo, s.channels, s.targetPorts)
	data.printAny(vt.Text)

	s.buildFlowInChannels(&data, vt)

	if !s.solvec {
		s.buildIJK2Ls(&data, vt)
		s.buildMultiWidth(&data)
		s.buildPair(&data, vt)
		s.buildCost(&data, vt)
		s.buildOutOfService(&data, vt)
	}

	return &Skeleton{Data: data.String(), Model: model.String(), VT: vt}
}

func (s *skeletonScope) targetModels() []*glpk.Model {
	if s.target != nil {
		return []*glpk.Model{s.target.Model}
	}
	models := make([]*glpk.Model, 0, len(s.models))
	for _, name := range ModelNames(s.models) {
		models = append(models, s.models[name])
	}
	return models
}

func (s *skeletonScope) modelByName(name string) *glpk.Model {
	if s.target != nil {
		return s.target.Model
	}
	return s.models[name]
}

// compsInModel intersects a model's components with the target scope,
// preserving the model's order.
func (s *skeletonScope) compsInModel(model *glpk.Model) []*topology.Component {
	if s.solvec {
		return s.targetComps
	}
	inScope := map[string]bool{}
	for _, c := range s.targetComps {
		inScope[c.Name] = true
	}
	var comps []*topology.Component
	for _, name := range model.Components {
		if inScope[name] {
			comps = append(comps, s.topo.ComponentByName(name))
		}
	}
	return comps
}

func compNames(comps []*topology.Component) []string {
	names := make([]string, len(comps))
	for i, c := range comps {
		names[i] = c.Name
	}
	return names
}

// buildComps emits "set Comps_<model>" for each target model.
func (s *skeletonScope) buildComps(data, model *buffer) {
	if len(s.targetComps) == 0 && s.writeModel {
		for _, m := range s.targetModels() {
			model.printAny("set Comps_" + glpk.Escape(m.Name) + ";" + glpk.RET)
		}
		return
	}
	for _, m := range s.targetModels() {
		setName := "Comps_" + glpk.Escape(m.Name)
		if s.writeModel {
			model.printAny("set " + setName + ";" + glpk.RET)
		}
		data.printSetDef(setName)
		data.printList(compNames(s.compsInModel(m)), true)
		data.endStatement()
	}
}

// portSetsOfModels collects the port-set names bound to the i and k
// indices of every target model's constraints.
func (s *skeletonScope) portSetsOfModels() map[string]map[string]bool {
	model2sets := map[string]map[string]bool{}
	for _, m := range s.targetModels() {
		for _, st := range m.Fragment.StDefs {
			domains := []glpk.Domain{m.Fragment.ConstraintDomain(st)}
			if st.Sum != nil {
				domains = append(domains, st.Sum.Domain)
			}
			for _, d := range domains {
				for _, binding := range d.Bindings {
					if binding.Var != "i" && binding.Var != "k" {
						continue
					}
					sets := model2sets[m.Name]
					if sets == nil {
						sets = map[string]bool{}
						model2sets[m.Name] = sets
					}
					sets[binding.Set] = true
				}
			}
		}
	}
	return model2sets
}

// buildPortSets emits "set Comps_<portset>" and "set <portset>[comp]".
func (s *skeletonScope) buildPortSets(data, model *buffer) {
	model2sets := s.portSetsOfModels()
	set2comps := map[string][]*topology.Component{}
	valsets := map[string]bool{}
	for _, m := range s.targetModels() {
		for valset := range model2sets[m.Name] {
			valsets[valset] = true
			set2comps[valset] = append(set2comps[valset], s.compsInModel(m)...)
		}
	}
	setNames := make([]string, 0, len(valsets))
	for v := range valsets {
		setNames = append(setNames, v)
	}
	sort.Strings(setNames)

	empty := true
	for _, comps := range set2comps {
		if len(comps) > 0 {
			empty = false
		}
	}
	if empty && s.writeModel {
		// Model declarations only; the per-chunk data carries the values.
		for _, valset := range setNames {
			model.printAny("set Comps_" + valset + ";" + glpk.RET)
			model.printAny("set " + valset + "{Comps_" + valset + "};" + glpk.RET)
		}
		return
	}

	for _, valset := range setNames {
		setName := "Comps_" + valset
		if s.writeModel {
			model.printAny("set " + setName + ";" + glpk.RET)
		}
		data.printSetDef(setName)
		data.printList(compNames(set2comps[valset]), true)
		data.endStatement()
	}
	for _, valset := range setNames {
		if s.writeModel {
			model.printAny("set " + valset + "{Comps_" + valset + "};" + glpk.RET)
		}
		comps := append([]*topology.Component(nil), set2comps[valset]...)
		sort.Slice(comps, func(i, j int) bool {
			return glpk.NaturalLess(comps[i].Name, comps[j].Name)
		})
		for _, comp := range comps {
			data.printSetDefIdx(valset, comp.Name)
			m := s.modelByName(comp.Model)
			if sd, ok := m.Fragment.SetDefs[valset]; ok {
				var ports []*topology.Port
				for _, num := range sd.Nums {
					p := comp.Port(num)
					if p == nil {
						// The port was removed from the topology after
						// the ac files were compiled.
						continue
					}
					if !s.solvec && !s.targetSet[p.FullName] {
						continue
					}
					ports = append(ports, p)
				}
				data.printPorts(ports, false)
			}
			data.endStatement()
		}
	}
}

func (s *skeletonScope) buildFlowInOut(data *buffer) {
	targetCompSet := map[*topology.Component]bool{}
	for _, c := range s.targetComps {
		targetCompSet[c] = true
	}
	for _, p := range s.targetPorts {
		if s.solvec && !targetCompSet[s.topo.ComponentByPort(p)] {
			continue
		}
		data.printSetDefIdx("FlowInPorts", p.FullName)
		data.printPorts(s.filterPorts(p.FlowIns()), true)
		data.endStatement()
		data.printSetDefIdx("FlowOutPorts", p.FullName)
		data.printPorts(s.filterPorts(p.FlowOuts()), true)
		data.endStatement()
	}
}

func (s *skeletonScope) filterPorts(ports []*topology.Port) []*topology.Port {
	var out []*topology.Port
	for _, p := range ports {
		if s.targetSet[p.FullName] {
			out = append(out, p)
		}
	}
	return out
}

func (s *skeletonScope) buildChannels(data, model *buffer) {
	chMap := map[string][]*topology.Channel{}
	for _, ch := range s.channels {
		chMap[ch.TableID] = append(chMap[ch.TableID], ch)
	}
	var allChannels []string
	var chNos []string
	for _, table := range s.topo.Tables() {
		setName := "Channels_" + table.ID
		if s.writeModel {
			model.printAny("set " + setName + ";" + glpk.RET)
		}
		data.printSetDef(setName)
		var names []string
		for _, ch := range chMap[table.ID] {
			names = append(names, ch.FullNo)
			chNos = append(chNos, ch.FullNo, strconv.Itoa(ch.No))
		}
		data.printList(names, false)
		data.endStatement()
		allChannels = append(allChannels, names...)
	}
	if s.writeModel {
		model.printAny("set AllChannels;" + glpk.RET)
		model.printAny("param chNo{AllChannels};" + glpk.RET)
		model.printAny("param nextCh{AllChannels} symbolic;" + glpk.RET)
	}
	data.printSetDef("AllChannels")
	data.printList(allChannels, false)
	data.endStatement()

	data.printParam("chNo")
	data.printList(chNos, false)
	data.endStatement()

	data.printParam("nextCh")
	var nextCh []string
	for i, name := range allChannels {
		nextCh = append(nextCh, name)
		if i+1 < len(allChannels) {
			nextCh = append(nextCh, allChannels[i+1])
		} else {
			nextCh = append(nextCh, nextChEnd)
		}
	}
	data.printList(nextCh, false)
	data.endStatement()
}

func (s *skeletonScope) buildFlowInChannels(data *buffer, vt *VarIdxTable) {
	for _, p := range s.targetPorts {
		data.printSetDefIdx("FlowInChannels", p.FullName)
		data.printList(vt.FlowInChannels(p.FullName), false)
		data.endStatement()
	}
}

func (s *skeletonScope) buildIJK2Ls(data *buffer, vt *VarIdxTable) {
	for _, inPort := range s.targetPorts {
		for _, inCh := range vt.FlowInChannels(inPort.FullName) {
			for _, outPort := range inPort.FlowOuts() {
				if !s.targetSet[outPort.FullName] {
					continue
				}
				data.printSetDefIdx("IJK2Ls",
					inPort.FullName+","+inCh+","+outPort.FullName)
				data.printList(
					vt.FlowOutChannels(inPort.FullName, inCh, outPort.FullName),
					false)
				data.endStatement()
			}
		}
	}
}

// buildMultiWidth emits the request-time channel-eligibility skeleton: all
// channels eligible, each channel conflicting only with itself.
func (s *skeletonScope) buildMultiWidth(data *buffer) {
	ch := s.channels[0]
	data.printParamDef("widthOK", 1)
	data.endStatement()
	data.printSetDefIdx("ChannelRange", ch.FullNo)
	data.printAny(" " + ch.FullNo)
	data.endStatement()
}

// buildPair emits the twin-tuple variable ids: for each direction of a
// paired link, the var-id of the other direction.
func (s *skeletonScope) buildPair(data *buffer, vt *VarIdxTable) {
	data.printParamDef("pair", 0)
	for _, ch := range s.channels {
		tbl := newPortIdxTable()
		for _, pairs := range s.topo.PortPairLists() {
			if len(pairs) != 2 {
				log.Error("port pair size should be 2",
					"pairKey", pairs[0].PairKey, "size", len(pairs))
				continue
			}
			pair0, pair1 := pairs[0], pairs[1]
			if !s.targetSet[pair0.Src.FullName] || !s.targetSet[pair1.Src.FullName] {
				continue
			}
			tbl.add(pair0.Src.FullName, pair0.Dst.FullName,
				s.pairVarIdx(vt, pair1, ch))
			tbl.add(pair1.Src.FullName, pair1.Dst.FullName,
				s.pairVarIdx(vt, pair0, ch))
		}
		tbl.printPerIJKL(data, ch.FullNo, ch.FullNo)
	}
	data.endStatement()
}

func (s *skeletonScope) pairVarIdx(
	vt *VarIdxTable, pair *topology.PortPair, ch *topology.Channel) int {

	idx := vt.Idx(pair.Src.FullName, ch.FullNo, pair.Dst.FullName, ch.FullNo)
	if idx == NoVarIdx {
		log.Info("has no idx", "src", pair.Src.FullName, "dst", pair.Dst.FullName,
			"ch", ch.FullNo)
	}
	return idx
}

func (s *skeletonScope) buildCost(data *buffer, vt *VarIdxTable) {
	data.printParamDef("cost", 0)
	data.printAny("# net cost" + glpk.RET)
	for _, pair := range s.topo.PortPairs() {
		for _, ch := range s.channels {
			if vt.HasConnection(pair.Src.FullName, ch.FullNo,
				pair.Dst.FullName, ch.FullNo) {
				data.printAny("[" + pair.Src.FullName + "," + ch.FullNo + "," +
					pair.Dst.FullName + "," + ch.FullNo + "] " +
					strconv.FormatFloat(pair.Cost, 'g', -1, 64) + glpk.RET)
			}
		}
	}
	data.printAny("# comp cost" + glpk.RET)
	s.printCostEntries(data, vt, true)
	data.endStatement()
}

func (s *skeletonScope) buildOutOfService(data *buffer, vt *VarIdxTable) {
	data.printSetDef("OUT_OF_SERVICES")
	data.printAny(glpk.RET)
	s.printCostEntries(data, vt, false)
	data.endStatement()
}

// printCostEntries expands the Cost (or OutOfService) selectors of the
// target components into concrete tuples present in the variable table.
func (s *skeletonScope) printCostEntries(data *buffer, vt *VarIdxTable, isCost bool) {
	for _, comp := range s.targetComps {
		entries := comp.Cost()
		if !isCost {
			entries = comp.OutOfService()
		}
		if entries == nil {
			continue
		}
		seen := map[string]bool{}
		for _, entry := range entries {
			srcPorts := selectorPorts(entry.I, comp)
			dstPorts := selectorPorts(entry.K, comp)
			for _, src := range srcPorts {
				for _, dst := range dstPorts {
					for _, ch := range s.channels {
						if !entry.J.MatchChannel(ch.No) {
							continue
						}
						if !vt.HasConnection(src.FullName, ch.FullNo,
							dst.FullName, ch.FullNo) {
							continue
						}
						key := glpk.TupleKey(src.FullName, ch.FullNo,
							dst.FullName, ch.FullNo)
						if seen[key] {
							log.Info("duplicate Cost description",
								"comp", comp.Name, "tuple", key)
							continue
						}
						seen[key] = true
						if isCost {
							data.printAny("[" + src.FullName + "," + ch.FullNo +
								"," + dst.FullName + "," + ch.FullNo + "] " +
								strconv.FormatFloat(entry.Cost, 'g', -1, 64) +
								glpk.RET)
						} else {
							data.printAny("(" + src.FullName + "," + ch.FullNo +
								"," + dst.FullName + "," + ch.FullNo + ")" +
								glpk.RET)
						}
					}
				}
			}
		}
	}
}

// selectorPorts expands a port selector against a component, in natural
// name order.
func selectorPorts(sel topology.Selector, comp *topology.Component) []*topology.Port {
	if sel.IsWildcard() {
		return comp.Ports()
	}
	var ports []*topology.Port
	for num := range sel.Nums() {
		if p := comp.Port(num); p != nil {
			ports = append(ports, p)
		} else {
			log.Error("invalid Cost value: port does not exist",
				"port", num, "comp", comp.Name)
		}
	}
	sort.Slice(ports, func(i, j int) bool {
		return glpk.NaturalLess(ports[i].FullName, ports[j].FullName)
	})
	return ports
}
