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

// Package topology parses the topology document and holds the immutable
// in-memory model: channel tables, components, ports and port pairs.
//
// The model is constructed once at startup and never mutated afterwards;
// it is safe for concurrent readers.
package topology

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
)

// ConnFileName returns the ac connection file name of a model.
func ConnFileName(model string) string {
	return glpk.Escape(model) + ".conn.txt"
}

// ModelFileName returns the ac model file name of a model.
func ModelFileName(model string) string {
	return glpk.Escape(model) + ".model"
}

// xmlTopology mirrors the topology document shape.
type xmlTopology struct {
	XMLName xml.Name `xml:"topology"`
	Design  struct {
		ChannelInfo struct {
			ChannelTables []xmlChannelTable `xml:"channelTable"`
		} `xml:"channelInfo"`
	} `xml:"design"`
	Components struct {
		Comps []xmlComp `xml:"comp"`
	} `xml:"components"`
	Nets struct {
		Nets []xmlNet `xml:"net"`
	} `xml:"nets"`
}

type xmlChannelTable struct {
	ID       string `xml:"id,attr"`
	Type     string `xml:"type,attr"`
	Channels []struct {
		No string `xml:"no,attr"`
	} `xml:"channel"`
}

type xmlComp struct {
	Ref    string `xml:"ref,attr"`
	Fields []struct {
		Name    string `xml:"name,attr"`
		TableID string `xml:"GLPKchannelTableId,attr"`
		Text    string `xml:",chardata"`
	} `xml:"field"`
	Ports struct {
		Ports []struct {
			Number         string `xml:"number,attr"`
			Name           string `xml:"name,attr"`
			IO             string `xml:"io,attr"`
			SupportChannel string `xml:"supportChannel,attr"`
		} `xml:"port"`
	} `xml:"ports"`
}

type xmlNet struct {
	Code  string `xml:"code,attr"`
	Name  string `xml:"name,attr"`
	Pair  string `xml:"pair,attr"`
	Nodes []struct {
		Ref string `xml:"ref,attr"`
		Pin string `xml:"pin,attr"`
	} `xml:"node"`
	Cost string `xml:"cost"`
}

// Topology is the parsed topology document.
type Topology struct {
	tables       map[string]*ChannelTable
	tableOrder   []string
	comps        map[string]*Component
	compOrder    []string
	ports        map[string]*Port
	portComp     map[string]*Component
	fullNo2Ch    map[string]*Channel
	chOrder      []*Channel
	table2Comps  map[string]map[string]*Component
	portPairs    []*PortPair
	srcDst2Pair  map[[2]string]*PortPair
	pairKey2Pair map[string][]*PortPair
}

// Load reads the topology file. When acConnDir is non-empty the compiled
// ac/<model>.conn.txt files are loaded into the components, port pairs are
// resolved and per-port flow maps are built; the available-connections
// compiler passes an empty acConnDir since it only needs the entities.
func Load(file, acConnDir string) (*Topology, error) {
	log.Info("load topology", "file", file)
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, serrors.Wrap("reading topology file", err, "file", file)
	}
	var doc xmlTopology
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, serrors.Wrap("parsing topology file", err, "file", file)
	}
	topo := &Topology{
		tables:       map[string]*ChannelTable{},
		comps:        map[string]*Component{},
		ports:        map[string]*Port{},
		portComp:     map[string]*Component{},
		fullNo2Ch:    map[string]*Channel{},
		table2Comps:  map[string]map[string]*Component{},
		srcDst2Pair:  map[[2]string]*PortPair{},
		pairKey2Pair: map[string][]*PortPair{},
	}
	if err := topo.initTables(&doc); err != nil {
		return nil, err
	}
	if err := topo.initComponents(&doc); err != nil {
		return nil, err
	}
	if acConnDir == "" {
		return topo, nil
	}
	if err := topo.loadConnFiles(acConnDir); err != nil {
		return nil, err
	}
	if err := topo.makePortPairs(&doc); err != nil {
		return nil, err
	}
	topo.makeFlowInOut()
	return topo, nil
}

func (t *Topology) initTables(doc *xmlTopology) error {
	for _, xt := range doc.Design.ChannelInfo.ChannelTables {
		if xt.ID == "" {
			return serrors.New("channelTable is missing the id attribute")
		}
		if xt.Type != "optical" {
			log.Info("not optical channelTable SKIP", "id", xt.ID, "type", xt.Type)
			continue
		}
		nos := make([]int, 0, len(xt.Channels))
		for _, ch := range xt.Channels {
			no, err := strconv.Atoi(ch.No)
			if err != nil {
				return serrors.Wrap("parsing channel no", err, "table", xt.ID)
			}
			nos = append(nos, no)
		}
		sort.Ints(nos)
		table := newChannelTable(xt.ID, nos)
		t.tables[table.ID] = table
		t.tableOrder = append(t.tableOrder, table.ID)
		for _, ch := range table.Channels {
			t.fullNo2Ch[ch.FullNo] = ch
			t.chOrder = append(t.chOrder, ch)
		}
	}
	return nil
}

func (t *Topology) initComponents(doc *xmlTopology) error {
	allTables := map[string]bool{}
	for id := range t.tables {
		allTables[id] = true
	}
	names := make([]string, 0, len(doc.Components.Comps))
	byName := map[string]xmlComp{}
	for _, xc := range doc.Components.Comps {
		if xc.Ref == "" {
			return serrors.New("comp is missing the ref attribute")
		}
		names = append(names, xc.Ref)
		byName[xc.Ref] = xc
	}
	glpk.SortNatural(names)
	for _, name := range names {
		comp, err := t.newComponent(byName[name])
		if err != nil {
			return err
		}
		t.comps[comp.Name] = comp
		t.compOrder = append(t.compOrder, comp.Name)
		for _, p := range comp.ports {
			if _, ok := t.ports[p.FullName]; ok {
				return serrors.New("duplicate port name", "port", p.FullName)
			}
			t.ports[p.FullName] = p
			t.portComp[p.FullName] = comp
		}
		comp.setSupChs(allTables)
		for id := range comp.supChs {
			comps := t.table2Comps[id]
			if comps == nil {
				comps = map[string]*Component{}
				t.table2Comps[id] = comps
			}
			comps[comp.Name] = comp
		}
	}
	return nil
}

func (t *Topology) newComponent(xc xmlComp) (*Component, error) {
	comp := &Component{
		Name:   xc.Ref,
		Socket: NoSocketPort,
		ports:  map[int]*Port{},
	}
	for _, xp := range xc.Ports.Ports {
		num, err := strconv.Atoi(xp.Number)
		if err != nil {
			return nil, serrors.Wrap("parsing port number", err, "comp", comp.Name)
		}
		comp.ports[num] = newPort(comp.Name, num, xp.Name, xp.IO, xp.SupportChannel)
	}
	comp.setOppositePorts()
	for _, f := range xc.Fields {
		switch f.Name {
		case "Model":
			comp.Model = f.Text
		case "GLPK":
			comp.GLPK = f.Text
		case "Controller":
			comp.Controller = f.Text
		case "Socket":
			socket, err := strconv.Atoi(f.Text)
			if err != nil {
				return nil, serrors.Wrap("parsing Socket", err, "comp", comp.Name)
			}
			comp.Socket = socket
		case "Cost":
			spec, err := parseCostSpec(comp.Name, f.Text)
			if err != nil {
				return nil, err
			}
			comp.CostSpec = spec
		}
		if f.TableID != "" {
			comp.TableID = f.TableID
		}
	}
	return comp, nil
}

func (t *Topology) loadConnFiles(acConnDir string) error {
	loaded := map[string]*AvailableConnection{}
	count := 0
	for _, name := range t.compOrder {
		comp := t.comps[name]
		if comp.Model == "" {
			continue
		}
		if ac, ok := loaded[comp.Model]; ok {
			comp.ac = ac
			continue
		}
		file := filepath.Join(acConnDir, ConnFileName(comp.Model))
		if _, err := os.Stat(file); os.IsNotExist(err) {
			// No compiled constraints for this model.
			loaded[comp.Model] = nil
			continue
		}
		ac, err := loadConnFile(file, t.ChannelByFullNo)
		if err != nil {
			return err
		}
		comp.ac = ac
		loaded[comp.Model] = ac
		count++
	}
	log.Info("load AvailableConnection files", "count", count, "dir", acConnDir)
	return nil
}

func (t *Topology) makePortPairs(doc *xmlTopology) error {
	for _, net := range doc.Nets.Nets {
		if len(net.Nodes) != 2 {
			log.Info("invalid net. needs exactly two nodes", "code", net.Code)
			continue
		}
		port1 := t.netPort(net.Nodes[0].Ref, net.Nodes[0].Pin)
		port2 := t.netPort(net.Nodes[1].Ref, net.Nodes[1].Pin)
		if port1 == nil || port2 == nil {
			log.Info("invalid net. port is not exist", "code", net.Code)
			continue
		}
		cost, err := strconv.ParseFloat(net.Cost, 64)
		if err != nil {
			return serrors.Wrap("parsing net cost", err, "code", net.Code)
		}
		src, dst := port1, port2
		if !port1.IsOut() {
			src, dst = port2, port1
		}
		src.addConnected(dst)
		pair, err := newPortPair(net.Pair, src, dst, cost)
		if err != nil {
			return err
		}
		t.portPairs = append(t.portPairs, pair)
		if net.Pair != "" {
			t.srcDst2Pair[[2]string{pair.Src.FullName, pair.Dst.FullName}] = pair
			t.pairKey2Pair[pair.PairKey] = append(t.pairKey2Pair[pair.PairKey], pair)
		}
	}
	return nil
}

func (t *Topology) netPort(ref, pin string) *Port {
	comp := t.comps[ref]
	if comp == nil {
		return nil
	}
	num, err := strconv.Atoi(pin)
	if err != nil {
		return nil
	}
	return comp.Port(num)
}

// makeFlowInOut fills the per-port flow maps: intra-component transitions
// from the compiled connection sets (or the default same-channel rule) and
// inter-component transitions from the port pairs, both ways for bidi
// ports.
func (t *Topology) makeFlowInOut() {
	for _, p := range t.ports {
		p.flowIns = map[string]*Port{}
		p.flowOuts = map[string]*Port{}
	}
	for _, name := range t.compOrder {
		comp := t.comps[name]
		ac := comp.ac
		for _, src := range comp.ports {
			for _, dst := range comp.ports {
				var hasConn bool
				switch {
				case ac != nil:
					hasConn = ac.HasConnection(src.Number, dst.Number)
				case src.FullName != dst.FullName:
					hasConn = src.IsIn() && dst.IsOut()
				}
				if hasConn {
					src.flowOuts[dst.FullName] = dst
					dst.flowIns[src.FullName] = src
				}
				for _, conn := range dst.connected {
					dst.flowOuts[conn.FullName] = conn
					conn.flowIns[dst.FullName] = dst
					if dst.IsBiDi() {
						conn.flowOuts[dst.FullName] = dst
						dst.flowIns[conn.FullName] = conn
					}
				}
			}
		}
	}
}

// Tables returns the optical channel tables in document order.
func (t *Topology) Tables() []*ChannelTable {
	tables := make([]*ChannelTable, len(t.tableOrder))
	for i, id := range t.tableOrder {
		tables[i] = t.tables[id]
	}
	return tables
}

// TableByID returns the channel table with the given id, or nil.
func (t *Topology) TableByID(id string) *ChannelTable {
	return t.tables[id]
}

// Channels returns all channels in (table, no) order.
func (t *Topology) Channels() []*Channel {
	return t.chOrder
}

// ChannelByFullNo returns the channel with the given name, or nil.
func (t *Topology) ChannelByFullNo(fullNo string) *Channel {
	return t.fullNo2Ch[fullNo]
}

// Components returns all components in natural name order.
func (t *Topology) Components() []*Component {
	comps := make([]*Component, len(t.compOrder))
	for i, name := range t.compOrder {
		comps[i] = t.comps[name]
	}
	return comps
}

// ComponentByName returns the component with the given name, or nil.
func (t *Topology) ComponentByName(name string) *Component {
	return t.comps[name]
}

// ComponentByPort returns the component owning the given port.
func (t *Topology) ComponentByPort(p *Port) *Component {
	return t.portComp[p.FullName]
}

// Ports returns all ports in natural name order.
func (t *Topology) Ports() []*Port {
	names := make([]string, 0, len(t.ports))
	for n := range t.ports {
		names = append(names, n)
	}
	glpk.SortNatural(names)
	ports := make([]*Port, len(names))
	for i, n := range names {
		ports[i] = t.ports[n]
	}
	return ports
}

// PortByName returns the port with the given full name, or nil.
func (t *Topology) PortByName(name string) *Port {
	return t.ports[name]
}

// PortPairs returns all port pairs in document order.
func (t *Topology) PortPairs() []*PortPair {
	return t.portPairs
}

// PortPairLists returns the port pairs grouped by pair key. Each group
// holds the two directions of one link.
func (t *Topology) PortPairLists() [][]*PortPair {
	keys := make([]string, 0, len(t.pairKey2Pair))
	for k := range t.pairKey2Pair {
		keys = append(keys, k)
	}
	glpk.SortNatural(keys)
	lists := make([][]*PortPair, len(keys))
	for i, k := range keys {
		lists[i] = t.pairKey2Pair[k]
	}
	return lists
}

// FindPortPair returns the twin port pair of the (src, dst) edge: the
// other pair sharing the same pair key. Nil when the edge is not a pair or
// has no twin.
func (t *Topology) FindPortPair(src, dst *Port) *PortPair {
	pair := t.srcDst2Pair[[2]string{src.FullName, dst.FullName}]
	if pair == nil {
		return nil
	}
	for _, p := range t.pairKey2Pair[pair.PairKey] {
		if p.Src.FullName != src.FullName && p.Dst.FullName != dst.FullName {
			return p
		}
	}
	return nil
}

// SupportComps returns the components supporting the given channel table,
// in natural name order.
func (t *Topology) SupportComps(tableID string) []*Component {
	m := t.table2Comps[tableID]
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	glpk.SortNatural(names)
	comps := make([]*Component, len(names))
	for i, n := range names {
		comps[i] = m[n]
	}
	return comps
}

// HasConnection reports whether the (inPort, inCh) -> (outPort, outCh)
// transition is available: within one component per the compiled
// connection set (or the same-channel default, never for terminals),
// across components per the port pairs with matching channels.
func (t *Topology) HasConnection(inPort *Port, inCh *Channel, outPort *Port, outCh *Channel) bool {
	if inPort.FullName == outPort.FullName {
		return false
	}
	supported := inPort.SameSupportChannel(inCh.TableID) &&
		outPort.SameSupportChannel(outCh.TableID)
	inComp := t.ComponentByPort(inPort)
	if inComp == t.ComponentByPort(outPort) {
		if ac := inComp.ac; ac != nil {
			return ac.HasConnectionInConn(inPort.Number, inCh, outPort.Number, outCh)
		}
		if inComp.IsPseudo() {
			return false
		}
		return inPort.IsIn() && outPort.IsOut() &&
			inCh.FullNo == outCh.FullNo && supported
	}
	if inCh.FullNo != outCh.FullNo || !supported {
		return false
	}
	if inPort.IsConnected(outPort) {
		return true
	}
	return inPort.IsBiDi() && outPort.IsConnected(inPort)
}
