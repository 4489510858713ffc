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
	"fmt"
	"strings"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/pathfinder"
)

// PortChannel pairs a port with the channel it carries. The channel is
// nil until a solve picks one.
type PortChannel struct {
	Port *topology.Port
	Ch   *topology.Channel
}

// Key identifies the pair as "{port}@{channel}".
func (pc PortChannel) Key() string {
	return pc.Port.FullName + "@" + pc.Ch.FullNo
}

// RouteEntry is one selected hop of a solution.
type RouteEntry struct {
	Src PortChannel
	Dst PortChannel
	// X marks tuples selected by the global pathfinding solve.
	X bool
	// C marks activations selected by the per-device solve. Pathfinding
	// entries carry C as well.
	C bool
	// Go distinguishes the forward direction of a bidi route.
	Go bool
}

func (e *RouteEntry) valid() bool {
	return e.Src.Port != nil && e.Src.Ch != nil && e.Dst.Port != nil && e.Dst.Ch != nil
}

func (e *RouteEntry) dump() string {
	return fmt.Sprintf("%s - %s, x=%t, c=%t, go=%t",
		e.Src.Key(), e.Dst.Key(), e.X, e.C, e.Go)
}

func (e *RouteEntry) xKey() string {
	return fmt.Sprintf("%s@%s@%t", e.Src.Key(), e.Dst.Key(), e.X)
}

func (e *RouteEntry) cKey() string {
	return fmt.Sprintf("%s@%s@%t", e.Src.Key(), e.Dst.Key(), e.C)
}

// Route is an ordered list of selected hops.
type Route struct {
	Entries []*RouteEntry
}

// Extend appends entries to the route.
func (r *Route) Extend(entries []*RouteEntry) {
	r.Entries = append(r.Entries, entries...)
}

// Clone returns a shallow copy sharing the entries.
func (r *Route) Clone() *Route {
	return &Route{Entries: append([]*RouteEntry(nil), r.Entries...)}
}

// MergePFRoute adds the pathfinding entries (x set) of newList whose
// (src, dst, x) key is not yet present.
func (r *Route) MergePFRoute(newList []*RouteEntry) {
	seen := map[string]bool{}
	for _, e := range r.Entries {
		seen[e.xKey()] = true
	}
	for _, e := range newList {
		if e.X && !seen[e.xKey()] {
			r.Entries = append(r.Entries, e)
		}
	}
}

// MergeSolvecRoute adds the activation entries (c set) of newList whose
// (src, dst, c) key is not yet present.
func (r *Route) MergeSolvecRoute(newList []*RouteEntry) {
	seen := map[string]bool{}
	for _, e := range r.Entries {
		seen[e.cKey()] = true
	}
	for _, e := range newList {
		if e.C && !seen[e.cKey()] {
			r.Entries = append(r.Entries, e)
		}
	}
}

// XTuples projects the x entries onto in-use tuples.
func (r *Route) XTuples() []pathfinder.Tuple {
	var tuples []pathfinder.Tuple
	for _, e := range r.Entries {
		if !e.X {
			continue
		}
		tuples = append(tuples, pathfinder.Tuple{
			SrcPort: e.Src.Port.FullName, SrcCh: e.Src.Ch.FullNo,
			DstPort: e.Dst.Port.FullName, DstCh: e.Dst.Ch.FullNo,
		})
	}
	return tuples
}

// CTuples projects the activation entries onto in-use tuples.
func (r *Route) CTuples() []pathfinder.Tuple {
	var tuples []pathfinder.Tuple
	for _, e := range r.Entries {
		if !e.C {
			continue
		}
		tuples = append(tuples, pathfinder.Tuple{
			SrcPort: e.Src.Port.FullName, SrcCh: e.Src.Ch.FullNo,
			DstPort: e.Dst.Port.FullName, DstCh: e.Dst.Ch.FullNo,
		})
	}
	return tuples
}

// MakePathList walks the x entries of the requested direction from src
// and returns the hops in path order.
func (r *Route) MakePathList(src PortChannel, isGo bool) ([]PortChannel, error) {

	byPort := map[string]*RouteEntry{}
	for _, e := range r.Entries {
		if e.X && e.Go == isGo {
			byPort[e.Src.Port.FullName] = e
		}
	}
	if len(byPort) == 0 {
		return nil, nil
	}
	if !isGo {
		if _, ok := byPort[src.Port.FullName]; !ok {
			return nil, nil
		}
	}
	var list []PortChannel
	srcPort := src.Port
	var prev *topology.Port
	for len(byPort) > 0 {
		e, ok := byPort[srcPort.FullName]
		if !ok {
			return nil, serrors.New("missing route entry, solver output is probably invalid",
				"port", srcPort.FullName)
		}
		delete(byPort, srcPort.FullName)
		if prev == nil || e.Src.Port.FullName != prev.FullName {
			list = append(list, e.Src)
		}
		list = append(list, e.Dst)
		prev, srcPort = e.Dst.Port, e.Dst.Port
	}
	return list, nil
}

func showRoute(topo *topology.Topology, list []PortChannel) string {
	if list == nil {
		return "null"
	}
	if len(list) == 0 {
		return "<empty>"
	}
	lines := make([]string, len(list))
	for i, pc := range list {
		comp := topo.ComponentByPort(pc.Port)
		model := comp.Model
		if model == "" {
			model = "null"
		}
		lines[i] = fmt.Sprintf("%-8s (%-14s %-33s %-6s %s",
			pc.Port.FullName, pc.Ch.FullNo+")", model,
			strings.ToUpper(pc.Port.IO), pc.Port.Type)
	}
	return strings.Join(lines, glpk.RET)
}

// DumpRoute renders the operator-readable forward and back routes
// starting from src.
func (r *Route) DumpRoute(topo *topology.Topology, src PortChannel) (string, error) {
	goList, err := r.MakePathList(src, true)
	if err != nil {
		return "", err
	}
	var buf []string
	buf = append(buf, "go route", showRoute(topo, goList))

	var backList []PortChannel
	if len(goList) > 0 {
		if backSrc := goList[len(goList)-1].Port.Opposite(); backSrc != nil {
			backList, err = r.MakePathList(
				PortChannel{Port: backSrc, Ch: src.Ch}, false)
			if err != nil {
				return "", err
			}
		}
	}
	buf = append(buf, "back route", showRoute(topo, backList))
	return strings.Join(buf, glpk.RET), nil
}

func (r *Route) dump() string {
	lines := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		lines[i] = e.dump()
	}
	return strings.Join(lines, glpk.RET)
}
