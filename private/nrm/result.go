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
	"math"
	"regexp"
	"strings"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
)

// Result holds one solver outcome. A nil Req marks a skipped channel
// slot, kept so the per-channel result indices of the ERO segments stay
// aligned.
type Result struct {
	Req    *Request
	Cost   float64
	Stdout string
}

// HasAnswer reports whether the solve found a solution.
func (r *Result) HasAnswer() bool {
	return r.Cost < solver.NotFoundCost
}

// compareKey orders results by (cost, channel number).
func (r *Result) compareKey() (float64, int) {
	if r.Req == nil {
		return r.Cost, math.MaxInt
	}
	return r.Cost, r.Req.Channels[0].No
}

func lessResult(a, b *Result) bool {
	ac, an := a.compareKey()
	bc, bn := b.compareKey()
	if ac != bc {
		return ac < bc
	}
	return an < bn
}

// DumpSolution logs the solution rows of the solver output.
func (r *Result) DumpSolution() {
	tl := []string{"solution"}
	for _, line := range strings.Split(r.Stdout, "\n") {
		if strings.HasPrefix(line, "#") {
			tl = append(tl, line)
		}
	}
	log.Info(strings.TrimSpace(strings.Join(tl, glpk.RET)))
}

var fields = regexp.MustCompile(`[ \t]+`)

// MakeRouteEntries parses the pathfinding solution rows of the solver
// output: "# src srcCh dst dstCh x c ..." with ten fields. Only rows with
// both x and c selected contribute.
func (r *Result) MakeRouteEntries(topo *topology.Topology) (*Route, error) {
	route := &Route{}
	for _, line := range strings.Split(r.Stdout, "\n") {
		if !strings.HasPrefix(line, "#") {
			continue
		}
		v := fields.Split(strings.TrimSpace(line), -1)
		if len(v) != 10 {
			continue
		}
		isX, isC := v[5] == "1", v[6] == "1"
		if !isX || !isC {
			continue
		}
		entry := &RouteEntry{
			Src: PortChannel{topo.PortByName(v[1]), topo.ChannelByFullNo(v[2])},
			Dst: PortChannel{topo.PortByName(v[3]), topo.ChannelByFullNo(v[4])},
			X:   isX, C: isC, Go: true,
		}
		if !entry.valid() {
			return nil, serrors.New("glpsol output is invalid", "line", line)
		}
		route.Entries = append(route.Entries, entry)
	}
	return route, nil
}

// MakeConnEntries parses the per-device solution rows: "# src srcCh dst
// dstCh c ..." with seven fields. Nil is returned when the sub-problem
// found no solution.
func (r *Result) MakeConnEntries(topo *topology.Topology) (*Route, error) {
	route := &Route{}
	found := false
	for _, line := range strings.Split(r.Stdout, "\n") {
		if !strings.HasPrefix(line, "#") {
			if strings.Contains(line, "SOLUTION FOUND") {
				found = true
			}
			continue
		}
		v := fields.Split(strings.TrimSpace(line), -1)
		if len(v) != 7 {
			continue
		}
		if v[5] != "1" {
			continue
		}
		entry := &RouteEntry{
			Src: PortChannel{topo.PortByName(v[1]), topo.ChannelByFullNo(v[2])},
			Dst: PortChannel{topo.PortByName(v[3]), topo.ChannelByFullNo(v[4])},
			X:   false, C: true, Go: true,
		}
		if !entry.valid() {
			return nil, serrors.New("solvec glpsol output is invalid", "line", line)
		}
		route.Entries = append(route.Entries, entry)
		found = true
	}
	if !found {
		return nil, nil
	}
	return route, nil
}
