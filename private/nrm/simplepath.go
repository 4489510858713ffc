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
	"github.com/photonpath/nrm/pkg/topology"
)

// simplePathFinder finds port sequences over the flow-out maps with a
// breadth-first search. It fills the gaps of a bidi back route; the
// result is validated hop by hop against the compiled connections.
type simplePathFinder struct {
	topo *topology.Topology
}

func newSimplePathFinder(topo *topology.Topology) *simplePathFinder {
	return &simplePathFinder{topo: topo}
}

// search returns the port sequence from src to dst, or nil when dst is
// unreachable. Ports within one component connect directly.
func (f *simplePathFinder) search(src, dst *topology.Port) []*topology.Port {
	if f.topo.ComponentByPort(src).Name == f.topo.ComponentByPort(dst).Name {
		return []*topology.Port{src, dst}
	}
	pred := map[string]*topology.Port{}
	visited := map[string]bool{src.FullName: true}
	queue := []*topology.Port{src}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range u.FlowOuts() {
			if visited[v.FullName] {
				continue
			}
			visited[v.FullName] = true
			pred[v.FullName] = u
			queue = append(queue, v)
		}
	}
	var path []*topology.Port
	for p := dst; p != nil; p = pred[p.FullName] {
		path = append([]*topology.Port{p}, path...)
		if p.FullName == src.FullName {
			break
		}
	}
	if len(path) < 2 || path[0].FullName != src.FullName {
		return nil
	}
	return path
}
