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

package topology

import (
	"sort"
	"strings"
)

// NoSocketPort marks an absent Socket attribute.
const NoSocketPort = -1

// Component holds one "comp" element of the topology file.
type Component struct {
	// Name is the "ref" attribute.
	Name string
	// Model names the constraint fragment shared by identical devices.
	Model string
	// GLPK is the raw constraint fragment text.
	GLPK string
	// Controller is the intermediate-controller address, if any.
	Controller string
	// Socket is the controller socket, or NoSocketPort.
	Socket int
	// TableID is the GLPKchannelTableId attribute (may list several
	// tables separated by commas).
	TableID string
	// CostSpec is the parsed Cost attribute, if present.
	CostSpec *CostSpec

	ports  map[int]*Port
	supChs map[string]bool
	ac     *AvailableConnection
}

// HasController reports whether the component holds the address of an
// intermediate controller and therefore takes part in the per-device
// decomposition.
func (c *Component) HasController() bool {
	return c.Controller != "" && c.Controller != "TBD" && c.Socket > NoSocketPort
}

// IsPseudo reports whether the component is an application terminal.
// Terminals have no internal switching.
func (c *Component) IsPseudo() bool {
	return strings.HasPrefix(c.Name, "P")
}

// Port returns the port with the given pin number, or nil.
func (c *Component) Port(num int) *Port {
	return c.ports[num]
}

// Ports returns all ports ordered by pin number.
func (c *Component) Ports() []*Port {
	nums := make([]int, 0, len(c.ports))
	for n := range c.ports {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	ports := make([]*Port, len(nums))
	for i, n := range nums {
		ports[i] = c.ports[n]
	}
	return ports
}

// SupportedTables returns the channel-table ids supported by the
// component's ports.
func (c *Component) SupportedTables() map[string]bool {
	return c.supChs
}

// Supports reports whether any port supports the given channel table.
func (c *Component) Supports(tableID string) bool {
	return c.supChs[tableID]
}

// AC returns the component's available-connection set, or nil when the
// component has no compiled constraints.
func (c *Component) AC() *AvailableConnection {
	return c.ac
}

// Cost returns the Cost entries of the component's Cost attribute.
func (c *Component) Cost() []CostEntry {
	if c.CostSpec == nil {
		return nil
	}
	return c.CostSpec.Cost
}

// OutOfService returns the OutOfService entries of the Cost attribute.
func (c *Component) OutOfService() []CostEntry {
	if c.CostSpec == nil {
		return nil
	}
	return c.CostSpec.OutOfService
}

func (c *Component) setSupChs(allTables map[string]bool) {
	c.supChs = map[string]bool{}
	for _, p := range c.ports {
		if p.SupportChannel == AnyChannel {
			for id := range allTables {
				c.supChs[id] = true
			}
			return
		}
		c.supChs[p.SupportChannel] = true
	}
}

// searchOpposite finds the reverse-direction twin of p: a bidi port is its
// own twin; otherwise the port whose display name is p's with IN/OUT
// flipped; otherwise a unique opposite-direction, channel-compatible port.
func (c *Component) searchOpposite(p *Port) *Port {
	if p.IsBiDi() {
		return p
	}
	var candidates []*Port
	for _, tgt := range c.ports {
		if p.IsIn() == tgt.IsIn() || !p.SameSupportChannel(tgt.SupportChannel) {
			continue
		}
		if p.isOppositeName(tgt) {
			return tgt
		}
		candidates = append(candidates, tgt)
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	return nil
}

func (c *Component) setOppositePorts() {
	for _, p := range c.ports {
		p.opposite = c.searchOpposite(p)
	}
}
