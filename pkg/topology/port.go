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
	"fmt"
	"regexp"
	"strings"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/private/serrors"
)

// Port directions.
const (
	IOInput  = "input"
	IOOutput = "output"
	IOBiDi   = "BiDi"
)

// Port holds one "port" element of a component.
type Port struct {
	// Number is the pin number within the component.
	Number int
	// Name is the display name from the topology file.
	Name string
	// IO is one of input, output, BiDi. When the attribute was absent the
	// direction is inferred from the trailing IN/OUT token of Name.
	IO string
	// SupportChannel is the supported channel-table id, or ANY.
	SupportChannel string
	// FullName is the unique name "{component}_{number}".
	FullName string
	// Type is the trailing upper-case token of Name, e.g. "/T_N1_IN17" ->
	// "IN"; a Name without such a token is used whole.
	Type string

	in, out bool

	connected map[string]*Port
	flowIns   map[string]*Port
	flowOuts  map[string]*Port
	opposite  *Port
}

var typeToken = regexp.MustCompile(`.+[^A-Z]([A-Z]+)[^A-Z]*$`)

func newPort(compName string, number int, name, io, supCh string) *Port {
	p := &Port{
		Number:         number,
		Name:           name,
		IO:             io,
		SupportChannel: supCh,
		FullName:       fmt.Sprintf("%s_%d", compName, number),
		connected:      map[string]*Port{},
	}
	if m := typeToken.FindStringSubmatch(name); m != nil {
		p.Type = m[1]
	} else {
		p.Type = name
	}
	if io != "" {
		p.in = io != IOOutput
		p.out = io != IOInput
	} else {
		p.in = strings.Contains(p.Type, "IN")
		p.out = !p.in
		if p.in {
			p.IO = IOInput
		} else {
			p.IO = IOOutput
		}
	}
	return p
}

// IsIn reports input or BiDi direction.
func (p *Port) IsIn() bool { return p.in }

// IsOut reports output or BiDi direction.
func (p *Port) IsOut() bool { return p.out }

// IsBiDi reports whether the port is bidirectional.
func (p *Port) IsBiDi() bool { return p.IO == IOBiDi }

func (p *Port) addConnected(o *Port) {
	p.connected[o.FullName] = o
}

// IsConnected reports whether o is wired to p by a port pair.
func (p *Port) IsConnected(o *Port) bool {
	_, ok := p.connected[o.FullName]
	return ok
}

// SameSupportChannel reports whether the supported channel tables match.
// ANY on either side matches everything.
func (p *Port) SameSupportChannel(tableID string) bool {
	if tableID == AnyChannel || p.SupportChannel == AnyChannel {
		return true
	}
	return p.SupportChannel == tableID
}

var (
	inToken  = regexp.MustCompile(`(.+[^A-Z])IN([^A-Z]*)$`)
	outToken = regexp.MustCompile(`(.+[^A-Z])OUT([^A-Z]*)$`)
)

// isOppositeName reports whether tgt's display name equals p's name with
// the trailing IN/OUT token flipped.
func (p *Port) isOppositeName(tgt *Port) bool {
	var flipped string
	if p.Type == "IN" {
		flipped = inToken.ReplaceAllString(p.Name, "${1}OUT${2}")
	} else {
		flipped = outToken.ReplaceAllString(p.Name, "${1}IN${2}")
	}
	return flipped == tgt.Name
}

// Opposite returns the reverse-direction twin of the port, or nil.
func (p *Port) Opposite() *Port { return p.opposite }

// HasOpposite reports whether a reverse-direction twin exists.
func (p *Port) HasOpposite() bool { return p.opposite != nil }

// FlowIns returns the ports that may flow into p, in natural name order.
func (p *Port) FlowIns() []*Port { return sortPorts(p.flowIns) }

// FlowOuts returns the ports p may flow out to, in natural name order.
func (p *Port) FlowOuts() []*Port { return sortPorts(p.flowOuts) }

func sortPorts(m map[string]*Port) []*Port {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	glpk.SortNatural(names)
	ports := make([]*Port, len(names))
	for i, n := range names {
		ports[i] = m[n]
	}
	return ports
}

// PortPair is an inter-component edge from the "net" elements.
type PortPair struct {
	// PairKey is the "pair" attribute with the trailing "-0"/"-1"
	// direction suffix stripped; the two directions of a link share it.
	PairKey string
	Src     *Port
	Dst     *Port
	Cost    float64
}

var pairSuffix = regexp.MustCompile(`(.+)-[01]$`)

func newPortPair(key string, src, dst *Port, cost float64) (*PortPair, error) {
	if !src.SameSupportChannel(dst.SupportChannel) {
		return nil, serrors.New("invalid Net supportChannel are different",
			"src", src.FullName, "dst", dst.FullName)
	}
	pp := &PortPair{Src: src, Dst: dst, Cost: cost}
	if key != "" {
		pp.PairKey = pairSuffix.ReplaceAllString(key, "$1")
	}
	return pp, nil
}
