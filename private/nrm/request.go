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
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/pathfinder"
)

// Request holds the data of one path computation. ERO handling splits a
// request into sub-requests that share the accumulated used routes.
type Request struct {
	Topo     *topology.Topology
	Src      PortChannel
	Dst      PortChannel
	Channels []*topology.Channel
	// SolvecTarget is set on the per-device sub-requests.
	SolvecTarget *pathfinder.SolvecTarget
	// OrgEro is the requested ERO port list; nil on split sub-requests.
	OrgEro []*topology.Port
	// NextUsedEro lists the ports later segments will visit; the current
	// segment must not use them as transit.
	NextUsedEro []*topology.Port
	Bidi        bool
	// UsedRoute accumulates the in-use x entries; shared across the
	// sub-requests of one computation.
	UsedRoute *Route
	// UsedConn accumulates the in-use activation entries.
	UsedConn *Route
	Parent   *Request

	errs []string
}

// AddErr records a client-visible diagnostic, propagated to the parent
// request.
func (r *Request) AddErr(msg string) {
	r.errs = append(r.errs, msg)
	if r.Parent != nil {
		r.Parent.AddErr(msg)
	}
}

// HasErr reports whether diagnostics were recorded.
func (r *Request) HasErr() bool { return len(r.errs) > 0 }

// ErrMsg joins the recorded diagnostics.
func (r *Request) ErrMsg() string { return strings.Join(r.errs, glpk.RET) }

func printEro(ero []*topology.Port) string {
	if ero == nil {
		return "None"
	}
	names := make([]string, len(ero))
	for i, p := range ero {
		names[i] = p.FullName
	}
	return strings.Join(names, ",")
}

// Dump renders the request for the log.
func (r *Request) Dump(dumpParent bool) string {
	var tl []string
	if dumpParent && r.Parent != nil {
		tl = append(tl, "PARENT REQUEST", r.Parent.Dump(false), "")
	}
	tl = append(tl,
		fmt.Sprintf("src = %s, %s", r.Src.Port.FullName, r.Src.Port.SupportChannel),
		fmt.Sprintf("dst = %s, %s", r.Dst.Port.FullName, r.Dst.Port.SupportChannel))
	chs := make([]string, len(r.Channels))
	for i, ch := range r.Channels {
		chs[i] = ch.FullNo
	}
	tl = append(tl,
		fmt.Sprintf("channels = [%s]", strings.Join(chs, ", ")),
		fmt.Sprintf("biDirection = %t", r.Bidi),
		fmt.Sprintf("orgERO = %s", printEro(r.OrgEro)),
		fmt.Sprintf("nextUsedERO = %s", printEro(r.NextUsedEro)))
	return strings.Join(tl, glpk.RET)
}

// MakeNextEro returns the ERO ports after index reqIdx plus the final
// destination: the ports the current segment must avoid.
func (r *Request) MakeNextEro(ero []*topology.Port, reqIdx int) []*topology.Port {
	var next []*topology.Port
	if reqIdx+1 < len(ero) {
		next = append(next, ero[reqIdx+1:]...)
	}
	return append(next, r.Dst.Port)
}

// newRequest creates the root request of one computation, seeding the
// used routes from the live registry.
func newRequest(
	topo *topology.Topology,
	src, dst PortChannel,
	channels []*topology.Channel,
	ero []*topology.Port,
	bidi bool,
	usedRoute, usedConn *Route,
) *Request {
	return &Request{
		Topo:      topo,
		Src:       src,
		Dst:       dst,
		Channels:  channels,
		OrgEro:    ero,
		Bidi:      bidi,
		UsedRoute: usedRoute,
		UsedConn:  usedConn,
	}
}

// makeEroRequest creates one segment request of an ERO split. The used
// routes are shared across all segments so earlier picks stay visible.
func makeEroRequest(src, dst PortChannel, org *Request,
	nextUsedEro []*topology.Port, usedRoute, usedConn *Route) *Request {
	return &Request{
		Topo:         org.Topo,
		Src:          src,
		Dst:          dst,
		Channels:     org.Channels,
		SolvecTarget: org.SolvecTarget,
		NextUsedEro:  nextUsedEro,
		Bidi:         org.Bidi,
		UsedRoute:    usedRoute,
		UsedConn:     usedConn,
		Parent:       org,
	}
}

// makePFRequest narrows a request to a single trial channel.
func makePFRequest(ch *topology.Channel, org *Request) *Request {
	return &Request{
		Topo:        org.Topo,
		Src:         org.Src,
		Dst:         org.Dst,
		Channels:    []*topology.Channel{ch},
		OrgEro:      org.OrgEro,
		NextUsedEro: org.NextUsedEro,
		Bidi:        org.Bidi,
		UsedRoute:   org.UsedRoute,
		UsedConn:    org.UsedConn,
		Parent:      org,
	}
}

// makeBiRequest clones the request with private copies of the used routes
// so a failed bidi candidate leaves the shared state untouched.
func makeBiRequest(org *Request) *Request {
	return &Request{
		Topo:         org.Topo,
		Src:          org.Src,
		Dst:          org.Dst,
		Channels:     org.Channels,
		SolvecTarget: org.SolvecTarget,
		OrgEro:       org.OrgEro,
		NextUsedEro:  org.NextUsedEro,
		Bidi:         org.Bidi,
		UsedRoute:    org.UsedRoute.Clone(),
		UsedConn:     org.UsedConn.Clone(),
	}
}

// makeSolvecRequest widens a request to all channels for one per-device
// sub-problem.
func makeSolvecRequest(channels []*topology.Channel, org *Request,
	target *pathfinder.SolvecTarget) *Request {
	return &Request{
		Topo:         org.Topo,
		Src:          org.Src,
		Dst:          org.Dst,
		Channels:     channels,
		SolvecTarget: target,
		OrgEro:       org.OrgEro,
		NextUsedEro:  org.NextUsedEro,
		Bidi:         org.Bidi,
		UsedRoute:    org.UsedRoute,
		UsedConn:     org.UsedConn,
		Parent:       org,
	}
}
