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
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/topology"
)

// Option kinds of the request grammar.
type optKind int

const (
	// noneVal flags take no value.
	noneVal optKind = iota
	// oneVal flags take exactly one value.
	oneVal
	// anyVal flags take one or more values.
	anyVal
)

// Option keys shared by the operations.
const (
	keyBi      = "bi"
	keySrc     = "s"
	keyDst     = "d"
	keyEro     = "ero"
	keyCh      = "ch"
	keyWdmsa   = "wdmsa"
	keyProcess = "p"
	keyGlobal  = "g"
	keyQuiet   = "q"
	keyDB      = "db"
	keyModel   = "model"
	keyData    = "data"
)

// opts holds parsed option values: bool for noneVal, string for oneVal,
// []string for anyVal.
type opts map[string]any

// parseOptions parses the flags of one request line. Flags may appear in
// any order; a value may not start with "-"; an unrecognized flag is an
// error.
func parseOptions(def map[string]optKind, args []string) (opts, error) {
	parsed := opts{}
	for key, kind := range def {
		if kind == noneVal {
			parsed[key] = false
		}
	}
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return nil, serrors.New("unexpected argument", "arg", arg)
		}
		key := strings.TrimPrefix(arg, "-")
		kind, ok := def[key]
		if !ok {
			return nil, serrors.New("unknown option", "option", arg)
		}
		switch kind {
		case noneVal:
			parsed[key] = true
			i++
		case oneVal:
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "-") {
				return nil, serrors.New("option must have a value", "option", arg)
			}
			parsed[key] = args[i+1]
			i += 2
		case anyVal:
			var vals []string
			j := i + 1
			for j < len(args) && !strings.HasPrefix(args[j], "-") {
				vals = append(vals, args[j])
				j++
			}
			if len(vals) == 0 {
				return nil, serrors.New("option must have some values", "option", arg)
			}
			parsed[key] = vals
			i = j
		}
	}
	return parsed, nil
}

func (o opts) str(key string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return ""
}

func (o opts) boolean(key string) bool {
	v, _ := o[key].(bool)
	return v
}

func (o opts) list(key string) []string {
	v, _ := o[key].([]string)
	return v
}

func (o opts) threads() (int, error) {
	v := o.str(keyProcess)
	if v == "" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, serrors.New("-p is invalid", "value", v)
	}
	return n, nil
}

var pathOptsDef = map[string]optKind{
	keyBi:      noneVal,
	keySrc:     oneVal,
	keyDst:     oneVal,
	keyEro:     anyVal,
	keyCh:      anyVal,
	keyWdmsa:   noneVal,
	keyProcess: oneVal,
	keyModel:   oneVal,
	keyData:    oneVal,
}

// lookupPort resolves a port name argument.
func (e *Engine) lookupPort(name string) (*topology.Port, error) {
	if name == "" {
		return nil, serrors.New("missing required option")
	}
	p := e.topo.PortByName(name)
	if p == nil {
		return nil, serrors.New("invalid port name", "name", name)
	}
	return p, nil
}

func (e *Engine) lookupChannel(name string) (*topology.Channel, error) {
	ch := e.topo.ChannelByFullNo(name)
	if ch == nil {
		return nil, serrors.New("invalid channel name", "name", name)
	}
	return ch, nil
}

// channelRange expands "chX..chY" into the inclusive channel set of one
// table.
func (e *Engine) channelRange(start, end string) ([]*topology.Channel, error) {
	startCh, err := e.lookupChannel(start)
	if err != nil {
		return nil, err
	}
	endCh, err := e.lookupChannel(end)
	if err != nil {
		return nil, err
	}
	if startCh.TableID != endCh.TableID {
		return nil, serrors.New("different ChannelTable",
			"range", start+"-"+end)
	}
	var chs []*topology.Channel
	for _, ch := range e.topo.TableByID(startCh.TableID).Channels {
		if startCh.No <= ch.No && ch.No <= endCh.No {
			chs = append(chs, ch)
		}
	}
	if len(chs) == 0 {
		return nil, serrors.New("invalid channels", "range", start+".."+end)
	}
	return chs, nil
}

// makeChannels canonicalizes the trial channel list: the explicit -ch
// set (ranges expanded, -wdmsa ignored when both are given), the next
// round-robin WDM channel for -wdmsa, or all channels.
func (e *Engine) makeChannels(chArgs []string, wdmsa bool) ([]*topology.Channel, error) {
	if len(chArgs) > 0 {
		seen := map[string]bool{}
		var chs []*topology.Channel
		add := func(ch *topology.Channel) {
			if !seen[ch.FullNo] {
				seen[ch.FullNo] = true
				chs = append(chs, ch)
			}
		}
		for _, name := range chArgs {
			bounds := strings.SplitN(name, "..", 2)
			if len(bounds) == 1 {
				ch, err := e.lookupChannel(bounds[0])
				if err != nil {
					return nil, err
				}
				add(ch)
				continue
			}
			ranged, err := e.channelRange(bounds[0], bounds[1])
			if err != nil {
				return nil, err
			}
			for _, ch := range ranged {
				add(ch)
			}
		}
		sort.Slice(chs, func(i, j int) bool {
			if chs[i].TableID != chs[j].TableID {
				return chs[i].TableID < chs[j].TableID
			}
			return chs[i].No < chs[j].No
		})
		return chs, nil
	}
	if wdmsa {
		ch, err := e.nextWdmsaChannel()
		if err != nil {
			return nil, err
		}
		return []*topology.Channel{ch}, nil
	}
	return e.topo.Channels(), nil
}

// buildRequest canonicalizes a pathfind/reserve request line.
func (e *Engine) buildRequest(o opts) (*Request, ReservationRequest, error) {
	src, err := e.lookupPort(o.str(keySrc))
	if err != nil {
		return nil, ReservationRequest{}, serrors.Wrap("-s", err)
	}
	dst, err := e.lookupPort(o.str(keyDst))
	if err != nil {
		return nil, ReservationRequest{}, serrors.Wrap("-d", err)
	}
	var ero []*topology.Port
	for _, name := range o.list(keyEro) {
		p := e.topo.PortByName(name)
		if p == nil {
			return nil, ReservationRequest{}, serrors.New(
				"invalid port name in ERO", "name", name)
		}
		ero = append(ero, p)
	}
	channels, err := e.makeChannels(o.list(keyCh), o.boolean(keyWdmsa))
	if err != nil {
		return nil, ReservationRequest{}, err
	}
	bidi := o.boolean(keyBi)
	if bidi && (!src.HasOpposite() || !dst.HasOpposite()) {
		return nil, ReservationRequest{}, serrors.New(
			"-bi option not supported for ports",
			"src", src.FullName, "dst", dst.FullName)
	}
	req := newRequest(e.topo, PortChannel{Port: src}, PortChannel{Port: dst},
		channels, ero, bidi,
		e.registry.UsedXEntries(), e.registry.UsedCEntries())
	spec := ReservationRequest{
		Src:   src.FullName,
		Dst:   dst.FullName,
		Ero:   o.list(keyEro),
		Bidi:  bidi,
		Wdmsa: o.boolean(keyWdmsa),
	}
	for _, ch := range channels {
		spec.Channels = append(spec.Channels, ch.FullNo)
	}
	return req, spec, nil
}
