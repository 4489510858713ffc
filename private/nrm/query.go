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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/pathfinder"
)

// addSubPath fills a gap of the back route with the BFS finder and
// validates each hop against the compiled connections.
func (e *Engine) addSubPath(backList *[]*RouteEntry, src, dst *topology.Port,
	ch *topology.Channel) bool {

	ports := e.finder.search(src, dst)
	if ports == nil {
		log.Error("cannot find sub path", "src", src.FullName, "dst", dst.FullName)
		return false
	}
	for i := 0; i < len(ports)-1; i++ {
		if !e.topo.HasConnection(ports[i], ch, ports[i+1], ch) {
			log.Error("has not connection",
				"src", ports[i].FullName+"@"+ch.FullNo,
				"dst", ports[i+1].FullName+"@"+ch.FullNo)
			return false
		}
		*backList = append(*backList, &RouteEntry{
			Src: PortChannel{ports[i], ch},
			Dst: PortChannel{ports[i+1], ch},
			X:   true, C: true, Go: false,
		})
	}
	return true
}

// makeFullBackRoute connects the twin port-pair hops of the back route
// into a contiguous reverse path.
func (e *Engine) makeFullBackRoute(goDst, goSrc PortChannel,
	backList []*RouteEntry) []*RouteEntry {

	backSrc := goDst.Port.Opposite()
	backDst := goSrc.Port.Opposite()
	if backSrc == nil || backDst == nil {
		return nil
	}
	ch := goDst.Ch
	var full []*RouteEntry
	before := backSrc
	for _, entry := range backList {
		if before.FullName != entry.Src.Port.FullName {
			if !e.addSubPath(&full, before, entry.Src.Port, ch) {
				return nil
			}
		}
		full = append(full, entry)
		before = entry.Dst.Port
	}
	if before.FullName != backDst.FullName {
		if !e.addSubPath(&full, before, backDst, ch) {
			return nil
		}
	}
	return full
}

// addPairConnections derives the reverse path of a computed route from
// the twin port pairs, walked from the tail of the forward path.
func (e *Engine) addPairConnections(route *Route, req *Request) []*RouteEntry {
	pcList, err := route.MakePathList(req.Src, true)
	if err != nil || len(pcList) < 2 {
		req.AddErr("invalid route")
		return nil
	}
	var backList []*RouteEntry
	for i := len(pcList) - 1; i > 0; i-- {
		goSrc, goDst := pcList[i-1], pcList[i]
		pair := e.topo.FindPortPair(goSrc.Port, goDst.Port)
		if pair == nil {
			continue
		}
		backList = append(backList, &RouteEntry{
			Src: PortChannel{pair.Src, goSrc.Ch},
			Dst: PortChannel{pair.Dst, goDst.Ch},
			X:   true, C: true, Go: false,
		})
	}
	full := e.makeFullBackRoute(pcList[len(pcList)-1], pcList[0], backList)
	if full == nil {
		req.AddErr("cannot find back path")
		return nil
	}
	return full
}

// isBackRouteUsed reports whether the derived back route collides with a
// tuple that is already in use.
func (e *Engine) isBackRouteUsed(full []*RouteEntry, req *Request) bool {
	used := map[string]bool{}
	for _, entry := range req.UsedRoute.Entries {
		used[glpk.TupleKey(entry.Src.Port.FullName, entry.Src.Ch.FullNo,
			entry.Dst.Port.FullName, entry.Dst.Ch.FullNo)] = true
	}
	for _, entry := range full {
		key := glpk.TupleKey(entry.Src.Port.FullName, entry.Src.Ch.FullNo,
			entry.Dst.Port.FullName, entry.Dst.Ch.FullNo)
		if entry.X && used[key] {
			req.AddErr("back path is already used : " + entry.dump())
			return true
		}
	}
	return false
}

// usedComps collects the controller-bearing components touched by the
// selected route.
func (e *Engine) usedComps(req *Request) map[string]*topology.Component {
	comps := map[string]*topology.Component{}
	addPort := func(p *topology.Port) {
		comp := e.topo.ComponentByPort(p)
		if comp.HasController() {
			comps[comp.Name] = comp
		}
	}
	for _, entry := range req.UsedConn.Entries {
		addPort(entry.Src.Port)
		addPort(entry.Dst.Port)
	}
	for _, entry := range req.UsedRoute.Entries {
		addPort(entry.Src.Port)
		addPort(entry.Dst.Port)
	}
	return comps
}

// solvecWork builds and solves one per-device sub-problem.
func (e *Engine) solvecWork(ctx context.Context, req *Request,
	target *pathfinder.SolvecTarget, used map[string]*topology.Component,
	keys queryKeys, tmpDir string) (*Result, error) {

	base := pathfinder.SolvecDataBase(e.glpkDir, keys.dataKey,
		target.Model.Name, target.Idx)
	vt, err := pathfinder.LoadVarIdxTable(base + pathfinder.VarIdxFileExt)
	if err != nil {
		return nil, err
	}
	if vt == nil {
		return nil, serrors.New("missing varidx table, run make-pathfinder first",
			"file", base+pathfinder.VarIdxFileExt)
	}
	name := filepath.Join(tmpDir, fmt.Sprintf("solvec_%s_%s_%d_%s-%s",
		keys.dataKey, target.Model.Name, target.Idx,
		req.Src.Port.FullName, req.Dst.Port.FullName))
	dataFile := name + ".data"
	solFile := name + ".sol"
	if err := copyFile(base+".data", dataFile); err != nil {
		return nil, err
	}
	// Components of the chunk that the route actually touched.
	var usedInChunk []*topology.Component
	for _, compName := range target.Comps {
		if comp, ok := used[compName]; ok {
			usedInChunk = append(usedInChunk, comp)
		}
	}
	var usedPorts []string
	for _, entry := range req.UsedRoute.Entries {
		usedPorts = append(usedPorts, entry.Src.Port.FullName, entry.Dst.Port.FullName)
	}
	inst := pathfinder.Instance{
		Src:      req.Src.Port.FullName,
		Dst:      req.Dst.Port.FullName,
		Channels: req.Channels,
		UsedX:    req.UsedRoute.XTuples(),
	}
	overlay := inst.RenderSolvec(e.topo, target, usedInChunk, usedPorts, vt)
	if err := appendFile(dataFile, overlay); err != nil {
		return nil, err
	}
	work := solver.Work{
		ID:        filepath.Base(name),
		Kind:      "solvec",
		ModelFile: pathfinder.SolvecModelFile(e.glpkDir, keys.modelKey, target.Model.Name),
		DataFile:  dataFile,
		SolFile:   solFile,
		MaxSec:    solver.MaxSecSolvec,
	}
	log.FromCtx(ctx).Info("solvec solve", "model", work.ModelFile,
		"data", work.DataFile)
	output, err := e.runner.Run(ctx, work)
	if err != nil {
		return nil, err
	}
	result := &Result{Req: req, Cost: output.Cost, Stdout: output.Stdout}
	if !e.driver.DumpOutput() {
		result.DumpSolution()
	}
	return result, nil
}

// solvecQuery runs the per-device decomposition of a selected route with
// bounded parallelism. Any infeasible sub-problem fails the whole
// computation; partial results are discarded.
func (e *Engine) solvecQuery(ctx context.Context, req *Request, route *Route,
	keys queryKeys, tmpDir string) (*Route, error) {

	used := e.usedComps(req)
	channels := e.topo.Channels()
	var targets []*pathfinder.SolvecTarget
	for _, list := range pathfinder.SolvecTargets(e.models, e.numComps) {
		for i := range list {
			targets = append(targets, &list[i])
		}
	}
	results := make([]*Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(keys.threads)
	for i, target := range targets {
		subreq := makeSolvecRequest(channels, req, target)
		i, target := i, target
		g.Go(func() error {
			defer log.HandlePanic()
			result, err := e.solvecWork(gctx, subreq, target, used, keys, tmpDir)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, result := range results {
		devRoute, err := result.MakeConnEntries(e.topo)
		if err != nil {
			return nil, err
		}
		if devRoute == nil {
			log.Error(result.Stdout)
			req.AddErr("cannot find suitable c")
			return nil, nil
		}
		route.MergeSolvecRoute(devRoute.Entries)
	}
	return route, nil
}

// query runs one full path computation: per-channel pathfinding (split by
// ERO when requested), the bidi back route, and, for reservations, the
// per-device decomposition. The first candidate route passing every stage
// wins.
func (e *Engine) query(ctx context.Context, req *Request, keys queryKeys,
	globalID string, withSolvec bool) (*Route, error) {

	tmpDir := filepath.Join(pathfinder.TmpDir(e.glpkDir), glpk.Escape(globalID))
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, serrors.Wrap("creating work dir", err, "dir", tmpDir)
	}
	routes, err := e.pfQuery(ctx, req, keys, tmpDir)
	if err != nil {
		return nil, err
	}
	var selected *Route
	var biReq *Request
	for _, route := range routes {
		biReq = makeBiRequest(req)
		biReq.UsedRoute.MergePFRoute(route.Entries)
		biReq.UsedConn.MergeSolvecRoute(route.Entries)
		if req.Bidi {
			full := e.addPairConnections(route, biReq)
			if full != nil && e.isBackRouteUsed(full, biReq) {
				full = nil
			}
			if full == nil {
				log.Error("no bi answer",
					"ch", route.Entries[0].Src.Ch.FullNo, "err", biReq.ErrMsg())
				continue
			}
			route.Extend(full)
			biReq.UsedRoute.MergePFRoute(full)
			biReq.UsedConn.MergeSolvecRoute(full)
		}
		if withSolvec {
			solved, err := e.solvecQuery(ctx, biReq, route, keys, tmpDir)
			if err != nil {
				return nil, err
			}
			if solved == nil {
				log.Error("no solvec answer", "ch", route.Entries[0].Src.Ch.FullNo)
				continue
			}
			selected = solved
		} else {
			selected = route
		}
		break
	}
	if selected == nil {
		if biReq != nil && biReq.HasErr() {
			req.AddErr(biReq.ErrMsg())
		}
		// Keep the work files for diagnosis.
		return nil, nil
	}
	if e.driver.DelTmp() {
		if err := os.RemoveAll(tmpDir); err != nil {
			log.Info("failed to remove work dir", "dir", tmpDir, "err", err)
		}
	}
	return selected, nil
}

// PathFind computes a route without mutating state and returns the
// operator-readable route text.
func (e *Engine) PathFind(ctx context.Context, req *Request, modelKey, dataKey string,
	threads int) (string, error) {

	if req.Src.Port.FullName == req.Dst.Port.FullName {
		return (&Route{}).DumpRoute(e.topo, req.Src)
	}
	keys := queryKeys{e.fileKey(modelKey), e.fileKey(dataKey), threads}
	route, err := e.query(ctx, req, keys, NewGlobalID(), false)
	if err != nil {
		return "", err
	}
	if route == nil {
		return "", serrors.Join(solver.ErrNoFeasibleSolution, nil,
			"detail", req.ErrMsg())
	}
	return route.DumpRoute(e.topo, req.Src)
}

// Reserve computes a route, runs the per-device decomposition and
// commits the reservation. The caller holds the registry write lock.
func (e *Engine) Reserve(ctx context.Context, req *Request, spec ReservationRequest,
	modelKey, dataKey string, threads int) (*Reservation, error) {

	globalID := NewGlobalID()
	var route *Route
	if req.Src.Port.FullName == req.Dst.Port.FullName {
		route = &Route{}
	} else {
		keys := queryKeys{e.fileKey(modelKey), e.fileKey(dataKey), threads}
		var err error
		route, err = e.query(ctx, req, keys, globalID, true)
		if err != nil {
			return nil, err
		}
		if route == nil {
			return nil, serrors.Join(solver.ErrNoFeasibleSolution, nil,
				"detail", req.ErrMsg())
		}
	}
	text, err := route.DumpRoute(e.topo, req.Src)
	if err != nil {
		return nil, err
	}
	rsv := &Reservation{
		GlobalID:     globalID,
		Request:      spec,
		Route:        route,
		CreationTime: time.Now(),
		RouteText:    text,
	}
	e.registry.Add(rsv)
	return rsv, nil
}
