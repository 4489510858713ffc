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

// Package nrm implements the reservation engine: it builds per-request
// instance data from the compiled skeletons and the live registry,
// orchestrates the solver runs (per-channel pathfinding, bidirectional
// twin paths, per-device decomposition with bounded parallelism), merges
// the results into consistent routes and maintains the reservation
// registry.
package nrm

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/pathfinder"
)

// Engine executes path computations against the compiled problem files.
type Engine struct {
	topo     *topology.Topology
	glpkDir  string
	topoXML  string
	numComps int
	runner   solver.Runner
	driver   *solver.Driver
	registry *Registry
	models   map[string]*glpk.Model
	finder   *simplePathFinder

	wdmsaMu  sync.Mutex
	wdmsaIdx int
}

// NewEngine creates the engine. The driver carries the runtime deltmp and
// dumpglpsol toggles; runner is the solver used for all work (a stub in
// tests).
func NewEngine(
	topo *topology.Topology,
	glpkDir, topoXML string,
	numComps int,
	runner solver.Runner,
	driver *solver.Driver,
	registry *Registry,
) (*Engine, error) {

	models, err := pathfinder.LoadModels(topo, glpkDir)
	if err != nil {
		return nil, err
	}
	return &Engine{
		topo:     topo,
		glpkDir:  glpkDir,
		topoXML:  topoXML,
		numComps: numComps,
		runner:   runner,
		driver:   driver,
		registry: registry,
		models:   models,
		finder:   newSimplePathFinder(topo),
	}, nil
}

// Topology returns the engine's topology.
func (e *Engine) Topology() *topology.Topology { return e.topo }

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Driver returns the solver driver holding the runtime toggles.
func (e *Engine) Driver() *solver.Driver { return e.driver }

// fileKey returns the model/data file key: the explicit option, or the
// topology file key.
func (e *Engine) fileKey(opt string) string {
	if opt != "" {
		return opt
	}
	return e.topoXML
}

// nextWdmsaChannel picks the next WDM channel of the round-robin cursor.
// The cursor is process-local and resets on restart.
func (e *Engine) nextWdmsaChannel() (*topology.Channel, error) {
	e.wdmsaMu.Lock()
	defer e.wdmsaMu.Unlock()
	for _, table := range e.topo.Tables() {
		if !table.IsWDM() {
			continue
		}
		ch := table.Channels[e.wdmsaIdx%len(table.Channels)]
		e.wdmsaIdx = (e.wdmsaIdx + 1) % len(table.Channels)
		return ch, nil
	}
	return nil, serrors.New("there are no WDM channels")
}

type queryKeys struct {
	modelKey string
	dataKey  string
	threads  int
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return serrors.Wrap("opening skeleton", err, "file", src)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return serrors.Wrap("creating data file", err, "file", dst)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return serrors.Wrap("copying skeleton", err, "src", src, "dst", dst)
	}
	return nil
}

func portNames(ports []*topology.Port) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.FullName
	}
	return names
}

// pfWork builds the instance data of one per-channel solve and runs the
// solver.
func (e *Engine) pfWork(ctx context.Context, req *Request, keys queryKeys,
	tmpDir string) (*Result, error) {

	ch := req.Channels[0]
	base := pathfinder.PFDataBase(e.glpkDir, keys.dataKey, ch.FullNo)
	vt, err := pathfinder.LoadVarIdxTable(base + pathfinder.VarIdxFileExt)
	if err != nil {
		return nil, err
	}
	if vt == nil {
		return nil, serrors.New("missing varidx table, run make-pathfinder first",
			"file", base+pathfinder.VarIdxFileExt)
	}
	name := filepath.Join(tmpDir, fmt.Sprintf("pf_%s_%s_%s-%s",
		keys.dataKey, ch.FullNo, req.Src.Port.FullName, req.Dst.Port.FullName))
	dataFile := name + ".data"
	solFile := name + ".sol"
	if err := copyFile(base+".data", dataFile); err != nil {
		return nil, err
	}
	_, targetPorts := pathfinder.PFTargets(e.topo, ch.TableID)
	inst := pathfinder.Instance{
		Src:          req.Src.Port.FullName,
		Dst:          req.Dst.Port.FullName,
		Channels:     req.Channels,
		NextEroPorts: portNames(req.NextUsedEro),
		UsedX:        req.UsedRoute.XTuples(),
		UsedC:        req.UsedConn.CTuples(),
	}
	overlay := inst.RenderPF(targetPorts, vt)
	if err := appendFile(dataFile, overlay); err != nil {
		return nil, err
	}
	work := solver.Work{
		ID:        filepath.Base(name),
		Kind:      "pathfind",
		ModelFile: pathfinder.PFModelFile(e.glpkDir, keys.modelKey),
		DataFile:  dataFile,
		SolFile:   solFile,
		MaxSec:    solver.MaxSecPathFind,
	}
	log.FromCtx(ctx).Info("pathfind solve", "model", work.ModelFile,
		"data", work.DataFile, "req", req.Dump(false))
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

func appendFile(file, text string) error {
	fd, err := os.OpenFile(file, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return serrors.Wrap("opening data file", err, "file", file)
	}
	defer fd.Close()
	if _, err := fd.WriteString(text); err != nil {
		return serrors.Wrap("appending instance data", err, "file", file)
	}
	return nil
}

// pfQueryPath solves one request per channel, in parallel, bounded by
// the thread count. Channels unsupported by src or dst keep an empty
// result slot so the per-channel indices of all ERO segments align.
func (e *Engine) pfQueryPath(ctx context.Context, req *Request, keys queryKeys,
	tmpDir string) ([]*Result, error) {

	results := make([]*Result, len(req.Channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(keys.threads)
	for i, ch := range req.Channels {
		if !req.Src.Port.SameSupportChannel(ch.TableID) ||
			!req.Dst.Port.SameSupportChannel(ch.TableID) {
			log.Info("channel does not support src/dst port SKIP", "ch", ch.FullNo)
			results[i] = &Result{Cost: solver.NotFoundCost}
			continue
		}
		subreq := makePFRequest(ch, req)
		i := i
		g.Go(func() error {
			defer log.HandlePanic()
			result, err := e.pfWork(gctx, subreq, keys, tmpDir)
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
	return results, nil
}

// eroSplitRequests splits a request along its ERO ports. The returned
// segments share the accumulated used routes.
func (e *Engine) eroSplitRequests(req *Request) []*Request {
	ero := req.OrgEro
	if len(ero) == 0 {
		return nil
	}
	usedRoute := req.UsedRoute.Clone()
	usedConn := req.UsedConn.Clone()
	var reqs []*Request
	reqs = append(reqs, makeEroRequest(req.Src,
		PortChannel{Port: ero[0]}, req, req.MakeNextEro(ero, 0),
		usedRoute, usedConn))
	for i := 0; i < len(ero)-1; i++ {
		reqs = append(reqs, makeEroRequest(
			PortChannel{Port: ero[i]}, PortChannel{Port: ero[i+1]},
			req, req.MakeNextEro(ero, i+1), usedRoute, usedConn))
	}
	reqs = append(reqs, makeEroRequest(
		PortChannel{Port: ero[len(ero)-1]}, req.Dst, req, nil,
		usedRoute, usedConn))

	lines := []string{"# original request", req.Dump(true),
		"# ERO in topology", printEro(ero)}
	for i, sub := range reqs {
		lines = append(lines, fmt.Sprintf("# sub request No. %d", i), sub.Dump(false))
	}
	log.Info(strings.Join(lines, glpk.RET))
	return reqs
}

// newUsedRoute merges the routes of all answered results, so picks of
// earlier ERO segments stay visible to later segments.
func (e *Engine) newUsedRoute(results []*Result) (*Route, error) {
	merged := &Route{}
	for _, result := range results {
		if result == nil || !result.HasAnswer() {
			continue
		}
		sub, err := result.MakeRouteEntries(e.topo)
		if err != nil {
			return nil, err
		}
		merged.Extend(sub.Entries)
	}
	return merged, nil
}

// answerIdxList accumulates the per-channel costs across all segments and
// returns the channel indices with a solution in every segment, cheapest
// first.
func answerIdxList(subResults [][]*Result) []int {
	if len(subResults) == 0 {
		return nil
	}
	nCh := len(subResults[0])
	type idxCost struct {
		idx  int
		cost float64
	}
	var candidates []idxCost
	for i := 0; i < nCh; i++ {
		total := 0.0
		ok := true
		for _, results := range subResults {
			if results[i] == nil || !results[i].HasAnswer() {
				ok = false
				break
			}
			total += results[i].Cost
		}
		if ok {
			candidates = append(candidates, idxCost{i, total})
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].cost < candidates[b].cost
	})
	idxs := make([]int, len(candidates))
	for i, c := range candidates {
		idxs[i] = c.idx
	}
	return idxs
}

// mergeSubResults combines the per-segment solutions of each fully
// answered channel into candidate routes, cheapest first.
func (e *Engine) mergeSubResults(subResults [][]*Result) ([]*Route, error) {
	idxs := answerIdxList(subResults)
	if len(idxs) == 0 {
		return nil, nil
	}
	var routes []*Route
	for _, idx := range idxs {
		route := &Route{}
		for _, results := range subResults {
			sub, err := results[idx].MakeRouteEntries(e.topo)
			if err != nil {
				return nil, err
			}
			route.Extend(sub.Entries)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// queryWithERO solves each ERO segment in turn and merges the per-channel
// results.
func (e *Engine) queryWithERO(ctx context.Context, reqs []*Request,
	keys queryKeys, tmpDir string) ([]*Route, error) {

	var subResults [][]*Result
	for _, subreq := range reqs {
		results, err := e.pfQueryPath(ctx, subreq, keys, tmpDir)
		if err != nil {
			return nil, err
		}
		answered := false
		for _, result := range results {
			if result != nil && result.HasAnswer() {
				answered = true
				break
			}
		}
		if !answered {
			subreq.AddErr(fmt.Sprintf("cannot find ERO sub route : %s-%s",
				subreq.Src.Port.FullName, subreq.Dst.Port.FullName))
			return nil, nil
		}
		newRoute, err := e.newUsedRoute(results)
		if err != nil {
			return nil, err
		}
		subreq.UsedRoute.MergePFRoute(newRoute.Entries)
		subreq.UsedConn.MergeSolvecRoute(newRoute.Entries)
		subResults = append(subResults, results)
	}
	routes, err := e.mergeSubResults(subResults)
	if err != nil {
		return nil, err
	}
	if routes == nil {
		reqs[0].AddErr("cannot find all suitable path for each ERO sub path")
	}
	return routes, nil
}

// pfQuery runs the global pathfinding of one request and returns the
// candidate routes, cheapest first.
func (e *Engine) pfQuery(ctx context.Context, req *Request, keys queryKeys,
	tmpDir string) ([]*Route, error) {

	if reqs := e.eroSplitRequests(req); reqs != nil {
		return e.queryWithERO(ctx, reqs, keys, tmpDir)
	}
	results, err := e.pfQueryPath(ctx, req, keys, tmpDir)
	if err != nil {
		return nil, err
	}
	sorted := append([]*Result(nil), results...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return lessResult(sorted[a], sorted[b])
	})
	var routes []*Route
	for _, result := range sorted {
		if result == nil || !result.HasAnswer() {
			continue
		}
		route, err := result.MakeRouteEntries(e.topo)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	if len(routes) == 0 {
		req.AddErr("cannot find usable route")
	}
	return routes, nil
}
