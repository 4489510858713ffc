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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/solver"
)

const pathUsage = `[-bi] -d <dst> [-ero <ero1 ero2 ero3..>] -s <src>
                [-ch <ch1 chX..chY chZ  ...>] [-wdmsa] [-p <num_threads>]
                [-model <model_file_key>] [-data <data_file_key>]
        -bi                            solve bidirectional route
        -d <dst>                       destination
        -ero <ero1 ero2 ero3 ...>      ERO Port names
        -s <src>                       source
        -ch <ch1 chX..chY chZ  ...>    use channel names (chX..chY means {chX,chX+1, ..., chY})
        -wdmsa                         use one WDM channel in round robin order
        -p                             number of concurrent threads
        -model <model_file_key>        key of GLPK model file name
        -data <data_file_key>          key of skeleton data file name`

// Handler parses request lines and executes the operations.
type Handler struct {
	engine  *Engine
	metrics *Metrics
	ops     map[string]operation
	order   []string
}

type operation struct {
	usage string
	run   func(ctx context.Context, args []string) (string, error)
}

// NewHandler creates the request handler.
func NewHandler(engine *Engine, metrics *Metrics) *Handler {
	h := &Handler{engine: engine, metrics: metrics, ops: map[string]operation{}}
	h.register("pathfind", pathUsage, h.pathfind)
	h.register("reserve", pathUsage, h.reserve)
	h.register("writeDB", "", h.writeDB)
	h.register("terminate", "-g <globalid | id> [-db]", h.terminate)
	h.register("TERMINATEALL", "[-db]", h.terminateAll)
	h.register("query", "-g <globalid | id> [-q] [-db]", h.query)
	h.register("deltmp", "[true|false]", h.deltmp)
	h.register("dumpglpsol", "[true|false]", h.dumpglpsol)
	return h
}

func (h *Handler) register(name, usage string,
	run func(context.Context, []string) (string, error)) {

	h.ops[name] = operation{usage: usage, run: run}
	h.order = append(h.order, name)
}

func (h *Handler) allUsage() string {
	lines := make([]string, len(h.order))
	for i, name := range h.order {
		lines[i] = strings.TrimRight("usage: "+name+" "+h.ops[name].usage, " ")
	}
	return strings.Join(lines, glpk.RET)
}

// Handle parses one request line, runs the operation and returns the
// reply text. Unknown subcommands yield the usage of every operation.
func (h *Handler) Handle(ctx context.Context, line string) string {
	args := strings.Fields(line)
	if len(args) == 0 {
		return h.allUsage()
	}
	op, ok := h.ops[args[0]]
	if !ok {
		return h.allUsage()
	}
	start := time.Now()
	reply, err := op.run(ctx, args[1:])
	elapsed := time.Since(start)
	logger := log.FromCtx(ctx)
	if err != nil {
		h.metrics.Observe(args[0], "err", elapsed)
		var parseErr *usageError
		if errors.As(err, &parseErr) {
			logger.Error("bad request", "op", args[0], "err", err)
			return "usage: " + args[0] + " " + h.ops[args[0]].usage
		}
		logger.Error("request failed", "op", args[0], "err", err,
			"elapsed", elapsed)
		return fmt.Sprintf("ERROR: %v", err)
	}
	h.metrics.Observe(args[0], "ok", elapsed)
	logger.Info("request done", "op", args[0], "elapsed", elapsed)
	return reply
}

// usageError marks argument errors answered with the usage line.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func badUsage(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

func (h *Handler) pathfind(ctx context.Context, args []string) (string, error) {
	o, err := parseOptions(pathOptsDef, args)
	if err != nil {
		return "", badUsage(err)
	}
	threads, err := o.threads()
	if err != nil {
		return "", badUsage(err)
	}
	h.engine.registry.RLock()
	defer h.engine.registry.RUnlock()
	req, _, err := h.engine.buildRequest(o)
	if err != nil {
		return "", badUsage(err)
	}
	text, err := h.engine.PathFind(ctx, req, o.str(keyModel), o.str(keyData), threads)
	if err != nil {
		if errors.Is(err, solver.ErrNoFeasibleSolution) {
			return "", serrors.New("PROBLEM HAS NO PRIMAL FEASIBLE SOLUTION" +
				glpk.RET + req.ErrMsg())
		}
		return "", err
	}
	return text, nil
}

func (h *Handler) reserve(ctx context.Context, args []string) (string, error) {
	o, err := parseOptions(pathOptsDef, args)
	if err != nil {
		return "", badUsage(err)
	}
	threads, err := o.threads()
	if err != nil {
		return "", badUsage(err)
	}
	h.engine.registry.Lock()
	defer h.engine.registry.Unlock()
	req, spec, err := h.engine.buildRequest(o)
	if err != nil {
		return "", badUsage(err)
	}
	rsv, err := h.engine.Reserve(ctx, req, spec,
		o.str(keyModel), o.str(keyData), threads)
	if err != nil {
		if errors.Is(err, solver.ErrNoFeasibleSolution) {
			return "", serrors.New("PROBLEM HAS NO PRIMAL FEASIBLE SOLUTION" +
				glpk.RET + req.ErrMsg())
		}
		return "", err
	}
	h.metrics.SetReservations(len(h.engine.registry.byGlobal))
	msg := fmt.Sprintf("id=%d, globalId=%s", rsv.ShortID, rsv.GlobalID)
	if req.HasErr() {
		// The computation succeeded but produced warnings.
		msg = req.ErrMsg() + glpk.RET + msg
	}
	log.FromCtx(ctx).Info(msg)
	return msg, nil
}

var queryOptsDef = map[string]optKind{
	keyGlobal: oneVal,
	keyQuiet:  noneVal,
	keyDB:     noneVal,
}

func (h *Handler) query(ctx context.Context, args []string) (string, error) {
	o, err := parseOptions(queryOptsDef, args)
	if err != nil {
		return "", badUsage(err)
	}
	h.engine.registry.RLock()
	defer h.engine.registry.RUnlock()

	id := o.str(keyGlobal)
	dbOpt := o.boolean(keyDB)
	var rsvs []*Reservation
	if id != "" {
		var globalID string
		if dbOpt {
			if !strings.HasPrefix(id, "urn") {
				return "", serrors.New(
					"when specifying the -db option, please specify globalid as -g")
			}
			globalID = id
		} else {
			globalID = h.engine.registry.ResolveID(id)
		}
		var rsv *Reservation
		if globalID != "" {
			rsv, err = h.engine.registry.Get(globalID, dbOpt)
			if err != nil {
				return "", err
			}
		}
		if rsv == nil {
			return "cannot find reservation: " + id, nil
		}
		rsvs = []*Reservation{rsv}
	} else {
		rsvs, err = h.engine.registry.GetAll(dbOpt)
		if err != nil {
			return "", err
		}
	}
	var buf []string
	for _, rsv := range rsvs {
		buf = append(buf, "----------------------------------------------------")
		rsv.Dump(&buf)
		if !o.boolean(keyQuiet) {
			text := rsv.RouteText
			if text == "" {
				text, err = rsv.Route.DumpRoute(h.engine.topo, PortChannel{
					Port: h.engine.topo.PortByName(rsv.Request.Src)})
				if err != nil {
					return "", err
				}
			}
			buf = append(buf, text)
		}
	}
	if len(buf) == 0 {
		return "No Reservation", nil
	}
	return strings.Join(buf, glpk.RET), nil
}

var terminateOptsDef = map[string]optKind{
	keyGlobal: oneVal,
	keyDB:     noneVal,
}

func (h *Handler) terminate(ctx context.Context, args []string) (string, error) {
	o, err := parseOptions(terminateOptsDef, args)
	if err != nil {
		return "", badUsage(err)
	}
	id := o.str(keyGlobal)
	if id == "" {
		return "", badUsage(serrors.New("-g is required"))
	}
	h.engine.registry.Lock()
	defer h.engine.registry.Unlock()

	deletedMem, deletedDB := false, false
	errmsg := ""
	if o.boolean(keyDB) {
		if !strings.HasPrefix(id, "urn") {
			return "", serrors.New(
				"when specifying the -db option, please specify globalid as -g")
		}
		deletedMem = h.engine.registry.Delete(id)
		var dbErr error
		deletedDB, dbErr = h.engine.registry.DeleteDB(id)
		if dbErr != nil {
			errmsg = dbErr.Error() + glpk.RET
		}
	} else {
		if globalID := h.engine.registry.ResolveID(id); globalID != "" {
			deletedMem = h.engine.registry.Delete(globalID)
		}
	}
	h.metrics.SetReservations(len(h.engine.registry.byGlobal))
	switch {
	case !deletedMem && !deletedDB:
		return errmsg + "cannot find reservation: " + id, nil
	case deletedMem && deletedDB:
		return errmsg + "delete from memory and DB: " + id, nil
	case deletedMem:
		return errmsg + "delete from memory: " + id, nil
	default:
		return errmsg + "delete from DB: " + id, nil
	}
}

var terminateAllOptsDef = map[string]optKind{
	keyDB: noneVal,
}

func (h *Handler) terminateAll(ctx context.Context, args []string) (string, error) {
	o, err := parseOptions(terminateAllOptsDef, args)
	if err != nil {
		return "", badUsage(err)
	}
	h.engine.registry.Lock()
	defer h.engine.registry.Unlock()
	h.engine.registry.DeleteAll()
	h.metrics.SetReservations(0)
	if o.boolean(keyDB) {
		if err := h.engine.registry.DeleteDBAll(); err != nil {
			return "", err
		}
		return "delete all reservation from memory and DB", nil
	}
	return "delete all reservation from memory", nil
}

func (h *Handler) writeDB(ctx context.Context, args []string) (string, error) {
	var msgs []string
	if len(args) > 0 {
		msg := fmt.Sprintf("writeDB has no options, so options are ignored: %v", args)
		log.FromCtx(ctx).Info(msg)
		msgs = append(msgs, msg)
	}
	h.engine.registry.Lock()
	defer h.engine.registry.Unlock()
	msg, err := h.engine.registry.WriteDB()
	if err != nil {
		return "", err
	}
	msgs = append(msgs, msg)
	return strings.Join(msgs, glpk.RET), nil
}

func parseTrueFalse(args []string, current bool) (bool, error) {
	if len(args) == 0 {
		return current, nil
	}
	switch args[0] {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, serrors.New("specify with [true|false]", "value", args[0])
	}
}

func (h *Handler) deltmp(ctx context.Context, args []string) (string, error) {
	v, err := parseTrueFalse(args, h.engine.driver.DelTmp())
	if err != nil {
		return "", badUsage(err)
	}
	h.engine.driver.SetDelTmp(v)
	return fmt.Sprintf("Delete GLPK temporary files : %t", v), nil
}

func (h *Handler) dumpglpsol(ctx context.Context, args []string) (string, error) {
	v, err := parseTrueFalse(args, h.engine.driver.DumpOutput())
	if err != nil {
		return "", badUsage(err)
	}
	h.engine.driver.SetDumpOutput(v)
	return fmt.Sprintf("Dump glpsol output : %t", v), nil
}
