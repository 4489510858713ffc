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

// Package nrmtest provides a stubbed solver runner so the engine can be
// exercised without a glpsol binary. The stub answers pathfinding work
// with canned per-channel solutions and honors the in-use overlay of the
// instance data: a solution whose tuple is already in use turns
// infeasible, like the real ILP would.
package nrmtest

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/photonpath/nrm/pkg/solver"
)

// Solution is one canned pathfinding answer.
type Solution struct {
	// Rows are solution display lines:
	// "# src srcCh dst dstCh x c 0 0 0".
	Rows []string
	Cost float64
}

// Tuples returns the "[src,srcCh,dst,dstCh]" keys of the solution rows.
func (s Solution) Tuples() []string {
	var tuples []string
	for _, row := range s.Rows {
		f := strings.Fields(row)
		if len(f) != 10 {
			continue
		}
		tuples = append(tuples, "["+f[1]+","+f[2]+","+f[3]+","+f[4]+"]")
	}
	return tuples
}

// StubRunner is a solver.Runner with canned answers.
type StubRunner struct {
	// PF maps a channel name onto the pathfinding solution of that
	// channel's problem.
	PF map[string]Solution
	// Solvec maps a model name onto the per-device solution rows:
	// "# src srcCh dst dstCh c 0".
	Solvec map[string][]string
	// SolvecInfeasible marks models whose sub-problem has no solution.
	SolvecInfeasible map[string]bool

	mu    sync.Mutex
	calls []solver.Work
}

// Calls returns the recorded work items.
func (r *StubRunner) Calls() []solver.Work {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]solver.Work(nil), r.calls...)
}

const infeasibleOutput = "PROBLEM HAS NO PRIMAL FEASIBLE SOLUTION"

// Run implements solver.Runner.
func (r *StubRunner) Run(ctx context.Context, work solver.Work) (solver.Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, work)
	r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return solver.Output{}, err
	}
	switch work.Kind {
	case "solvec":
		return r.runSolvec(work)
	default:
		return r.runPF(work)
	}
}

func (r *StubRunner) runPF(work solver.Work) (solver.Output, error) {
	for ch, sol := range r.PF {
		if !strings.Contains(work.ID, "_"+ch+"_") {
			continue
		}
		raw, err := os.ReadFile(work.DataFile)
		if err != nil {
			return solver.Output{}, err
		}
		if inUse(string(raw), sol.Tuples()) {
			return solver.Output{Stdout: infeasibleOutput, Cost: solver.NotFoundCost}, nil
		}
		return solver.Output{
			Stdout: strings.Join(sol.Rows, "\n") + "\nINTEGER OPTIMAL SOLUTION FOUND\n",
			Cost:   sol.Cost,
		}, nil
	}
	return solver.Output{Stdout: infeasibleOutput, Cost: solver.NotFoundCost}, nil
}

func (r *StubRunner) runSolvec(work solver.Work) (solver.Output, error) {
	for model, rows := range r.Solvec {
		if !strings.Contains(work.ID, "_"+model+"_") {
			continue
		}
		if r.SolvecInfeasible[model] {
			return solver.Output{Stdout: infeasibleOutput, Cost: solver.NotFoundCost}, nil
		}
		return solver.Output{
			Stdout: strings.Join(rows, "\n") + "\nINTEGER OPTIMAL SOLUTION FOUND\n",
			Cost:   0,
		}, nil
	}
	return solver.Output{Stdout: infeasibleOutput, Cost: solver.NotFoundCost}, nil
}

// inUse checks the tuples against the inuse_X overlay appended to the
// instance data.
func inUse(data string, tuples []string) bool {
	idx := strings.LastIndex(data, "param inuse_X default 0 :=")
	if idx < 0 {
		return false
	}
	section := data[idx:]
	if end := strings.Index(section, ";"); end >= 0 {
		section = section[:end]
	}
	for _, tuple := range tuples {
		if strings.Contains(section, tuple) {
			return true
		}
	}
	return false
}
