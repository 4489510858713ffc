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

// Package solver drives the external GLPK solver. It renders nothing by
// itself: callers hand it finished model and data files, it invokes
// glpsol, captures the output and classifies the outcome. Swapping GLPK
// for another ILP solver only requires another implementation of Runner.
package solver

import (
	"bufio"
	"context"
	"errors"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
)

// Binary is the solver executable name.
const Binary = "glpsol"

// Default time limits in seconds, passed to the solver via --tmlim.
const (
	MaxSecPathFind = 120
	MaxSecSolvec   = 120
)

// NotFoundCost marks a solve without a feasible solution.
const NotFoundCost = math.MaxFloat64

// Sentinel outcomes. ErrNoFeasibleSolution is a client-visible outcome,
// not a server failure.
var (
	ErrNotFound           = errors.New("solver tool not found")
	ErrTimeout            = errors.New("solver timed out")
	ErrNoFeasibleSolution = errors.New("no feasible solution")
)

// Work describes one solver invocation. All paths must be absolute or
// relative to the process working directory.
type Work struct {
	// ID tags log lines and temp artifacts of this invocation.
	ID string
	// Kind is "pathfind", "solvec" or "ac", for logging.
	Kind      string
	ModelFile string
	DataFile  string
	// SolFile receives the --output solution file; optional.
	SolFile string
	// MaxSec bounds the solver run; 0 means no --tmlim.
	MaxSec int
}

// Output is the captured result of one solver invocation.
type Output struct {
	// Stdout holds the combined solver output, including the display
	// lines the result parsers consume.
	Stdout string
	// Cost is the objective value parsed from the solution file, or
	// NotFoundCost.
	Cost float64
}

// Runner abstracts the solver invocation so the engine can be exercised
// with a stub in tests.
type Runner interface {
	Run(ctx context.Context, work Work) (Output, error)
}

// Driver invokes glpsol as a subprocess.
type Driver struct {
	// BinaryPath overrides the executable; defaults to Binary.
	BinaryPath string

	delTmp     atomic.Bool
	dumpOutput atomic.Bool
}

// NewDriver creates a driver with temp-file deletion enabled and output
// dumping disabled.
func NewDriver() *Driver {
	d := &Driver{}
	d.delTmp.Store(true)
	return d
}

// Probe checks that the solver executable is available.
func (d *Driver) Probe() error {
	if _, err := exec.LookPath(d.binary()); err != nil {
		return serrors.Join(ErrNotFound, err, "binary", d.binary())
	}
	return nil
}

// SetDelTmp toggles deletion of temporary files after successful solves.
func (d *Driver) SetDelTmp(v bool) { d.delTmp.Store(v) }

// DelTmp reports the current temp-file deletion setting.
func (d *Driver) DelTmp() bool { return d.delTmp.Load() }

// SetDumpOutput toggles logging of the raw solver output.
func (d *Driver) SetDumpOutput(v bool) { d.dumpOutput.Store(v) }

// DumpOutput reports the current output dump setting.
func (d *Driver) DumpOutput() bool { return d.dumpOutput.Load() }

func (d *Driver) binary() string {
	if d.BinaryPath != "" {
		return d.BinaryPath
	}
	return Binary
}

// Run invokes the solver on the given work. A canceled context terminates
// the subprocess (SIGTERM, then SIGKILL after a grace period). The
// returned output carries the solver stdout even on failure so callers
// can keep diagnostics.
func (d *Driver) Run(ctx context.Context, work Work) (Output, error) {
	args := []string{"--model", work.ModelFile, "--data", work.DataFile}
	if work.SolFile != "" {
		args = append(args, "--output", work.SolFile)
	}
	if work.MaxSec > 0 {
		args = append(args, "--tmlim", strconv.Itoa(work.MaxSec))
	}
	logger := log.FromCtx(ctx)
	start := time.Now()
	cmd := exec.CommandContext(ctx, d.binary(), args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 5 * time.Second
	raw, err := cmd.CombinedOutput()
	out := Output{Stdout: string(raw), Cost: NotFoundCost}
	elapsed := time.Since(start)
	if d.dumpOutput.Load() {
		logger.Info("glpsol output", "id", work.ID, "output", out.Stdout)
	}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return out, serrors.Join(ErrNotFound, err, "binary", d.binary())
		}
		if ctx.Err() != nil {
			return out, serrors.Join(ErrTimeout, ctx.Err(),
				"id", work.ID, "elapsed", elapsed)
		}
		return out, serrors.Wrap("running glpsol", err,
			"id", work.ID, "model", work.ModelFile, "data", work.DataFile)
	}
	logger.Info("glpsol done", "kind", work.Kind, "id", work.ID,
		"elapsed", elapsed)
	if work.SolFile != "" {
		out.Cost = ParseCost(work.SolFile)
	}
	return out, nil
}

var pathCost = regexp.MustCompile(`PATH_COST = ([0-9.]+)`)

// ParseCost reads the solution file and returns the objective value of
// the "PATH_COST = N (MINimum)" line within the first lines, or
// NotFoundCost when absent or non-positive.
func ParseCost(solFile string) float64 {
	fd, err := os.Open(solFile)
	if err != nil {
		return NotFoundCost
	}
	defer fd.Close()
	scanner := bufio.NewScanner(fd)
	for n := 0; n < 10 && scanner.Scan(); n++ {
		if m := pathCost.FindStringSubmatch(scanner.Text()); m != nil {
			c, err := strconv.ParseFloat(m[1], 64)
			if err == nil && c > 0 {
				return c
			}
			break
		}
	}
	return NotFoundCost
}

// Infeasible reports whether the solver output declares the problem to
// have no feasible solution.
func Infeasible(stdout string) bool {
	return strings.Contains(stdout, "HAS NO PRIMAL FEASIBLE SOLUTION") ||
		strings.Contains(stdout, "HAS NO INTEGER FEASIBLE SOLUTION")
}

// SolutionFound reports whether the solver output declares an (integer)
// solution.
func SolutionFound(stdout string) bool {
	return strings.Contains(stdout, "SOLUTION FOUND")
}
