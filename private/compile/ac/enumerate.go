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

package ac

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/pathfinder"
)

// Conn is one enumerated internal transition of a component.
type Conn struct {
	InPin  int
	InCh   string
	OutPin int
	OutCh  string
}

func (c Conn) String() string {
	return fmt.Sprintf("(%d,%s,%d,%s)", c.InPin, c.InCh, c.OutPin, c.OutCh)
}

func renderConns(conns []Conn) string {
	lines := make([]string, len(conns))
	for i, c := range conns {
		lines[i] = c.String()
	}
	glpk.SortNatural(lines)
	return strings.Join(lines, glpk.RET) + glpk.RET
}

// reCommentedSt matches the "# s.t." commenting of the emitted ac model;
// enumerate reverts it so the constraints take part in the enumeration ILP.
var reCommentedSt = regexp.MustCompile(`# s\.t\. `)

// enumerate runs the all-solutions enumeration of one component: for each
// plausible (in-port, out-port) pair the per-component ILP is solved
// repeatedly, each round adding a cut that forbids the exact activation
// set of the previous solution, until the problem turns infeasible.
func enumerate(ctx context.Context, runner solver.Runner, params Params,
	comp *topology.Component, emittedModel, channelsFile string) ([]Conn, error) {

	head, tail, err := enumTemplate(params.SolvecTemplateFile)
	if err != nil {
		return nil, err
	}
	workDir := filepath.Join(pathfinder.TmpDir(params.GLPKDir), uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, serrors.Wrap("creating work dir", err)
	}
	defer os.RemoveAll(workDir)

	channelsData, err := os.ReadFile(channelsFile)
	if err != nil {
		return nil, serrors.Wrap("reading channels data", err, "file", channelsFile)
	}
	body := reCommentedSt.ReplaceAllString(emittedModel, "s.t. ")
	// Drop the display/end epilogue; the template closes the model.
	body = strings.ReplaceAll(body, "display AvailableConnection;", "")
	body = strings.ReplaceAll(body, "end;", "")

	var conns []Conn
	seen := map[Conn]bool{}
	for _, in := range comp.Ports() {
		if !in.IsIn() {
			continue
		}
		for _, out := range comp.Ports() {
			if !out.IsOut() || in.Number == out.Number {
				continue
			}
			if !in.SameSupportChannel(out.SupportChannel) {
				continue
			}
			pairConns, err := enumeratePair(ctx, runner, workDir, head, body, tail,
				string(channelsData), comp, in, out)
			if err != nil {
				return nil, err
			}
			for _, c := range pairConns {
				if !seen[c] {
					seen[c] = true
					conns = append(conns, c)
				}
			}
		}
	}
	return conns, nil
}

// enumTemplate splits the solvec base template; a missing template yields
// empty bounds so the fragment constraints stand alone.
func enumTemplate(file string) (string, string, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", serrors.Wrap("reading solvec template", err, "file", file)
	}
	idx := strings.Index(string(raw), pathfinder.ConstraintStatements)
	if idx < 0 {
		return "", "", serrors.New("cannot find constraint marker",
			"file", file, "marker", pathfinder.ConstraintStatements)
	}
	idx += len(pathfinder.ConstraintStatements)
	return string(raw[:idx]), string(raw[idx:]), nil
}

func enumeratePair(ctx context.Context, runner solver.Runner,
	workDir, head, body, tail, channelsData string,
	comp *topology.Component, in, out *topology.Port) ([]Conn, error) {

	logger := log.FromCtx(ctx)
	base := filepath.Join(workDir,
		fmt.Sprintf("%s_%d_%d", glpk.Escape(comp.Model), in.Number, out.Number))
	dataFile := base + ".data"
	data := strings.TrimSuffix(channelsData, "end;"+glpk.RET) +
		fmt.Sprintf("param src := %d;%sparam dst := %d;%send;%s",
			in.Number, glpk.RET, out.Number, glpk.RET, glpk.RET)
	if err := os.WriteFile(dataFile, []byte(data), 0o644); err != nil {
		return nil, serrors.Wrap("writing enum data", err, "file", dataFile)
	}

	var conns []Conn
	var cuts []string
	for round := 0; ; round++ {
		modelFile := fmt.Sprintf("%s_%d.model", base, round)
		model := head + glpk.RET + body + strings.Join(cuts, glpk.RET) +
			glpk.RET + tail
		if err := os.WriteFile(modelFile, []byte(model), 0o644); err != nil {
			return nil, serrors.Wrap("writing enum model", err, "file", modelFile)
		}
		work := solver.Work{
			ID:        filepath.Base(modelFile),
			Kind:      "ac",
			ModelFile: modelFile,
			DataFile:  dataFile,
			MaxSec:    solver.MaxSecSolvec,
		}
		output, err := runner.Run(ctx, work)
		if err != nil {
			return nil, err
		}
		if solver.Infeasible(output.Stdout) {
			// The cuts exhausted the solution space.
			return conns, nil
		}
		roundConns := parseConnTuples(output.Stdout)
		if len(roundConns) == 0 {
			if round == 0 {
				logger.Info("component has no available connections",
					"model", comp.Model, "in", in.Number, "out", out.Number)
			}
			return conns, nil
		}
		conns = append(conns, roundConns...)
		cuts = append(cuts, renderCut(round, roundConns))
	}
}

// renderCut forbids the exact activation set of one solution.
func renderCut(round int, conns []Conn) string {
	terms := make([]string, len(conns))
	for i, c := range conns {
		terms[i] = fmt.Sprintf("c[%d,'%s',%d,'%s']", c.InPin, c.InCh, c.OutPin, c.OutCh)
	}
	return fmt.Sprintf("s.t. cut_%d : %s <= %d;",
		round, strings.Join(terms, " + "), len(conns)-1)
}

// connParen matches the display form "(1,WDM32_1,2,WDM32_1)" and connHash
// the hash-annotated solution rows "# 1 WDM32_1 2 WDM32_1 1".
var (
	connParen = regexp.MustCompile(`\(([0-9]+),([^,]+),([0-9]+),([^,)]+)\)`)
	connHash  = regexp.MustCompile(`^# +([0-9]+)[ \t]+(\S+)[ \t]+([0-9]+)[ \t]+(\S+)[ \t]+1\b`)
)

func parseConnTuples(stdout string) []Conn {
	var conns []Conn
	for _, line := range strings.Split(stdout, "\n") {
		m := connHash.FindStringSubmatch(line)
		if m == nil {
			m = connParen.FindStringSubmatch(line)
			if m == nil {
				continue
			}
		}
		inPin, err1 := strconv.Atoi(m[1])
		outPin, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil {
			continue
		}
		conns = append(conns, Conn{
			InPin: inPin, InCh: m[2], OutPin: outPin, OutCh: m[4],
		})
	}
	return conns
}
