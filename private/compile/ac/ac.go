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

// Package ac compiles per-component available connections: for every
// distinct component model it rewrites the constraint fragment into
// ac/<model>.model and enumerates the feasible internal
// (in-port, in-channel, out-port, out-channel) transitions into
// ac/<model>.conn.txt by repeatedly solving the per-component ILP with
// exclusion cuts until it turns infeasible.
package ac

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/pathfinder"
)

const channelsFileName = "channels.data"

// Params collects the inputs of an ac compile run.
type Params struct {
	GLPKDir string
	// SolvecTemplateFile is the base template providing the variable and
	// objective declarations of the per-component enumeration ILP.
	SolvecTemplateFile string
}

// Make reads the topology and writes channels.data plus, per distinct
// component model, the rewritten model fragment and the enumerated
// connection file.
func Make(ctx context.Context, topo *topology.Topology, runner solver.Runner,
	params Params) error {

	acDir := pathfinder.ACDir(params.GLPKDir)
	if err := os.MkdirAll(acDir, 0o755); err != nil {
		return serrors.Wrap("creating ac dir", err)
	}
	channelsFile := filepath.Join(acDir, channelsFileName)
	if err := os.WriteFile(channelsFile,
		[]byte(channelsData(topo)), 0o644); err != nil {
		return serrors.Wrap("writing channels data", err, "file", channelsFile)
	}

	chDef := channelsDef(topo)
	done := map[string]bool{}
	for _, comp := range topo.Components() {
		if comp.Model == "" || comp.GLPK == "" || done[comp.Model] {
			continue
		}
		done[comp.Model] = true
		if err := makeModel(ctx, topo, runner, params, comp, chDef, channelsFile); err != nil {
			return err
		}
	}
	return nil
}

// channelsDef returns the channel set declarations embedded into each
// ac model file.
func channelsDef(topo *topology.Topology) string {
	var b strings.Builder
	for _, table := range topo.Tables() {
		b.WriteString("set Channels_" + table.ID + ";")
	}
	b.WriteString("set AllChannels;")
	b.WriteString("param chNo{AllChannels};")
	return b.String()
}

// channelsData returns the content of ac/channels.data.
func channelsData(topo *topology.Topology) string {
	var b strings.Builder
	var allNos, allChNos []string
	for _, table := range topo.Tables() {
		b.WriteString("set Channels_" + table.ID + " :=")
		for _, ch := range table.Channels {
			b.WriteString(" " + ch.FullNo)
			allNos = append(allNos, ch.FullNo)
			allChNos = append(allChNos, ch.FullNo, fmt.Sprintf("%d", ch.No))
		}
		b.WriteString(";")
	}
	b.WriteString("set AllChannels := " + strings.Join(allNos, " ") + ";")
	b.WriteString("param chNo := " + strings.Join(allChNos, " ") + ";")
	return formatAC(b.String()) + "end;" + glpk.RET
}

var reSt = regexp.MustCompile(`s\. *t\. *`)

// formatAC expands numeric ranges, normalizes spacing and comments out
// the constraint statements: the emitted ac model computes sets only, the
// constraints are re-read by the pathfinder compiler.
func formatAC(text string) string {
	text = glpk.ExpandNumSets(text)
	text = glpk.Format(text)
	text = reSt.ReplaceAllString(text, "# s.t. ")
	return text
}

var reACSet = regexp.MustCompile(`set +(AvailableConnection[^ ]*) *:= *\{([^}]+)\} *;?`)
var reCond = regexp.MustCompile(`([jl])`)

// fixSetCondition rewrites the raw channel indices of a set condition to
// chNo lookups: "j = l && k = j + 1" -> "chNo[j] = chNo[l] && ...".
func fixSetCondition(set string) (string, error) {
	v := regexp.MustCompile(` *: *`).Split(set, -1)
	switch len(v) {
	case 1:
		return set, nil
	case 2:
		return v[0] + glpk.RET + "\t: " + reCond.ReplaceAllString(v[1], "chNo[$1]"), nil
	default:
		return "", serrors.New("set condition syntax error", "text", set)
	}
}

// rewriteFragment rewrites the raw GLPK attribute of a component into the
// ac model body: set conditions fixed, an AvailableConnection union
// appended when several partial sets are defined, channel set names
// qualified by the component's table ids.
func rewriteFragment(comp *topology.Component) (string, error) {
	text := comp.GLPK
	var b strings.Builder
	idx := 0
	acNames := map[string]bool{}
	for _, m := range reACSet.FindAllStringSubmatchIndex(text, -1) {
		full := text[m[0]:m[1]]
		name := text[m[2]:m[3]]
		body := text[m[4]:m[5]]
		cond, err := fixSetCondition(body)
		if err != nil {
			return "", err
		}
		b.WriteString(text[idx:m[4]])
		b.WriteString(cond)
		acNames[name] = true
		idx = m[5]
		if !strings.HasSuffix(strings.TrimSpace(full), ";") {
			log.Info("missing ; in fragment", "model", comp.Model)
		}
	}
	b.WriteString(text[idx:])
	out := b.String()

	if len(acNames) >= 2 && !regexp.MustCompile(
		`set +AvailableConnection *:=`).MatchString(text) {
		names := make([]string, 0, len(acNames))
		for n := range acNames {
			names = append(names, n)
		}
		sort.Strings(names)
		out += "set AvailableConnection := " + strings.Join(names, " union ") + ";"
		log.Info("append AvailableConnection definition", "model", comp.Model)
	}
	return fixChannelsName(comp, out), nil
}

// fixChannelsName qualifies the "Channels" tokens of the fragment with the
// component's channel table ids. Multi-table components use Channels1,
// Channels2, ...
func fixChannelsName(comp *topology.Component, text string) string {
	ids := regexp.MustCompile(` *, *`).Split(comp.TableID, -1)
	if len(ids) == 1 {
		return strings.ReplaceAll(text, "Channels",
			"Channels_"+glpk.Escape(ids[0]))
	}
	for i, id := range ids {
		text = strings.ReplaceAll(text,
			fmt.Sprintf("Channels%d", i+1), "Channels_"+glpk.Escape(id))
	}
	return text
}

// ioPortDefs returns the input and output pin lists of the component.
// Bidi ports appear on both sides.
func ioPortDefs(comp *topology.Component) (string, string) {
	var in, out []string
	for _, p := range comp.Ports() {
		if p.IsBiDi() {
			in = append(in, fmt.Sprintf("%d", p.Number))
			out = append(out, fmt.Sprintf("%d", p.Number))
			continue
		}
		if p.IsIn() {
			in = append(in, fmt.Sprintf("%d", p.Number))
		} else {
			out = append(out, fmt.Sprintf("%d", p.Number))
		}
	}
	return strings.Join(in, ","), strings.Join(out, ",")
}

// modelText assembles the emitted ac/<model>.model content.
func modelText(comp *topology.Component, chDef string) (string, error) {
	frag, err := rewriteFragment(comp)
	if err != nil {
		return "", err
	}
	in, out := ioPortDefs(comp)
	text := chDef +
		"set InputPort := {" + in + "};" +
		"set OutputPort := {" + out + "};" +
		frag +
		"display AvailableConnection;end;"
	return formatAC(text), nil
}

func makeModel(ctx context.Context, topo *topology.Topology, runner solver.Runner,
	params Params, comp *topology.Component, chDef, channelsFile string) error {

	acDir := pathfinder.ACDir(params.GLPKDir)
	text, err := modelText(comp, chDef)
	if err != nil {
		return err
	}
	modelFile := filepath.Join(acDir, topology.ModelFileName(comp.Model))
	if err := os.WriteFile(modelFile, []byte(text), 0o644); err != nil {
		return serrors.Wrap("writing ac model", err, "file", modelFile)
	}

	conns, err := enumerate(ctx, runner, params, comp, text, channelsFile)
	if err != nil {
		return err
	}
	connFile := filepath.Join(acDir, topology.ConnFileName(comp.Model))
	if err := os.WriteFile(connFile, []byte(renderConns(conns)), 0o644); err != nil {
		return serrors.Wrap("writing conn file", err, "file", connFile)
	}
	log.Info("OK", "file", connFile, "tuples", len(conns))
	return nil
}
