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

package pathfinder

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/topology"
)

// LoadModels reads the rewritten ac/<model>.model fragments of all
// components and groups components by model name. Fragments without
// constraints are skipped.
func LoadModels(topo *topology.Topology, glpkDir string) (map[string]*glpk.Model, error) {
	acDir := filepath.Join(glpkDir, "ac")
	models := map[string]*glpk.Model{}
	for _, comp := range topo.Components() {
		if comp.Model == "" {
			continue
		}
		if m, ok := models[comp.Model]; ok {
			m.AddComponent(comp.Name, comp.HasController())
			continue
		}
		file := filepath.Join(acDir, topology.ModelFileName(comp.Model))
		raw, err := os.ReadFile(file)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, serrors.Wrap("reading model fragment", err, "file", file)
		}
		frag, err := glpk.Parse(string(raw))
		if err != nil {
			return nil, serrors.Wrap("parsing model fragment", err, "file", file)
		}
		if len(frag.StDefs) == 0 {
			// Fragments without constraints contribute no model.
			continue
		}
		m := glpk.NewModel(comp.Model, frag)
		m.AddComponent(comp.Name, comp.HasController())
		models[comp.Model] = m
	}
	return models, nil
}

// ModelNames returns the model names in natural order.
func ModelNames(models map[string]*glpk.Model) []string {
	names := make([]string, 0, len(models))
	for n := range models {
		names = append(names, n)
	}
	glpk.SortNatural(names)
	return names
}

// SolvecTarget is one per-device sub-problem: a chunk of the components
// sharing a model, identified by the 1-based chunk index used in the data
// file names.
type SolvecTarget struct {
	Model *glpk.Model
	Comps []string
	Idx   int
}

// SolvecTargets partitions each controller-bearing model's components into
// chunks of numComps (0 means one chunk per model). Models without an
// intermediate controller are excluded from the decomposition.
func SolvecTargets(models map[string]*glpk.Model, numComps int) [][]SolvecTarget {
	var all [][]SolvecTarget
	for _, name := range ModelNames(models) {
		model := models[name]
		if !model.HasController {
			continue
		}
		var targets []SolvecTarget
		if numComps <= 0 || len(model.Components) <= numComps {
			targets = append(targets, SolvecTarget{
				Model: model, Comps: model.Components, Idx: 1,
			})
		} else {
			idx := 1
			for lo := 0; lo < len(model.Components); lo += numComps {
				hi := min(lo+numComps, len(model.Components))
				targets = append(targets, SolvecTarget{
					Model: model, Comps: model.Components[lo:hi], Idx: idx,
				})
				idx++
			}
		}
		all = append(all, targets)
	}
	return all
}

var (
	reStVarCond = regexp.MustCompile(
		`s\.t\. +([^{]+) *\{([^}:]+) *: *([^}]+)\} *: *(.+?) *([<>=]+) *(.+);`)
	reStSumCond = regexp.MustCompile(
		`s\.t\. +([^{]+) *\{([^}]+)\} *: *sum\{([^}:]+) *: *([^}]+)\} *(.+?) *([<>=]+) *(.+);`)
)

// formatModelGLPK indents one generated constraint into the emitted model
// layout and rewrites c-variable references through the vt table.
func formatModelGLPK(text, varCName string) string {
	text = glpk.Format(text)
	text = reStVarCond.ReplaceAllString(text,
		"s.t. $1{"+glpk.RET+"\t$2"+glpk.RET+"\t\t: $3} :"+glpk.RET+
			"\t$4"+glpk.RET+"\t$5"+glpk.RET+"\t$6;")
	text = reStSumCond.ReplaceAllString(text,
		"s.t. $1{"+glpk.RET+"\t$2} :"+glpk.RET+"\tsum{$3"+glpk.RET+
			"\t\t\t: $4}"+glpk.RET+"\t\t$5"+glpk.RET+"\t$6"+glpk.RET+"\t$7;")
	reVar := regexp.MustCompile(varCName + `\[([^,\]]+, *[^,\]]+, *[^,\]]+, *[^\]]+)\]`)
	text = reVar.ReplaceAllString(text, varCName+"[vt[$1]]")
	return text
}

// fixDomain rewrites a fragment domain into the per-component global form:
// i ranges over InputPort[comp], j over FlowInChannels[i], k over
// FlowOutPorts[i], l over IJK2Ls[i,j,k], once the earlier indices are
// bound.
func fixDomain(d glpk.Domain, hasVars map[string]bool) string {
	var b strings.Builder
	for _, binding := range d.Bindings {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(binding.Var + " in ")
		switch binding.Var {
		case "i":
			b.WriteString(binding.Set + "[comp]")
		case "j":
			if hasVars["i"] {
				b.WriteString("FlowInChannels[i]")
			} else {
				b.WriteString(binding.Set)
			}
		case "k":
			if hasVars["i"] {
				b.WriteString("FlowOutPorts[i]")
			} else {
				b.WriteString(binding.Set + "[comp]")
			}
		case "l":
			if hasVars["i"] && hasVars["j"] && hasVars["k"] {
				b.WriteString("IJK2Ls[i,j,k]")
			} else {
				b.WriteString(binding.Set)
			}
		default:
			b.WriteString(binding.Set)
		}
		hasVars[binding.Var] = true
	}
	return b.String()
}

var reNextCh = regexp.MustCompile(`j *\+ *1`)

// emitModelConstraints renders one model's constraints against the global
// variable space. varCName is "c2" for the global model and "c" for the
// per-device models.
func emitModelConstraints(model *glpk.Model, varCName string) string {
	frag := model.Fragment
	lines := []string{"", "#", "# " + model.Name}
	for _, st := range frag.StDefs {
		lines = append(lines, "#   "+st.Org)
	}
	lines = append(lines, "#")

	modelID := glpk.Escape(model.Name)
	for _, st := range frag.StDefs {
		var sb strings.Builder
		if st.Domain.Text == "AvailableConnection" {
			sb.WriteString("s.t. " + modelID + "_" + st.Name +
				"{comp in Comps_" + modelID + ", " +
				"i in InputPort[comp], j in FlowInChannels[i], " +
				"k in FlowOutPorts[i], l in IJK2Ls[i, j, k] " +
				": vt[i, j, k, l] > 0")
			sb.WriteString("}:" + strings.ReplaceAll(st.Var.Org, "c[", varCName+"["))
		} else {
			hasVars := map[string]bool{}
			sb.WriteString("s.t. " + modelID + "_" + st.Name +
				"{comp in Comps_" + modelID + ", " + fixDomain(st.Domain, hasVars))
			switch {
			case st.Sum != nil:
				sb.WriteString("}:sum{")
				sb.WriteString(fixDomain(st.Sum.Domain, hasVars) +
					":vt[" + st.Sum.VarC.Type() + "] > 0}")
				sb.WriteString(varCName + "[" + st.Sum.VarC.String() + "] " +
					st.Sum.Op + " " + intString(st.Sum.Num))
			case st.Var != nil:
				cond := st.Domain.Cond
				stdefstr := st.Var.Org
				sb.WriteString(" : vt[" + st.Var.Left.Type() + "] > 0")
				if cond != "" {
					cond = reNextCh.ReplaceAllString(cond, "nextCh[j]")
					stdefstr = reNextCh.ReplaceAllString(stdefstr, "nextCh[j]")
					sb.WriteString("  && " + cond)
				}
				stdefstr = strings.ReplaceAll(stdefstr, "c[", varCName+"[")
				sb.WriteString("}:" + stdefstr)
			}
		}
		sb.WriteString(";")
		lines = append(lines, formatModelGLPK(sb.String(), varCName))
	}
	return strings.Join(lines, glpk.RET)
}

// ConstraintStatements is the marker splitting the base model template.
const ConstraintStatements = "### CONSTRAINT_STATEMENTS ###"

// splitBaseModel reads the base template and splits it at the constraint
// marker.
func splitBaseModel(file string) (head, tail string, err error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return "", "", serrors.Wrap("reading model template", err, "file", file)
	}
	idx := strings.Index(string(raw), ConstraintStatements)
	if idx < 0 {
		return "", "", serrors.New("cannot find constraint marker",
			"marker", ConstraintStatements, "file", file)
	}
	idx += len(ConstraintStatements)
	return string(raw[:idx]), string(raw[idx:]), nil
}
