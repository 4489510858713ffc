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

// Package glpk parses the constraint fragments attached to topology
// components and provides the text utilities shared by the generators of
// MathProg model and data files.
//
// A fragment consists of set definitions and constraints:
//
//	set InputPort := {1, 3, 5, 7};
//	set AvailableConnection := {i in InputPort, j in Channels, k in
//	    OutputPort, l in Channels : j = l && k = i + 1};
//	s.t. input{j in Channels, k in OutputPort} : sum{i in InputPort}
//	    c[i, j, k, j] <= 1;
package glpk

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/photonpath/nrm/pkg/private/serrors"
)

const ident = `[a-zA-Z0-9_]+`

var varInSet = regexp.MustCompile(`(` + ident + `) in (` + ident + `)`)

// Binding is one "var in Set" pair of a domain.
type Binding struct {
	Var string
	Set string
}

// Domain holds the domain part of a set definition or constraint: the
// bindings before the colon and the condition after it.
type Domain struct {
	Text     string
	Cond     string
	Bindings []Binding
}

// ParseDomain splits "i in InputPort, j in Channels : j = l" into its
// bindings and condition.
func ParseDomain(txt string) (Domain, error) {
	v := regexp.MustCompile(` *: *`).Split(txt, -1)
	d := Domain{}
	switch len(v) {
	case 1:
		d.Text = txt
	case 2:
		d.Text = v[0]
		d.Cond = v[1]
	default:
		return d, serrors.New("domain syntax error", "text", txt)
	}
	for _, m := range varInSet.FindAllStringSubmatch(d.Text, -1) {
		d.Bindings = append(d.Bindings, Binding{Var: m[1], Set: m[2]})
	}
	return d, nil
}

// VarDim4 is the four-element index of a c[...] reference. The elements
// may carry arithmetic, e.g. ["i", "j + 1", "k", "j + 1"].
type VarDim4 struct {
	Index [4]string
}

// ParseVarDim4 validates the index discipline: the first three positions
// must start with i, j and k, the fourth with l or j.
func ParseVarDim4(txt string) (VarDim4, error) {
	parts := regexp.MustCompile(` *, *`).Split(txt, -1)
	var v VarDim4
	if len(parts) != 4 {
		return v, serrors.New("index must have 4 elements", "text", txt)
	}
	prefixes := [4]string{"i", "j", "k", ""}
	for n, p := range parts {
		if prefixes[n] != "" && !strings.HasPrefix(p, prefixes[n]) {
			return v, serrors.New("invalid index element", "pos", n+1, "text", txt)
		}
		v.Index[n] = p
	}
	if !strings.HasPrefix(parts[3], "l") && !strings.HasPrefix(parts[3], "j") {
		return v, serrors.New("4th index must be l or j", "text", txt)
	}
	return v, nil
}

// Type returns the shape of the index: "i,j,k,l" or "i,j,k,j". Arithmetic
// in the elements is ignored.
func (v VarDim4) Type() string {
	if strings.HasPrefix(v.Index[3], "l") {
		return "i,j,k,l"
	}
	return "i,j,k,j"
}

// String joins the index elements.
func (v VarDim4) String() string {
	return strings.Join(v.Index[:], ", ")
}

// SetDef holds a "set NAME := {...};" definition. Either Nums (numeric
// tuple) or Domain is set.
type SetDef struct {
	Name   string
	Def    string
	Nums   []int
	Domain *Domain
}

var setStatement = regexp.MustCompile(`set +(` + ident + `) *:= *\{([^{}]+)\};`)
var onlyNums = regexp.MustCompile(`^[0-9, ]+$`)

func parseSetDef(name, body string) (SetDef, error) {
	def := regexp.MustCompile(`[\t\r\n]+`).ReplaceAllString(body, "")
	sd := SetDef{Name: name, Def: def}
	if onlyNums.MatchString(def) {
		for _, n := range regexp.MustCompile(` *, *`).Split(def, -1) {
			i, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil {
				return sd, serrors.Wrap("parsing set numbers", err, "set", name)
			}
			sd.Nums = append(sd.Nums, i)
		}
		return sd, nil
	}
	d, err := ParseDomain(def)
	if err != nil {
		return sd, err
	}
	sd.Domain = &d
	return sd, nil
}

// SumCond is a summation constraint: sum{domain} c[index] op num.
type SumCond struct {
	Domain Domain
	VarC   VarDim4
	Op     string
	Num    int
}

// VarCond is a plain comparison constraint: c[left] op (num | c[right]).
type VarCond struct {
	Org   string
	Left  VarDim4
	Op    string
	Right *VarDim4
	Num   int
}

// StDef holds an "s.t. name{domain} : cond;" constraint. Exactly one of
// Sum and Var is set.
type StDef struct {
	Org    string
	Name   string
	Domain Domain
	Sum    *SumCond
	Var    *VarCond
}

var (
	stStatement      = regexp.MustCompile(`s\.t\. +(` + ident + `) *\{([^{}]+)\} *: *(.+);`)
	sumCondStatement = regexp.MustCompile(`sum *\{([^{}]+)\} *c\[([^\[\]]+)\] *([<>=]+) *([0-9]+)`)
	varCondStatement = regexp.MustCompile(`c\[([^\[\]]+)\] *([<>=]+) *([0-9]+|c\[([^\[\]]+)\])`)
)

func parseStDef(m []string) (StDef, error) {
	st := StDef{Org: m[0], Name: m[1]}
	d, err := ParseDomain(m[2])
	if err != nil {
		return st, err
	}
	st.Domain = d
	body := m[3]
	if strings.Contains(body, "sum") {
		cm := sumCondStatement.FindStringSubmatch(body)
		if cm == nil {
			return st, serrors.New("unsupported sum constraint", "text", body)
		}
		sd, err := ParseDomain(cm[1])
		if err != nil {
			return st, err
		}
		vc, err := ParseVarDim4(cm[2])
		if err != nil {
			return st, err
		}
		num, _ := strconv.Atoi(cm[4])
		st.Sum = &SumCond{Domain: sd, VarC: vc, Op: cm[3], Num: num}
		return st, nil
	}
	cm := varCondStatement.FindStringSubmatch(body)
	if cm == nil {
		return st, serrors.New("unsupported constraint", "text", body)
	}
	left, err := ParseVarDim4(cm[1])
	if err != nil {
		return st, err
	}
	vc := &VarCond{Org: body, Left: left, Op: cm[2]}
	if strings.HasPrefix(cm[3], "c") {
		right, err := ParseVarDim4(cm[4])
		if err != nil {
			return st, err
		}
		vc.Right = &right
	} else {
		vc.Num, _ = strconv.Atoi(cm[3])
	}
	st.Var = vc
	return st, nil
}

// Fragment holds the parsed content of one component model fragment (a
// rewritten ac/<model>.model file or the raw GLPK topology attribute).
type Fragment struct {
	Text    string
	SetDefs map[string]SetDef
	StDefs  []StDef
}

// Parse parses a model fragment.
func Parse(txt string) (*Fragment, error) {
	f := &Fragment{Text: txt, SetDefs: map[string]SetDef{}}
	for _, m := range setStatement.FindAllStringSubmatch(txt, -1) {
		sd, err := parseSetDef(m[1], m[2])
		if err != nil {
			return nil, err
		}
		f.SetDefs[sd.Name] = sd
	}
	for _, m := range stStatement.FindAllStringSubmatch(txt, -1) {
		st, err := parseStDef(m)
		if err != nil {
			return nil, err
		}
		f.StDefs = append(f.StDefs, st)
	}
	return f, nil
}

// ConstraintDomain returns the domain to expand a constraint over. A bare
// AvailableConnection domain is replaced with its expanded binding form.
func (f *Fragment) ConstraintDomain(st StDef) Domain {
	if st.Domain.Text == "AvailableConnection" {
		d, _ := ParseDomain(
			"i in InputPort, j in Channels, k in OutputPort, l in Channels : j = l")
		return d
	}
	return st.Domain
}
