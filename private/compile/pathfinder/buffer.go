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
	"fmt"
	"strings"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/topology"
)

// buffer accumulates MathProg data-file text in the fixed emission shape:
// long lists are wrapped ten names per line with a count comment.
type buffer struct {
	sb strings.Builder
}

func (b *buffer) printSetDef(name string) {
	fmt.Fprintf(&b.sb, "set %s :=", name)
}

func (b *buffer) printSetDefIdx(name, idx string) {
	fmt.Fprintf(&b.sb, "set %s[%s] :=", name, idx)
}

func (b *buffer) printParamDef(name string, defValue any) {
	fmt.Fprintf(&b.sb, "param %s default %v :=%s", name, defValue, glpk.RET)
}

func (b *buffer) printParam(name string) {
	fmt.Fprintf(&b.sb, "param %s := ", name)
}

func (b *buffer) printAny(val string) {
	b.sb.WriteString(val)
}

func (b *buffer) endStatement() {
	b.sb.WriteString(";" + glpk.RET)
}

// printList writes the values, sorted naturally unless sorted is false,
// wrapping every ten entries when the list is long.
func (b *buffer) printList(values []string, sorted bool) {
	if len(values) == 0 {
		return
	}
	if sorted {
		values = append([]string(nil), values...)
		glpk.SortNatural(values)
	}
	long := len(values) > 10
	if long {
		fmt.Fprintf(&b.sb, "\t# num=%d", len(values))
	}
	for n, name := range values {
		if long && n%10 == 0 {
			b.sb.WriteString(glpk.RET + "\t")
		} else {
			b.sb.WriteString(" ")
		}
		b.sb.WriteString(name)
	}
}

func (b *buffer) printPorts(ports []*topology.Port, sorted bool) {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.FullName
	}
	b.printList(names, sorted)
}

func (b *buffer) String() string {
	return b.sb.String()
}

func intString(n int) string {
	return fmt.Sprintf("%d", n)
}

// portIdxEntry pairs an out-port with a variable index.
type portIdxEntry struct {
	outPort string
	idx     int
}

// portIdxTable groups (out-port, idx) entries by in-port, preserving
// insertion order, for the grouped vt/pair emission formats.
type portIdxTable struct {
	order   []string
	entries map[string][]portIdxEntry
	dedup   map[string]map[portIdxEntry]bool
}

func newPortIdxTable() *portIdxTable {
	return &portIdxTable{
		entries: map[string][]portIdxEntry{},
		dedup:   map[string]map[portIdxEntry]bool{},
	}
}

func (t *portIdxTable) add(inPort, outPort string, idx int) {
	if _, ok := t.entries[inPort]; !ok {
		t.order = append(t.order, inPort)
	}
	t.entries[inPort] = append(t.entries[inPort], portIdxEntry{outPort, idx})
}

// addSet behaves like add but drops duplicate (out-port, idx) entries.
func (t *portIdxTable) addSet(inPort, outPort string, idx int) {
	e := portIdxEntry{outPort, idx}
	seen := t.dedup[inPort]
	if seen == nil {
		seen = map[portIdxEntry]bool{}
		t.dedup[inPort] = seen
	}
	if seen[e] {
		return
	}
	seen[e] = true
	t.add(inPort, outPort, idx)
}

func (t *portIdxTable) empty() bool {
	return len(t.entries) == 0
}

// printPerIJL writes entries in the grouped "[INPORT,INCH,*,OUTCH] OUTPORT
// IDX ..." format used by the vt parameter.
func (t *portIdxTable) printPerIJL(b *buffer, inCh, outCh string) {
	for _, inPort := range t.order {
		fmt.Fprintf(&b.sb, "[%s,%s,*,%s]", inPort, inCh, outCh)
		var values []string
		for _, e := range t.entries[inPort] {
			values = append(values, e.outPort, fmt.Sprintf("%d", e.idx))
		}
		b.printList(values, false)
		b.printAny(glpk.RET)
	}
}

// printPerIJKL writes entries in the one-per-line
// "[INPORT,INCH,OUTPORT,OUTCH] IDX" format used by the pair parameter.
func (t *portIdxTable) printPerIJKL(b *buffer, inCh, outCh string) {
	for _, inPort := range t.order {
		for _, e := range t.entries[inPort] {
			fmt.Fprintf(&b.sb, "[%s,%s,%s,%s] %d%s",
				inPort, inCh, e.outPort, outCh, e.idx, glpk.RET)
		}
	}
}
