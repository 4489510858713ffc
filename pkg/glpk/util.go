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

package glpk

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// RET is the line separator used in all generated MathProg files.
const RET = "\n"

var nonWord = regexp.MustCompile(`[^\w]`)

// Escape replaces every character that is not alphanumeric or underscore
// with an underscore, making names usable as MathProg identifiers.
func Escape(txt string) string {
	return nonWord.ReplaceAllString(txt, "_")
}

var numRun = regexp.MustCompile(`(\d+)`)

// naturalKey splits text into numeric and non-numeric runs so that "N206"
// compares as ["N", 206].
type naturalKey []any

func makeNaturalKey(text string) naturalKey {
	parts := numRun.Split(text, -1)
	nums := numRun.FindAllString(text, -1)
	key := make(naturalKey, 0, len(parts)+len(nums))
	for i, p := range parts {
		key = append(key, p)
		if i < len(nums) {
			n, _ := strconv.Atoi(nums[i])
			key = append(key, n)
		}
	}
	return key
}

// NaturalLess compares two strings with embedded numbers compared by
// value, so that N2 sorts before N10.
func NaturalLess(a, b string) bool {
	ka, kb := makeNaturalKey(a), makeNaturalKey(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		switch x := ka[i].(type) {
		case string:
			y, ok := kb[i].(string)
			if !ok {
				// Numeric runs sort before the longer string run.
				return false
			}
			if x != y {
				return x < y
			}
		case int:
			y, ok := kb[i].(int)
			if !ok {
				return true
			}
			if x != y {
				return x < y
			}
		}
	}
	return len(ka) < len(kb)
}

// SortNatural sorts names in natural order, in place.
func SortNatural(names []string) {
	sort.Slice(names, func(i, j int) bool { return NaturalLess(names[i], names[j]) })
}

var (
	reAssign    = regexp.MustCompile(` *:= *`)
	reComma     = regexp.MustCompile(`, *`)
	reOps       = regexp.MustCompile(` *([<>&:=+\-*/]+) *`)
	reOpenSpc   = regexp.MustCompile(`\( +`)
	reCloseSpc  = regexp.MustCompile(` +\)`)
	reSemi      = regexp.MustCompile(`; *`)
	reBraceCol  = regexp.MustCompile(`\} *: *`)
	reBracketSp = regexp.MustCompile(` +\[`)
)

// Format normalizes spacing in MathProg text and inserts a newline after
// each statement.
func Format(glpk string) string {
	glpk = reAssign.ReplaceAllString(glpk, " := ")
	glpk = reComma.ReplaceAllString(glpk, ", ")
	glpk = reOps.ReplaceAllString(glpk, " $1 ")
	glpk = reOpenSpc.ReplaceAllString(glpk, "(")
	glpk = reCloseSpc.ReplaceAllString(glpk, ")")
	glpk = reSemi.ReplaceAllString(glpk, ";"+RET)
	glpk = reBraceCol.ReplaceAllString(glpk, "} : ")
	glpk = reBracketSp.ReplaceAllString(glpk, "[")
	return glpk
}

// TupleKey builds the unique key of an (in-port, in-channel, out-port,
// out-channel) tuple.
func TupleKey(inPort, inCh, outPort, outCh string) string {
	return inPort + "@" + inCh + "#" + outPort + "@" + outCh
}

// TupleKeyIJK builds the key of an (in-port, in-channel, out-port) triple
// with the out-channel left open.
func TupleKeyIJK(inPort, inCh, outPort string) string {
	return inPort + "@" + inCh + "#" + outPort + "@undef"
}

var numRange = regexp.MustCompile(`\{ *([0-9]+) *\.\. *([0-9]+) *(by *([0-9]+) *)?\}`)

// ExpandNumSets rewrites "{1..10}" to "{1,2,...,10}" and "{1..9 by 2}" to
// "{1,3,5,7,9}".
func ExpandNumSets(glpk string) string {
	return numRange.ReplaceAllStringFunc(glpk, func(m string) string {
		g := numRange.FindStringSubmatch(m)
		start, _ := strconv.Atoi(g[1])
		end, _ := strconv.Atoi(g[2])
		step := 1
		if g[4] != "" {
			step, _ = strconv.Atoi(g[4])
		}
		var b strings.Builder
		b.WriteString("{")
		for i := start; i <= end; i += step {
			if i != start {
				b.WriteString(",")
			}
			b.WriteString(strconv.Itoa(i))
		}
		b.WriteString("}")
		return b.String()
	})
}
