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

package topology

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/photonpath/nrm/pkg/private/serrors"
)

// Selector restricts a cost entry to ports or channels. It accepts "*",
// a single number, or a range list such as "1-4,7,9-12".
type Selector string

// UnmarshalJSON accepts both string and numeric JSON values.
func (s *Selector) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = Selector(t)
	case float64:
		*s = Selector(strconv.Itoa(int(t)))
	default:
		return serrors.New("invalid selector", "value", string(b))
	}
	return nil
}

// IsWildcard reports whether the selector matches everything.
func (s Selector) IsWildcard() bool { return s == "*" }

// Nums expands the selector into the set of selected numbers.
func (s Selector) Nums() map[int]bool {
	nums := map[int]bool{}
	for _, part := range strings.Split(string(s), ",") {
		bounds := strings.SplitN(part, "-", 2)
		switch len(bounds) {
		case 1:
			if n, err := strconv.Atoi(strings.TrimSpace(bounds[0])); err == nil {
				nums[n] = true
			}
		case 2:
			lo, err1 := strconv.Atoi(strings.TrimSpace(bounds[0]))
			hi, err2 := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err1 == nil && err2 == nil {
				for n := lo; n <= hi; n++ {
					nums[n] = true
				}
			}
		}
	}
	return nums
}

// MatchChannel reports whether the selector covers channel number no.
func (s Selector) MatchChannel(no int) bool {
	if s.IsWildcard() {
		return true
	}
	return s.Nums()[no]
}

// CostEntry is one element of a component's Cost attribute: a 4-tuple
// selector with an optional cost value.
type CostEntry struct {
	I    Selector `json:"i"`
	J    Selector `json:"j"`
	K    Selector `json:"k"`
	L    Selector `json:"l"`
	Cost float64  `json:"cost"`
}

// CostSpec is the JSON value of a component's Cost attribute.
type CostSpec struct {
	Cost         []CostEntry `json:"Cost"`
	OutOfService []CostEntry `json:"OutOfService"`
}

func parseCostSpec(comp, txt string) (*CostSpec, error) {
	// The topology generator leaves entity-escaped quotes in the field.
	txt = strings.ReplaceAll(txt, "&quot;", `"`)
	var spec CostSpec
	if err := json.Unmarshal([]byte(txt), &spec); err != nil {
		return nil, serrors.Wrap("loading Cost", err, "comp", comp)
	}
	return &spec, nil
}
