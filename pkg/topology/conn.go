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
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/photonpath/nrm/pkg/private/serrors"
)

// connKey identifies one internal transition of a component.
func connKey(inPin int, inCh string, outPin int, outCh string) string {
	return fmt.Sprintf("%d@%s-%d@%s", inPin, inCh, outPin, outCh)
}

// AvailableConnection holds the compiled internal transitions of one
// component model, loaded from an ac/<model>.conn.txt file.
type AvailableConnection struct {
	conns   map[string]bool
	in2outs map[int]map[int]bool
}

// HasConnection reports whether any channel may be switched from inPin to
// outPin.
func (ac *AvailableConnection) HasConnection(inPin, outPin int) bool {
	return ac.in2outs[inPin][outPin]
}

// HasConnectionInConn reports whether the exact
// (pin, channel, pin, channel) transition is available.
func (ac *AvailableConnection) HasConnectionInConn(
	inPin int, inCh *Channel, outPin int, outCh *Channel) bool {

	return ac.conns[connKey(inPin, inCh.FullNo, outPin, outCh.FullNo)]
}

var connLine = regexp.MustCompile(`\(([0-9]+),([^,]+),([0-9]+),([^,)]+)\)`)

// loadConnFile reads an ac/<model>.conn.txt file. Lines not matching the
// tuple format are skipped; tuples naming unknown channels or differing
// in/out channels are an error.
func loadConnFile(file string, chByFullNo func(string) *Channel) (*AvailableConnection, error) {
	fd, err := os.Open(file)
	if err != nil {
		return nil, serrors.Wrap("reading conn file", err, "file", file)
	}
	defer fd.Close()

	ac := &AvailableConnection{
		conns:   map[string]bool{},
		in2outs: map[int]map[int]bool{},
	}
	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		m := connLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		inCh := chByFullNo(m[2])
		outCh := chByFullNo(m[4])
		if inCh == nil || outCh == nil || inCh.FullNo != outCh.FullNo {
			return nil, serrors.New("invalid channel in conn file",
				"file", file, "line", scanner.Text())
		}
		inPin, _ := strconv.Atoi(m[1])
		outPin, _ := strconv.Atoi(m[3])
		ac.conns[connKey(inPin, inCh.FullNo, outPin, outCh.FullNo)] = true
		outs := ac.in2outs[inPin]
		if outs == nil {
			outs = map[int]bool{}
			ac.in2outs[inPin] = outs
		}
		outs[outPin] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, serrors.Wrap("reading conn file", err, "file", file)
	}
	return ac, nil
}
