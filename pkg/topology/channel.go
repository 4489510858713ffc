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
	"fmt"
	"strings"

	"github.com/photonpath/nrm/pkg/glpk"
)

// AnyChannel is the supportChannel wildcard matching every channel table.
const AnyChannel = "ANY"

// WDMPrefix marks channel tables that belong to the WDM group.
const WDMPrefix = "WDM"

// ChannelTable holds one "channelTable" element. Only optical tables are
// retained.
type ChannelTable struct {
	ID       string
	Channels []*Channel
}

// IsWDM reports whether the table belongs to the WDM group.
func (t *ChannelTable) IsWDM() bool {
	return strings.HasPrefix(t.ID, WDMPrefix)
}

// Channel holds one "channel" element of a table.
type Channel struct {
	No      int
	TableID string
	// FullNo is the unique channel name "{tableId}_{no}".
	FullNo string
}

func newChannelTable(id string, nos []int) *ChannelTable {
	t := &ChannelTable{ID: glpk.Escape(id)}
	for _, no := range nos {
		t.Channels = append(t.Channels, &Channel{
			No:      no,
			TableID: t.ID,
			FullNo:  fmt.Sprintf("%s_%d", t.ID, no),
		})
	}
	return t
}
