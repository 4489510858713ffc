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

package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "db"))
	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "db"))
	now := time.Now().UTC().Truncate(time.Second)
	records := []Record{{
		GlobalID: "urn:uuid:0001",
		Request: RequestRecord{
			Src:      "A_1",
			Dst:      "C_2",
			Channels: []string{"WDM4_1"},
		},
		Solution: []EntryRecord{
			{Src: "A_1@WDM4_1", Dst: "A_2@WDM4_1", X: true, C: true, Go: true},
		},
		CreationTime: now,
	}}
	require.NoError(t, s.Save(records))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, records[0], loaded[0])
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s := New(dir)
	require.NoError(t, s.Save([]Record{{GlobalID: "a"}}))
	require.NoError(t, s.Save([]Record{{GlobalID: "b"}}))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b", loaded[0].GlobalID)

	// No stray temp files survive.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveNilIsEmptyArray(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, s.Save(nil))
	raw, err := os.ReadFile(s.File())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
