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

// Package storage persists the reservation registry as a single JSON
// array in <db_dir>/reserved.json. Writes replace the file atomically; a
// missing file is an empty registry.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/photonpath/nrm/pkg/private/serrors"
)

// FileName is the registry file name under the db directory.
const FileName = "reserved.json"

// EntryRecord is one solution hop of a stored reservation. Ports and
// channels are referenced as "{port}@{channel}" keys.
type EntryRecord struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
	X   bool   `json:"x"`
	C   bool   `json:"c"`
	Go  bool   `json:"is_go"`
}

// RequestRecord is the canonical request of a stored reservation.
type RequestRecord struct {
	Src      string   `json:"src"`
	Dst      string   `json:"dst"`
	Ero      []string `json:"ero,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Bidi     bool     `json:"bidi"`
	Wdmsa    bool     `json:"wdmsa"`
}

// Record is one durable reservation.
type Record struct {
	GlobalID     string        `json:"globalId"`
	Request      RequestRecord `json:"request"`
	Solution     []EntryRecord `json:"solution"`
	CreationTime time.Time     `json:"creationTime"`
	Bidi         bool          `json:"bidi"`
	Wdmsa        bool          `json:"wdmsa"`
}

// Store reads and writes the registry file.
type Store struct {
	dir string
}

// New creates a store rooted at the given db directory.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// File returns the registry file path.
func (s *Store) File() string {
	return filepath.Join(s.dir, FileName)
}

// Load reads all records. A missing file yields an empty slice.
func (s *Store) Load() ([]Record, error) {
	raw, err := os.ReadFile(s.File())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, serrors.Wrap("reading reservation db", err, "file", s.File())
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, serrors.Wrap("parsing reservation db", err, "file", s.File())
	}
	return records, nil
}

// Save atomically replaces the registry file with the given records.
func (s *Store) Save(records []Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return serrors.Wrap("creating db dir", err, "dir", s.dir)
	}
	if records == nil {
		records = []Record{}
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return serrors.Wrap("encoding reservation db", err)
	}
	tmp, err := os.CreateTemp(s.dir, FileName+".*")
	if err != nil {
		return serrors.Wrap("creating temp db file", err, "dir", s.dir)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return serrors.Wrap("writing temp db file", err, "file", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return serrors.Wrap("closing temp db file", err, "file", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), s.File()); err != nil {
		return serrors.Wrap("replacing reservation db", err, "file", s.File())
	}
	return nil
}
