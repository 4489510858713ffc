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

package nrm

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/storage"
)

// ReservationRequest is the canonical request a reservation was created
// from.
type ReservationRequest struct {
	Src      string
	Dst      string
	Ero      []string
	Channels []string
	Bidi     bool
	Wdmsa    bool
}

// Reservation is one committed lightpath. Reservations are never
// mutated; they are created on a successful reserve and destroyed by
// terminate.
type Reservation struct {
	GlobalID     string
	ShortID      int
	Request      ReservationRequest
	Route        *Route
	CreationTime time.Time
	RouteText    string

	writtenDB bool
}

// Dump appends the reservation header to buf.
func (rsv *Reservation) Dump(buf *[]string) {
	*buf = append(*buf, fmt.Sprintf("%-33s%s", "globalId", rsv.GlobalID))
	if len(rsv.Route.Entries) == 0 {
		return
	}
	path, _ := rsv.Route.MakePathList(PortChannel{
		Port: rsv.Route.Entries[0].Src.Port}, true)
	if len(path) >= 2 {
		*buf = append(*buf, "src")
		dumpPortChannel(path[0], buf)
		*buf = append(*buf, "dst")
		dumpPortChannel(path[len(path)-1], buf)
	}
}

func dumpPortChannel(pc PortChannel, buf *[]string) {
	*buf = append(*buf,
		fmt.Sprintf("%-33s%s", " name", pc.Port.Name),
		fmt.Sprintf("%-33s%s", " name", pc.Port.FullName),
		fmt.Sprintf("%-33s%s", " chNo", pc.Ch.FullNo))
}

// GlobalIDPrefix prefixes every reservation global id.
const GlobalIDPrefix = "urn:uuid:"

// NewGlobalID generates a fresh reservation global id.
func NewGlobalID() string {
	return GlobalIDPrefix + uuid.NewString()
}

// Registry owns the live reservations. It is guarded by a single
// readers-writer lock: mutating operations take the write lock,
// pathfind and query proceed concurrently under the read lock.
type Registry struct {
	mu    sync.RWMutex
	topo  *topology.Topology
	store *storage.Store

	byGlobal  map[string]*Reservation
	order     []string
	short2gid map[string]string
	nextShort int
}

// NewRegistry creates the registry. With loadDB set the durable store is
// read and short ids are reassigned in record order; a stored solution
// tuple that no longer exists in the topology is a consistency error.
func NewRegistry(topo *topology.Topology, store *storage.Store, loadDB bool) (
	*Registry, error) {

	r := &Registry{
		topo:      topo,
		store:     store,
		byGlobal:  map[string]*Reservation{},
		short2gid: map[string]string{},
		nextShort: 1,
	}
	if !loadDB {
		return r, nil
	}
	records, err := store.Load()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		rsv, err := r.fromRecord(rec)
		if err != nil {
			return nil, serrors.Wrap("loading reservation", err,
				"globalId", rec.GlobalID)
		}
		r.add(rsv)
		rsv.writtenDB = true
		log.Info("loaded reservation", "id", rsv.ShortID, "globalId", rsv.GlobalID)
	}
	return r, nil
}

// Lock takes the exclusive registry lock for a mutating operation.
func (r *Registry) Lock() { r.mu.Lock() }

// Unlock releases the exclusive lock.
func (r *Registry) Unlock() { r.mu.Unlock() }

// RLock takes the shared registry lock for a read-only operation.
func (r *Registry) RLock() { r.mu.RLock() }

// RUnlock releases the shared lock.
func (r *Registry) RUnlock() { r.mu.RUnlock() }

// Add stores a reservation and assigns the next short id. The caller
// holds the write lock.
func (r *Registry) Add(rsv *Reservation) int {
	return r.add(rsv)
}

func (r *Registry) add(rsv *Reservation) int {
	rsv.ShortID = r.nextShort
	r.nextShort++
	r.byGlobal[rsv.GlobalID] = rsv
	r.order = append(r.order, rsv.GlobalID)
	r.short2gid[strconv.Itoa(rsv.ShortID)] = rsv.GlobalID
	return rsv.ShortID
}

// ResolveID maps a short id or global id onto the global id, or returns
// the empty string.
func (r *Registry) ResolveID(id string) string {
	if gid, ok := r.short2gid[id]; ok {
		return gid
	}
	if _, ok := r.byGlobal[id]; ok {
		return id
	}
	return ""
}

// Get returns the live reservation, or with db set, the stored one when
// no live one exists.
func (r *Registry) Get(globalID string, db bool) (*Reservation, error) {
	if rsv, ok := r.byGlobal[globalID]; ok {
		return rsv, nil
	}
	if !db {
		return nil, nil
	}
	records, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.GlobalID == globalID {
			return r.fromRecord(rec)
		}
	}
	return nil, nil
}

// GetAll returns the live reservations in commit order; with db set the
// stored records come first, followed by the not-yet-written live ones.
func (r *Registry) GetAll(db bool) ([]*Reservation, error) {
	var live []*Reservation
	for _, gid := range r.order {
		live = append(live, r.byGlobal[gid])
	}
	if !db {
		return live, nil
	}
	records, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	var all []*Reservation
	for _, rec := range records {
		rsv, err := r.fromRecord(rec)
		if err != nil {
			return nil, err
		}
		all = append(all, rsv)
	}
	for _, rsv := range live {
		if !rsv.writtenDB {
			all = append(all, rsv)
		}
	}
	return all, nil
}

// Delete removes a live reservation. The caller holds the write lock.
func (r *Registry) Delete(globalID string) bool {
	rsv, ok := r.byGlobal[globalID]
	if !ok {
		return false
	}
	delete(r.byGlobal, globalID)
	delete(r.short2gid, strconv.Itoa(rsv.ShortID))
	for i, gid := range r.order {
		if gid == globalID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// DeleteAll removes every live reservation and resets the short id
// counter.
func (r *Registry) DeleteAll() {
	r.byGlobal = map[string]*Reservation{}
	r.order = nil
	r.short2gid = map[string]string{}
	r.nextShort = 1
}

// DeleteDB removes a stored reservation from the durable file.
func (r *Registry) DeleteDB(globalID string) (bool, error) {
	records, err := r.store.Load()
	if err != nil {
		return false, err
	}
	out := records[:0]
	found := false
	for _, rec := range records {
		if rec.GlobalID == globalID {
			found = true
			continue
		}
		out = append(out, rec)
	}
	if !found {
		return false, nil
	}
	return true, r.store.Save(out)
}

// DeleteDBAll empties the durable file.
func (r *Registry) DeleteDBAll() error {
	return r.store.Save(nil)
}

// WriteDB persists the not-yet-written live reservations and returns the
// client-visible summary. In-memory state is unchanged on failure.
func (r *Registry) WriteDB() (string, error) {
	records, err := r.store.Load()
	if err != nil {
		return "", err
	}
	existing := map[string]bool{}
	for _, rec := range records {
		existing[rec.GlobalID] = true
	}
	var pending []*Reservation
	for _, gid := range r.order {
		rsv := r.byGlobal[gid]
		if rsv.writtenDB || existing[gid] {
			continue
		}
		records = append(records, r.toRecord(rsv))
		pending = append(pending, rsv)
	}
	if err := r.store.Save(records); err != nil {
		return "", err
	}
	for _, rsv := range pending {
		rsv.writtenDB = true
		log.Info("add DB", "globalId", rsv.GlobalID)
	}
	return fmt.Sprintf("%d entries written to the DB", len(pending)), nil
}

// UsedXEntries returns the x entries of all live reservations: the
// in-use pathfinding projection.
func (r *Registry) UsedXEntries() *Route {
	route := &Route{}
	for _, gid := range r.order {
		for _, e := range r.byGlobal[gid].Route.Entries {
			if e.X {
				route.Entries = append(route.Entries, e)
			}
		}
	}
	return route
}

// UsedCEntries returns all entries of all live reservations: the in-use
// activation projection.
func (r *Registry) UsedCEntries() *Route {
	route := &Route{}
	for _, gid := range r.order {
		route.Entries = append(route.Entries,
			r.byGlobal[gid].Route.Entries...)
	}
	return route
}

func (r *Registry) toRecord(rsv *Reservation) storage.Record {
	rec := storage.Record{
		GlobalID: rsv.GlobalID,
		Request: storage.RequestRecord{
			Src:      rsv.Request.Src,
			Dst:      rsv.Request.Dst,
			Ero:      rsv.Request.Ero,
			Channels: rsv.Request.Channels,
			Bidi:     rsv.Request.Bidi,
			Wdmsa:    rsv.Request.Wdmsa,
		},
		CreationTime: rsv.CreationTime,
		Bidi:         rsv.Request.Bidi,
		Wdmsa:        rsv.Request.Wdmsa,
	}
	for _, e := range rsv.Route.Entries {
		rec.Solution = append(rec.Solution, storage.EntryRecord{
			Src: e.Src.Key(), Dst: e.Dst.Key(), X: e.X, C: e.C, Go: e.Go,
		})
	}
	return rec
}

func (r *Registry) portChannelFromKey(key string) (PortChannel, error) {
	parts := strings.Split(key, "@")
	if len(parts) != 2 {
		return PortChannel{}, serrors.New("invalid PortChannel data", "key", key)
	}
	p := r.topo.PortByName(parts[0])
	ch := r.topo.ChannelByFullNo(parts[1])
	if p == nil || ch == nil {
		return PortChannel{}, serrors.New("invalid PortChannel data", "key", key)
	}
	return PortChannel{Port: p, Ch: ch}, nil
}

func (r *Registry) fromRecord(rec storage.Record) (*Reservation, error) {
	route := &Route{}
	for _, er := range rec.Solution {
		src, err := r.portChannelFromKey(er.Src)
		if err != nil {
			return nil, err
		}
		dst, err := r.portChannelFromKey(er.Dst)
		if err != nil {
			return nil, err
		}
		entry := &RouteEntry{Src: src, Dst: dst, X: er.X, C: er.C, Go: er.Go}
		if !er.C {
			return nil, serrors.New("invalid stored entry, c is false",
				"entry", entry.dump())
		}
		if er.X && !r.topo.HasConnection(src.Port, src.Ch, dst.Port, dst.Ch) {
			return nil, serrors.New("stored route no longer exists in the topology",
				"entry", entry.dump())
		}
		route.Entries = append(route.Entries, entry)
	}
	rsv := &Reservation{
		GlobalID: rec.GlobalID,
		Request: ReservationRequest{
			Src:      rec.Request.Src,
			Dst:      rec.Request.Dst,
			Ero:      rec.Request.Ero,
			Channels: rec.Request.Channels,
			Bidi:     rec.Bidi,
			Wdmsa:    rec.Wdmsa,
		},
		Route:        route,
		CreationTime: rec.CreationTime,
	}
	if len(route.Entries) > 0 {
		text, err := route.DumpRoute(r.topo, PortChannel{
			Port: r.topo.PortByName(strings.Split(rec.Request.Src, "@")[0])})
		if err == nil {
			rsv.RouteText = text
		}
	}
	return rsv, nil
}
