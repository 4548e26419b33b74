// Copyright 2024 The Xtract Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model holds the data types shared by every component of the
// extraction pipeline: the table descriptor, field catalog, column chunks,
// and work units of spec §3.
package model

import (
	"sync"
)

// TableRequest is the caller-supplied description of one table to extract.
// It is immutable once handed to the Dispatcher; the Table built from it
// carries the mutable planning state.
type TableRequest struct {
	Name        string
	Projection  []string // nil/empty means "all fields, in dictionary order"
	Where       string
	R0          int64
	RMax        int64
	ChunkSize   int64 // rows per unit ("n")
	Destination string
	Keep        bool
	DTypes      map[string]string // optional field -> expected dtype ("DECIMAL", ...)
	Tag         string
}

// Table is the mutable planning and bookkeeping state for one table across
// the lifetime of a run. It is the only place concurrent workers share
// state (besides the queue), so all mutation happens under mu.
type Table struct {
	Req *TableRequest

	cond *sync.Cond // guards the gate* fields below, via mu.Mutex

	mu struct {
		sync.Mutex
		riNext    int64
		count     int64
		complete  bool
		failed    bool
		failErr   error
		log       []*Unit // append-only, unit-enqueue order
		chunks    []ColumnChunk
		catalog   *FieldCatalog
		ready     bool // catalog+chunks resolved

		gateState int // 0 missing, 1 pending, 2 done
		gateErr   error
	}
}

// NewTable constructs a Table with planning state initialized at r0.
func NewTable(req *TableRequest) *Table {
	t := &Table{Req: req}
	t.mu.riNext = req.R0
	t.cond = sync.NewCond(&t.mu.Mutex)
	return t
}

// EnsureReady runs the table-level prerequisite gate (spec §4.6: "ensure
// metadata+column chunks have run for the unit's table", spec §9's
// once-per-key re-architecture note). The first caller to observe the gate
// missing runs resolve; concurrent callers observing it pending block on
// the table's condition variable until it is done, so a burst of workers
// all landing on a fresh table's first unit resolves it exactly once.
func (t *Table) EnsureReady(resolve func() (*FieldCatalog, []ColumnChunk, error)) error {
	t.mu.Lock()
	for t.mu.gateState == 1 {
		t.cond.Wait()
	}
	if t.mu.gateState == 2 {
		err := t.mu.gateErr
		t.mu.Unlock()
		return err
	}
	t.mu.gateState = 1
	t.mu.Unlock()

	cat, chunks, err := resolve()

	t.mu.Lock()
	t.mu.gateState = 2
	t.mu.gateErr = err
	if err == nil {
		t.mu.catalog = cat
		t.mu.chunks = chunks
		t.mu.ready = true
	}
	t.mu.Unlock()
	t.cond.Broadcast()
	return err
}

// Count returns the cumulative successful row count (table.count).
func (t *Table) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mu.count
}

// Complete reports whether the table has been marked complete (I4).
func (t *Table) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mu.complete
}

// Failed reports whether MetaFailure/FieldTooWide pre-empted planning, and
// the error that caused it.
func (t *Table) Failed() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mu.failed, t.mu.failErr
}

// MarkFailed transitions the table to failed, pre-empting further unit
// planning (MetaFailure, FieldTooWide). Idempotent.
func (t *Table) MarkFailed(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.mu.failed {
		t.mu.failed = true
		t.mu.failErr = err
		t.mu.complete = true
	}
}

// Ready reports whether EnsureReady has resolved metadata yet, and the
// resolved chunks.
func (t *Table) Ready() (bool, []ColumnChunk, *FieldCatalog) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mu.ready, t.mu.chunks, t.mu.catalog
}

// NextWindow reserves the next [ri, ri+n) row-range window for this table,
// advancing riNext (I1). Returns ok=false once riNext >= rmax or the table
// is already complete/failed.
func (t *Table) NextWindow() (ri int64, n int64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mu.complete || t.mu.riNext >= t.Req.RMax {
		return 0, 0, false
	}
	ri = t.mu.riNext
	n = t.Req.ChunkSize
	if ri+n > t.Req.RMax {
		n = t.Req.RMax - ri
	}
	t.mu.riNext += n
	return ri, n, true
}

// Record applies a terminated unit's outcome to the table's counters and
// unit log under a single critical section (I3, I4, P4, P5). complete
// transitions false->true at most once (P5), the moment any unit returns
// fewer rows than requested or cumulative count meets/exceeds rmax.
func (t *Table) Record(u *Unit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mu.log = append(t.mu.log, u)
	if u.Status != StatusOk {
		return
	}
	t.mu.count += u.Count
	if u.Count < u.N || t.mu.count >= t.Req.RMax {
		t.mu.complete = true
	}
}

// Log returns a snapshot of the terminated unit log in enqueue order.
func (t *Table) Log() []*Unit {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Unit, len(t.mu.log))
	copy(out, t.mu.log)
	return out
}
