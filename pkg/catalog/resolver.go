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

// Package catalog implements MetaResolver (spec §4.1): fetching and
// caching a table's field catalog, with an explicit once-per-key gate so
// concurrent callers never double-fetch (spec §9's re-architecture note).
package catalog

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/sapxtract/xtract/internal/log"
	"github.com/sapxtract/xtract/pkg/erp"
	"github.com/sapxtract/xtract/pkg/model"
	"github.com/sapxtract/xtract/pkg/xerrors"
)

// includeRow is the synthetic data-dictionary row the ERP appends to
// flag included substructures; MetaResolver drops it (spec §4.1).
const includeRow = ".INCLUDE"

type gateState int

const (
	gateMissing gateState = iota
	gatePending
	gateSuccess
)

// entry is the once-per-(table,node) gate: concurrent callers observing
// gatePending wait on cond until gateSuccess or a terminal failure, at
// which point the gate resets to gateMissing so the next caller retries.
type entry struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    gateState
	catalog  *model.FieldCatalog
	err      error
}

func newEntry() *entry {
	e := &entry{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Resolver is the single MetaResolver shared by every worker in a run. It
// keys its once-per-key gates by (node address, table name) so that the
// same table resolved against two different nodes is fetched twice, but
// never more than once per node (spec §4.1, §5, P6).
type Resolver struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewResolver constructs an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{entries: make(map[string]*entry)}
}

func (r *Resolver) entryFor(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = newEntry()
		r.entries[key] = e
	}
	return e
}

// Resolve fetches the field catalog for table over conn, keyed by nodeKey
// for the once-per-(table,node)
// gate. If the caller's projection is empty, the catalog's full field list
// (dictionary order) is used; otherwise the caller's order is preserved,
// since that is the order the stitched rows will be reassembled in (spec
// §4.1).
func (r *Resolver) Resolve(
	ctx context.Context, nodeKey string, conn erp.Conn, table string, projection []string,
) ([]string, *model.FieldCatalog, error) {
	key := nodeKey + "/" + table
	e := r.entryFor(key)

	e.mu.Lock()
	for e.state == gatePending {
		e.cond.Wait()
	}
	if e.state == gateSuccess {
		cat, fields := e.catalog, projectionOrDefault(projection, e.catalog)
		e.mu.Unlock()
		return fields, cat, nil
	}
	e.state = gatePending
	e.mu.Unlock()

	cat, err := fetch(ctx, conn, table)

	e.mu.Lock()
	if err != nil {
		e.state = gateMissing
		e.err = err
		e.mu.Unlock()
		e.cond.Broadcast()
		return nil, nil, errors.Wrapf(xerrors.ErrMetaFailure, "resolving metadata for %s: %v", table, err)
	}
	e.state = gateSuccess
	e.catalog = cat
	e.mu.Unlock()
	e.cond.Broadcast()

	log.Infof(ctx, "resolved %d fields for table %s", len(cat.Fields), table)
	return projectionOrDefault(projection, cat), cat, nil
}

func fetch(ctx context.Context, conn erp.Conn, table string) (*model.FieldCatalog, error) {
	rows, err := conn.ReadMeta(ctx, table)
	if err != nil {
		return nil, err
	}
	cat := &model.FieldCatalog{Table: table}
	for _, row := range rows {
		if row.Name == includeRow {
			continue
		}
		cat.Fields = append(cat.Fields, model.FieldMeta{
			Name:     row.Name,
			Leng:     row.Leng,
			Key:      row.Key,
			Position: row.Position,
			RollName: row.RollName,
			IntType:  row.IntType,
		})
	}
	return cat, nil
}

func projectionOrDefault(projection []string, cat *model.FieldCatalog) []string {
	if len(projection) > 0 {
		out := make([]string, len(projection))
		copy(out, projection)
		return out
	}
	out := make([]string, len(cat.Fields))
	for i, f := range cat.Fields {
		out[i] = f.Name
	}
	return out
}
