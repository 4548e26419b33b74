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

// Package aggregate implements the Aggregator (spec §4.7): reassembling a
// completed table's terminated unit payloads into a single in-memory
// dataset.
package aggregate

import (
	"github.com/cockroachdb/errors"

	"github.com/sapxtract/xtract/pkg/model"
)

// Dataset is the reassembled result of assembling one table's units.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// Assemble concatenates the payloads of table's terminated units in
// unit-enqueue order, resets the row index, and (when dropDuplicates is
// true) drops duplicate rows comparing every column except the trailing
// TIMESTAMP one (spec §4.7). It requires the table be complete and keep=true
// was set on its request, the only configuration under which units carry a
// Payload at all.
func Assemble(table *model.Table, dropDuplicates bool) (*Dataset, error) {
	if !table.Complete() {
		return nil, errors.Newf("cannot assemble %q: table is not complete", table.Req.Name)
	}
	if !table.Req.Keep {
		return nil, errors.Newf("cannot assemble %q: request did not set keep=true", table.Req.Name)
	}

	log := table.Log()
	var columns []string
	var rows [][]string
	for _, u := range log {
		if u.Status != model.StatusOk || u.Payload == nil {
			continue
		}
		if columns == nil {
			columns = u.Payload.Columns
		}
		rows = append(rows, u.Payload.Rows...)
	}

	if dropDuplicates && len(columns) > 0 {
		rows = dedup(columns, rows)
	}
	return &Dataset{Columns: columns, Rows: rows}, nil
}

// dedup drops rows that are identical across every column except the
// trailing TIMESTAMP one, keeping the first occurrence in arrival order.
func dedup(columns []string, rows [][]string) [][]string {
	tsIdx := -1
	for i, c := range columns {
		if c == "TIMESTAMP" {
			tsIdx = i
			break
		}
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		key := dedupKey(row, tsIdx)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

func dedupKey(row []string, skip int) string {
	key := make([]byte, 0, 64)
	for i, v := range row {
		if i == skip {
			continue
		}
		key = append(key, v...)
		key = append(key, '\x1f')
	}
	return string(key)
}
