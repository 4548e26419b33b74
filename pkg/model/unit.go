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

package model

import "time"

// Status is a work unit's lifecycle state: Created -> InFlight -> (Ok|Fail).
type Status int

// Unit lifecycle states.
const (
	StatusCreated Status = iota
	StatusInFlight
	StatusOk
	StatusFail
)

// String renders the status the way the teacher's progress strings do.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusInFlight:
		return "in-flight"
	case StatusOk:
		return "ok"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Batch is a stitched tabular payload: the field order of the requested
// projection plus the trailing TIMESTAMP column, and the rows in arrival
// order (spec §9's "typed table" design note).
type Batch struct {
	Columns []string
	Rows    [][]string
}

// Unit is one row-range x all-column-chunks work item for a single table
// (spec §3). TableRef lets a worker report back into the owning Table's
// counters without a second lookup.
type Unit struct {
	TableRef    *Table
	RI          int64
	N           int64
	Chunks      []ColumnChunk
	Destination string
	Keep        bool
	Where       string

	Status    Status
	Count     int64
	Timestamp time.Time
	Payload   *Batch // set only when Keep and Status==StatusOk
	Err       error
}
