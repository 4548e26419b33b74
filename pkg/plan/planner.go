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

// Package plan implements UnitPlanner (spec §4.3): turning a table's next
// reserved row-range window into a work unit. Column chunks are attached
// later, once the table's metadata prerequisite gate has run (spec I2);
// Next only ever hands out row windows, never metadata.
package plan

import "github.com/sapxtract/xtract/pkg/model"

// Next reserves table's next row-range window and returns a new Created
// unit covering it, or ok=false if the table has no more windows to hand
// out (exhausted or already complete, spec §4.3).
func Next(table *model.Table) (unit *model.Unit, ok bool) {
	ri, n, ok := table.NextWindow()
	if !ok {
		return nil, false
	}
	return &model.Unit{
		TableRef:    table,
		RI:          ri,
		N:           n,
		Destination: table.Req.Destination,
		Keep:        table.Req.Keep,
		Where:       table.Req.Where,
		Status:      model.StatusCreated,
	}, true
}
