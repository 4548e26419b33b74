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

// Package partition implements ColumnPartitioner (spec §4.2): packing a
// field projection into byte-bounded column chunks.
package partition

import (
	"github.com/cockroachdb/errors"

	"github.com/sapxtract/xtract/pkg/model"
	"github.com/sapxtract/xtract/pkg/xerrors"
)

// DefaultMaxBytes is the ERP's per-call row buffer, SAP_BUFFER_SIZE (spec
// §3, §4.2).
const DefaultMaxBytes = 400

// Partition packs fields, in projection order, into chunks whose summed
// LENG is <= maxBytes, using greedy first-fit (spec §4.2): the running sum
// closes the current chunk and starts a new one as soon as the next field
// would overflow it. A field whose own length exceeds maxBytes fails the
// table with FieldTooWide (P3's greedy-tight property falls out of this
// algorithm directly).
func Partition(fields []string, catalog *model.FieldCatalog, maxBytes int) ([]model.ColumnChunk, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	byName := catalog.ByName()

	var chunks []model.ColumnChunk
	var current model.ColumnChunk
	var sum int

	for _, name := range fields {
		fm, ok := byName[name]
		if !ok {
			return nil, errors.Newf("field %q not present in catalog for table %s", name, catalog.Table)
		}
		if fm.Leng > maxBytes {
			return nil, errors.Wrapf(xerrors.ErrFieldTooWide, "field %s (%d bytes) exceeds buffer of %d bytes", name, fm.Leng, maxBytes)
		}
		if sum+fm.Leng > maxBytes {
			chunks = append(chunks, current)
			current = nil
			sum = 0
		}
		current = append(current, name)
		sum += fm.Leng
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks, nil
}
