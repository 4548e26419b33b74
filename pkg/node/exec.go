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

// Package node implements the ExtractionNode (spec §4.4): executing one
// work unit against the ERP, stitching its horizontal slices row-wise,
// timestamping, and committing to the relational sink.
package node

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/apd"
	"github.com/cockroachdb/errors"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/petermattis/goid"

	"github.com/sapxtract/xtract/internal/log"
	"github.com/sapxtract/xtract/pkg/erp"
	"github.com/sapxtract/xtract/pkg/model"
	"github.com/sapxtract/xtract/pkg/sink"
	"github.com/sapxtract/xtract/pkg/xerrors"
)

// timestampLayout is the wall-clock format appended as the TIMESTAMP
// column (spec §4.4 step 4).
const timestampLayout = "2006-01-02 15:04:05"

// Executor runs work units against a scoped ERP connection and commits
// their stitched payload to a sink.
type Executor struct {
	Dialer   erp.Dialer
	Appender sink.Appender // nil disables persistence (keep-only runs)
}

// Execute implements the spec §4.4 read algorithm for a single unit,
// mutating its Status, Count, Timestamp, Payload, and Err in place.
func (x *Executor) Execute(ctx context.Context, details erp.CnxnDetails, dtypes map[string]string, unit *model.Unit) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "node.Execute")
	defer span.Finish()
	ctx = log.WithTags(ctx, "ri", unit.RI, "n", unit.N, "goroutine", goid.Get())

	unit.Status = model.StatusInFlight

	conn, err := x.Dialer.Open(ctx, details)
	if err != nil {
		return x.fail(unit, errors.Wrapf(xerrors.ErrUnitTransport, "opening ERP connection: %v", err))
	}
	defer conn.Close()

	batch, count, err := x.stitch(ctx, conn, unit, dtypes)
	if err != nil {
		return x.fail(unit, err)
	}

	unit.Timestamp = time.Now().UTC()
	batch.Columns = append(batch.Columns, "TIMESTAMP")
	stamp := unit.Timestamp.Format(timestampLayout)
	for i := range batch.Rows {
		batch.Rows[i] = append(batch.Rows[i], stamp)
	}

	if x.Appender != nil && unit.Destination != "" {
		if err := x.Appender.Append(ctx, unit.Destination, batch.Columns, batch.Rows); err != nil {
			return x.fail(unit, err)
		}
	}

	unit.Count = count
	unit.Status = model.StatusOk
	if unit.Keep {
		unit.Payload = batch
	}
	log.Infof(ctx, "unit complete: %d rows", count)
	return nil
}

func (x *Executor) fail(unit *model.Unit, err error) error {
	unit.Status = model.StatusFail
	unit.Err = err
	return err
}

// stitch issues the horizontal slice reads in column_chunks order and
// concatenates them column-wise by row index (spec §4.4 steps 2-3, I5).
func (x *Executor) stitch(
	ctx context.Context, conn erp.Conn, unit *model.Unit, dtypes map[string]string,
) (*model.Batch, int64, error) {
	batch := &model.Batch{}
	var rowCount int

	for i, chunk := range unit.Chunks {
		res, err := conn.ReadTable(ctx, erp.ReadTableRequest{
			QueryTable: unit.TableRef.Req.Name,
			Delimiter:  "|",
			Where:      unit.Where,
			Fields:     chunk,
			RowCount:   unit.N,
			RowSkips:   unit.RI,
		})
		if err != nil {
			return nil, 0, errors.Wrapf(xerrors.ErrUnitTransport, "reading column chunk %d: %v", i, err)
		}

		sliceRows := make([][]string, len(res.Rows))
		for r, packed := range res.Rows {
			row, err := splitAndStrip(packed, chunk, dtypes)
			if err != nil {
				return nil, 0, err
			}
			sliceRows[r] = row
		}

		if i == 0 {
			rowCount = len(sliceRows)
			batch.Rows = sliceRows
			batch.Columns = append(batch.Columns, chunk...)
			continue
		}
		if len(sliceRows) != rowCount {
			return nil, 0, errors.Wrapf(xerrors.ErrSliceMisalignment,
				"chunk %d returned %d rows, chunk 0 returned %d", i, len(sliceRows), rowCount)
		}
		for r := range batch.Rows {
			batch.Rows[r] = append(batch.Rows[r], sliceRows[r]...)
		}
		batch.Columns = append(batch.Columns, chunk...)
	}
	return batch, int64(rowCount), nil
}

// splitAndStrip splits one packed `|`-delimited row and whitespace-strips
// each field (spec §4.4 step 2), normalizing fields the caller's
// expected-dtype map marks DECIMAL through apd so packed-string precision
// survives the round trip (SPEC_FULL §11.8). A field that fails DECIMAL
// normalization fails the unit (ErrParseFailure), not just that field.
func splitAndStrip(packed string, fields []string, dtypes map[string]string) ([]string, error) {
	parts := strings.Split(packed, "|")
	out := make([]string, len(fields))
	for i := range fields {
		var v string
		if i < len(parts) {
			v = strings.TrimSpace(parts[i])
		}
		if dtypes != nil && dtypes[fields[i]] == "DECIMAL" && v != "" {
			norm, err := normalizeDecimal(v)
			if err != nil {
				return nil, errors.Wrapf(xerrors.ErrParseFailure, "field %s: %v", fields[i], err)
			}
			v = norm
		}
		out[i] = v
	}
	return out, nil
}

func normalizeDecimal(v string) (string, error) {
	d, _, err := apd.NewFromString(v)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}
