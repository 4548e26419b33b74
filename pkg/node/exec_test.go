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

package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapxtract/xtract/pkg/erp"
	"github.com/sapxtract/xtract/pkg/model"
	"github.com/sapxtract/xtract/pkg/xerrors"
)

// fakeDialer/fakeConn let tests script ReadTable responses per chunk without
// a real ERP endpoint.
type fakeDialer struct {
	conn erp.Conn
	err  error
}

func (d *fakeDialer) Open(ctx context.Context, details erp.CnxnDetails) (erp.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fakeConn struct {
	// responses[i] is the ReadTable result for the i-th call.
	responses []erp.ReadTableResult
	calls     int
}

func (c *fakeConn) ReadTable(ctx context.Context, req erp.ReadTableRequest) (erp.ReadTableResult, error) {
	res := c.responses[c.calls]
	c.calls++
	return res, nil
}

func (c *fakeConn) ReadMeta(ctx context.Context, table string) ([]erp.DictRow, error) {
	return nil, nil
}

func (c *fakeConn) Close() error { return nil }

type captureAppender struct {
	destination string
	columns     []string
	rows        [][]string
}

func (a *captureAppender) Append(ctx context.Context, destination string, columns []string, rows [][]string) error {
	a.destination = destination
	a.columns = columns
	a.rows = rows
	return nil
}

func unitFor(n int64, chunks ...model.ColumnChunk) *model.Unit {
	return &model.Unit{
		TableRef:    model.NewTable(&model.TableRequest{Name: "CUSTOMERS"}),
		RI:          0,
		N:           n,
		Chunks:      chunks,
		Destination: "csap_customers",
		Keep:        true,
	}
}

func TestExecuteStitchesColumnChunksByRowIndex(t *testing.T) {
	conn := &fakeConn{responses: []erp.ReadTableResult{
		{Rows: []string{" 1 | Ada ", " 2 | Grace "}},
		{Rows: []string{" GBR ", " USA "}},
	}}
	appender := &captureAppender{}
	exec := &Executor{Dialer: &fakeDialer{conn: conn}, Appender: appender}

	unit := unitFor(2, model.ColumnChunk{"ID", "NAME"}, model.ColumnChunk{"COUNTRY"})
	err := exec.Execute(context.Background(), erp.CnxnDetails{}, nil, unit)
	require.NoError(t, err)

	assert.Equal(t, model.StatusOk, unit.Status)
	assert.Equal(t, int64(2), unit.Count)
	require.NotNil(t, unit.Payload)
	assert.Equal(t, []string{"ID", "NAME", "COUNTRY", "TIMESTAMP"}, unit.Payload.Columns)
	assert.Equal(t, []string{"1", "Ada", "GBR"}, unit.Payload.Rows[0][:3])
	assert.Equal(t, []string{"2", "Grace", "USA"}, unit.Payload.Rows[1][:3])

	assert.Equal(t, "csap_customers", appender.destination)
}

func TestExecuteDetectsSliceMisalignment(t *testing.T) {
	conn := &fakeConn{responses: []erp.ReadTableResult{
		{Rows: []string{"1", "2", "3"}},
		{Rows: []string{"GBR"}},
	}}
	exec := &Executor{Dialer: &fakeDialer{conn: conn}}

	unit := unitFor(3, model.ColumnChunk{"ID"}, model.ColumnChunk{"COUNTRY"})
	err := exec.Execute(context.Background(), erp.CnxnDetails{}, nil, unit)

	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrSliceMisalignment)
	assert.Equal(t, model.StatusFail, unit.Status)
}

func TestExecuteNormalizesDecimalFields(t *testing.T) {
	conn := &fakeConn{responses: []erp.ReadTableResult{
		{Rows: []string{" 000100.50 "}},
	}}
	exec := &Executor{Dialer: &fakeDialer{conn: conn}}

	unit := unitFor(1, model.ColumnChunk{"BALANCE"})
	dtypes := map[string]string{"BALANCE": "DECIMAL"}
	err := exec.Execute(context.Background(), erp.CnxnDetails{}, dtypes, unit)
	require.NoError(t, err)

	assert.Equal(t, "100.50", unit.Payload.Rows[0][0])
}

func TestExecuteFailsUnitOnBadDecimalField(t *testing.T) {
	conn := &fakeConn{responses: []erp.ReadTableResult{
		{Rows: []string{" not-a-number "}},
	}}
	exec := &Executor{Dialer: &fakeDialer{conn: conn}}

	unit := unitFor(1, model.ColumnChunk{"BALANCE"})
	dtypes := map[string]string{"BALANCE": "DECIMAL"}
	err := exec.Execute(context.Background(), erp.CnxnDetails{}, dtypes, unit)

	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrParseFailure)
	assert.Equal(t, model.StatusFail, unit.Status)
}

func TestExecutePropagatesConnectionFailure(t *testing.T) {
	exec := &Executor{Dialer: &fakeDialer{err: assert.AnError}}
	unit := unitFor(1, model.ColumnChunk{"ID"})

	err := exec.Execute(context.Background(), erp.CnxnDetails{}, nil, unit)

	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnitTransport)
	assert.Equal(t, model.StatusFail, unit.Status)
}
