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

package erp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoDialerReadTableRespectsRowWindow(t *testing.T) {
	d := NewDemoDialer()
	conn, err := d.Open(context.Background(), nil)
	require.NoError(t, err)
	defer conn.Close()

	res, err := conn.ReadTable(context.Background(), ReadTableRequest{
		QueryTable: "ORDERS", Delimiter: "|", Fields: []string{"ORDERID"}, RowCount: 10, RowSkips: 4995,
	})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5, "only 5 rows remain past offset 4995 of a 5000-row table")
}

func TestDemoDialerReadMetaDropsNothingExtra(t *testing.T) {
	d := NewDemoDialer()
	conn, _ := d.Open(context.Background(), nil)
	defer conn.Close()

	rows, err := conn.ReadMeta(context.Background(), "CUSTOMERS")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestDemoDialerUnknownTable(t *testing.T) {
	d := NewDemoDialer()
	conn, _ := d.Open(context.Background(), nil)
	defer conn.Close()

	_, err := conn.ReadMeta(context.Background(), "NOPE")
	assert.Error(t, err)
}
