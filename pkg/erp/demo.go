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
	"fmt"
	"strings"
)

// DemoDialer is an in-memory stand-in for a real RFC gateway, preloaded with
// a handful of synthetic tables. It exists only so `xtract serve --demo` has
// something to talk to without a live ERP behind it, the same role the
// teacher's demo.go preloaded "movr" dataset plays for its SQL shell.
type DemoDialer struct {
	tables map[string]demoTable
}

type demoTable struct {
	dict []DictRow
	rows [][]string // field order matches dict order
}

// NewDemoDialer builds the default demo catalog: a small, wide CUSTOMERS
// table and a large, narrow ORDERS table, enough to exercise both the
// small/wide and large/narrow end-to-end scenarios locally.
func NewDemoDialer() *DemoDialer {
	d := &DemoDialer{tables: make(map[string]demoTable)}
	d.tables["CUSTOMERS"] = demoCustomers()
	d.tables["ORDERS"] = demoOrders()
	return d
}

func (d *DemoDialer) Open(ctx context.Context, details CnxnDetails) (Conn, error) {
	return &demoConn{dialer: d}, nil
}

type demoConn struct {
	dialer *DemoDialer
}

func (c *demoConn) ReadMeta(ctx context.Context, table string) ([]DictRow, error) {
	t, ok := c.dialer.tables[strings.ToUpper(table)]
	if !ok {
		return nil, fmt.Errorf("demo: unknown table %q", table)
	}
	return t.dict, nil
}

func (c *demoConn) ReadTable(ctx context.Context, req ReadTableRequest) (ReadTableResult, error) {
	t, ok := c.dialer.tables[strings.ToUpper(req.QueryTable)]
	if !ok {
		return ReadTableResult{}, fmt.Errorf("demo: unknown table %q", req.QueryTable)
	}

	positions := make([]int, len(req.Fields))
	byName := map[string]int{}
	for i, row := range t.dict {
		byName[row.Name] = i
	}
	for i, f := range req.Fields {
		positions[i] = byName[f]
	}

	start := int(req.RowSkips)
	if start > len(t.rows) {
		start = len(t.rows)
	}
	end := start + int(req.RowCount)
	if end > len(t.rows) {
		end = len(t.rows)
	}

	var packed []string
	for _, row := range t.rows[start:end] {
		parts := make([]string, len(positions))
		for i, pos := range positions {
			parts[i] = row[pos]
		}
		packed = append(packed, strings.Join(parts, req.Delimiter))
	}
	return ReadTableResult{Rows: packed, FieldOrder: req.Fields}, nil
}

func (c *demoConn) Close() error { return nil }

func demoCustomers() demoTable {
	dict := []DictRow{
		{Name: "ID", Leng: 10, Key: true, Position: 1, RollName: "CHAR10", IntType: "C"},
		{Name: "NAME", Leng: 40, Position: 2, RollName: "CHAR40", IntType: "C"},
		{Name: "CITY", Leng: 30, Position: 3, RollName: "CHAR30", IntType: "C"},
		{Name: "COUNTRY", Leng: 3, Position: 4, RollName: "CHAR3", IntType: "C"},
		{Name: "BALANCE", Leng: 16, Position: 5, RollName: "DEC16", IntType: "P"},
	}
	names := []string{"Ada Lovelace", "Grace Hopper", "Alan Turing", "Katherine Johnson", "Claude Shannon"}
	cities := []string{"London", "New York", "Manchester", "Hampton", "Petoskey"}
	countries := []string{"GBR", "USA", "GBR", "USA", "USA"}
	var rows [][]string
	for i := 0; i < len(names); i++ {
		rows = append(rows, []string{
			fmt.Sprintf("%010d", i+1), names[i], cities[i], countries[i], fmt.Sprintf("%.2f", 1000.0+float64(i)*12.5),
		})
	}
	return demoTable{dict: dict, rows: rows}
}

func demoOrders() demoTable {
	dict := []DictRow{
		{Name: "ORDERID", Leng: 10, Key: true, Position: 1, RollName: "CHAR10", IntType: "C"},
		{Name: "CUSTOMERID", Leng: 10, Position: 2, RollName: "CHAR10", IntType: "C"},
		{Name: "AMOUNT", Leng: 12, Position: 3, RollName: "DEC12", IntType: "P"},
	}
	var rows [][]string
	for i := 0; i < 5000; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("%010d", i+1),
			fmt.Sprintf("%010d", (i%5)+1),
			fmt.Sprintf("%.2f", 10.0+float64(i%97)),
		})
	}
	return demoTable{dict: dict, rows: rows}
}
