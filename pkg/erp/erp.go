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

// Package erp declares the capabilities the core consumes from the remote
// ERP's RFC gateway. A real RFC client is an external collaborator out of
// this repository's scope (spec §1); besides the interfaces, this package
// holds only the in-memory DemoDialer of demo.go.
package erp

import "context"

// CnxnDetails is the opaque, caller-supplied set of parameters needed to
// open a connection to one ERP application/dialog instance. The core never
// inspects its fields; it is forwarded verbatim to Dialer.Open.
type CnxnDetails map[string]string

// ReadTableRequest is the exact projection of the READ_TABLE RFC (spec
// glossary): a query table, a field delimiter, a WHERE predicate, a column
// projection, and a row window.
type ReadTableRequest struct {
	QueryTable string
	Delimiter  string
	Where      string
	Fields     []string
	RowCount   int64
	RowSkips   int64
}

// ReadTableResult is READ_TABLE's response: packed delimited row strings in
// the order of the projected fields, plus that field order.
type ReadTableResult struct {
	Rows       []string
	FieldOrder []string
}

// DictRow is one data-dictionary entry as returned by MetaRead, mirroring
// DD03L's columns (spec glossary).
type DictRow struct {
	Name     string
	Leng     int
	Key      bool
	Position int
	RollName string
	IntType  string
}

// Conn is a scoped ERP connection, opened for the duration of a single
// unit's read and released on every exit path (spec §4.4 step 1).
type Conn interface {
	// ReadTable executes one READ_TABLE call.
	ReadTable(ctx context.Context, req ReadTableRequest) (ReadTableResult, error)
	// ReadMeta fetches the data-dictionary rows for a table.
	ReadMeta(ctx context.Context, table string) ([]DictRow, error)
	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Dialer opens a scoped Conn from connection details. The ExtractionNode
// calls Open once per unit and defers Close (spec §4.4 step 1), and once
// per /meta request, handing the Conn to the MetaResolver.
type Dialer interface {
	Open(ctx context.Context, details CnxnDetails) (Conn, error)
}
