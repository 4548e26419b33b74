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

// FieldMeta is one data-dictionary entry for a table field: its packed
// byte length (LENG), key flag, dictionary position, roll name, and
// internal type. Immutable once loaded (spec §3).
type FieldMeta struct {
	Name     string
	Leng     int
	Key      bool
	Position int
	RollName string
	IntType  string
}

// FieldCatalog is the full field list for one table, loaded once per
// (endpoint, table) by MetaResolver and never mutated afterward.
type FieldCatalog struct {
	Table  string
	Fields []FieldMeta
}

// ByName indexes the catalog's fields for O(1) lookup by MetaResolver and
// the ColumnPartitioner.
func (c *FieldCatalog) ByName() map[string]FieldMeta {
	m := make(map[string]FieldMeta, len(c.Fields))
	for _, f := range c.Fields {
		m[f.Name] = f
	}
	return m
}

// ColumnChunk is an ordered list of field names whose summed LENG is within
// the ERP's read buffer (spec §3, §4.2).
type ColumnChunk []string
