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

// Package sink holds the Appender capability (spec §1, §6) and its
// relational implementation.
package sink

import "context"

// Appender appends a tabular batch to a named destination table, creating
// it on first write (spec §6). The core depends only on this interface;
// pkg/sink/pgsink.go is one concrete implementation.
type Appender interface {
	Append(ctx context.Context, destination string, columns []string, rows [][]string) error
}
