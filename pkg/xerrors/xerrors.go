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

// Package xerrors holds the sentinel errors of the extraction pipeline's
// error taxonomy. Each is wrapped with per-call context (table, ri, node)
// as it propagates, the way the teacher wraps storage errors.
package xerrors

import "github.com/cockroachdb/errors"

// Sentinel errors, one per taxonomy entry. Callers use errors.Is to test
// for a specific class and errors.Wrapf to attach context on the way up.
var (
	// ErrNodeUnreachable marks a node that failed its liveness probe.
	ErrNodeUnreachable = errors.New("node unreachable")
	// ErrMetaFailure marks a failed data-dictionary fetch.
	ErrMetaFailure = errors.New("metadata fetch failed")
	// ErrFieldTooWide marks a field whose byte length exceeds the buffer.
	ErrFieldTooWide = errors.New("field too wide for read buffer")
	// ErrUnitTransport marks an HTTP/network failure on /read.
	ErrUnitTransport = errors.New("unit transport failure")
	// ErrSliceMisalignment marks inconsistent row counts across column chunks.
	ErrSliceMisalignment = errors.New("horizontal slice misalignment")
	// ErrParseFailure marks a response that was not valid JSON or lacked keys.
	ErrParseFailure = errors.New("response parse failure")
	// ErrAppenderFailure marks a rejected sink write.
	ErrAppenderFailure = errors.New("appender failure")
)
