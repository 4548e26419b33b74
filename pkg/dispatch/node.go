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

// Package dispatch implements the Dispatcher (spec §4.6): the bounded
// queue, the worker pool (one goroutine per healthy node, pinned for the
// run), the refill rule, and shutdown.
package dispatch

import (
	"github.com/sapxtract/xtract/pkg/erp"
	"github.com/sapxtract/xtract/pkg/node"
	"github.com/sapxtract/xtract/pkg/registry"
)

// WorkerNode binds one healthy registry.Node to the client and connection
// parameters its pinned worker uses for the run.
type WorkerNode struct {
	*registry.Node
	Client      *node.Client
	CnxnDetails erp.CnxnDetails
	SQLCnxnstr  string // Appender DSN forwarded on every /read call
	Tag         string // spec §9's per-node destination-table suffix
}

// NewWorkerNode wraps a discovered node with its run-scoped parameters.
func NewWorkerNode(n *registry.Node, details erp.CnxnDetails, sqlCnxnstr, tag string) *WorkerNode {
	return &WorkerNode{
		Node:        n,
		Client:      node.NewClient(n.Addr),
		CnxnDetails: details,
		SQLCnxnstr:  sqlCnxnstr,
		Tag:         tag,
	}
}
