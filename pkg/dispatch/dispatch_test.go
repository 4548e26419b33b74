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

package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapxtract/xtract/pkg/aggregate"
	"github.com/sapxtract/xtract/pkg/erp"
	"github.com/sapxtract/xtract/pkg/model"
	"github.com/sapxtract/xtract/pkg/node"
	"github.com/sapxtract/xtract/pkg/registry"
)

func demoNodeServer(t *testing.T, key string) *httptest.Server {
	srv := node.NewServer(erp.NewDemoDialer(), key)
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func waitForCompletion(t *testing.T, table *model.Table, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if table.Complete() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("table did not complete within %s", timeout)
}

func TestDispatchSingleNodeSmallWideTable(t *testing.T) {
	ts := demoNodeServer(t, "node1")
	ctx := context.Background()

	pool := registry.NewRegistry().Discover(ctx, []string{ts.URL})
	require.Len(t, pool, 1)

	workers := []*WorkerNode{NewWorkerNode(pool[0], erp.CnxnDetails{}, "", "")}
	d := New(workers, 4)

	table := model.NewTable(&model.TableRequest{
		Name: "CUSTOMERS", RMax: 100, ChunkSize: 2, Keep: true,
	})

	runCtx, cancel := context.WithCancel(ctx)
	d.Extract(runCtx, table, 2)

	done := make(chan error, 1)
	go func() { done <- d.Run(runCtx) }()

	waitForCompletion(t, table, 5*time.Second)
	d.Shutdown()
	cancel()
	<-done

	assert.Equal(t, int64(5), table.Count())

	ds, err := aggregate.Assemble(table, true)
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 5)
}

func TestDispatchTwoNodesOneTable(t *testing.T) {
	tsA := demoNodeServer(t, "nodeA")
	tsB := demoNodeServer(t, "nodeB")
	ctx := context.Background()

	pool := registry.NewRegistry().Discover(ctx, []string{tsA.URL, tsB.URL})
	require.Len(t, pool, 2)

	workers := make([]*WorkerNode, len(pool))
	for i, n := range pool {
		workers[i] = NewWorkerNode(n, erp.CnxnDetails{}, "", "")
	}
	d := New(workers, 8)

	table := model.NewTable(&model.TableRequest{
		Name: "ORDERS", RMax: 5000, ChunkSize: 250, Keep: false,
	})

	runCtx, cancel := context.WithCancel(ctx)
	d.Extract(runCtx, table, len(workers))

	done := make(chan error, 1)
	go func() { done <- d.Run(runCtx) }()

	waitForCompletion(t, table, 10*time.Second)
	d.Shutdown()
	cancel()
	<-done

	assert.Equal(t, int64(5000), table.Count())
}

func TestDispatchRoutesAroundTrippedBreaker(t *testing.T) {
	tsA := demoNodeServer(t, "nodeA")
	tsB := demoNodeServer(t, "nodeB")
	ctx := context.Background()

	pool := registry.NewRegistry().Discover(ctx, []string{tsA.URL, tsB.URL})
	require.Len(t, pool, 2)

	// Trip nodeA's breaker, then take it fully offline so its one
	// rate-limited reprobe attempt also fails and it stays unhealthy for
	// the rest of the run.
	for i := 0; i < 3; i++ {
		pool[0].RecordFailure()
	}
	require.False(t, pool[0].Healthy())
	tsA.Close()

	workers := make([]*WorkerNode, len(pool))
	for i, n := range pool {
		workers[i] = NewWorkerNode(n, erp.CnxnDetails{}, "", "")
	}
	d := New(workers, 8)

	table := model.NewTable(&model.TableRequest{
		Name: "ORDERS", RMax: 5000, ChunkSize: 250, Keep: false,
	})

	runCtx, cancel := context.WithCancel(ctx)
	d.Extract(runCtx, table, len(workers))

	done := make(chan error, 1)
	go func() { done <- d.Run(runCtx) }()

	waitForCompletion(t, table, 10*time.Second)
	d.Shutdown()
	cancel()
	<-done

	assert.Equal(t, int64(5000), table.Count(), "nodeB alone must still land every row once nodeA's breaker trips")
	assert.False(t, pool[0].Healthy(), "a downed node must not self-heal without a successful reprobe")
}

func TestDispatchNodeExcludedWhenDownAtStart(t *testing.T) {
	ts := demoNodeServer(t, "node1")
	ctx := context.Background()

	pool := registry.NewRegistry().Discover(ctx, []string{ts.URL, "http://127.0.0.1:1"})
	require.Len(t, pool, 1, "the unreachable address must be excluded, not retried")
}
