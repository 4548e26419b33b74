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
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/elastic/gosigar"
	"github.com/marusama/semaphore"
	opentracing "github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"

	"github.com/sapxtract/xtract/internal/log"
	"github.com/sapxtract/xtract/pkg/model"
	"github.com/sapxtract/xtract/pkg/partition"
	"github.com/sapxtract/xtract/pkg/plan"
	"github.com/sapxtract/xtract/pkg/registry"
	"github.com/sapxtract/xtract/pkg/xerrors"
)

// memoryPollInterval is how often seedOne rechecks free memory while
// paused under pressure (SPEC_FULL §11.3).
const memoryPollInterval = 100 * time.Millisecond

// requeueBackoff throttles a worker that just gave an unhealthy node's unit
// back to the queue, so it doesn't spin re-dequeuing its own requeue.
const requeueBackoff = 50 * time.Millisecond

// queueItem is one ready-to-execute unit plus the node-agnostic table it
// belongs to, or a shutdown sentinel when table is nil (spec §9).
type queueItem struct {
	table *model.Table
	unit  *model.Unit
}

// lowMemoryFraction pauses seeding new batches of units when available
// system memory falls below this fraction of total (SPEC_FULL §11.3's
// gosigar-based guard; a defensive measure, not a spec-required behavior).
const lowMemoryFraction = 0.05

// Dispatcher is the work queue and worker pool of spec §4.6: one worker
// goroutine per healthy node, pinned to that node for the run, pulling
// from a single shared FIFO queue.
type Dispatcher struct {
	nodes []*WorkerNode

	queue    chan queueItem
	inFlight semaphore.Semaphore // bounds total outstanding units (SPEC_FULL §11.2)

	// reprobe lets a worker that finds its node's breaker tripped attempt a
	// fresh liveness check before giving up on it for good (SPEC_FULL §11.1,
	// §11.5's rate-limited re-probe).
	reprobe *registry.Registry

	mu struct {
		sync.Mutex
		tables      []*model.Table
		outstanding map[*model.Table]int
	}
}

// New constructs a Dispatcher over the given worker nodes. maxInFlight
// bounds total concurrently-executing units across the whole pool.
func New(nodes []*WorkerNode, maxInFlight int) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = len(nodes) * 4
	}
	d := &Dispatcher{
		nodes:    nodes,
		queue:    make(chan queueItem, 4096),
		inFlight: semaphore.New(maxInFlight),
		reprobe:  registry.NewRegistry(),
	}
	d.mu.outstanding = make(map[*model.Table]int)
	return d
}

// Extract seeds up to parallelism initial units from table's UnitPlanner
// and adds it to the active list (spec §4.6's extract(table, parallelism)).
// FieldTooWide and MetaFailure detected during the very first EnsureReady
// call pre-empt all further planning for the table (spec §7).
func (d *Dispatcher) Extract(ctx context.Context, table *model.Table, parallelism int) {
	d.mu.Lock()
	d.mu.tables = append(d.mu.tables, table)
	d.mu.Unlock()

	for i := 0; i < parallelism; i++ {
		d.seedOne(ctx, table)
	}
}

// seedOne hands table's next planned unit to the queue, first pausing
// (SPEC_FULL §11.3) while free memory is below lowMemoryFraction. The wait
// aborts, seeding nothing, if ctx is canceled first.
func (d *Dispatcher) seedOne(ctx context.Context, table *model.Table) bool {
	for !memoryOK() {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(memoryPollInterval):
		}
	}
	unit, ok := plan.Next(table)
	if !ok {
		return false
	}
	d.mu.Lock()
	d.mu.outstanding[table]++
	d.mu.Unlock()
	d.queue <- queueItem{table: table, unit: unit}
	return true
}

// refill asks the same table for its next unit; if the table is complete
// or exhausted, it asks the Dispatcher's active list for the next
// incomplete table's next unit (spec §4.6's refill rule).
func (d *Dispatcher) refill(ctx context.Context, table *model.Table) {
	if d.seedOne(ctx, table) {
		return
	}
	d.mu.Lock()
	tables := append([]*model.Table(nil), d.mu.tables...)
	d.mu.Unlock()
	for _, t := range tables {
		if t.Complete() {
			continue
		}
		if d.seedOne(ctx, t) {
			return
		}
	}
}

func (d *Dispatcher) markDone(table *model.Table) {
	d.mu.Lock()
	d.mu.outstanding[table]--
	d.mu.Unlock()
}

// Outstanding returns the number of units of table that have been queued
// and not yet terminated.
func (d *Dispatcher) Outstanding(table *model.Table) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mu.outstanding[table]
}

// memoryOK reports whether the host has enough free memory to keep
// seeding new work (SPEC_FULL §11.3's gosigar guard).
func memoryOK() bool {
	m := gosigar.Mem{}
	if err := m.Get(); err != nil {
		return true // fail open: resource sampling is advisory only
	}
	if m.Total == 0 {
		return true
	}
	return float64(m.ActualFree)/float64(m.Total) > lowMemoryFraction
}

// Run starts one worker per node and blocks until every node's loop exits
// (on a shutdown sentinel or ctx cancellation). Errors from individual
// units never abort the run (spec §7: failures are local to the unit);
// Run only returns an error for a worker-level fault (e.g. ctx canceled).
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, wn := range d.nodes {
		wn := wn
		g.Go(func() error {
			return d.workerLoop(ctx, wn)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context, wn *WorkerNode) error {
	ctx = log.WithTags(ctx, "node", wn.Addr)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, open := <-d.queue:
			if !open || item.table == nil {
				return nil
			}
			if !d.routeOrDefer(ctx, wn, item) {
				continue
			}
			d.runUnit(ctx, wn, item)
		}
	}
}

// routeOrDefer enforces the breaker's routing decision (SPEC_FULL §11.1):
// a node whose breaker has tripped is given one rate-limited chance to
// re-prove liveness; if it still isn't healthy, its unit is handed to
// another healthy node via the shared queue, or failed outright if no node
// in the pool is healthy. Returns true when wn should execute item itself.
func (d *Dispatcher) routeOrDefer(ctx context.Context, wn *WorkerNode, item queueItem) bool {
	if wn.Healthy() {
		return true
	}
	if wn.ReprobeAllowed() {
		if err := d.reprobe.Probe(ctx, wn.Addr); err == nil {
			wn.RecordSuccess()
			return true
		}
	}
	if d.anyHealthy() {
		log.Warningf(ctx, "node %s unhealthy, routing unit ri=%d to another node", wn.Addr, item.unit.RI)
		d.queue <- item
		time.Sleep(requeueBackoff)
		return false
	}
	log.Warningf(ctx, "no healthy nodes remain, failing unit ri=%d", item.unit.RI)
	item.unit.Status = model.StatusFail
	item.unit.Err = xerrors.ErrNodeUnreachable
	item.table.Record(item.unit)
	d.markDone(item.table)
	time.Sleep(requeueBackoff)
	d.refill(ctx, item.table)
	return false
}

func (d *Dispatcher) anyHealthy() bool {
	for _, wn := range d.nodes {
		if wn.Healthy() {
			return true
		}
	}
	return false
}

func (d *Dispatcher) runUnit(ctx context.Context, wn *WorkerNode, item queueItem) {
	if err := d.inFlight.Acquire(ctx, 1); err != nil {
		d.markDone(item.table)
		return
	}
	defer d.inFlight.Release(1)

	span, ctx := opentracing.StartSpanFromContext(ctx, "dispatch.refill")
	defer span.Finish()

	table, unit := item.table, item.unit

	if failed, err := table.Failed(); failed {
		unit.Status = model.StatusFail
		unit.Err = err
		table.Record(unit)
		d.markDone(table)
		return
	}

	if err := d.ensureMeta(ctx, wn, table); err != nil {
		table.MarkFailed(err)
		unit.Status = model.StatusFail
		unit.Err = err
		table.Record(unit)
		d.markDone(table)
		return
	}

	_, chunks, _ := table.Ready()
	unit.Chunks = chunks

	if err := wn.Client.Read(ctx, wn.CnxnDetails, table.Req.Name, unit, wn.SQLCnxnstr, wn.Tag, table.Req.DTypes); err != nil {
		if errors.Is(err, xerrors.ErrUnitTransport) {
			wn.RecordFailure()
		}
		log.Warningf(ctx, "unit ri=%d failed on %s: %v", unit.RI, wn.Addr, err)
	} else {
		wn.RecordSuccess()
	}

	table.Record(unit)
	d.markDone(table)
	d.refill(ctx, table)
}

// ensureMeta runs the table-level prerequisite gate (spec I2) against wn,
// fetching metadata and computing column chunks exactly once even under a
// burst of workers landing on the same fresh table (P6).
func (d *Dispatcher) ensureMeta(ctx context.Context, wn *WorkerNode, table *model.Table) error {
	if ready, _, _ := table.Ready(); ready {
		return nil
	}
	return table.EnsureReady(func() (*model.FieldCatalog, []model.ColumnChunk, error) {
		cat, chunks, err := wn.Client.Meta(ctx, wn.CnxnDetails, table.Req.Name, table.Req.Projection, partition.DefaultMaxBytes)
		if err != nil {
			return nil, nil, err
		}
		return cat, chunks, nil
	})
}

// Shutdown enqueues one shutdown sentinel per worker (spec §9) behind what
// is already queued, so each worker's loop exits when it dequeues one. It
// does not wait for the workers; the caller waits for Run to return.
func (d *Dispatcher) Shutdown() {
	for range d.nodes {
		d.queue <- queueItem{}
	}
}

// ActiveTables returns a snapshot of the tables handed to Extract, for the
// ProgressMonitor.
func (d *Dispatcher) ActiveTables() []*model.Table {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*model.Table(nil), d.mu.tables...)
}
