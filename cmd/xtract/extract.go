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

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/sapxtract/xtract/internal/log"
	"github.com/sapxtract/xtract/pkg/aggregate"
	"github.com/sapxtract/xtract/pkg/dispatch"
	"github.com/sapxtract/xtract/pkg/erp"
	"github.com/sapxtract/xtract/pkg/model"
	"github.com/sapxtract/xtract/pkg/progress"
	"github.com/sapxtract/xtract/pkg/registry"
)

const (
	extractNodesName       = "nodes"
	extractTableName       = "table"
	extractProjectionName  = "fields"
	extractWhereName       = "where"
	extractR0Name          = "r0"
	extractRMaxName        = "rmax"
	extractChunkSizeName   = "chunk-size"
	extractDestinationName = "destination"
	extractKeepName        = "keep"
	extractTagName         = "tag"
	extractSinkName        = "sink"
	extractParallelName    = "parallelism"
	extractSlackTokenName  = "slack-token"
	extractSlackChanName   = "slack-channel"
)

var extractFlags struct {
	nodes       []string
	table       string
	projection  []string
	where       string
	r0          int64
	rmax        int64
	chunkSize   int64
	destination string
	keep        bool
	tag         string
	sink        string
	parallelism int
	slackToken  string
	slackChan   string
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "extract one table through a pool of extraction nodes",
	Long: `
Probe the given node addresses, then dispatch one table's extraction
across the reachable ones: plan row-range x column-chunk units, route
them to nodes, and wait for the table to complete.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd.Context())
	},
}

func init() {
	f := extractCmd.Flags()
	f.StringArrayVar(&extractFlags.nodes, extractNodesName, nil, "extraction node base URL (repeatable)")
	f.StringVar(&extractFlags.table, extractTableName, "", "table name to extract")
	f.StringArrayVar(&extractFlags.projection, extractProjectionName, nil, "field to project (repeatable, default: all fields)")
	f.StringVar(&extractFlags.where, extractWhereName, "", "WHERE predicate passed through to the ERP")
	f.Int64Var(&extractFlags.r0, extractR0Name, 0, "starting row offset")
	f.Int64Var(&extractFlags.rmax, extractRMaxName, 0, "row ceiling (required, must be positive)")
	f.Int64Var(&extractFlags.chunkSize, extractChunkSizeName, 1000, "rows per unit")
	f.StringVar(&extractFlags.destination, extractDestinationName, "", "sink destination table (default: csap_<table><tag>)")
	f.BoolVar(&extractFlags.keep, extractKeepName, false, "keep the assembled result in memory and print it")
	f.StringVar(&extractFlags.tag, extractTagName, "", "per-run destination-table suffix")
	f.StringVar(&extractFlags.sink, extractSinkName, "", "sink DSN (postgres://...), empty disables persistence")
	f.IntVar(&extractFlags.parallelism, extractParallelName, 4, "initial units seeded per table")
	f.StringVar(&extractFlags.slackToken, extractSlackTokenName, "", "optional Slack token for a completion notice")
	f.StringVar(&extractFlags.slackChan, extractSlackChanName, "", "Slack channel for the completion notice")
}

func runExtract(ctx context.Context) error {
	if extractFlags.table == "" {
		return errors.New("--table is required")
	}
	if len(extractFlags.nodes) == 0 {
		return errors.New("at least one --nodes address is required")
	}
	if extractFlags.rmax <= 0 {
		return errors.New("--rmax must be positive")
	}

	reg := registry.NewRegistry()
	pool := reg.Discover(ctx, extractFlags.nodes)
	if len(pool) == 0 {
		return errors.New("no healthy extraction nodes in the pool")
	}

	workers := make([]*dispatch.WorkerNode, len(pool))
	for i, n := range pool {
		workers[i] = dispatch.NewWorkerNode(n, erp.CnxnDetails{}, extractFlags.sink, extractFlags.tag)
	}

	table := model.NewTable(&model.TableRequest{
		Name:        extractFlags.table,
		Projection:  extractFlags.projection,
		Where:       extractFlags.where,
		R0:          extractFlags.r0,
		RMax:        extractFlags.rmax,
		ChunkSize:   extractFlags.chunkSize,
		Destination: extractFlags.destination,
		Keep:        extractFlags.keep,
		Tag:         extractFlags.tag,
	})

	d := dispatch.New(workers, extractFlags.parallelism*len(workers))

	runCtx, cancel := context.WithCancel(ctx)
	d.Extract(runCtx, table, extractFlags.parallelism)

	done := make(chan error, 1)
	go func() { done <- d.Run(runCtx) }()

	mon := progress.NewMonitor([]*model.Table{table})
	mon.SlackToken = extractFlags.slackToken
	mon.SlackChannel = extractFlags.slackChan
	mon.Wait(ctx)

	d.Shutdown()
	cancel()
	<-done

	if failed, err := table.Failed(); failed {
		return errors.Wrapf(err, "extraction of %s failed", extractFlags.table)
	}

	log.Infof(ctx, "extracted %d rows from %s", table.Count(), extractFlags.table)

	if extractFlags.keep {
		ds, err := aggregate.Assemble(table, true)
		if err != nil {
			return err
		}
		out, err := json.Marshal(ds)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}
