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

// Package progress implements the ProgressMonitor (spec §4.8): a pure
// observer of each active table's (count, rmax, complete) that blocks the
// caller until every active table is complete.
package progress

import (
	"context"
	"fmt"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/nlopes/slack"

	"github.com/sapxtract/xtract/internal/log"
	"github.com/sapxtract/xtract/pkg/model"
)

// pollInterval is how often the monitor samples table counters.
const pollInterval = 500 * time.Millisecond

// Monitor observes a fixed set of tables and emits one status line per
// poll. It mutates nothing (spec §4.8).
type Monitor struct {
	tables []*model.Table

	// SlackToken and SlackChannel, when both non-empty, make Wait post one
	// completion message to the channel once every table is complete, just
	// before it returns (SPEC_FULL §11.10). Off by default.
	SlackToken   string
	SlackChannel string
}

// NewMonitor constructs a Monitor over the given active tables.
func NewMonitor(tables []*model.Table) *Monitor {
	return &Monitor{tables: tables}
}

// Wait polls every active table, writing a status line for each poll, until
// all of them report complete. It returns the total elapsed duration.
func (m *Monitor) Wait(ctx context.Context) time.Duration {
	start := time.Now()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if m.allComplete() {
			break
		}
		select {
		case <-ctx.Done():
			return time.Since(start)
		case <-ticker.C:
			m.emit(ctx)
		}
	}
	log.Infof(ctx, "Done.")
	m.notifySlack()
	return time.Since(start)
}

func (m *Monitor) allComplete() bool {
	for _, t := range m.tables {
		if !t.Complete() {
			return false
		}
	}
	return true
}

func (m *Monitor) emit(ctx context.Context) {
	for _, t := range m.tables {
		count, rmax := t.Count(), t.Req.RMax
		log.Infof(ctx, "[%s: %s / %s]", t.Req.Name, humanize.Comma(count), humanize.Comma(rmax))
	}
}

// notifySlack posts a single best-effort completion message when configured.
// Failures are logged, never fatal (this is a purely additive feature).
func (m *Monitor) notifySlack() {
	if m.SlackToken == "" || m.SlackChannel == "" {
		return
	}
	client := slack.New(m.SlackToken)
	var total int64
	for _, t := range m.tables {
		total += t.Count()
	}
	text := fmt.Sprintf("extraction complete: %d table(s), %s rows", len(m.tables), humanize.Comma(total))
	if _, _, err := client.PostMessage(m.SlackChannel, text, slack.PostMessageParameters{Username: "xtract"}); err != nil {
		log.Warningf(context.Background(), "slack notification failed: %v", err)
	}
}
