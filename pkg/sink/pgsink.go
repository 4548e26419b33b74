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

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	crdb "github.com/cockroachdb/cockroach-go/v2/crdb"
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"

	"github.com/sapxtract/xtract/internal/log"
	"github.com/sapxtract/xtract/pkg/xerrors"
)

// maxCommitBatch is the largest number of rows committed to the sink in a
// single COPY batch (spec §6: "commit batches of <= 50000 rows").
const maxCommitBatch = 50000

// PGAppender appends batches to a PostgreSQL-wire-compatible sink (an
// actual Postgres, or CockroachDB speaking the pg wire protocol) using
// lib/pq's COPY support, wrapped in a crdb.ExecuteTx retryable transaction
// the way the corpus's bulk writers retry serialization failures.
type PGAppender struct {
	db *sql.DB

	mu      sync.Mutex
	created map[string]bool
}

// NewPGAppender opens a connection pool against connStr (a standard
// "postgres://..." DSN) using the lib/pq driver.
func NewPGAppender(connStr string) (*PGAppender, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "opening sink connection")
	}
	return &PGAppender{db: db, created: make(map[string]bool)}, nil
}

// Close releases the underlying connection pool.
func (a *PGAppender) Close() error {
	return a.db.Close()
}

// Append implements Appender. Every column is stored as TEXT: the pipeline
// only ever produces whitespace-stripped packed-string fields and does not
// attempt schema inference beyond the spec's scope (non-goal: no schema
// evolution).
func (a *PGAppender) Append(ctx context.Context, destination string, columns []string, rows [][]string) error {
	if err := a.ensureTable(ctx, destination, columns); err != nil {
		return err
	}
	for start := 0; start < len(rows); start += maxCommitBatch {
		end := start + maxCommitBatch
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		if err := crdb.ExecuteTx(ctx, a.db, nil, func(tx *sql.Tx) error {
			return copyInBatch(tx, destination, columns, batch)
		}); err != nil {
			if pqErr, ok := errorAsPQ(err); ok {
				return errors.Wrapf(xerrors.ErrAppenderFailure, "sink rejected batch for %s: %s (%s)", destination, pqErr.Message, pqErr.Code)
			}
			return errors.Wrapf(xerrors.ErrAppenderFailure, "appending to %s", destination)
		}
		log.Infof(ctx, "appended %d rows to %s", len(batch), destination)
	}
	return nil
}

func copyInBatch(tx *sql.Tx, destination string, columns []string, rows [][]string) error {
	stmt, err := tx.Prepare(pq.CopyIn(destination, columns...))
	if err != nil {
		return errors.Wrap(err, "preparing COPY")
	}
	for _, row := range rows {
		args := make([]interface{}, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			stmt.Close()
			return errors.Wrap(err, "COPY row")
		}
	}
	if _, err := stmt.Exec(); err != nil {
		stmt.Close()
		return errors.Wrap(err, "flushing COPY")
	}
	return stmt.Close()
}

func (a *PGAppender) ensureTable(ctx context.Context, destination string, columns []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.created[destination] {
		return nil
	}
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = fmt.Sprintf("%q TEXT", c)
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", destination, strings.Join(cols, ", "))
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrapf(xerrors.ErrAppenderFailure, "creating destination table %s: %v", destination, err)
	}
	a.created[destination] = true
	return nil
}

func errorAsPQ(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

// DefaultDestination derives the spec §6 default destination name
// csap_<table_name><tag>.
func DefaultDestination(table, tag string) string {
	return fmt.Sprintf("csap_%s%s", strings.ToLower(table), tag)
}
