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

package node

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/sapxtract/xtract/pkg/erp"
	"github.com/sapxtract/xtract/pkg/model"
	"github.com/sapxtract/xtract/pkg/xerrors"
)

// Client is the Dispatcher-side view of one ExtractionNode, speaking the
// HTTP/JSON surface of spec §6.
type Client struct {
	Addr       string
	HTTPClient *http.Client
}

// NewClient constructs a Client with a caller-provided request deadline
// budget applied per call via the context (spec §5: "HTTP requests use a
// caller-provided deadline").
func NewClient(addr string) *Client {
	return &Client{Addr: strings.TrimRight(addr, "/"), HTTPClient: http.DefaultClient}
}

// Meta calls POST /meta and returns the resolved catalog and column chunks.
func (c *Client) Meta(
	ctx context.Context, details erp.CnxnDetails, table string, fields []string, bufSize int,
) (*model.FieldCatalog, []model.ColumnChunk, error) {
	body := metaRequest{CnxnDetails: details, TableName: table, Fields: fields, SAPBufferSize: bufSize}
	var resp metaResponse
	if err := c.postJSON(ctx, "/meta", body, &resp); err != nil {
		return nil, nil, err
	}
	cat, err := CatalogFromCSV(table, resp.MetaCSV)
	if err != nil {
		return nil, nil, errors.Wrap(xerrors.ErrParseFailure, err.Error())
	}
	chunks := make([]model.ColumnChunk, len(resp.VChunks))
	for i, v := range resp.VChunks {
		chunks[i] = model.ColumnChunk(v)
	}
	return cat, chunks, nil
}

// Read calls POST /read for unit and applies the response onto it. dtypes
// is the table's expected-dtype map (spec §3), forwarded so the node can
// normalize DECIMAL fields (SPEC_FULL §11.8).
func (c *Client) Read(
	ctx context.Context, details erp.CnxnDetails, tableName string, unit *model.Unit, sqlCnxnstr, tag string,
	dtypes map[string]string,
) error {
	vchunks := make([][]string, len(unit.Chunks))
	for i, ch := range unit.Chunks {
		vchunks[i] = []string(ch)
	}
	body := readRequest{
		CnxnDetails:       details,
		TableName:         tableName,
		RI:                unit.RI,
		N:                 unit.N,
		Where:             unit.Where,
		VChunks:           vchunks,
		SQLAlchemyCnxnstr: sqlCnxnstr,
		OutputTablename:   unit.Destination,
		Keep:              unit.Keep,
		Tag:               tag,
		DTypes:            dtypes,
	}
	var resp readResponse
	if err := c.postJSON(ctx, "/read", body, &resp); err != nil {
		unit.Status = model.StatusFail
		unit.Err = err
		return err
	}
	if ts, err := time.Parse(timestampLayout, resp.Timestamp); err == nil {
		unit.Timestamp = ts
	}
	unit.Count = resp.Count
	if resp.Status != "OK" {
		unit.Status = model.StatusFail
		unit.Err = errors.Newf("node %s reported FAIL for ri=%d", c.Addr, unit.RI)
		return unit.Err
	}
	unit.Status = model.StatusOk
	if unit.Keep && resp.Data != "" {
		payload, err := csvToBatch(resp.Data)
		if err != nil {
			return errors.Wrap(xerrors.ErrParseFailure, err.Error())
		}
		unit.Payload = payload
	}
	return nil
}

// Probe calls GET / and reports whether the node answered at all. Unlike
// registry.Registry.Probe, it does not check the body for the UP token.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Addr+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return xerrors.ErrNodeUnreachable
	}
	defer resp.Body.Close()
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshaling request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Addr+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(xerrors.ErrUnitTransport, "%s %s: %v", http.MethodPost, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errors.Wrapf(xerrors.ErrMetaFailure, "%s %s: status %d: %s",
			http.MethodPost, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(xerrors.ErrParseFailure, "decoding %s response: %v", path, err)
	}
	return nil
}

func csvToBatch(data string) (*model.Batch, error) {
	cr := csv.NewReader(strings.NewReader(data))
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &model.Batch{}, nil
	}
	return &model.Batch{Columns: records[0], Rows: records[1:]}, nil
}
