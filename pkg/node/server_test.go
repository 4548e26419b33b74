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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapxtract/xtract/pkg/erp"
	"github.com/sapxtract/xtract/pkg/model"
)

func TestCatalogCSVRoundTrip(t *testing.T) {
	cat := &model.FieldCatalog{Table: "CUSTOMERS", Fields: []model.FieldMeta{
		{Name: "ID", Leng: 10, Key: true, Position: 1, RollName: "CHAR10", IntType: "C"},
		{Name: "NAME", Leng: 40, Position: 2, RollName: "CHAR40", IntType: "C"},
	}}

	csv := catalogToCSV(cat)
	got, err := CatalogFromCSV("CUSTOMERS", csv)
	require.NoError(t, err)
	assert.Equal(t, cat.Fields, got.Fields)
}

func newTestServer(t *testing.T) *httptest.Server {
	srv := NewServer(erp.NewDemoDialer(), "node1")
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) *http.Response {
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHandleUpReturnsLiteralUP(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Equal(t, "UP", buf.String())
}

func TestHandleMetaReturnsPartitionedChunks(t *testing.T) {
	ts := newTestServer(t)

	var resp metaResponse
	postJSON(t, ts.URL+"/meta", metaRequest{TableName: "CUSTOMERS", SAPBufferSize: 50}, &resp)

	cat, err := CatalogFromCSV("CUSTOMERS", resp.MetaCSV)
	require.NoError(t, err)
	assert.Len(t, cat.Fields, 5)
	assert.NotEmpty(t, resp.VChunks)
}

func TestHandleReadStitchesAndReturnsCount(t *testing.T) {
	ts := newTestServer(t)

	var meta metaResponse
	postJSON(t, ts.URL+"/meta", metaRequest{TableName: "CUSTOMERS", SAPBufferSize: 400}, &meta)

	var resp readResponse
	postJSON(t, ts.URL+"/read", readRequest{
		TableName: "CUSTOMERS", RI: 0, N: 2, VChunks: meta.VChunks, Keep: true,
	}, &resp)

	assert.Equal(t, "OK", resp.Status)
	assert.EqualValues(t, 2, resp.Count)
	assert.NotEmpty(t, resp.Data)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHandleReadFailsOnUnknownTable(t *testing.T) {
	ts := newTestServer(t)

	var resp readResponse
	postJSON(t, ts.URL+"/read", readRequest{
		TableName: "NOSUCHTABLE", RI: 0, N: 2, VChunks: [][]string{{"ID"}},
	}, &resp)

	assert.Equal(t, "FAIL", resp.Status)
}
