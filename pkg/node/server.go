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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/mem"
	netstat "github.com/shirou/gopsutil/v3/net"

	"github.com/sapxtract/xtract/internal/log"
	"github.com/sapxtract/xtract/pkg/catalog"
	"github.com/sapxtract/xtract/pkg/erp"
	"github.com/sapxtract/xtract/pkg/model"
	"github.com/sapxtract/xtract/pkg/partition"
	"github.com/sapxtract/xtract/pkg/sink"
)

// Server exposes the ExtractionNode's HTTP surface (spec §6). It is
// stateless across requests except for the per-(table,node) metadata gate
// and the lazily-opened sink connections, matching the spec's "stateless
// extraction workers" framing.
type Server struct {
	Dialer   erp.Dialer
	Resolver *catalog.Resolver
	NodeKey  string // identifies this node for the metadata gate (spec §4.1)

	mu        sync.Mutex
	appenders map[string]sink.Appender
}

// NewServer constructs a Server ready to register on a mux.
func NewServer(dialer erp.Dialer, nodeKey string) *Server {
	return &Server{
		Dialer:    dialer,
		Resolver:  catalog.NewResolver(),
		NodeKey:   nodeKey,
		appenders: make(map[string]sink.Appender),
	}
}

// Register wires the node's HTTP surface onto mux (spec §6).
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleUp)
	mux.HandleFunc("/test", s.handleTest)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/meta", s.handleMeta)
	mux.HandleFunc("/read", s.handleRead)
}

func (s *Server) handleUp(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("UP"))
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// infoRequest is POST /info's body.
type infoRequest struct {
	CnxnDetails erp.CnxnDetails `json:"cnxn_details"`
}

// infoResponse is POST /info's body; Data is additive host-resource
// reporting (SPEC_FULL §11.3), not required by spec §6's consumer.
type infoResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req infoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, infoResponse{Status: "fail"})
		return
	}
	conn, err := s.Dialer.Open(ctx, req.CnxnDetails)
	if err != nil {
		log.Warningf(ctx, "info probe failed to open connection: %v", err)
		writeJSON(w, http.StatusOK, infoResponse{Status: "fail"})
		return
	}
	defer conn.Close()
	writeJSON(w, http.StatusOK, infoResponse{Status: "OK", Data: s.hostStats()})
}

func (s *Server) hostStats() map[string]interface{} {
	stats := map[string]interface{}{}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats["mem_used_percent"] = vm.UsedPercent
		stats["mem_available"] = vm.Available
	}
	if counters, err := netstat.IOCounters(false); err == nil && len(counters) > 0 {
		stats["net_bytes_sent"] = counters[0].BytesSent
		stats["net_bytes_recv"] = counters[0].BytesRecv
	}
	return stats
}

// metaRequest is POST /meta's body.
type metaRequest struct {
	CnxnDetails   erp.CnxnDetails `json:"cnxn_details"`
	TableName     string          `json:"table_name"`
	Fields        []string        `json:"fields,omitempty"`
	SAPBufferSize int             `json:"sap_buffer_size,omitempty"`
}

// metaResponse is POST /meta's body (spec §6).
type metaResponse struct {
	MetaCSV string     `json:"meta_csv"`
	VChunks [][]string `json:"vchunks"`
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req metaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	conn, err := s.Dialer.Open(ctx, req.CnxnDetails)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer conn.Close()

	fields, cat, err := s.Resolver.Resolve(ctx, s.NodeKey, conn, req.TableName, req.Fields)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	chunks, err := partition.Partition(fields, cat, req.SAPBufferSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	vchunks := make([][]string, len(chunks))
	for i, c := range chunks {
		vchunks[i] = []string(c)
	}
	writeJSON(w, http.StatusOK, metaResponse{
		MetaCSV: catalogToCSV(cat),
		VChunks: vchunks,
	})
}

// catalogToCSV round-trips the field catalog as a CSV serialization (spec
// §6, P7): name,leng,key,position,rollname,inttype per row.
func catalogToCSV(cat *model.FieldCatalog) string {
	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	for _, f := range cat.Fields {
		_ = cw.Write([]string{
			f.Name, fmt.Sprint(f.Leng), fmt.Sprint(f.Key), fmt.Sprint(f.Position), f.RollName, f.IntType,
		})
	}
	cw.Flush()
	return sb.String()
}

// CatalogFromCSV parses catalogToCSV's output back into a FieldCatalog
// (spec P7's round-trip property), used by callers that only have the
// wire-level meta_csv.
func CatalogFromCSV(table, data string) (*model.FieldCatalog, error) {
	cr := csv.NewReader(strings.NewReader(data))
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	cat := &model.FieldCatalog{Table: table}
	for _, rec := range records {
		if len(rec) < 6 {
			continue
		}
		var leng, pos int
		fmt.Sscan(rec[1], &leng)
		fmt.Sscan(rec[3], &pos)
		cat.Fields = append(cat.Fields, model.FieldMeta{
			Name:     rec[0],
			Leng:     leng,
			Key:      rec[2] == "true",
			Position: pos,
			RollName: rec[4],
			IntType:  rec[5],
		})
	}
	return cat, nil
}

// readRequest is POST /read's body (spec §6).
type readRequest struct {
	CnxnDetails       erp.CnxnDetails `json:"cnxn_details"`
	TableName         string          `json:"table_name"`
	RI                int64           `json:"ri"`
	N                 int64           `json:"n"`
	Where             string          `json:"where"`
	VChunks           [][]string      `json:"vchunks"`
	SQLAlchemyCnxnstr string          `json:"sqlalchemy_cnxnstr,omitempty"`
	OutputTablename   string          `json:"output_tablename,omitempty"`
	Keep              bool            `json:"keep"`
	Tag               string          `json:"tag,omitempty"`
	DTypes            map[string]string `json:"dtypes,omitempty"`
}

// readResponse is POST /read's body (spec §6).
type readResponse struct {
	Status    string `json:"STATUS"`
	Timestamp string `json:"TIMESTAMP"`
	Count     int64  `json:"COUNT"`
	Data      string `json:"DATA,omitempty"`
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req readRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, readResponse{Status: "FAIL"})
		return
	}

	dest := req.OutputTablename
	if dest == "" {
		dest = sink.DefaultDestination(req.TableName, req.Tag)
	}

	chunks := make([]model.ColumnChunk, len(req.VChunks))
	for i, c := range req.VChunks {
		chunks[i] = model.ColumnChunk(c)
	}

	table := model.NewTable(&model.TableRequest{Name: req.TableName})
	unit := &model.Unit{
		TableRef:    table,
		RI:          req.RI,
		N:           req.N,
		Chunks:      chunks,
		Destination: dest,
		Keep:        req.Keep,
		Where:       req.Where,
	}

	appender, err := s.appenderFor(req.SQLAlchemyCnxnstr)
	if err != nil {
		log.Errorf(ctx, "opening sink for /read: %v", err)
		writeJSON(w, http.StatusOK, readResponse{Status: "FAIL"})
		return
	}

	exec := &Executor{Dialer: s.Dialer, Appender: appender}
	if err := exec.Execute(ctx, req.CnxnDetails, req.DTypes, unit); err != nil {
		log.Errorf(ctx, "unit failed: %v", err)
		writeJSON(w, http.StatusOK, readResponse{Status: "FAIL", Timestamp: unit.Timestamp.Format(timestampLayout)})
		return
	}

	resp := readResponse{
		Status:    "OK",
		Timestamp: unit.Timestamp.Format(timestampLayout),
		Count:     unit.Count,
	}
	if req.Keep && unit.Payload != nil {
		resp.Data = batchToCSV(unit.Payload)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) appenderFor(connStr string) (sink.Appender, error) {
	if connStr == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.appenders[connStr]; ok {
		return a, nil
	}
	a, err := sink.NewPGAppender(connStr)
	if err != nil {
		return nil, err
	}
	s.appenders[connStr] = a
	return a, nil
}

// Close releases every lazily-opened sink connection (spec §5's "closed at
// worker exit").
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appenders {
		if closer, ok := a.(*sink.PGAppender); ok {
			_ = closer.Close()
		}
	}
}

func batchToCSV(b *model.Batch) string {
	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	_ = cw.Write(b.Columns)
	for _, row := range b.Rows {
		_ = cw.Write(row)
	}
	cw.Flush()
	return sb.String()
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
