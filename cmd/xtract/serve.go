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
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/sapxtract/xtract/internal/log"
	"github.com/sapxtract/xtract/pkg/erp"
	"github.com/sapxtract/xtract/pkg/node"
)

const (
	serveAddrName    = "addr"
	serveNodeKeyName = "node-key"
	serveDemoName    = "demo"
)

var (
	serveAddr    string
	serveNodeKey string
	serveDemo    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run an extraction node",
	Long: `
Serve the ExtractionNode HTTP surface (/, /test, /info, /meta, /read) on
this host. Wiring a real ERP RFC client is an integration left to the
embedder: the --demo flag preloads a small in-memory catalog so the node
can be smoke-tested end to end without one.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, serveAddrName, ":8080", "address to listen on")
	serveCmd.Flags().StringVar(&serveNodeKey, serveNodeKeyName, "", "identifies this node for the metadata gate (defaults to --addr)")
	serveCmd.Flags().BoolVar(&serveDemo, serveDemoName, false, "serve an in-memory demo catalog instead of a real ERP connection")
}

func runServe(ctx context.Context) error {
	if !serveDemo {
		return errors.New("serve requires --demo until a real ERP Dialer is wired in by an embedding program")
	}
	nodeKey := serveNodeKey
	if nodeKey == "" {
		nodeKey = serveAddr
	}

	var dialer erp.Dialer = erp.NewDemoDialer()
	srv := node.NewServer(dialer, nodeKey)
	defer srv.Close()

	mux := http.NewServeMux()
	srv.Register(mux)

	log.Infof(ctx, "extraction node listening on %s (node-key=%s, demo=%v)", serveAddr, nodeKey, serveDemo)
	return http.ListenAndServe(serveAddr, mux)
}
