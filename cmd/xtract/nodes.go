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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sapxtract/xtract/pkg/registry"
)

const nodesAddrsName = "nodes"

var nodesAddrs []string

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "probe a list of extraction node addresses for liveness",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNodes(cmd.Context())
	},
}

func init() {
	nodesCmd.Flags().StringArrayVar(&nodesAddrs, nodesAddrsName, nil, "extraction node base URL (repeatable)")
}

func runNodes(ctx context.Context) error {
	reg := registry.NewRegistry()
	for _, addr := range nodesAddrs {
		if err := reg.Probe(ctx, addr); err != nil {
			fmt.Printf("%s\tDOWN\t%v\n", addr, err)
			continue
		}
		fmt.Printf("%s\tUP\n", addr)
	}
	return nil
}
