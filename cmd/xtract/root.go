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
	"github.com/spf13/cobra"

	"github.com/sapxtract/xtract/internal/log"
)

// Flag names, documented the way pkg/cli/cliflags/names.go names its flags.
const (
	verbosityName = "verbosity"
)

var verbosity string

var rootCmd = &cobra.Command{
	Use:   "xtract",
	Short: "extract large ERP tables through a row-limited RFC gateway",
	Long: `
xtract pulls a table out of a remote ERP system through a row-limited,
buffer-constrained READ_TABLE-style RFC, landing rows into a relational
sink.

Run "xtract serve" on one or more extraction nodes, then "xtract extract"
against the pool of node addresses to pull a table.
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.SetLevel(verbosity)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&verbosity, verbosityName, "info",
		"log verbosity (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(nodesCmd)
}
