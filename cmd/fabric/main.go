// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Registers the crypto package's key generator/storage/format
	// implementations; every subcommand that touches identities needs
	// this wired before main runs.
	_ "github.com/agentfabric/fabric/internal/cryptoinit"
)

var rootCmd = &cobra.Command{
	Use:   "fabric",
	Short: "Agent interconnect fabric CLI",
	Long: `fabric operates the agent interconnect fabric: generate identities,
run a local fabric server exposing the read-only admin/metrics/event
surfaces, or exercise registration, discovery, and messaging against an
ephemeral in-process fabric for local testing.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
