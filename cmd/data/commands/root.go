// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the data command tree.
package commands

import "github.com/nanodata-io/nanodata/cmd/data/cli"

// Root returns the top-level data command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "data",
		Summary: "content-addressed data artifacts from declarative configs",
		Description: "data resolves declarative YAML configs into canonical\n" +
			"fingerprints and materializes the described datasets into a\n" +
			"local content-addressed cache. Identical configs share one\n" +
			"cached artifact; changed configs get a fresh one.",
		Subcommands: []*cli.Command{
			getCommand(),
			fingerprintCommand(),
			listCommand(),
			pullCommand(),
			registerCommand(),
			removeCommand(),
			evictCommand(),
			versionCommand(),
		},
	}
}
