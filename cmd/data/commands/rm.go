// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/nanodata-io/nanodata/cmd/data/cli"
)

func removeCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
	)

	return &cli.Command{
		Name:    "rm",
		Summary: "remove a cached artifact",
		Usage:   "data rm [flags] <alias-or-fingerprint>...",
		Description: "rm invalidates cached artifacts by alias or full hex\n" +
			"fingerprint, removing their payloads. Aliases pointing at a\n" +
			"removed artifact are left in place; the next get rebuilds it.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("rm", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "application config file")
			flags.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("expected at least one key")
			}
			ctx := context.Background()
			logger := newLogger(verbose)

			repo, err := openRepository(ctx, configPath, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			for _, key := range args {
				if err := repo.InvalidateKey(ctx, key); err != nil {
					return fmt.Errorf("removing %s: %w", key, err)
				}
			}
			return nil
		},
	}
}
