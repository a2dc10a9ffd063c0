// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/nanodata-io/nanodata/cmd/data/cli"
)

func pullCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
	)

	return &cli.Command{
		Name:    "pull",
		Summary: "open a cached artifact by alias or fingerprint",
		Usage:   "data pull [flags] <alias-or-fingerprint>",
		Description: "pull looks up a cached artifact by alias or full hex\n" +
			"fingerprint and prints its directory. It never materializes:\n" +
			"a key with no ready artifact is an error.",
		Examples: []cli.Example{
			{
				Description: "open the artifact behind an alias",
				Command:     "data pull corpus/latest",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("pull", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "application config file")
			flags.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one key, got %d arguments", len(args))
			}
			ctx := context.Background()
			logger := newLogger(verbose)

			repo, err := openRepository(ctx, configPath, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			artifact, err := repo.GetByKey(ctx, args[0])
			if err != nil {
				return err
			}
			defer artifact.Close()

			fmt.Println(artifact.Dir())
			return nil
		},
	}
}
