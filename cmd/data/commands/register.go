// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/nanodata-io/nanodata/cmd/data/cli"
)

func registerCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
		deleteFlag bool
	)

	return &cli.Command{
		Name:    "register",
		Summary: "point an alias at a config's fingerprint",
		Usage:   "data register [flags] <alias> [<config.yaml>]",
		Description: "register resolves the config and points the alias at its\n" +
			"fingerprint, without materializing. Registering an existing\n" +
			"alias moves it. With --delete, the alias is removed and no\n" +
			"config is expected; the artifact itself stays cached.",
		Examples: []cli.Example{
			{
				Description: "name a config's artifact",
				Command:     "data register corpus/latest corpus.yaml",
			},
			{
				Description: "remove the alias, keeping the artifact",
				Command:     "data register --delete corpus/latest",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("register", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "application config file")
			flags.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
			flags.BoolVar(&deleteFlag, "delete", false, "delete the alias instead of setting it")
			return flags
		},
		Run: func(args []string) error {
			ctx := context.Background()
			logger := newLogger(verbose)

			if deleteFlag {
				if len(args) != 1 {
					return fmt.Errorf("expected exactly one alias to delete, got %d arguments", len(args))
				}
				repo, err := openRepository(ctx, configPath, logger)
				if err != nil {
					return err
				}
				defer repo.Close()
				return repo.DeleteAlias(args[0])
			}

			if len(args) != 2 {
				return fmt.Errorf("expected an alias and a config file, got %d arguments", len(args))
			}

			node, err := loadConfigNode(args[1])
			if err != nil {
				return err
			}

			repo, err := openRepository(ctx, configPath, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			fp, err := repo.RegisterAlias(ctx, args[0], node)
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s\n", args[0], fp.Hex())
			return nil
		},
	}
}
