// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/nanodata-io/nanodata/cmd/data/cli"
)

func getCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
		printFiles bool
	)

	return &cli.Command{
		Name:    "get",
		Summary: "materialize a config and print the artifact directory",
		Usage:   "data get [flags] <config.yaml>",
		Description: "get resolves the config, materializes its dataset if not\n" +
			"already cached, and prints the artifact directory. Pass \"-\" to\n" +
			"read the config from stdin.",
		Examples: []cli.Example{
			{
				Description: "materialize a dataset and list its files",
				Command:     "data get corpus.yaml --files",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("get", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "application config file")
			flags.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
			flags.BoolVar(&printFiles, "files", false, "list the artifact's files instead of its directory")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one config file, got %d arguments", len(args))
			}
			ctx := context.Background()
			logger := newLogger(verbose)

			node, err := loadConfigNode(args[0])
			if err != nil {
				return err
			}

			repo, err := openRepository(ctx, configPath, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			artifact, err := repo.Get(ctx, node)
			if err != nil {
				return err
			}
			defer artifact.Close()

			if printFiles {
				files, err := artifact.Files()
				if err != nil {
					return err
				}
				for _, name := range files {
					fmt.Println(name)
				}
				return nil
			}

			fmt.Println(artifact.Dir())
			return nil
		},
	}
}
