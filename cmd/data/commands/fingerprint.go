// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/nanodata-io/nanodata/cmd/data/cli"
	"github.com/nanodata-io/nanodata/lib/codec"
	"github.com/nanodata-io/nanodata/lib/fingerprint"
)

func fingerprintCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
		debug      bool
	)

	return &cli.Command{
		Name:    "fingerprint",
		Summary: "resolve a config and print its fingerprint",
		Usage:   "data fingerprint [flags] <config.yaml>",
		Description: "fingerprint resolves the config (following references and\n" +
			"base imports, stat-ing sources) and prints the canonical\n" +
			"fingerprint without materializing anything.",
		Examples: []cli.Example{
			{
				Description: "inspect the canonical form in CBOR diagnostic notation",
				Command:     "data fingerprint corpus.yaml --debug",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("fingerprint", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "application config file")
			flags.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
			flags.BoolVar(&debug, "debug", false, "print the canonical form in diagnostic notation")
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

			resolved, fp, err := repo.Resolve(ctx, node)
			if err != nil {
				return err
			}

			if debug {
				canonical, err := fingerprint.CanonicalBytes(resolved)
				if err != nil {
					return err
				}
				diagnostic, err := codec.Diagnose(canonical)
				if err != nil {
					return err
				}
				fmt.Println(diagnostic)
			}

			fmt.Println(fp.Hex())
			return nil
		},
	}
}
