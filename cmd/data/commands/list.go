// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/nanodata-io/nanodata/cmd/data/cli"
	"github.com/nanodata-io/nanodata/lib/cachestore"
)

func listCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
		all        bool
	)

	return &cli.Command{
		Name:    "list",
		Summary: "list cached artifacts",
		Usage:   "data list [flags]",
		Description: "list prints the cached artifacts ordered by last access,\n" +
			"oldest first. By default only ready artifacts are shown; --all\n" +
			"includes pending and failed entries.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "application config file")
			flags.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
			flags.BoolVarP(&all, "all", "a", false, "include pending and failed entries")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("list takes no arguments")
			}
			ctx := context.Background()
			logger := newLogger(verbose)

			repo, err := openRepository(ctx, configPath, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			entries, err := repo.Entries(ctx)
			if err != nil {
				return err
			}
			aliases := repo.AliasTargets()

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "FINGERPRINT\tSTATUS\tSIZE\tLAST ACCESS\tSOURCE\tALIASES")
			for _, entry := range entries {
				if !all && entry.Status != cachestore.StatusReady {
					continue
				}
				size := "-"
				if entry.Status == cachestore.StatusReady {
					size = humanize.Bytes(uint64(entry.Size))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					entry.Fingerprint.Short(),
					entry.Status,
					size,
					humanize.Time(entry.LastAccess),
					entry.Source,
					strings.Join(aliases[entry.Fingerprint], ", "))
			}
			return tw.Flush()
		},
	}
}
