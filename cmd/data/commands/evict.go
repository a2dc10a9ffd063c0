// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/nanodata-io/nanodata/cmd/data/cli"
)

func evictCommand() *cli.Command {
	var (
		configPath string
		verbose    bool
	)

	return &cli.Command{
		Name:    "evict",
		Summary: "evict least-recently-used artifacts over the byte budget",
		Usage:   "data evict [flags]",
		Description: "evict removes least-recently-used artifacts until the cache\n" +
			"fits the configured byte budget, drops stale failed entries, and\n" +
			"sweeps abandoned staging directories. With no budget configured\n" +
			"only the cleanup runs.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("evict", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "application config file")
			flags.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("evict takes no arguments")
			}
			ctx := context.Background()
			logger := newLogger(verbose)

			repo, err := openRepository(ctx, configPath, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			report, err := repo.Evict(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("evicted %d artifacts (%s reclaimed), skipped %d pinned, removed %d staging dirs\n",
				len(report.Evicted),
				humanize.Bytes(uint64(report.BytesReclaimed)),
				report.SkippedPinned,
				report.StagingRemoved)
			return nil
		},
	}
}
