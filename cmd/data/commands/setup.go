// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nanodata-io/nanodata/cmd/data/cli"
	"github.com/nanodata-io/nanodata/lib/backend"
	"github.com/nanodata-io/nanodata/lib/config"
	"github.com/nanodata-io/nanodata/lib/configtree"
	"github.com/nanodata-io/nanodata/lib/repository"
)

// newLogger builds the command logger. Verbose lowers the level to
// debug; the default hides routine progress.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return cli.NewCommandLogger(level)
}

// loadAppConfig loads the application configuration from the --config
// flag value, falling back to NANODATA_CONFIG and then defaults.
func loadAppConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// buildRegistry constructs the backend registry from configuration.
// The local backend is always available; s3 and hub are registered
// only when configured.
func buildRegistry(ctx context.Context, cfg *config.Config) (*backend.Registry, error) {
	registry := backend.NewRegistry()
	if err := registry.Register("local", backend.NewLocal(cfg.Backends.LocalRoot)); err != nil {
		return nil, err
	}

	if cfg.Backends.S3 != nil {
		s3Backend, err := backend.NewS3(ctx, backend.S3Options{
			Region:       cfg.Backends.S3.Region,
			Endpoint:     cfg.Backends.S3.Endpoint,
			UsePathStyle: cfg.Backends.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring s3 backend: %w", err)
		}
		if err := registry.Register("s3", s3Backend); err != nil {
			return nil, err
		}
	}

	if cfg.Backends.Hub != nil {
		var options []backend.HubOption
		if cfg.Backends.Hub.URL != "" {
			options = append(options, backend.WithHubURL(cfg.Backends.Hub.URL))
		}
		if cfg.Backends.Hub.Token != "" {
			options = append(options, backend.WithHubToken(cfg.Backends.Hub.Token))
		}
		if err := registry.Register("hub", backend.NewHub(options...)); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// openRepository loads configuration and opens the artifact repository
// it describes.
func openRepository(ctx context.Context, configPath string, logger *slog.Logger) (*repository.Repository, error) {
	cfg, err := loadAppConfig(configPath)
	if err != nil {
		return nil, err
	}

	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	budget, err := cfg.ByteBudgetBytes()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.LockTimeoutDuration()
	if err != nil {
		return nil, err
	}

	return repository.Open(ctx, repository.Config{
		Root:        cfg.Cache.Root,
		Backends:    registry,
		ByteBudget:  budget,
		LockTimeout: timeout,
		MaxBuilds:   cfg.Cache.MaxBuilds,
		Logger:      logger,
	})
}

// loadConfigNode reads a YAML config from a file, or stdin when path
// is "-".
func loadConfigNode(path string) (*configtree.Node, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	node, err := configtree.ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return node, nil
}
