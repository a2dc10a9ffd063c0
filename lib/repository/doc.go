// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package repository is the caller-facing surface of the engine. It
// ties resolution, fingerprinting, coordination, materialization, and
// the cache store into one operation:
//
//	repo, err := repository.Open(ctx, repository.Config{Root: dir})
//	...
//	artifact, err := repo.Get(ctx, configNode)
//	if err != nil {
//	    return err
//	}
//	defer artifact.Close()
//	// read files under artifact.Dir()
//
// Get resolves the config, fingerprints the resolved tree, and either
// returns the cached artifact or materializes it exactly once, no
// matter how many goroutines or processes ask concurrently. The
// returned Artifact pins its cache entry against eviction until
// closed.
//
// The repository also keeps the alias registry: mutable human names
// ("mnist-v2") pointing at immutable fingerprints, so the CLI can
// address artifacts without re-resolving a config.
package repository
