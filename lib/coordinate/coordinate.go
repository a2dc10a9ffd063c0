// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package coordinate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/nanodata-io/nanodata/lib/fingerprint"
)

// DefaultLockTimeout bounds how long an acquirer waits on another
// process's build before giving up with a LockTimeout error.
const DefaultLockTimeout = 10 * time.Minute

// Options configures a Coordinator.
type Options struct {
	// LockDir is where per-fingerprint lock files live, created if
	// absent. Required.
	LockDir string

	// MaxBuilds caps concurrently running builds. Zero or negative
	// means GOMAXPROCS.
	MaxBuilds int

	// LockTimeout bounds waiting on a cross-process lock. Zero means
	// DefaultLockTimeout.
	LockTimeout time.Duration

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Coordinator collapses concurrent builds of the same fingerprint and
// bounds total build concurrency. Safe for concurrent use.
type Coordinator struct {
	lockDir     string
	lockTimeout time.Duration
	builds      *semaphore.Weighted
	flight      singleflight.Group
	logger      *slog.Logger
}

// New creates a Coordinator, creating the lock directory if needed.
func New(options Options) (*Coordinator, error) {
	if options.LockDir == "" {
		return nil, fmt.Errorf("coordinate: LockDir is required")
	}
	if err := os.MkdirAll(options.LockDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	maxBuilds := options.MaxBuilds
	if maxBuilds <= 0 {
		maxBuilds = runtime.GOMAXPROCS(0)
	}
	lockTimeout := options.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Coordinator{
		lockDir:     options.LockDir,
		lockTimeout: lockTimeout,
		builds:      semaphore.NewWeighted(int64(maxBuilds)),
		logger:      logger,
	}, nil
}

// lockPath returns the lock file for a fingerprint.
func (c *Coordinator) lockPath(fp fingerprint.Fingerprint) string {
	return filepath.Join(c.lockDir, fp.Hex()+".lock")
}

// Do runs build under the fingerprint's exclusion permit. Concurrent
// callers for the same fingerprint share one build; shared reports
// whether this caller rode along on another's.
//
// The build runs on a context detached from the caller's: a waiter
// abandoning the result (ctx cancelled) must not cancel a build other
// callers still want, and a completed build is cached either way. The
// build is still bounded by the coordinator's lock timeout.
func (c *Coordinator) Do(ctx context.Context, fp fingerprint.Fingerprint, build func(ctx context.Context) (any, error)) (value any, shared bool, err error) {
	key := fp.Hex()

	resultCh := c.flight.DoChan(key, func() (any, error) {
		buildCtx := context.WithoutCancel(ctx)

		if err := c.builds.Acquire(buildCtx, 1); err != nil {
			return nil, fmt.Errorf("acquiring build slot: %w", err)
		}
		defer c.builds.Release(1)

		lock, err := acquireFileLock(buildCtx, c.lockPath(fp), c.lockTimeout)
		if err != nil {
			return nil, err
		}
		defer func() {
			if releaseErr := lock.release(); releaseErr != nil {
				c.logger.Warn("releasing build lock failed",
					"fingerprint", key, "error", releaseErr)
			}
		}()

		return build(buildCtx)
	})

	select {
	case result := <-resultCh:
		return result.Val, result.Shared, result.Err
	case <-ctx.Done():
		// The build keeps running for the remaining waiters (or to
		// warm the cache); this caller just stops waiting.
		return nil, false, ctx.Err()
	}
}

// Forget drops the in-flight record for a fingerprint so the next Do
// starts a fresh build instead of joining a completed one. Used after
// invalidation.
func (c *Coordinator) Forget(fp fingerprint.Fingerprint) {
	c.flight.Forget(fp.Hex())
}
