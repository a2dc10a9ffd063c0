// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nanodata-io/nanodata/lib/backend"
	"github.com/nanodata-io/nanodata/lib/cachestore"
	"github.com/nanodata-io/nanodata/lib/configtree"
	"github.com/nanodata-io/nanodata/lib/coordinate"
	"github.com/nanodata-io/nanodata/lib/dataerr"
	"github.com/nanodata-io/nanodata/lib/fingerprint"
	"github.com/nanodata-io/nanodata/lib/materialize"
	"github.com/nanodata-io/nanodata/lib/resolver"
)

// lockRetries is how many times Get re-attempts after a lock timeout
// before surfacing the error. Each retry waits lockRetryDelay longer
// than the last.
const (
	lockRetries    = 2
	lockRetryDelay = 500 * time.Millisecond
)

// Config configures a Repository. Root is required; everything else
// has working defaults.
type Config struct {
	// Root is the cache root directory.
	Root string

	// Backends is the scheme registry for resolving references. Nil
	// means a registry with just the local filesystem backend.
	Backends *backend.Registry

	// ByteBudget caps total Ready bytes; the LRU sweep enforces it.
	// Zero means unlimited.
	ByteBudget int64

	// LockTimeout bounds waiting on another process's build. Zero
	// means coordinate.DefaultLockTimeout.
	LockTimeout time.Duration

	// MaxBuilds caps concurrent materializations. Zero means
	// GOMAXPROCS.
	MaxBuilds int

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Repository is the engine's caller-facing handle. Safe for
// concurrent use.
type Repository struct {
	registry     *backend.Registry
	store        *cachestore.Store
	coordinator  *coordinate.Coordinator
	resolver     *resolver.Resolver
	materializer *materialize.Materializer
	aliases      *AliasStore
	budget       int64
	logger       *slog.Logger
}

// Open opens (creating if necessary) the repository at config.Root.
func Open(ctx context.Context, config Config) (*Repository, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("repository: Root is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	registry := config.Backends
	if registry == nil {
		registry = backend.NewRegistry()
		if err := registry.Register("local", backend.NewLocal("")); err != nil {
			return nil, err
		}
	}

	store, err := cachestore.Open(ctx, cachestore.Options{
		Root:   config.Root,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	coordinator, err := coordinate.New(coordinate.Options{
		LockDir:     filepath.Join(config.Root, "locks"),
		MaxBuilds:   config.MaxBuilds,
		LockTimeout: config.LockTimeout,
		Logger:      logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	aliases, err := OpenAliasStore(filepath.Join(config.Root, "aliases"))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Repository{
		registry:     registry,
		store:        store,
		coordinator:  coordinator,
		resolver:     resolver.New(registry),
		materializer: materialize.New(registry, logger),
		aliases:      aliases,
		budget:       config.ByteBudget,
		logger:       logger,
	}, nil
}

// Close releases the repository's resources. Outstanding Artifact
// handles stay readable (they hold plain directories), but their pins
// no longer protect against other processes' eviction.
func (r *Repository) Close() error {
	return r.store.Close()
}

// Backends returns the backend registry, for callers that register
// additional schemes after Open.
func (r *Repository) Backends() *backend.Registry {
	return r.registry
}

// Resolve resolves a config tree without materializing anything.
// Exposed for fingerprint inspection (`data fingerprint`).
func (r *Repository) Resolve(ctx context.Context, config *configtree.Node) (*configtree.Node, fingerprint.Fingerprint, error) {
	resolved, err := r.resolver.Resolve(ctx, config)
	if err != nil {
		return nil, fingerprint.Fingerprint{}, err
	}
	fp, err := fingerprint.Of(resolved)
	if err != nil {
		return nil, fingerprint.Fingerprint{}, err
	}
	return resolved, fp, nil
}

// Get returns the artifact for a config, materializing it if needed.
// Identical resolved configs share one cache entry and one build. The
// caller must Close the returned artifact.
func (r *Repository) Get(ctx context.Context, config *configtree.Node) (*Artifact, error) {
	resolved, fp, err := r.Resolve(ctx, config)
	if err != nil {
		return nil, err
	}

	// Fast path: a Ready entry needs no coordination at all.
	if artifact, ok, err := r.openReady(ctx, fp); err != nil {
		return nil, annotate(err, fp)
	} else if ok {
		return artifact, nil
	}

	plan, err := materialize.PlanFromConfig(resolved)
	if err != nil {
		return nil, annotate(err, fp)
	}

	for attempt := 0; ; attempt++ {
		_, err := r.build(ctx, fp, plan)
		if err == nil {
			artifact, ok, err := r.openReady(ctx, fp)
			if err != nil {
				return nil, annotate(err, fp)
			}
			if ok {
				return artifact, nil
			}
			// The fresh entry was swept before it could be pinned.
			if attempt < lockRetries {
				continue
			}
			return nil, dataerr.New(dataerr.MaterializationFailed,
				"artifact evicted before it could be pinned").WithFingerprint(fp.Hex())
		}
		if dataerr.KindOf(err).Retryable() && attempt < lockRetries {
			delay := lockRetryDelay * time.Duration(attempt+1)
			r.logger.Warn("build lock contention, retrying",
				"fingerprint", fp.Hex(), "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		return nil, annotate(err, fp)
	}
}

// build runs one coordinated materialization attempt.
func (r *Repository) build(ctx context.Context, fp fingerprint.Fingerprint, plan materialize.Plan) (cachestore.Entry, error) {
	result, shared, err := r.coordinator.Do(ctx, fp, func(buildCtx context.Context) (any, error) {
		// Re-check under the lock: another process (or the in-process
		// flight we just missed) may have committed while we waited.
		existing, found, err := r.store.Lookup(buildCtx, fp)
		if err != nil {
			return nil, err
		}
		if found && existing.Status == cachestore.StatusReady {
			return existing, nil
		}

		handle, err := r.store.Begin(buildCtx, fp, plan.Source.URI())
		if err != nil {
			return nil, err
		}
		if err := r.materializer.Run(buildCtx, plan, handle); err != nil {
			if abortErr := r.store.Abort(buildCtx, handle, err); abortErr != nil {
				r.logger.Warn("recording build failure failed",
					"fingerprint", fp.Hex(), "error", abortErr)
			}
			return nil, err
		}
		return r.store.Commit(buildCtx, handle)
	})
	if err != nil {
		return cachestore.Entry{}, err
	}
	if shared {
		r.logger.Debug("joined in-flight build", "fingerprint", fp.Hex())
	}
	return result.(cachestore.Entry), nil
}

// GetByKey returns the artifact for an alias or a hex fingerprint.
// This is cache-only: without a config there is nothing to rebuild
// from, so a miss is an error.
func (r *Repository) GetByKey(ctx context.Context, key string) (*Artifact, error) {
	fp, err := r.resolveKey(key)
	if err != nil {
		return nil, err
	}
	artifact, ok, err := r.openReady(ctx, fp)
	if err != nil {
		return nil, annotate(err, fp)
	}
	if !ok {
		return nil, fmt.Errorf("no materialized artifact for %q (fingerprint %s)", key, fp.Hex())
	}
	return artifact, nil
}

// Invalidate removes the cache entry for a config. The next Get
// rebuilds from the source.
func (r *Repository) Invalidate(ctx context.Context, config *configtree.Node) error {
	_, fp, err := r.Resolve(ctx, config)
	if err != nil {
		return err
	}
	return r.InvalidateFingerprint(ctx, fp)
}

// InvalidateFingerprint removes a cache entry by identity.
func (r *Repository) InvalidateFingerprint(ctx context.Context, fp fingerprint.Fingerprint) error {
	r.coordinator.Forget(fp)
	return r.store.Invalidate(ctx, fp)
}

// InvalidateKey removes the cache entry behind an alias or hex
// fingerprint. Aliases themselves are left in place; deleting a name
// is DeleteAlias's job.
func (r *Repository) InvalidateKey(ctx context.Context, key string) error {
	fp, err := r.resolveKey(key)
	if err != nil {
		return err
	}
	return r.InvalidateFingerprint(ctx, fp)
}

// Evict runs one LRU sweep against the configured byte budget.
func (r *Repository) Evict(ctx context.Context) (cachestore.EvictReport, error) {
	return r.store.Evict(ctx, cachestore.LRU{ByteBudget: r.budget})
}

// Entries lists the cache's entries, oldest access first.
func (r *Repository) Entries(ctx context.Context) ([]cachestore.Entry, error) {
	return r.store.Entries(ctx)
}

// RegisterAlias points a name at a config's fingerprint, resolving
// (but not materializing) the config.
func (r *Repository) RegisterAlias(ctx context.Context, name string, config *configtree.Node) (fingerprint.Fingerprint, error) {
	_, fp, err := r.Resolve(ctx, config)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	if err := r.aliases.Set(name, fp, time.Now().UTC()); err != nil {
		return fingerprint.Fingerprint{}, err
	}
	return fp, nil
}

// DeleteAlias removes a name. The target artifact is untouched.
func (r *Repository) DeleteAlias(name string) error {
	return r.aliases.Delete(name)
}

// Aliases returns the alias registry's records, sorted by name.
func (r *Repository) Aliases() []AliasRecord {
	return r.aliases.List()
}

// AliasTargets maps fingerprints to the alias names pointing at them.
func (r *Repository) AliasTargets() map[fingerprint.Fingerprint][]string {
	return r.aliases.Targets()
}

// resolveKey turns a CLI-style key (alias or 64-char hex fingerprint)
// into a fingerprint.
func (r *Repository) resolveKey(key string) (fingerprint.Fingerprint, error) {
	if fp, err := fingerprint.Parse(key); err == nil {
		return fp, nil
	}
	if record, ok := r.aliases.Get(key); ok {
		return record.Target, nil
	}
	return fingerprint.Fingerprint{}, fmt.Errorf("%q is neither a fingerprint nor a registered alias", key)
}

// openReady pins and wraps a Ready entry, if one exists. The pin is
// taken atomically with the lookup (store.Acquire), so the returned
// artifact's directory cannot be evicted out from under the caller.
func (r *Repository) openReady(ctx context.Context, fp fingerprint.Fingerprint) (*Artifact, bool, error) {
	entry, ok, err := r.store.Acquire(ctx, fp)
	if err != nil || !ok {
		return nil, false, err
	}
	return r.wrap(entry), true, nil
}

// wrap builds the Artifact handle over an entry whose pin the caller
// already holds.
func (r *Repository) wrap(entry cachestore.Entry) *Artifact {
	return &Artifact{
		entry:   entry,
		dir:     r.store.EntryDir(entry.Fingerprint),
		release: func() { r.store.Unpin(entry.Fingerprint) },
	}
}

// annotate attaches the fingerprint to a kinded error that does not
// carry one yet.
func annotate(err error, fp fingerprint.Fingerprint) error {
	var kinded *dataerr.Error
	if errors.As(err, &kinded) && kinded.Fingerprint == "" {
		return kinded.WithFingerprint(fp.Hex())
	}
	return err
}
