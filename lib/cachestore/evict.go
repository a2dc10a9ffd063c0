// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package cachestore

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Policy decides which Ready entries to evict. Candidates arrive
// ordered by last access, oldest first, with pinned entries already
// removed. Reserved is the byte total of pinned Ready entries: they
// count against any budget even though they cannot be victims.
type Policy interface {
	Plan(candidates []Entry, reserved int64) []Entry
}

// LRU evicts least-recently-used entries until total Ready bytes fit
// within ByteBudget. A zero budget means unlimited and plans nothing.
type LRU struct {
	ByteBudget int64
}

// Plan returns the oldest candidates whose removal brings the total
// under the budget. The total includes reserved bytes, so a cache
// whose pinned entries alone exceed the budget sheds every candidate.
func (p LRU) Plan(candidates []Entry, reserved int64) []Entry {
	if p.ByteBudget <= 0 {
		return nil
	}
	total := reserved
	for _, entry := range candidates {
		total += entry.Size
	}
	var victims []Entry
	for _, entry := range candidates {
		if total <= p.ByteBudget {
			break
		}
		victims = append(victims, entry)
		total -= entry.Size
	}
	return victims
}

// EvictReport summarizes one eviction pass.
type EvictReport struct {
	Evicted        []Entry
	BytesReclaimed int64
	// SkippedPinned counts entries the policy selected but that were
	// pinned at removal time.
	SkippedPinned int
	// StagingRemoved counts stale staging directories swept from tmp/.
	StagingRemoved int
}

// stagingMaxAge is how long an abandoned staging directory survives
// before the sweep removes it. Long enough that a legitimately slow
// build in another process is never swept out from under itself.
const stagingMaxAge = 24 * time.Hour

// Evict runs one eviction pass: applies the policy to Ready entries
// (pinned ones excluded), removes the selected payloads, and sweeps
// stale staging directories. Failed rows older than the staging age
// are dropped too, so a transient failure does not pin its error
// message in the index forever.
func (s *Store) Evict(ctx context.Context, policy Policy) (EvictReport, error) {
	all, err := s.Entries(ctx)
	if err != nil {
		return EvictReport{}, err
	}

	cutoff := s.now().Add(-stagingMaxAge)

	candidates := make([]Entry, 0, len(all))
	var reserved int64
	for _, entry := range all {
		switch entry.Status {
		case StatusReady:
			if s.pinned(entry.Fingerprint) {
				reserved += entry.Size
			} else {
				candidates = append(candidates, entry)
			}
		case StatusFailed:
			if entry.LastAccess.Before(cutoff) {
				if err := s.deleteEntryRow(ctx, entry.Fingerprint); err != nil {
					return EvictReport{}, err
				}
			}
		}
	}

	var report EvictReport
	for _, victim := range policy.Plan(candidates, reserved) {
		// beginEvict re-checks the pin count under the pin lock and
		// blocks new Acquires until endEvict, so a reader can never
		// pin the payload while it is being removed.
		if !s.beginEvict(victim.Fingerprint) {
			report.SkippedPinned++
			continue
		}
		err := s.Invalidate(ctx, victim.Fingerprint)
		s.endEvict(victim.Fingerprint)
		if err != nil {
			return report, err
		}
		s.logger.Info("entry evicted",
			"fingerprint", victim.Fingerprint.Hex(), "size", victim.Size,
			"last_access", victim.LastAccess)
		report.Evicted = append(report.Evicted, victim)
		report.BytesReclaimed += victim.Size
	}

	removed, err := s.sweepStaging(cutoff)
	if err != nil {
		return report, err
	}
	report.StagingRemoved = removed
	return report, nil
}

// sweepStaging removes staging directories older than the cutoff.
// These are leftovers from crashed or aborted builds.
func (s *Store) sweepStaging(cutoff time.Time) (int, error) {
	stagingRoot := filepath.Join(s.root, tmpDir)
	dirs, err := os.ReadDir(stagingRoot)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, dir := range dirs {
		info, err := dir.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(stagingRoot, dir.Name())
		if err := os.RemoveAll(path); err != nil {
			return removed, err
		}
		s.logger.Debug("stale staging directory removed", "path", path)
		removed++
	}
	return removed, nil
}
