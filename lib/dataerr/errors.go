// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package dataerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies engine errors. Kind strings are part of the public
// contract: they appear in CLI output and logs, and callers branch on
// them. Changing a value is a breaking change.
type Kind string

const (
	// UnhashableValue indicates a configuration scalar holds a type
	// outside the supported set (string, integer, float, bool, null),
	// so no stable fingerprint can be computed.
	UnhashableValue Kind = "unhashable-value"

	// CyclicReference indicates resolving a config reference re-entered
	// a config already on the resolution stack (a cycle in imported or
	// inherited configs).
	CyclicReference Kind = "cyclic-reference"

	// BackendNotFound indicates a reference names a storage scheme with
	// no registered backend.
	BackendNotFound Kind = "backend-not-found"

	// SourceUnavailable indicates the underlying store is unreachable:
	// network error, missing object, permission failure. Always
	// recoverable by the caller once the source is reachable again.
	SourceUnavailable Kind = "source-unavailable"

	// MaterializationFailed indicates an I/O or transform error while
	// producing the artifact. Recorded against the cache entry; the
	// next Get for the same fingerprint retries the build.
	MaterializationFailed Kind = "materialization-failed"

	// CacheCorruption indicates the cache metadata index was unreadable.
	// Recovered by a full directory rescan; surfaced only if the rescan
	// itself fails.
	CacheCorruption Kind = "cache-corruption"

	// LockTimeout indicates the advisory build lock was held past the
	// staleness threshold by a live process. The caller may retry later.
	LockTimeout Kind = "lock-timeout"
)

// Error is a kinded engine error. It wraps an inner error, preserving
// the full chain, and carries the identity of what failed.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Fingerprint is the hex-encoded fingerprint involved, when known.
	// Empty for errors raised before a fingerprint exists (parse and
	// resolution failures).
	Fingerprint string

	// Path identifies the configuration path or source URI involved,
	// when known.
	Path string

	// Err is the underlying error. May be nil when the kind and path
	// say everything there is to say.
	Err error
}

// New constructs an Error with the given kind and a formatted message
// as the inner error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap constructs an Error with the given kind around an existing
// error. Returns nil if err is nil.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// WithFingerprint returns a copy of the error annotated with the
// hex-encoded fingerprint.
func (e *Error) WithFingerprint(hexFingerprint string) *Error {
	annotated := *e
	annotated.Fingerprint = hexFingerprint
	return &annotated
}

// WithPath returns a copy of the error annotated with the config path
// or source URI.
func (e *Error) WithPath(path string) *Error {
	annotated := *e
	annotated.Path = path
	return &annotated
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Fingerprint != "" {
		b.WriteString(" (fingerprint ")
		b.WriteString(e.Fingerprint)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err if any error in its chain is an
// *Error, or "" if err carries no kind.
func KindOf(err error) Kind {
	var kinded *Error
	if errors.As(err, &kinded) {
		return kinded.Kind
	}
	return ""
}

// IsKind reports whether any error in err's chain carries the given
// kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether an error of this kind may be retried
// automatically with backoff. Only lock contention qualifies;
// structural and source errors surface to the caller immediately.
func (k Kind) Retryable() bool {
	return k == LockTimeout
}
