// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package coordinate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nanodata-io/nanodata/lib/dataerr"
)

// lockPollInterval is how often a blocked acquirer retries the flock.
const lockPollInterval = 100 * time.Millisecond

// fileLock is a held advisory lock. Released by release; also released
// by the kernel if the process dies.
type fileLock struct {
	file *os.File
}

// acquireFileLock takes an exclusive flock on path, creating the file
// if needed. It polls until the lock is acquired, ctx is cancelled, or
// timeout elapses; the timeout produces a LockTimeout error so callers
// can retry or surface a bounded failure instead of hanging on a
// wedged peer.
func acquireFileLock(ctx context.Context, path string, timeout time.Duration) (*fileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &fileLock{file: file}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			file.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			file.Close()
			return nil, dataerr.New(dataerr.LockTimeout,
				"lock %s still held after %s", path, timeout)
		}
		select {
		case <-ctx.Done():
			file.Close()
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// release drops the lock and closes the file. The lock file itself is
// left in place: unlinking it would race a concurrent acquirer that
// already opened the old inode.
func (l *fileLock) release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("unlocking %s: %w", l.file.Name(), err)
	}
	return l.file.Close()
}
