// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command-tree framework for the data binary:
// nested commands with pflag flag sets, structured help with typo
// suggestions, and exit-code plumbing for handled failures.
package cli
