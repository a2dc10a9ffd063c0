// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError carries an explicit process exit code through the command
// tree. Use it when a command has already reported its failure and
// main should exit without printing the error again.
type ExitError struct {
	// Code is the process exit code.
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}
