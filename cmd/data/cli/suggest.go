// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// suggestionThreshold is the maximum edit distance for a suggestion to
// be offered.
const suggestionThreshold = 3

// suggestCommand returns the closest subcommand name to the given
// input, or "" if nothing is close enough.
func suggestCommand(input string, commands []*Command) string {
	best := ""
	bestDistance := suggestionThreshold + 1
	for _, command := range commands {
		distance := levenshtein(input, command.Name)
		if distance < bestDistance {
			best = command.Name
			bestDistance = distance
		}
	}
	return best
}

// suggestFlag finds the first unknown flag in args and returns the
// closest defined flag name, formatted with leading dashes, or "" if
// nothing is close enough.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name = name[:eq]
		}
		if name == "" || flagSet.Lookup(name) != nil {
			continue
		}

		best := ""
		bestDistance := suggestionThreshold + 1
		flagSet.VisitAll(func(flag *pflag.Flag) {
			distance := levenshtein(name, flag.Name)
			if distance < bestDistance {
				best = flag.Name
				bestDistance = distance
			}
		})
		if best != "" {
			return "--" + best
		}
	}
	return ""
}

// levenshtein computes the edit distance between two strings using a
// single-row dynamic programming table.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		previous := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			current := row[j]
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, min(row[j-1]+1, previous+cost))
			previous = current
		}
	}
	return row[len(b)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
