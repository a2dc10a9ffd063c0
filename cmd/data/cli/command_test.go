// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesSubcommand(t *testing.T) {
	ran := false
	root := &Command{
		Name: "data",
		Subcommands: []*Command{
			{
				Name: "get",
				Run: func(args []string) error {
					ran = true
					if len(args) != 1 || args[0] != "config.yaml" {
						t.Errorf("args = %v", args)
					}
					return nil
				},
			},
		},
	}
	if err := root.Execute([]string{"get", "config.yaml"}); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("subcommand did not run")
	}
}

func TestExecuteUnknownCommandSuggests(t *testing.T) {
	root := &Command{
		Name: "data",
		Subcommands: []*Command{
			{Name: "get"},
			{Name: "evict"},
		},
	}
	err := root.Execute([]string{"gte"})
	if err == nil {
		t.Fatal("unknown command accepted")
	}
	if !strings.Contains(err.Error(), `did you mean "get"`) {
		t.Errorf("error = %v, want suggestion for get", err)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var debug bool
	command := &Command{
		Name: "fingerprint",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("fingerprint", pflag.ContinueOnError)
			flags.BoolVar(&debug, "debug", false, "print diagnostic notation")
			return flags
		},
		Run: func(args []string) error {
			if !debug {
				t.Error("flag not parsed before Run")
			}
			if len(args) != 1 || args[0] != "config.yaml" {
				t.Errorf("args = %v", args)
			}
			return nil
		},
	}
	if err := command.Execute([]string{"--debug", "config.yaml"}); err != nil {
		t.Fatal(err)
	}
}

func TestExecuteUnknownFlagSuggests(t *testing.T) {
	command := &Command{
		Name: "fingerprint",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("fingerprint", pflag.ContinueOnError)
			flags.Bool("debug", false, "")
			return flags
		},
		Run: func(args []string) error { return nil },
	}
	err := command.Execute([]string{"--degub"})
	if err == nil {
		t.Fatal("unknown flag accepted")
	}
	if !strings.Contains(err.Error(), "--debug") {
		t.Errorf("error = %v, want suggestion for --debug", err)
	}
}

func TestPrintHelpListsSubcommands(t *testing.T) {
	root := &Command{
		Name:    "data",
		Summary: "content-addressed data artifacts",
		Subcommands: []*Command{
			{Name: "get", Summary: "materialize a config"},
			{Name: "list", Summary: "list cached artifacts"},
		},
	}
	var out strings.Builder
	root.PrintHelp(&out)
	help := out.String()
	for _, want := range []string{"get", "materialize a config", "list cached artifacts"} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q:\n%s", want, help)
		}
	}
}

func TestFullNameWalksParents(t *testing.T) {
	root := &Command{
		Name:        "data",
		Subcommands: []*Command{{Name: "register", Run: func([]string) error { return nil }}},
	}
	if err := root.Execute([]string{"register"}); err != nil {
		t.Fatal(err)
	}
	if got := root.Subcommands[0].fullName(); got != "data register" {
		t.Errorf("fullName = %q", got)
	}
}
