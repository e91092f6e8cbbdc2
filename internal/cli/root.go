// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cli implements the objrpc command.
package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the objrpc command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Main runs the command line args and returns the process exit code.
// Errors are written to stderr, or to stdout as a JSON envelope when
// --format json is in effect.
func Main(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	if opts.Format == "json" {
		_ = (&Output{Format: "json", Writer: stdout}).Failure(err)
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return GetExitCode(err)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objrpc",
		Short: "Serve and call Go objects across processes",
		Long: `objrpc serves registered Go objects to remote clients, generates typed
proxies from CUE interface descriptors and runs server toolkits over the
JSON-RPC gateway.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGenCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTypesCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))

	return cmd
}

func (o *RootOptions) output(cmd *cobra.Command) *Output {
	return &Output{Format: o.Format, Writer: cmd.OutOrStdout()}
}
