// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/objrpc/iface"
)

// GenOptions holds flags for the gen command.
type GenOptions struct {
	*RootOptions
	Package string
	Output  string
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gen <file.cue>...",
		Short: "Generate Go Base interfaces and proxies from CUE descriptors",
		Long: `Generate Go source from CUE interface descriptors.

For each interface the output declares the descriptor variable, a <Name>Base
interface for server implementations and a <Name>Proxy client type.

Example:
  objrpc gen -p demo -o demo_gen.go demo.cue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Package, "package", "p", "main", "Go package name")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func loadDescriptors(paths []string) ([]*iface.Descriptor, error) {
	var descs []*iface.Descriptor
	for _, p := range paths {
		ds, err := iface.LoadCUEFile(p)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load descriptors", err)
		}
		descs = append(descs, ds...)
	}
	return descs, nil
}

func runGen(opts *GenOptions, paths []string, cmd *cobra.Command) error {
	descs, err := loadDescriptors(paths)
	if err != nil {
		return err
	}
	src, err := iface.Generate(opts.Package, descs...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to generate", err)
	}
	if opts.Output == "" {
		_, err = cmd.OutOrStdout().Write(src)
		return err
	}
	if err := os.WriteFile(opts.Output, src, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if opts.Verbose {
		cmd.PrintErrf("wrote %d interfaces to %s\n", len(descs), opts.Output)
	}
	return nil
}
