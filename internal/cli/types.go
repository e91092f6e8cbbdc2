// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// TypeInfo describes one interface in types output.
type TypeInfo struct {
	Name        string   `json:"name"`
	Fingerprint string   `json:"fingerprint"`
	Methods     []string `json:"methods"`
}

// NewTypesCommand creates the types command.
func NewTypesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types <file.cue>...",
		Short: "List the interfaces declared in CUE descriptor files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			descs, err := loadDescriptors(args)
			if err != nil {
				return err
			}
			infos := make([]TypeInfo, len(descs))
			for i, d := range descs {
				infos[i] = TypeInfo{Name: d.Name(), Fingerprint: fmt.Sprintf("%016x", d.Fingerprint())}
				for j, m := range d.Methods() {
					infos[i].Methods = append(infos[i].Methods, fmt.Sprintf("%d: %s", j, m))
				}
			}
			return rootOpts.output(cmd).Success(infos, func(w io.Writer) {
				for _, info := range infos {
					fmt.Fprintf(w, "%s %s\n", info.Name, info.Fingerprint)
					for _, m := range info.Methods {
						fmt.Fprintf(w, "  %s\n", m)
					}
				}
			})
		},
	}
}
