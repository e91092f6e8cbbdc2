// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luxfi/objrpc"
	"github.com/luxfi/objrpc/params"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	URL     string
	Params  string
	Headers []string
	List    bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [toolkit]",
		Short: "Run a toolkit through a JSON-RPC gateway",
		Long: `Run a server toolkit through its JSON-RPC gateway.

Example:
  objrpc run demo_addone --params '{"x":5}'
  objrpc run --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.List {
				return listToolkits(opts, cmd)
			}
			if len(args) != 1 {
				return NewExitError(ExitCommandError, "toolkit name required")
			}
			return runToolkit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "http://127.0.0.1:8080", "gateway URL")
	cmd.Flags().StringVar(&opts.Params, "params", "{}", "toolkit parameters as JSON")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, "extra HTTP header (Key: Value)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list the gateway's toolkits")

	return cmd
}

func (o *RunOptions) request() (*url.URL, []objrpc.Option, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid --url", err)
	}
	var ops []objrpc.Option
	for _, h := range o.Headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid header %q", h))
		}
		ops = append(ops, objrpc.WithHeader(strings.TrimSpace(k), strings.TrimSpace(v)))
	}
	return u, ops, nil
}

func runToolkit(opts *RunOptions, name string, cmd *cobra.Command) error {
	in := params.NewBag()
	if err := json.Unmarshal([]byte(opts.Params), in); err != nil {
		return WrapExitError(ExitCommandError, "invalid --params JSON", err)
	}
	u, ops, err := opts.request()
	if err != nil {
		return err
	}

	resp, err := objrpc.RunJSON(cmd.Context(), u, name, in, ops...)
	if err != nil {
		return WrapExitError(ExitCommandError, "toolkit call failed", err)
	}
	if !resp.Success {
		return WrapExitError(ExitFailure, name, resp.Err())
	}
	return opts.output(cmd).Success(resp, func(w io.Writer) {
		out, _ := json.Marshal(resp.Params)
		fmt.Fprintln(w, string(out))
	})
}

func listToolkits(opts *RunOptions, cmd *cobra.Command) error {
	u, ops, err := opts.request()
	if err != nil {
		return err
	}
	infos, err := objrpc.ListJSON(cmd.Context(), u, ops...)
	if err != nil {
		return WrapExitError(ExitCommandError, "toolkit list failed", err)
	}
	return opts.output(cmd).Success(infos, func(w io.Writer) {
		for _, info := range infos {
			fmt.Fprintf(w, "%-16s %s\n", info.Name, info.Description)
		}
	})
}
