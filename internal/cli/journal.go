// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/objrpc/internal/journal"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	DB      string
	Session string
	Limit   int
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show sessions and calls recorded by a server",
		Long: `Show the sessions recorded in a server journal, or the calls of one
session with --session.

Example:
  objrpc journal --db objrpc.db --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "journal database path (required)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "show the calls of this session")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum sessions to list (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showJournal(opts *JournalOptions, cmd *cobra.Command) error {
	j, err := journal.Open(opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()
	out := opts.output(cmd)

	if opts.Session != "" {
		calls, err := j.Calls(cmd.Context(), opts.Session)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read calls", err)
		}
		return out.Success(calls, func(w io.Writer) {
			for _, c := range calls {
				status := "ok"
				if c.Failed() {
					status = fmt.Sprintf("%s: %s", c.ErrorKind, c.ErrorMsg)
				}
				fmt.Fprintf(w, "%6d %-9s %-14s %10s %s\n", c.Seq, c.Op, c.Target, c.Elapsed, status)
			}
		})
	}

	sessions, err := j.Sessions(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sessions", err)
	}
	return out.Success(sessions, func(w io.Writer) {
		for _, s := range sessions {
			closed := "open"
			if !s.Open() {
				closed = s.ClosedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s %-21s %s %s calls=%d\n",
				s.ID, s.Remote, s.OpenedAt.Format(time.RFC3339), closed, s.Calls)
		}
	})
}
