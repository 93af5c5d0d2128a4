package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zephyrtronium/calculator/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var follow, clearAll, asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearAll && follow {
				return errors.New("--clear and --follow are mutually exclusive")
			}
			h, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			if clearAll {
				return h.Clear()
			}
			out := cmd.OutOrStdout()
			emit := func(e history.Entry) error {
				return printEntry(out, e, asJSON)
			}
			if follow {
				ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer cancel()
				logger.Debug("following history", "path", h.Path())
				err := history.Follow(ctx, h.Path(), emit)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			entries, err := h.List()
			for _, e := range entries {
				if err := emit(e); err != nil {
					return err
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing results as they are recorded")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all recorded results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON lines")

	return cmd
}

func printEntry(w io.Writer, e history.Entry, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(e)
	}
	ts := e.Time.Local().Format(time.DateTime)
	var err error
	if e.Error != "" {
		_, err = fmt.Fprintf(w, "%s  %s  error: %s\n", ts, e.Expr, e.Error)
	} else {
		_, err = fmt.Fprintf(w, "%s  %s = %s\n", ts, e.Expr, e.Display)
	}
	return err
}
