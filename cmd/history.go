// File: cmd/history.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/keepalive-cli/internal/observability"
	"github.com/xkilldash9x/keepalive-cli/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	historyCmd := &cobra.Command{
		Use:   "history <account>",
		Short: "Show recent login attempts for an account from the history database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url is not configured")
			}

			pool, st, err := openStore(ctx, cfg.Database, observability.GetLogger())
			if err != nil {
				return err
			}
			defer pool.Close()

			entries, err := st.History(ctx, args[0], limit)
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), entries)
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of attempts to show")
	return historyCmd
}

func writeHistory(out io.Writer, entries []store.HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No recorded attempts.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME (UTC)\tPANEL\tRESULT\tKIND\tTRIED\tREASON")
	for _, e := range entries {
		result := e.Classification
		if !e.Succeeded {
			result += " (failed)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.AttemptedAt.UTC().Format(time.DateTime), e.Panel, result, orDash(e.Kind), e.TriedURLs, orDash(e.Reason))
	}
	return w.Flush()
}
