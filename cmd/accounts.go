// File: cmd/accounts.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/accounts"
	"github.com/xkilldash9x/keepalive-cli/internal/observability"
)

// lastSuccessFinder is the part of the history store the accounts listing needs.
type lastSuccessFinder interface {
	LastSuccess(ctx context.Context, account, panel string) (time.Time, bool, error)
}

func newAccountsCmd() *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Validate the account list and print it without passwords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			creds, origin, err := accounts.Load(accounts.Source{File: cfg.Accounts.File, Env: cfg.Accounts.Env})
			if err != nil {
				return fmt.Errorf("failed to load accounts: %w", err)
			}

			var history lastSuccessFinder
			if cfg.Database.URL != "" {
				pool, st, err := openStore(ctx, cfg.Database, logger)
				if err != nil {
					logger.Warn("Login history unavailable", zap.Error(err))
				} else {
					defer pool.Close()
					history = st
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Source: %s\n\n", origin)
			invalid, err := listAccounts(ctx, cmd.OutOrStdout(), creds, history)
			if err != nil {
				return err
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d accounts are invalid", invalid, len(creds))
			}
			return nil
		},
	}
	accountsCmd.Flags().StringP("accounts", "a", "", "path to the accounts JSON file")
	bindFlag(accountsCmd, "accounts", "accounts.file")
	return accountsCmd
}

// listAccounts writes one row per credential and returns how many failed validation.
func listAccounts(ctx context.Context, out io.Writer, creds []accounts.Credential, history lastSuccessFinder) (int, error) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "NAME\tSERVICE\tPANEL\tUSERNAME\tSTATUS"
	if history != nil {
		header += "\tLAST SUCCESS"
	}
	fmt.Fprintln(w, header)

	invalid := 0
	for _, c := range creds {
		status := "ok"
		if err := c.Validate(); err != nil {
			status = err.Error()
			invalid++
		}
		row := fmt.Sprintf("%s\t%s\t%s\t%s\t%s", orDash(c.Name), c.Service(), orDash(c.Label()), orDash(c.Username), status)
		if history != nil {
			row += "\t" + lastSuccessCell(ctx, history, c)
		}
		fmt.Fprintln(w, row)
	}
	return invalid, w.Flush()
}

func lastSuccessCell(ctx context.Context, history lastSuccessFinder, c accounts.Credential) string {
	at, ok, err := history.LastSuccess(ctx, c.Name, c.Label())
	switch {
	case err != nil:
		return "error"
	case !ok:
		return "never"
	default:
		return at.UTC().Format(time.RFC3339)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
