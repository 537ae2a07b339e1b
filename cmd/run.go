// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/accounts"
	"github.com/xkilldash9x/keepalive-cli/internal/batch"
	"github.com/xkilldash9x/keepalive-cli/internal/browser"
	"github.com/xkilldash9x/keepalive-cli/internal/config"
	"github.com/xkilldash9x/keepalive-cli/internal/login"
	"github.com/xkilldash9x/keepalive-cli/internal/notify"
	"github.com/xkilldash9x/keepalive-cli/internal/observability"
	"github.com/xkilldash9x/keepalive-cli/internal/report"
	"github.com/xkilldash9x/keepalive-cli/internal/store"
)

// ErrNoSuccess is returned by the run command when no account logged in.
var ErrNoSuccess = errors.New("no account logged in successfully")

const shutdownTimeout = 15 * time.Second

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Log into every configured account once and report the outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			return runKeepalive(ctx, cfg, cmd.OutOrStdout(), observability.GetLogger())
		},
	}

	runCmd.Flags().StringP("accounts", "a", "", "path to the accounts JSON file")
	runCmd.Flags().String("report", "", "also write the run report to this path")
	runCmd.Flags().String("report-format", "", "run report format: markdown, md or text (default markdown)")
	runCmd.Flags().String("artifacts", "", "directory for failure screenshots and HTML dumps")
	bindFlag(runCmd, "accounts", "accounts.file")
	bindFlag(runCmd, "report", "report.file")
	bindFlag(runCmd, "report-format", "report.format")
	bindFlag(runCmd, "artifacts", "login.artifacts_dir")
	return runCmd
}

// components holds everything a run owns that needs an orderly shutdown.
type components struct {
	logger  *zap.Logger
	browser *browser.Manager
	pool    *pgxpool.Pool
	store   *store.Store
}

// Shutdown releases the components in reverse order of creation. It runs
// with its own deadline so teardown still happens after cancellation.
func (c *components) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if c.browser != nil {
		if err := c.browser.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Error during browser shutdown", zap.Error(err))
		}
	}
	if c.pool != nil {
		c.pool.Close()
	}
}

// openStore connects the optional login history database.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, *store.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	st, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, st, nil
}

func runKeepalive(ctx context.Context, cfg *config.Config, console io.Writer, logger *zap.Logger) error {
	notifier := notify.FromConfig(cfg.Notify, logger)
	publisher := report.NewPublisher(logger, notifier, console, cfg.Report)

	creds, origin, err := accounts.Load(accounts.Source{File: cfg.Accounts.File, Env: cfg.Accounts.Env})
	if err != nil {
		// The operator is notified even when no account could be read.
		_ = publisher.Report(ctx, report.Run{ID: uuid.NewString(), Err: err})
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	logger.Info("Accounts loaded", zap.Int("count", len(creds)), zap.String("source", origin))

	controller, err := login.NewController(logger, cfg.Login)
	if err != nil {
		return fmt.Errorf("failed to initialize login controller: %w", err)
	}

	c := &components{logger: logger}
	defer c.Shutdown(ctx)

	var opts []batch.Option
	if cfg.Database.URL != "" {
		pool, st, err := openStore(ctx, cfg.Database, logger)
		if err != nil {
			// A history store failure never blocks the logins.
			logger.Warn("Login history disabled", zap.Error(err))
		} else {
			c.pool, c.store = pool, st
			opts = append(opts, batch.WithRecorder(st))
		}
	}

	c.browser = browser.NewManager(ctx, cfg.Browser, logger)
	opener := func(ctx context.Context) (browser.Session, error) {
		return c.browser.OpenSession(ctx)
	}

	runner, err := batch.New(cfg.Batch, logger, opener, controller, publisher, opts...)
	if err != nil {
		return err
	}

	run, err := runner.Run(ctx, creds)
	if err != nil {
		return err
	}
	if !anySucceeded(run.Results) {
		return ErrNoSuccess
	}
	return nil
}

func anySucceeded(results []report.AccountResult) bool {
	for _, r := range results {
		if r.Succeeded() {
			return true
		}
	}
	return false
}
