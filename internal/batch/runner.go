// File: internal/batch/runner.go
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/accounts"
	"github.com/xkilldash9x/keepalive-cli/internal/browser"
	"github.com/xkilldash9x/keepalive-cli/internal/config"
	"github.com/xkilldash9x/keepalive-cli/internal/login"
	"github.com/xkilldash9x/keepalive-cli/internal/pacing"
	"github.com/xkilldash9x/keepalive-cli/internal/report"
)

// closeTimeout bounds session teardown, which also runs after cancellation.
const closeTimeout = 15 * time.Second

// Opener starts the browser session a run uses.
type Opener func(ctx context.Context) (browser.Session, error)

// Attempter logs one account in on an open session.
type Attempter interface {
	Run(ctx context.Context, s browser.Session, cred accounts.Credential) (login.Outcome, error)
}

// Reporter receives the run on every exit path.
type Reporter interface {
	Report(ctx context.Context, run report.Run) error
}

// Recorder persists individual results.
type Recorder interface {
	Record(ctx context.Context, runID string, r report.AccountResult) error
}

// Runner drives the accounts through the login controller one after the
// other on a single browser session.
type Runner struct {
	logger    *zap.Logger
	open      Opener
	attempter Attempter
	reporter  Reporter
	recorder  Recorder
	pacer     *pacing.Pacer
	now       func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithRecorder persists every result through rec. Failures are only logged.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithClock overrides the result timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner. Every dependency except the options is required.
func New(
	cfg config.BatchConfig,
	logger *zap.Logger,
	open Opener,
	attempter Attempter,
	reporter Reporter,
	opts ...Option,
) (*Runner, error) {
	if logger == nil ||
		open == nil ||
		attempter == nil ||
		reporter == nil {
		return nil, fmt.Errorf("cannot initialize batch runner with nil dependencies")
	}
	r := &Runner{
		logger:    logger.Named("batch"),
		open:      open,
		attempter: attempter,
		reporter:  reporter,
		pacer:     pacing.New(cfg.DelayMin, cfg.DelayMax),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run processes creds in order and always hands what it has to the
// Reporter. The returned error is non-nil when the batch was cut short
// (session fatal, cancellation, browser start failure) or the reporter
// rejected the run; the partial results are still in the returned Run.
func (r *Runner) Run(ctx context.Context, creds []accounts.Credential) (report.Run, error) {
	run := report.Run{ID: uuid.NewString()}
	log := r.logger.With(zap.String("run_id", run.ID))
	log.Info("Batch starting", zap.Int("accounts", len(creds)))
	started := time.Now()

	err := r.execute(ctx, log, creds, &run)
	run.Err = err

	if repErr := r.reporter.Report(ctx, run); repErr != nil {
		log.Error("Reporting failed", zap.Error(repErr))
		if err == nil {
			err = repErr
		}
	}

	fields := []zap.Field{
		zap.Int("processed", len(run.Results)),
		zap.Int("accounts", len(creds)),
		zap.Duration("elapsed", time.Since(started)),
	}
	if run.Err != nil {
		log.Error("Batch aborted", append(fields, zap.Error(run.Err))...)
	} else {
		log.Info("Batch finished", fields...)
	}
	return run, err
}

func (r *Runner) execute(ctx context.Context, log *zap.Logger, creds []accounts.Credential, run *report.Run) error {
	if len(creds) == 0 {
		return nil
	}

	session, err := r.open(ctx)
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil && !errors.Is(err, browser.ErrSessionFatal) {
			log.Warn("Error closing browser session", zap.Error(err))
		}
	}()

	for i, cred := range creds {
		if err := ctx.Err(); err != nil {
			return err
		}
		alog := log.With(zap.String("account", cred.Name), zap.Int("index", i+1))

		out, err := r.attempter.Run(ctx, session, cred)
		if err != nil {
			return fmt.Errorf("account %s: %w", cred.Name, err)
		}

		result := report.NewAccountResult(cred, out, r.now())
		run.Results = append(run.Results, result)
		alog.Info("Account processed",
			zap.Bool("succeeded", result.Succeeded()),
			zap.String("classification", out.Classification.String()),
			zap.String("kind", out.Kind.String()),
			zap.Int("tried_urls", out.TriedURLs),
		)
		r.record(ctx, alog, run.ID, result)

		if i < len(creds)-1 {
			if err := r.pacer.Wait(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, runID string, result report.AccountResult) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(ctx, runID, result); err != nil {
		log.Warn("Failed to persist result", zap.Error(err))
	}
}
