// File: internal/report/publisher.go
package report

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/config"
	"github.com/xkilldash9x/keepalive-cli/internal/notify"
)

// deliveryTimeout bounds notification delivery, which also runs after the
// run context has been canceled.
const deliveryTimeout = 60 * time.Second

// Run is everything a batch produced, handed to the publisher on every exit.
type Run struct {
	ID      string
	Results []AccountResult
	// Err is the error that stopped the batch, if any.
	Err error
}

// Publisher aggregates a run and fans the summary out to the console, the
// report file and the notification sinks. Output failures are logged and
// never fail the run.
type Publisher struct {
	logger   *zap.Logger
	notifier notify.Notifier
	console  io.Writer
	file     config.ReportConfig
	now      func() time.Time
}

// NewPublisher creates a Publisher. console is optional and an empty
// file.File disables the report file.
func NewPublisher(logger *zap.Logger, notifier notify.Notifier, console io.Writer, file config.ReportConfig) *Publisher {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	if file.Format == "" {
		file.Format = "markdown"
	}
	return &Publisher{
		logger:   logger.Named("report"),
		notifier: notifier,
		console:  console,
		file:     file,
		now:      time.Now,
	}
}

// Report publishes run. An empty run still sends a failure notice and then
// returns ErrEmptyBatch.
func (p *Publisher) Report(ctx context.Context, run Run) error {
	log := p.logger.With(zap.String("run_id", run.ID))
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	summary, err := Aggregate(run.Results)
	if errors.Is(err, ErrEmptyBatch) {
		cause := ""
		if run.Err != nil {
			cause = run.Err.Error()
		}
		p.send(sendCtx, log, notify.Notification{
			Message: FormatEmpty(p.now(), cause),
			Type:    notify.NotifyError,
			RunID:   run.ID,
		})
		return err
	}
	if err != nil {
		return err
	}

	summary.RunID = run.ID
	summary.GeneratedAt = p.now().UTC()
	if run.Err != nil {
		summary.AbortReason = run.Err.Error()
	}

	text := Format(summary)
	if p.console != nil {
		if _, err := io.WriteString(p.console, text+"\n"); err != nil {
			log.Warn("Failed to print run summary", zap.Error(err))
		}
	}
	p.writeFile(log, summary)

	log.Info("Run summary",
		zap.Int("succeeded", summary.SuccessCount),
		zap.Int("total", summary.TotalCount),
		zap.Float64("success_rate_percent", summary.SuccessRatePercent),
		zap.Strings("accounts", summary.Lines),
	)

	p.send(sendCtx, log, notify.Notification{
		Message: text,
		Type:    notificationType(summary),
		RunID:   run.ID,
	})
	return nil
}

func (p *Publisher) writeFile(log *zap.Logger, s RunSummary) {
	if p.file.File == "" {
		return
	}
	log = log.With(zap.String("path", p.file.File), zap.String("format", p.file.Format))
	w, err := New(p.file.Format, p.file.File)
	if err != nil {
		log.Warn("Cannot open run report", zap.Error(err))
		return
	}
	if err := w.Write(s); err != nil {
		log.Warn("Failed to write run report", zap.Error(err))
	}
	if err := w.Close(); err != nil {
		log.Warn("Failed to close run report", zap.Error(err))
		return
	}
	log.Info("Run report written")
}

func (p *Publisher) send(ctx context.Context, log *zap.Logger, n notify.Notification) {
	if err := p.notifier.Send(ctx, n); err != nil {
		log.Error("Notification delivery failed", zap.Error(err))
		return
	}
	log.Debug("Notification sent", zap.Stringer("type", n.Type))
}

func notificationType(s RunSummary) notify.NotificationType {
	switch {
	case s.AbortReason != "":
		return notify.NotifyError
	case s.AllSucceeded():
		return notify.NotifySuccess
	case s.SuccessCount == 0:
		return notify.NotifyError
	default:
		return notify.NotifyWarning
	}
}
