// File: internal/notify/notify.go
package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/keepalive-cli/internal/config"
	"github.com/xkilldash9x/keepalive-cli/internal/network"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

func (t NotificationType) String() string {
	switch t {
	case NotifySuccess:
		return "success"
	case NotifyWarning:
		return "warning"
	case NotifyError:
		return "error"
	default:
		return "info"
	}
}

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	RunID   string // Optional run reference
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// MultiNotifier sends to multiple notifiers concurrently
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send delivers to every notifier and joins their errors. One failing sink
// does not stop the others.
func (m *MultiNotifier) Send(ctx context.Context, n Notification) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, notifier := range m.notifiers {
		g.Go(func() error {
			if err := notifier.Send(ctx, n); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Len returns the number of wrapped notifiers.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(ctx context.Context, n Notification) error { return nil }

// FromConfig builds the sinks that are configured. With none configured it
// returns a NoopNotifier.
func FromConfig(cfg config.NotifyConfig, logger *zap.Logger) Notifier {
	logger = logger.Named("notify")

	clientCfg := network.NewDefaultClientConfig()
	if cfg.Timeout > 0 {
		clientCfg.RequestTimeout = cfg.Timeout
	}
	clientCfg.Logger = logger
	client := network.NewClient(clientCfg)

	var sinks []Notifier
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		sinks = append(sinks, NewTelegramNotifier(cfg.Telegram, client, logger))
		logger.Info("Telegram notifications enabled")
	} else if cfg.Telegram.Token != "" || cfg.Telegram.ChatID != "" {
		logger.Warn("Telegram notifications disabled: both bot token and chat id are required")
	}
	if cfg.Webhook.URL != "" {
		sinks = append(sinks, NewWebhookNotifier(cfg.Webhook.URL, client))
		logger.Info("Webhook notifications enabled")
	}

	switch len(sinks) {
	case 0:
		logger.Debug("No notification sinks configured")
		return NoopNotifier{}
	case 1:
		return sinks[0]
	default:
		return NewMultiNotifier(sinks...)
	}
}
