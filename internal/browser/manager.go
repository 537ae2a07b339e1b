// File: internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/browser/stealth"
	"github.com/xkilldash9x/keepalive-cli/internal/config"
)

// Manager owns the Chrome allocator. Tabs opened through it share the
// allocator's lifetime and are torn down by Shutdown.
type Manager struct {
	logger  *zap.Logger
	cfg     config.BrowserConfig
	persona stealth.Persona

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	mu   sync.Mutex
	tabs []*Tab
}

// NewManager prepares the exec allocator. Chrome itself starts lazily when the
// first tab is opened.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:  logger.Named("browser_manager"),
		cfg:     cfg,
		persona: stealth.PersonaFromConfig(cfg.Persona),
	}
	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, m.allocatorOptions()...)
	return m
}

// allocatorOptions assembles the Chrome flags from configuration.
func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		// Later flags override the defaults.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
	)
	if m.persona.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.persona.UserAgent))
	}
	if m.persona.Width > 0 && m.persona.Height > 0 {
		opts = append(opts, chromedp.WindowSize(int(m.persona.Width), int(m.persona.Height)))
	}
	if m.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
	}

	for _, arg := range m.cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// Containers rarely allow the setuid sandbox.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return opts
}

// OpenSession launches a new tab with the stealth persona applied.
func (m *Manager) OpenSession(ctx context.Context) (Session, error) {
	if err := m.allocatorCtx.Err(); err != nil {
		return nil, fmt.Errorf("%w: allocator is shut down", ErrSessionFatal)
	}

	var ctxOpts []chromedp.ContextOption
	if m.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(m.logger.Sugar().Debugf))
	}
	ctxOpts = append(ctxOpts, chromedp.WithErrorf(m.logger.Sugar().Errorf))

	tabCtx, cancel := chromedp.NewContext(m.allocatorCtx, ctxOpts...)

	// The first Run on the tab context allocates the browser and binds its
	// lifetime to tabCtx, so it must not run on a derived context.
	initErr := make(chan error, 1)
	go func() { initErr <- chromedp.Run(tabCtx, stealth.Apply(m.persona, m.logger)) }()

	select {
	case err := <-initErr:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("%w: open tab: %v", ErrSessionFatal, err)
		}
	case <-ctx.Done():
		cancel()
		<-initErr
		return nil, ctx.Err()
	}

	tab := newTab(tabCtx, cancel, m.logger)
	m.mu.Lock()
	m.tabs = append(m.tabs, tab)
	m.mu.Unlock()

	m.logger.Info("Browser session opened", zap.Bool("headless", m.cfg.Headless))
	return tab, nil
}

// Shutdown closes any tabs still open and terminates Chrome.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	tabs := m.tabs
	m.tabs = nil
	m.mu.Unlock()

	for _, tab := range tabs {
		if err := tab.Close(ctx); err != nil {
			m.logger.Debug("Error closing tab during shutdown", zap.Error(err))
		}
	}

	m.allocatorCancel()
	<-m.allocatorCtx.Done()
	m.logger.Info("Browser shut down")
	return nil
}
