// File: internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Tab is a single Chrome page driven over CDP. It implements Session.
type Tab struct {
	logger *zap.Logger

	// ctx is the chromedp context that owns the target. Every action is run
	// on a context derived from it.
	ctx    context.Context
	cancel context.CancelFunc

	// generation increments on every navigation so stale handles can be rejected.
	generation atomic.Uint64

	closeOnce sync.Once
}

var _ Session = (*Tab)(nil)

func newTab(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger) *Tab {
	return &Tab{
		logger: logger.Named("tab"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// run executes actions on the tab, bounded by the caller's ctx.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := t.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionFatal, err)
	}
	runCtx, cancel := CombineContext(t.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && t.isFatal(err) {
		return fmt.Errorf("%w: %v", ErrSessionFatal, err)
	}
	return err
}

// isFatal reports whether err means the tab or browser is gone, as opposed to
// a failure of the individual action.
func (t *Tab) isFatal(err error) bool {
	if t.ctx.Err() != nil {
		return true
	}
	return errors.Is(err, chromedp.ErrInvalidContext) ||
		errors.Is(err, chromedp.ErrChannelClosed) ||
		errors.Is(err, chromedp.ErrInvalidTarget)
}

// Navigate loads url and waits for the body to be ready.
func (t *Tab) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	t.generation.Add(1)
	t.logger.Debug("Navigating", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := t.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSessionFatal):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(navCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s after %s", ErrNavigationTimeout, url, timeout)
	default:
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
}

// FindElement waits up to timeout for the first node matching the selector.
// The node is tagged with a marker attribute so scripts can address it.
func (t *Tab) FindElement(ctx context.Context, strategy Strategy, selector string, timeout time.Duration) (*Element, error) {
	query, opts, err := buildQuery(strategy, selector)
	if err != nil {
		return nil, err
	}

	findCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := t.run(findCtx, chromedp.Nodes(query, &nodes, opts...)); err != nil {
		switch {
		case errors.Is(err, ErrSessionFatal):
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case findCtx.Err() != nil:
			return nil, ErrElementNotFound
		default:
			// Invalid selectors surface here; treat them as a miss for this strategy.
			return nil, fmt.Errorf("%w: %v", ErrElementNotFound, err)
		}
	}
	if len(nodes) == 0 {
		return nil, ErrElementNotFound
	}

	el := &Element{
		Strategy:   strategy,
		Selector:   selector,
		nodeID:     int64(nodes[0].NodeID),
		generation: t.generation.Load(),
	}

	ref := uuid.NewString()
	mark := chromedp.SetAttributeValue(el.ids(), markerAttr, ref, chromedp.ByNodeID)
	if err := t.run(ctx, mark); err != nil {
		if errors.Is(err, ErrSessionFatal) {
			return nil, err
		}
		t.logger.Debug("Could not mark element; script fallbacks unavailable for it",
			zap.Stringer("element", el), zap.Error(err))
	} else {
		el.Ref = ref
	}
	return el, nil
}

func (e *Element) ids() []cdp.NodeID {
	return []cdp.NodeID{cdp.NodeID(e.nodeID)}
}

func (t *Tab) checkElement(el *Element) error {
	if el == nil {
		return errors.New("nil element")
	}
	if el.generation != t.generation.Load() {
		return fmt.Errorf("%w: %s", ErrStaleElement, el)
	}
	return nil
}

// Click performs a native mouse click on the element.
func (t *Tab) Click(ctx context.Context, el *Element) error {
	if err := t.checkElement(el); err != nil {
		return err
	}
	return t.run(ctx, chromedp.Click(el.ids(), chromedp.ByNodeID))
}

// Clear empties an input element.
func (t *Tab) Clear(ctx context.Context, el *Element) error {
	if err := t.checkElement(el); err != nil {
		return err
	}
	return t.run(ctx, chromedp.Clear(el.ids(), chromedp.ByNodeID))
}

// TypeInto sends text to the element as key events.
func (t *Tab) TypeInto(ctx context.Context, el *Element, text string) error {
	if err := t.checkElement(el); err != nil {
		return err
	}
	return t.run(ctx, chromedp.SendKeys(el.ids(), text, chromedp.ByNodeID))
}

// PressEnter sends the Enter key to the element.
func (t *Tab) PressEnter(ctx context.Context, el *Element) error {
	if err := t.checkElement(el); err != nil {
		return err
	}
	return t.run(ctx, chromedp.SendKeys(el.ids(), kb.Enter, chromedp.ByNodeID))
}

// EvaluateScript calls the function expression src with args and returns its
// JSON-encoded result. An undefined result yields a nil message.
func (t *Tab) EvaluateScript(ctx context.Context, src string, args ...interface{}) (json.RawMessage, error) {
	expr, err := t.buildCall(src, args)
	if err != nil {
		return nil, err
	}

	// A *[]byte result receives the raw JSON value, which is empty for undefined.
	var res []byte
	err = t.run(ctx, chromedp.Evaluate(expr, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
	if err != nil {
		return nil, fmt.Errorf("evaluate script: %w", err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	return json.RawMessage(res), nil
}

// buildCall renders "(src).apply(null, [args])". Elements become a
// querySelector on their marker attribute, everything else is JSON.
func (t *Tab) buildCall(src string, args []interface{}) (string, error) {
	parts := make([]string, 0, len(args))
	for i, arg := range args {
		if el, ok := arg.(*Element); ok {
			if err := t.checkElement(el); err != nil {
				return "", err
			}
			if el.Ref == "" {
				return "", fmt.Errorf("element %s has no script reference", el)
			}
			parts = append(parts, scriptTarget(el.Ref))
			continue
		}
		encoded, err := jsonCodec.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("encode script argument %d: %w", i, err)
		}
		parts = append(parts, string(encoded))
	}
	return fmt.Sprintf("(%s).apply(null, [%s])", src, strings.Join(parts, ", ")), nil
}

// CurrentURL returns the location of the top-level document.
func (t *Tab) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := t.run(ctx, chromedp.Location(&u))
	return u, err
}

// Title returns the document title.
func (t *Tab) Title(ctx context.Context) (string, error) {
	var title string
	err := t.run(ctx, chromedp.Title(&title))
	return title, err
}

// Content returns the serialized document.
func (t *Tab) Content(ctx context.Context) (string, error) {
	var html string
	err := t.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Screenshot writes a full-page PNG to path, creating parent directories.
func (t *Tab) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := t.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

// Close shuts the tab down and waits briefly for chromedp to release it.
// It is safe to call more than once.
func (t *Tab) Close(ctx context.Context) error {
	var closeErr error
	t.closeOnce.Do(func() {
		if t.ctx.Err() == nil {
			closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			// chromedp.Cancel closes the target gracefully before canceling.
			done := make(chan error, 1)
			go func() { done <- chromedp.Cancel(t.ctx) }()
			select {
			case closeErr = <-done:
			case <-closeCtx.Done():
				t.logger.Warn("Timed out closing tab gracefully", zap.Error(closeCtx.Err()))
			}
		}
		t.cancel()
		if closeErr != nil && errors.Is(closeErr, context.Canceled) {
			closeErr = nil
		}
		t.logger.Debug("Tab closed")
	})
	return closeErr
}
