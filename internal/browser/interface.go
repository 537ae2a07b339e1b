// File: internal/browser/interface.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionFatal marks a session that can no longer be driven (browser
	// crashed, tab closed, CDP connection lost). Callers must stop using it.
	ErrSessionFatal = errors.New("browser session is no longer usable")
	// ErrElementNotFound is returned when a lookup times out without a match.
	ErrElementNotFound = errors.New("element not found")
	// ErrStaleElement is returned when an element handle outlived the document it came from.
	ErrStaleElement = errors.New("element handle is stale")
	// ErrNavigationTimeout is returned when a page did not become ready in time.
	ErrNavigationTimeout = errors.New("navigation timed out")
)

// Strategy selects how a selector string is interpreted by FindElement.
type Strategy string

const (
	// StrategyCSS matches a raw CSS selector.
	StrategyCSS Strategy = "css"
	// StrategyXPath matches a raw XPath expression.
	StrategyXPath Strategy = "xpath"
	// StrategyName matches an element whose name or id attribute equals the selector.
	StrategyName Strategy = "name"
	// StrategyPlaceholder matches an input whose placeholder contains the selector, ignoring case.
	StrategyPlaceholder Strategy = "placeholder"
	// StrategyText matches a button, submit input or link whose text or value contains the selector, ignoring case.
	StrategyText Strategy = "text"
)

// ParseStrategy validates a strategy name coming from configuration.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyCSS, StrategyXPath, StrategyName, StrategyPlaceholder, StrategyText:
		return st, nil
	default:
		return "", fmt.Errorf("unknown locator strategy %q", s)
	}
}

// Element is an opaque handle to a node found by FindElement. It is only valid
// for the document it was found in.
type Element struct {
	Strategy Strategy
	Selector string
	// Ref is the value of the marker attribute that lets scripts address the node.
	Ref string

	nodeID     int64
	generation uint64
}

func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s=%s", e.Strategy, e.Selector)
}

// Session is the page-level capability the login flow drives. Implementations
// are not safe for concurrent use; one caller owns a session at a time.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// FindElement waits up to timeout for the first match and returns
	// ErrElementNotFound when there is none.
	FindElement(ctx context.Context, strategy Strategy, selector string, timeout time.Duration) (*Element, error)
	Click(ctx context.Context, el *Element) error
	Clear(ctx context.Context, el *Element) error
	TypeInto(ctx context.Context, el *Element, text string) error
	PressEnter(ctx context.Context, el *Element) error
	// EvaluateScript calls the JavaScript function expression src with args.
	// *Element arguments are passed as the DOM node they refer to.
	EvaluateScript(ctx context.Context, src string, args ...interface{}) (json.RawMessage, error)
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	Close(ctx context.Context) error
}
