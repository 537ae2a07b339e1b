// File: internal/login/locator.go
package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/browser"
	"github.com/xkilldash9x/keepalive-cli/internal/config"
)

// ErrNotFound is returned by Chain.Resolve when no locator matched.
var ErrNotFound = errors.New("no locator matched")

// Locator is one (strategy, selector) entry of a LocatorSpec.
type Locator struct {
	Strategy browser.Strategy
	Selector string
}

func (l Locator) String() string { return string(l.Strategy) + "=" + l.Selector }

// LocatorSpec is the ordered fallback list for one logical field.
type LocatorSpec struct {
	Field    string
	Locators []Locator
}

// Specs groups the three fields of a login form.
type Specs struct {
	Username LocatorSpec
	Password LocatorSpec
	Submit   LocatorSpec
}

func byCSS(sel string) Locator         { return Locator{browser.StrategyCSS, sel} }
func byName(sel string) Locator        { return Locator{browser.StrategyName, sel} }
func byPlaceholder(sel string) Locator { return Locator{browser.StrategyPlaceholder, sel} }
func byText(sel string) Locator        { return Locator{browser.StrategyText, sel} }

// DefaultSpecs covers the Serv00/CT8 panel markup first, then generic forms.
func DefaultSpecs() Specs {
	return Specs{
		Username: LocatorSpec{Field: "username", Locators: []Locator{
			byCSS("#id_username"),
			byName("username"),
			byName("login"),
			byName("email"),
			byCSS(`input[type="email"]`),
			byPlaceholder("user"),
			byPlaceholder("login"),
			byCSS(`input[type="text"]`),
		}},
		Password: LocatorSpec{Field: "password", Locators: []Locator{
			byCSS("#id_password"),
			byName("password"),
			byCSS(`input[type="password"]`),
		}},
		Submit: LocatorSpec{Field: "submit", Locators: []Locator{
			byCSS("#submit"),
			byCSS(`button[type="submit"]`),
			byCSS(`input[type="submit"]`),
			byCSS("button.button--primary"),
			byText("log in"),
			byText("login"),
			byText("sign in"),
			byText("zaloguj"),
		}},
	}
}

// SpecsFromConfig applies configured overrides on top of DefaultSpecs. A
// field with no configured locators keeps its default chain.
func SpecsFromConfig(cfg config.LocatorsConfig) (Specs, error) {
	specs := DefaultSpecs()
	for _, f := range []struct {
		spec *LocatorSpec
		raw  []config.LocatorConfig
	}{
		{&specs.Username, cfg.Username},
		{&specs.Password, cfg.Password},
		{&specs.Submit, cfg.Submit},
	} {
		if len(f.raw) == 0 {
			continue
		}
		locators := make([]Locator, 0, len(f.raw))
		for i, lc := range f.raw {
			st, err := browser.ParseStrategy(lc.Strategy)
			if err != nil {
				return Specs{}, fmt.Errorf("login.locators.%s[%d]: %w", f.spec.Field, i, err)
			}
			if lc.Selector == "" {
				return Specs{}, fmt.Errorf("login.locators.%s[%d]: empty selector", f.spec.Field, i)
			}
			locators = append(locators, Locator{Strategy: st, Selector: lc.Selector})
		}
		f.spec.Locators = locators
	}
	return specs, nil
}

// Chain resolves a LocatorSpec against the current page.
type Chain struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewChain creates a Chain that waits up to perLocator for each entry.
func NewChain(logger *zap.Logger, perLocator time.Duration) *Chain {
	return &Chain{logger: logger.Named("locator"), timeout: perLocator}
}

// Resolve tries each locator in order and returns the first element found.
// Only a session-fatal error or cancellation stops the chain early.
func (c *Chain) Resolve(ctx context.Context, s browser.Session, spec LocatorSpec) (*browser.Element, error) {
	for _, loc := range spec.Locators {
		el, err := s.FindElement(ctx, loc.Strategy, loc.Selector, c.timeout)
		if err == nil {
			c.logger.Debug("Field located", zap.String("field", spec.Field), zap.Stringer("locator", loc))
			return el, nil
		}
		if errors.Is(err, browser.ErrSessionFatal) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, browser.ErrElementNotFound) {
			c.logger.Debug("Locator failed", zap.String("field", spec.Field), zap.Stringer("locator", loc), zap.Error(err))
		}
	}
	return nil, fmt.Errorf("%w for %s after %d locators", ErrNotFound, spec.Field, len(spec.Locators))
}
