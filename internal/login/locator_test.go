// File: internal/login/locator_test.go
package login

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/keepalive-cli/internal/browser"
	"github.com/xkilldash9x/keepalive-cli/internal/config"
)

func TestChain_Resolve(t *testing.T) {
	spec := LocatorSpec{Field: "username", Locators: []Locator{
		byCSS("#id_username"),
		byName("login"),
		byPlaceholder("user"),
	}}

	t.Run("first matching strategy wins", func(t *testing.T) {
		// Strategies 2 and 3 both match; only 2 may be used.
		s := newFakeSession()
		s.pages["https://h/login"] = page("Login", "", byName("login"), byPlaceholder("user"))
		s.currentURL = "https://h/login"

		el, err := NewChain(zaptest.NewLogger(t), time.Millisecond).Resolve(context.Background(), s, spec)
		require.NoError(t, err)
		assert.Equal(t, browser.StrategyName, el.Strategy)
		assert.Equal(t, "login", el.Selector)
		assert.Equal(t, []Locator{byCSS("#id_username"), byName("login")}, s.lookups,
			"the chain must stop at the first hit")
	})

	t.Run("every strategy misses", func(t *testing.T) {
		s := newFakeSession()
		s.pages["https://h/"] = page("Home", "")
		s.currentURL = "https://h/"

		_, err := NewChain(zaptest.NewLogger(t), time.Millisecond).Resolve(context.Background(), s, spec)
		require.ErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "username")
		assert.Len(t, s.lookups, 3)
	})

	t.Run("session fatal aborts the chain", func(t *testing.T) {
		s := newFakeSession()
		s.closed = true

		_, err := NewChain(zaptest.NewLogger(t), time.Millisecond).Resolve(context.Background(), s, spec)
		assert.ErrorIs(t, err, browser.ErrSessionFatal)
		assert.Empty(t, s.lookups)
	})

	t.Run("cancelled context stops after the current lookup", func(t *testing.T) {
		s := newFakeSession()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewChain(zaptest.NewLogger(t), time.Millisecond).Resolve(ctx, s, spec)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Len(t, s.lookups, 1)
	})
}

func TestDefaultSpecs(t *testing.T) {
	specs := DefaultSpecs()
	assert.Equal(t, byCSS("#id_username"), specs.Username.Locators[0])
	assert.Equal(t, byCSS("#id_password"), specs.Password.Locators[0])
	assert.Equal(t, byCSS("#submit"), specs.Submit.Locators[0])
	assert.Contains(t, specs.Submit.Locators, byText("zaloguj"))
}

func TestSpecsFromConfig(t *testing.T) {
	t.Run("override one field", func(t *testing.T) {
		specs, err := SpecsFromConfig(config.LocatorsConfig{
			Password: []config.LocatorConfig{{Strategy: "xpath", Selector: "//input[@name='pw']"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []Locator{{browser.StrategyXPath, "//input[@name='pw']"}}, specs.Password.Locators)
		assert.Equal(t, DefaultSpecs().Username, specs.Username)
	})

	t.Run("bad strategy", func(t *testing.T) {
		_, err := SpecsFromConfig(config.LocatorsConfig{
			Submit: []config.LocatorConfig{{Strategy: "jquery", Selector: "x"}},
		})
		assert.ErrorContains(t, err, "login.locators.submit[0]")
	})

	t.Run("empty selector", func(t *testing.T) {
		_, err := SpecsFromConfig(config.LocatorsConfig{
			Username: []config.LocatorConfig{{Strategy: "css"}},
		})
		assert.ErrorContains(t, err, "empty selector")
	})
}
