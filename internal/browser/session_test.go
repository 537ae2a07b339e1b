// File: internal/browser/session_test.go
package browser_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/keepalive-cli/internal/browser"
	"github.com/xkilldash9x/keepalive-cli/internal/config"
)

const loginPage = `<!doctype html>
<html><head><title>Panel login</title></head>
<body>
  <form method="post" action="/login/">
    <input type="text" name="username" placeholder="Your Username">
    <input type="password" id="id_password" name="password">
    <button type="submit" class="button--primary">Sign In</button>
  </form>
</body></html>`

func newPanelServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.Redirect(w, r, "/dashboard/", http.StatusSeeOther)
			return
		}
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("/dashboard/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Dashboard</title></head><body><a href="/logout/">Logout</a></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// openTab starts Chrome and returns a session, skipping when no browser is installed.
func openTab(t *testing.T) browser.Session {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in short mode")
	}
	found := false
	for _, bin := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(bin); err == nil {
			found = true
			break
		}
	}
	if !found {
		t.Skip("no Chrome binary on PATH")
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	cfg := config.NewDefaultConfig().Browser
	cfg.Headless = true

	mgrCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	mgr := browser.NewManager(mgrCtx, cfg, logger)
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		_ = mgr.Shutdown(shutdownCtx)
		cancel()
	})

	session, err := mgr.OpenSession(mgrCtx)
	require.NoError(t, err)
	return session
}

func TestTab_LoginFlow(t *testing.T) {
	session := openTab(t)
	srv := newPanelServer(t)
	ctx := context.Background()

	require.NoError(t, session.Navigate(ctx, srv.URL+"/login/", 20*time.Second))

	title, err := session.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Panel login", title)

	user, err := session.FindElement(ctx, browser.StrategyName, "username", 2*time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, user.Ref)

	byPlaceholder, err := session.FindElement(ctx, browser.StrategyPlaceholder, "username", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, browser.StrategyPlaceholder, byPlaceholder.Strategy)

	require.NoError(t, session.Click(ctx, user))
	require.NoError(t, session.Clear(ctx, user))
	require.NoError(t, session.TypeInto(ctx, user, "alice"))

	raw, err := session.EvaluateScript(ctx, `(el) => el.value`, user)
	require.NoError(t, err)
	assert.JSONEq(t, `"alice"`, string(raw))

	pass, err := session.FindElement(ctx, browser.StrategyCSS, "#id_password", 2*time.Second)
	require.NoError(t, err)
	_, err = session.EvaluateScript(ctx, `(el, v) => { el.value = v; return true; }`, pass, "s3cret")
	require.NoError(t, err)

	button, err := session.FindElement(ctx, browser.StrategyText, "sign in", 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, session.Click(ctx, button))

	assert.Eventually(t, func() bool {
		u, err := session.CurrentURL(ctx)
		return err == nil && strings.HasSuffix(u, "/dashboard/")
	}, 10*time.Second, 100*time.Millisecond)

	content, err := session.Content(ctx)
	require.NoError(t, err)
	assert.Contains(t, content, `href="/logout/"`)

	shot := filepath.Join(t.TempDir(), "shots", "dashboard.png")
	require.NoError(t, session.Screenshot(ctx, shot))
	assert.FileExists(t, shot)
}

func TestTab_MissesAndStaleHandles(t *testing.T) {
	session := openTab(t)
	srv := newPanelServer(t)
	ctx := context.Background()

	require.NoError(t, session.Navigate(ctx, srv.URL+"/login/", 20*time.Second))

	_, err := session.FindElement(ctx, browser.StrategyCSS, "#does-not-exist", 300*time.Millisecond)
	assert.ErrorIs(t, err, browser.ErrElementNotFound)

	el, err := session.FindElement(ctx, browser.StrategyName, "password", 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, session.Navigate(ctx, srv.URL+"/dashboard/", 20*time.Second))
	err = session.TypeInto(ctx, el, "x")
	assert.True(t, errors.Is(err, browser.ErrStaleElement), "handles must not survive a navigation: %v", err)

	require.NoError(t, session.Close(ctx))
	require.NoError(t, session.Close(ctx), "close is idempotent")

	_, err = session.CurrentURL(ctx)
	assert.ErrorIs(t, err, browser.ErrSessionFatal)
}
