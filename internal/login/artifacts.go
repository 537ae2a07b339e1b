// File: internal/login/artifacts.go
package login

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/browser"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactRecorder saves a screenshot and an HTML dump of the current page
// when an attempt fails. Every error is logged and swallowed.
type ArtifactRecorder struct {
	logger *zap.Logger
	dir    string
	now    func() time.Time
}

// NewArtifactRecorder returns a recorder writing into dir. An empty dir
// disables capture.
func NewArtifactRecorder(logger *zap.Logger, dir string) *ArtifactRecorder {
	r := &ArtifactRecorder{logger: logger.Named("artifacts"), now: time.Now}
	if dir == "" {
		return r
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		r.logger.Warn("Cannot expand artifacts dir; capture disabled", zap.String("dir", dir), zap.Error(err))
		return r
	}
	r.dir = expanded
	return r
}

// Enabled reports whether captures are written.
func (r *ArtifactRecorder) Enabled() bool { return r != nil && r.dir != "" }

// Capture writes <account>_<stage>_<timestamp>.{png,html} and returns the
// base path, or "" when nothing was written.
func (r *ArtifactRecorder) Capture(ctx context.Context, s browser.Session, account, stage string) string {
	if !r.Enabled() {
		return ""
	}
	name := fmt.Sprintf("%s_%s_%s",
		unsafeFileChars.ReplaceAllString(account, "_"),
		unsafeFileChars.ReplaceAllString(stage, "_"),
		r.now().UTC().Format("20060102T150405"),
	)
	base := filepath.Join(r.dir, name)
	log := r.logger.With(zap.String("account", account), zap.String("stage", stage))

	// Bounded independently of ctx, which may already be done.
	capCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	wrote := false
	if err := s.Screenshot(capCtx, base+".png"); err != nil {
		log.Debug("Screenshot capture failed", zap.Error(err))
	} else {
		wrote = true
	}

	if html, err := s.Content(capCtx); err != nil {
		log.Debug("HTML capture failed", zap.Error(err))
	} else if err := os.MkdirAll(r.dir, 0o755); err != nil {
		log.Debug("Cannot create artifacts dir", zap.Error(err))
	} else if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
		log.Debug("HTML write failed", zap.Error(err))
	} else {
		wrote = true
	}

	if !wrote {
		return ""
	}
	log.Info("Saved debug artifacts", zap.String("path", base))
	return base
}
