// File: internal/login/controller.go
package login

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/accounts"
	"github.com/xkilldash9x/keepalive-cli/internal/browser"
	"github.com/xkilldash9x/keepalive-cli/internal/config"
	"github.com/xkilldash9x/keepalive-cli/internal/pacing"
)

// Controller drives one account through its candidate URLs to a single Outcome.
type Controller struct {
	logger     *zap.Logger
	cfg        config.LoginConfig
	specs      Specs
	chain      *Chain
	interactor *Interactor
	classifier *Classifier
	artifacts  *ArtifactRecorder
	backoff    *pacing.Pacer
}

// NewController wires the locator chain, interactor and classifier from cfg.
func NewController(logger *zap.Logger, cfg config.LoginConfig) (*Controller, error) {
	specs, err := SpecsFromConfig(cfg.Locators)
	if err != nil {
		return nil, err
	}
	logger = logger.Named("login")
	return &Controller{
		logger:     logger,
		cfg:        cfg,
		specs:      specs,
		chain:      NewChain(logger, cfg.LocatorTimeout),
		interactor: NewInteractor(logger, cfg.SettleDelay, cfg.PostSubmitWait),
		classifier: NewClassifier(cfg.SuccessKeywords, cfg.ErrorKeywords),
		artifacts:  NewArtifactRecorder(logger, cfg.ArtifactsDir),
		backoff:    pacing.New(cfg.RetryDelayMin, cfg.RetryDelayMax),
	}, nil
}

// Candidates returns the URLs Run would try for panelRef, in order.
func (c *Controller) Candidates(panelRef string) []string {
	return WithExtraPaths(CandidateURLs(panelRef), panelRef, c.cfg.ExtraPaths)
}

// Run logs into one account. Per-account problems are reported in the
// Outcome; the error is non-nil only when the session is unusable or ctx is
// done, and the caller must stop the batch.
func (c *Controller) Run(ctx context.Context, s browser.Session, cred accounts.Credential) (Outcome, error) {
	log := c.logger.With(zap.String("account", cred.Name), zap.String("panel", cred.Label()))
	out := Outcome{SoftSuccess: c.cfg.IndeterminateIsSuccess}

	if err := cred.Validate(); err != nil {
		out.Kind = KindInputInvalid
		out.Reason = err.Error()
		log.Warn("Skipping account with invalid input", zap.Error(err))
		return out, nil
	}

	candidates := c.Candidates(cred.Panel)
	if len(candidates) == 0 {
		out.Kind = KindInputInvalid
		out.Reason = "panel reference yields no candidate URLs"
		return out, nil
	}

	for _, candidate := range candidates {
		out.TriedURLs++
		res, decisive, err := c.tryCandidate(ctx, s, cred, candidate, log.With(zap.String("url", candidate)))
		if err != nil {
			out.Reason = err.Error()
			if errors.Is(err, browser.ErrSessionFatal) {
				out.Kind = KindSessionFatal
			}
			return out, err
		}
		if decisive {
			res.TriedURLs = out.TriedURLs
			return res, nil
		}
	}

	out.Kind = KindNoLoginPageFound
	out.Reason = fmt.Sprintf("no login form found at %d candidate URLs", len(candidates))
	out.ObservedURL = c.currentURL(ctx, s)
	log.Warn("No login page found", zap.Int("candidates", len(candidates)))
	c.artifacts.Capture(ctx, s, cred.Name, "no_login_page")
	return out, nil
}

// tryCandidate navigates with retries, then attempts the form. decisive is
// false when the candidate turned out not to be a login page.
func (c *Controller) tryCandidate(ctx context.Context, s browser.Session, cred accounts.Credential, candidate string, log *zap.Logger) (Outcome, bool, error) {
	var navErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff.Next()
			log.Info("Retrying navigation", zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
			if err := pacing.Sleep(ctx, delay); err != nil {
				return Outcome{}, false, err
			}
		}
		navErr = s.Navigate(ctx, candidate, c.cfg.NavigationTimeout)
		if navErr == nil || fatal(navErr) || !errors.Is(navErr, browser.ErrNavigationTimeout) {
			break
		}
	}
	if navErr != nil {
		if fatal(navErr) {
			return Outcome{}, false, navErr
		}
		log.Debug("Candidate unreachable", zap.Error(navErr))
		return Outcome{}, false, nil
	}

	return c.attemptForm(ctx, s, cred, candidate, log)
}

func (c *Controller) attemptForm(ctx context.Context, s browser.Session, cred accounts.Credential, candidate string, log *zap.Logger) (Outcome, bool, error) {
	user, err := c.chain.Resolve(ctx, s, c.specs.Username)
	if err != nil {
		if fatal(err) {
			return Outcome{}, false, err
		}
		log.Debug("No username field, moving to next candidate")
		return Outcome{}, false, nil
	}
	// A username match alone can be a search box; only a page with both
	// fields counts as the login form.
	pass, err := c.chain.Resolve(ctx, s, c.specs.Password)
	if err != nil {
		if fatal(err) {
			return Outcome{}, false, err
		}
		log.Debug("No password field, moving to next candidate", zap.Stringer("username_field", user))
		return Outcome{}, false, nil
	}

	out := Outcome{SoftSuccess: c.cfg.IndeterminateIsSuccess}
	fail := func(stage string, cause error) (Outcome, bool, error) {
		if fatal(cause) {
			return Outcome{}, false, cause
		}
		out.Classification = Failure
		out.Kind = KindFieldInteractionFailed
		out.Reason = fmt.Sprintf("%s: %v", stage, cause)
		out.ObservedURL = c.currentURL(ctx, s)
		log.Warn("Login form interaction failed", zap.String("stage", stage), zap.Error(cause))
		c.artifacts.Capture(ctx, s, cred.Name, stage)
		return out, true, nil
	}

	if err := c.interactor.Fill(ctx, s, user, cred.Username); err != nil {
		return fail("fill_username", err)
	}
	if err := c.interactor.Fill(ctx, s, pass, cred.Password); err != nil {
		return fail("fill_password", err)
	}

	button, err := c.chain.Resolve(ctx, s, c.specs.Submit)
	if err != nil {
		if fatal(err) {
			return Outcome{}, false, err
		}
		log.Debug("No submit control found, submitting with Enter")
		button = nil
	}
	method, err := c.interactor.Submit(ctx, s, button, pass)
	if err != nil {
		return fail("submit", err)
	}

	state, err := c.observe(ctx, s, candidate)
	if err != nil {
		return Outcome{}, false, err
	}
	verdict := c.classifier.Classify(state)
	out.Classification = verdict.Classification
	out.Reason = verdict.Reason
	out.ObservedURL = state.URL
	if verdict.Classification == Failure {
		out.Kind = KindRejected
		c.artifacts.Capture(ctx, s, cred.Name, "rejected")
	}

	log.Info("Login attempt classified",
		zap.String("classification", verdict.Classification.String()),
		zap.String("reason", verdict.Reason),
		zap.String("submit", string(method)),
		zap.String("observed_url", state.URL),
	)
	return out, true, nil
}

// observe reads the page after submit. Only fatal errors are returned;
// missing pieces are left empty.
func (c *Controller) observe(ctx context.Context, s browser.Session, loginURL string) (PageState, error) {
	st := PageState{LoginURL: loginURL}
	var err error
	if st.URL, err = s.CurrentURL(ctx); err != nil {
		if fatal(err) {
			return st, err
		}
		c.logger.Debug("Could not read URL after submit", zap.Error(err))
	}
	if st.Title, err = s.Title(ctx); err != nil {
		if fatal(err) {
			return st, err
		}
		c.logger.Debug("Could not read title after submit", zap.Error(err))
	}
	if st.Content, err = s.Content(ctx); err != nil {
		if fatal(err) {
			return st, err
		}
		c.logger.Debug("Could not read content after submit", zap.Error(err))
	}
	return st, nil
}

func (c *Controller) currentURL(ctx context.Context, s browser.Session) string {
	u, err := s.CurrentURL(ctx)
	if err != nil {
		return ""
	}
	return u
}
