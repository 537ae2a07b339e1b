// File: internal/browser/stealth/stealth.go
package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/config"
)

//go:embed evasions.js
var evasionsScript string

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Persona is the fingerprint presented to the panel. It is kept consistent
// across the HTTP layer, the emulation overrides and the JS environment.
type Persona struct {
	UserAgent  string   `json:"userAgent"`
	Platform   string   `json:"platform"`
	Languages  []string `json:"languages"`
	TimezoneID string   `json:"timezoneId,omitempty"`
	Width      int64    `json:"width"`
	Height     int64    `json:"height"`
}

// PersonaFromConfig converts the browser.persona config section.
func PersonaFromConfig(cfg config.PersonaConfig) Persona {
	return Persona{
		UserAgent:  cfg.UserAgent,
		Platform:   cfg.Platform,
		Languages:  cfg.Languages,
		TimezoneID: cfg.Timezone,
		Width:      cfg.Width,
		Height:     cfg.Height,
	}
}

// Apply returns the actions that install the persona on a fresh tab. It must
// run before the first navigation.
func Apply(persona Persona, logger *zap.Logger) chromedp.Action {
	l := logger.Named("stealth")
	return chromedp.Tasks{
		network.Enable(),
		setExtraHTTPHeaders(persona, l),
		setUserAgent(persona, l),
		setDeviceMetrics(persona, l),
		setEnvironmentOverrides(persona, l),
		injectEvasionScript(persona, l),
		chromedp.ActionFunc(func(ctx context.Context) error {
			l.Debug("Stealth profile applied", zap.String("user_agent", persona.UserAgent))
			return nil
		}),
	}
}

// Script renders the evasion script with the persona inlined.
func Script(persona Persona) (string, error) {
	personaJSON, err := json.Marshal(persona)
	if err != nil {
		return "", fmt.Errorf("stealth: failed to marshal persona: %w", err)
	}
	return fmt.Sprintf("const KEEPALIVE_PERSONA = %s;\n%s", personaJSON, evasionsScript), nil
}

// AcceptLanguage formats languages as an Accept-Language header value with
// descending quality factors.
func AcceptLanguage(languages []string) string {
	if len(languages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(languages[0])
	for i := 1; i < len(languages); i++ {
		q := 1.0 - float64(i)*0.1
		if q < 0.7 {
			q = 0.7
		}
		fmt.Fprintf(&b, ",%s;q=%.1f", languages[i], q)
	}
	return b.String()
}

func injectEvasionScript(persona Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		script, err := Script(persona)
		if err != nil {
			return err
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			logger.Error("Failed to register evasion script", zap.Error(err))
			return fmt.Errorf("stealth: failed to add script on new document: %w", err)
		}
		return nil
	})
}

func setUserAgent(persona Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if persona.UserAgent == "" {
			return nil
		}
		err := emulation.SetUserAgentOverride(persona.UserAgent).
			WithPlatform(persona.Platform).
			WithAcceptLanguage(strings.Join(persona.Languages, ",")).
			Do(ctx)
		if err != nil {
			logger.Error("Failed to set user agent override", zap.Error(err))
			return fmt.Errorf("stealth: failed to set user agent override: %w", err)
		}
		return nil
	})
}

func setExtraHTTPHeaders(persona Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		lang := AcceptLanguage(persona.Languages)
		if lang == "" {
			return nil
		}
		headers := network.Headers(map[string]interface{}{"Accept-Language": lang})
		if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
			logger.Error("Failed to set extra HTTP headers", zap.Error(err))
			return fmt.Errorf("stealth: failed to set extra http headers: %w", err)
		}
		return nil
	})
}

func setDeviceMetrics(persona Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if persona.Width <= 0 || persona.Height <= 0 {
			return nil
		}
		if err := emulation.SetDeviceMetricsOverride(persona.Width, persona.Height, 1.0, false).Do(ctx); err != nil {
			logger.Error("Failed to set device metrics override", zap.Error(err))
			return fmt.Errorf("stealth: failed to set device metrics: %w", err)
		}
		return nil
	})
}

func setEnvironmentOverrides(persona Persona, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if persona.TimezoneID != "" {
			if err := emulation.SetTimezoneOverride(persona.TimezoneID).Do(ctx); err != nil {
				logger.Error("Failed to set timezone override", zap.Error(err))
				return fmt.Errorf("stealth: failed to set timezone: %w", err)
			}
		}
		if len(persona.Languages) > 0 {
			locale := strings.ReplaceAll(persona.Languages[0], "_", "-")
			if err := emulation.SetLocaleOverride().WithLocale(locale).Do(ctx); err != nil {
				// Chrome rejects a second override on the same target; not worth failing the tab.
				logger.Debug("Locale override rejected", zap.String("locale", locale), zap.Error(err))
			}
		}
		return nil
	})
}
