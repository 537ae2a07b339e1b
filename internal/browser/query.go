// File: internal/browser/query.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// markerAttr tags a found node so that scripts can reach it with querySelector.
const markerAttr = "data-keepalive-ref"

// buildQuery translates a strategy and selector into a chromedp selector and its query options.
func buildQuery(strategy Strategy, selector string) (string, []chromedp.QueryOption, error) {
	if strings.TrimSpace(selector) == "" {
		return "", nil, fmt.Errorf("empty selector for strategy %q", strategy)
	}

	switch strategy {
	case StrategyCSS:
		return selector, []chromedp.QueryOption{chromedp.ByQuery}, nil
	case StrategyXPath:
		return selector, []chromedp.QueryOption{chromedp.BySearch}, nil
	case StrategyName:
		q := cssString(selector)
		return fmt.Sprintf(`[name=%s], [id=%s]`, q, q), []chromedp.QueryOption{chromedp.ByQuery}, nil
	case StrategyPlaceholder:
		q := cssString(selector)
		return fmt.Sprintf(`input[placeholder*=%s i], textarea[placeholder*=%s i]`, q, q),
			[]chromedp.QueryOption{chromedp.ByQuery}, nil
	case StrategyText:
		return textXPath(selector), []chromedp.QueryOption{chromedp.BySearch}, nil
	default:
		return "", nil, fmt.Errorf("unknown locator strategy %q", strategy)
	}
}

// cssString quotes s as a CSS string literal.
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

// textXPath builds an XPath matching clickable controls whose normalized text
// or value contains needle, ignoring ASCII case.
func textXPath(needle string) string {
	folded := fmt.Sprintf("translate(normalize-space(concat(string(.), ' ', @value)), '%s', '%s')", upperAlpha, lowerAlpha)
	return fmt.Sprintf(
		"//*[self::button or self::a or (self::input and (@type='submit' or @type='button'))][contains(%s, %s)]",
		folded, xpathLiteral(strings.ToLower(strings.TrimSpace(needle))),
	)
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// scriptTarget returns the expression that resolves a marked element in the page.
func scriptTarget(ref string) string {
	return fmt.Sprintf("document.querySelector('[%s=%s]')", markerAttr, cssString(ref))
}
