// File: internal/login/classifier.go
package login

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// excerptRadius is how many runes of context surround a matched error keyword.
const excerptRadius = 40

// PageState is what the classifier sees after submit.
type PageState struct {
	URL     string
	Title   string
	Content string
	// LoginURL is the candidate URL that served the form.
	LoginURL string
}

// Verdict is a classification plus a human-readable reason.
type Verdict struct {
	Classification Classification
	Reason         string
}

// Classifier decides from page text whether a login went through.
type Classifier struct {
	success []string
	errors  []string
}

// NewClassifier builds a Classifier. Keywords are case-folded; empty ones are dropped.
func NewClassifier(successKeywords, errorKeywords []string) *Classifier {
	return &Classifier{
		success: foldAll(successKeywords),
		errors:  foldAll(errorKeywords),
	}
}

// Classify applies the rules in order, first match wins:
//  1. a success keyword in the URL path, title or body
//  2. an error keyword in the body
//  3. the URL still looks like the login page
//  4. otherwise indeterminate
//
// The URL host is excluded from rule 1 because panel hosts routinely contain
// words like "panel" regardless of login state.
func (c *Classifier) Classify(st PageState) Verdict {
	urlPart := strings.ToLower(urlWithoutHost(st.URL))
	title := strings.ToLower(st.Title)
	body := strings.ToLower(st.Content)

	for _, kw := range c.success {
		switch {
		case strings.Contains(urlPart, kw):
			return Verdict{Success, fmt.Sprintf("success keyword %q in URL", kw)}
		case strings.Contains(title, kw):
			return Verdict{Success, fmt.Sprintf("success keyword %q in title", kw)}
		case strings.Contains(body, kw):
			return Verdict{Success, fmt.Sprintf("success keyword %q in page", kw)}
		}
	}

	for _, kw := range c.errors {
		if idx := strings.Index(body, kw); idx >= 0 {
			return Verdict{Failure, fmt.Sprintf("error keyword %q: %q", kw, excerpt(body, idx, len(kw)))}
		}
	}

	if stillOnLoginPage(st.URL, st.LoginURL) {
		return Verdict{Failure, "still on login page"}
	}

	return Verdict{Indeterminate, "page changed, no explicit signal either way"}
}

// stillOnLoginPage reports whether current looks like the login page that was
// submitted: its path mentions /login, or it equals the non-root path of loginURL.
func stillOnLoginPage(current, loginURL string) bool {
	if strings.Contains(strings.ToLower(urlWithoutHost(current)), "/login") {
		return true
	}
	loginPath := pathOf(loginURL)
	return loginPath != "" && pathOf(current) == loginPath
}

// urlWithoutHost returns path, query and fragment. Unparseable input is returned as is.
func urlWithoutHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	s := u.EscapedPath()
	if u.RawQuery != "" {
		s += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		s += "#" + u.Fragment
	}
	return s
}

// pathOf returns the lowercased path of raw without a trailing slash.
func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimRight(strings.ToLower(u.Path), "/")
}

// excerpt cuts a window of body around [idx, idx+n) on rune boundaries and
// collapses whitespace.
func excerpt(body string, idx, n int) string {
	start := idx
	for i := 0; i < excerptRadius && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(body[:start])
		start -= size
	}
	end := idx + n
	for i := 0; i < excerptRadius && end < len(body); i++ {
		_, size := utf8.DecodeRuneInString(body[end:])
		end += size
	}
	return strings.Join(strings.Fields(body[start:end]), " ")
}

func foldAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
