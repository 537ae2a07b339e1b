// File: internal/login/candidates.go
package login

import (
	"strings"
)

// CandidateURLs expands a panel reference into an ordered, duplicate-free list
// of URLs that may serve a login form. The same input always yields the same
// list.
//
// A reference with an http(s) scheme is tried as given, then with /login and
// /admin/login appended. A bare host is tried as given, then with https and
// http, then with each login path under https before http.
func CandidateURLs(panelRef string) []string {
	ref := strings.TrimSpace(panelRef)
	if ref == "" {
		return []string{}
	}

	var out []string
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		base := strings.TrimRight(ref, "/")
		out = []string{ref, base + "/login", base + "/admin/login"}
	} else {
		host := strings.TrimRight(ref, "/")
		out = []string{
			ref,
			"https://" + host,
			"http://" + host,
			"https://" + host + "/login",
			"https://" + host + "/admin/login",
			"http://" + host + "/login",
			"http://" + host + "/admin/login",
		}
	}
	return dedupe(out)
}

// WithExtraPaths appends the given paths (e.g. "/login/?next=/") under the
// https form of panelRef's host, keeping the list duplicate-free.
func WithExtraPaths(candidates []string, panelRef string, paths []string) []string {
	if len(paths) == 0 || len(candidates) == 0 {
		return candidates
	}
	base := httpsBase(strings.TrimSpace(panelRef))
	out := append([]string{}, candidates...)
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		out = append(out, base+p)
	}
	return dedupe(out)
}

func httpsBase(ref string) string {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		scheme, rest, _ := strings.Cut(ref, "://")
		host, _, _ := strings.Cut(rest, "/")
		return scheme + "://" + host
	}
	host, _, _ := strings.Cut(ref, "/")
	return "https://" + host
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
