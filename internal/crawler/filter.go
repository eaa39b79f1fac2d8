package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// FilterChain decides whether a discovered link may be enqueued. A URL is
// accepted when its host belongs to the allow-list, it falls inside an
// allowed URL scope (when the profile declares scoped entries), and it
// matches no excluded pattern. Both rejects are hard; the host check runs
// first because it is the cheap one.
//
// Patterns use the profile notation: `*` and `**` match any run of
// characters, everything else is literal. An exclusion without a wildcard
// matches as a case-insensitive substring. Allow-list entries are either
// bare hostnames ("canada.ca", matching subdomains) or URL scopes
// ("https://host/eng/acts/I-3.3/**").
type FilterChain struct {
	hosts    *hostMatcher
	scopes   []*regexp.Regexp
	excluded []exclusion
}

type exclusion struct {
	substring string
	pattern   *regexp.Regexp
}

// NewFilterChain compiles the allow-list and exclusion patterns.
func NewFilterChain(allowed, excluded []string) (*FilterChain, error) {
	fc := &FilterChain{hosts: newHostMatcher()}

	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "://") {
			u, err := url.Parse(strings.ReplaceAll(entry, "**", "x"))
			if err != nil || u.Hostname() == "" {
				return nil, fmt.Errorf("allowed domain %q: invalid URL scope", entry)
			}
			fc.hosts.add(strings.ToLower(u.Hostname()))
			re, err := compileGlob(entry, true)
			if err != nil {
				return nil, fmt.Errorf("allowed domain %q: %w", entry, err)
			}
			fc.scopes = append(fc.scopes, re)
			continue
		}
		fc.hosts.add(strings.ToLower(entry))
	}
	if fc.hosts.empty() {
		return nil, fmt.Errorf("filter chain requires at least one allowed domain")
	}

	for _, entry := range excluded {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "*") {
			re, err := compileGlob(entry, false)
			if err != nil {
				return nil, fmt.Errorf("excluded pattern %q: %w", entry, err)
			}
			fc.excluded = append(fc.excluded, exclusion{pattern: re})
			continue
		}
		fc.excluded = append(fc.excluded, exclusion{substring: strings.ToLower(entry)})
	}

	return fc, nil
}

// Accept reports whether the URL passes the chain.
func (fc *FilterChain) Accept(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" || !fc.hosts.match(host) {
		return false
	}
	if len(fc.scopes) > 0 && !fc.inScope(rawURL) {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, ex := range fc.excluded {
		if ex.pattern != nil {
			if ex.pattern.MatchString(lower) {
				return false
			}
			continue
		}
		if strings.Contains(lower, ex.substring) {
			return false
		}
	}
	return true
}

func (fc *FilterChain) inScope(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, scope := range fc.scopes {
		if scope.MatchString(lower) {
			return true
		}
	}
	return false
}

// compileGlob turns a wildcard pattern into an anchored case-normalized
// regexp. Prefix mode also matches URLs that merely start at the pattern's
// scope, so "https://host/dir/**" admits everything under /dir/.
func compileGlob(pattern string, prefix bool) (*regexp.Regexp, error) {
	expr := regexp.QuoteMeta(strings.ToLower(pattern))
	expr = strings.ReplaceAll(expr, `\*\*`, ".*")
	expr = strings.ReplaceAll(expr, `\*`, ".*")
	expr = "^" + expr
	if prefix {
		expr += ".*$"
	} else {
		expr += "$"
	}
	return regexp.Compile(expr)
}

// hostMatcher stores exact hosts and matches subdomains by suffix, the same
// normalization the domain blocklist uses.
type hostMatcher struct {
	exact map[string]struct{}
}

func newHostMatcher() *hostMatcher {
	return &hostMatcher{exact: make(map[string]struct{})}
}

func (m *hostMatcher) add(host string) {
	host = strings.TrimPrefix(strings.TrimSpace(host), "*.")
	host = strings.TrimPrefix(host, ".")
	if host != "" {
		m.exact[host] = struct{}{}
	}
}

func (m *hostMatcher) empty() bool { return len(m.exact) == 0 }

func (m *hostMatcher) match(host string) bool {
	host = strings.ToLower(host)
	if _, ok := m.exact[host]; ok {
		return true
	}
	for allowed := range m.exact {
		if strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
