package resolver

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/simplesapien/redirect-resolver/packages/domain"
)

var (
	linkTagRe = regexp.MustCompile(`(?is)<link\b[^>]*>`)
	metaTagRe = regexp.MustCompile(`(?is)<meta\b[^>]*>`)
	attrRe    = regexp.MustCompile(`(?s)([a-zA-Z_:][-a-zA-Z0-9_:.]*)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'=<>` + "`" + `]+))`)

	// Tried in order; the first pattern with a match wins.
	scriptNavigationRes = []*regexp.Regexp{
		regexp.MustCompile(`window\.location\s*=\s*["']([^"']+)["']`),
		regexp.MustCompile(`window\.location\.href\s*=\s*["']([^"']+)["']`),
		regexp.MustCompile(`location\.replace\(\s*["']([^"']+)["']\s*\)`),
	}
)

// A matcher pulls one kind of redirect reference out of raw markup and
// decides whether a resolved target of that kind should be followed.
type matcher struct {
	kind   domain.SignalKind
	match  func(body string) (string, bool)
	follow func(target, base *url.URL, origin domain.DomainKey) bool
}

var matchers = []matcher{
	{
		kind:  domain.CanonicalLink,
		match: matchCanonical,
		follow: func(target, base *url.URL, origin domain.DomainKey) bool {
			key := domain.KeyOf(target)
			return key != domain.KeyOf(base) && key != origin
		},
	},
	{
		kind:   domain.MetaRefresh,
		match:  matchMetaRefresh,
		follow: func(*url.URL, *url.URL, domain.DomainKey) bool { return true },
	},
	{
		kind:  domain.ScriptNavigation,
		match: matchScriptNavigation,
		follow: func(target, base *url.URL, _ domain.DomainKey) bool {
			return domain.KeyOf(target) != domain.KeyOf(base)
		},
	},
}

// selectSignal returns the first signal, in priority order, whose reference
// resolves against base and passes its kind's domain gate. origin is the
// domain of the URL the whole resolution started from.
func selectSignal(body string, base *url.URL, origin domain.DomainKey) (*domain.RedirectSignal, bool) {
	for _, m := range matchers {
		ref, ok := m.match(body)
		if !ok {
			continue
		}
		target, ok := resolveReference(base, ref)
		if !ok || !m.follow(target, base, origin) {
			continue
		}
		return &domain.RedirectSignal{Kind: m.kind, Ref: ref, Target: target}, true
	}
	return nil, false
}

func matchCanonical(body string) (string, bool) {
	for _, tag := range linkTagRe.FindAllString(body, -1) {
		attrs := parseAttributes(tag)
		if !hasToken(attrs["rel"], "canonical") {
			continue
		}
		if href := strings.TrimSpace(attrs["href"]); href != "" {
			return href, true
		}
	}
	return "", false
}

func matchMetaRefresh(body string) (string, bool) {
	for _, tag := range metaTagRe.FindAllString(body, -1) {
		attrs := parseAttributes(tag)
		if !strings.EqualFold(strings.TrimSpace(attrs["http-equiv"]), "refresh") {
			continue
		}
		if ref, ok := parseRefreshContent(attrs["content"]); ok {
			return ref, true
		}
	}
	return "", false
}

func matchScriptNavigation(body string) (string, bool) {
	for _, re := range scriptNavigationRes {
		if m := re.FindStringSubmatch(body); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// parseAttributes returns the tag's attributes keyed by lowercase name. The
// first occurrence of a name wins, as in browsers.
func parseAttributes(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(tag, -1) {
		name := strings.ToLower(m[1])
		if _, seen := attrs[name]; seen {
			continue
		}
		attrs[name] = html.UnescapeString(m[2] + m[3] + m[4])
	}
	return attrs
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(strings.ToLower(list)) {
		if f == token {
			return true
		}
	}
	return false
}

// parseRefreshContent extracts the target from a refresh value such as
// `0;url=/next`, `5, URL='https://x.example/'` or `0; /next`.
func parseRefreshContent(content string) (string, bool) {
	s := strings.TrimSpace(content)
	s = strings.TrimLeft(s, "0123456789.")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if s[0] == ';' || s[0] == ',' {
		s = strings.TrimSpace(s[1:])
	}
	if len(s) >= 3 && strings.EqualFold(s[:3], "url") {
		if rest := strings.TrimSpace(s[3:]); strings.HasPrefix(rest, "=") {
			s = strings.TrimSpace(rest[1:])
		}
	}
	if s != "" && (s[0] == '"' || s[0] == '\'') {
		quote := s[0]
		s = s[1:]
		if i := strings.IndexByte(s, quote); i >= 0 {
			s = s[:i]
		}
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// resolveReference resolves ref against base and accepts only absolute
// http(s) results.
func resolveReference(base *url.URL, ref string) (*url.URL, bool) {
	target, err := base.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, false
	}
	if !isFetchable(target) {
		return nil, false
	}
	return target, true
}

func isFetchable(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
