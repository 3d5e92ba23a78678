package resolver

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesapien/redirect-resolver/packages/domain"
)

func TestMatchCanonical(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{"double quoted", `<link rel="canonical" href="https://x.example/a">`, "https://x.example/a", true},
		{"href first single quoted", `<link href='/a?b=1&amp;c=2' rel='canonical'/>`, "/a?b=1&c=2", true},
		{"bare values", `<LINK REL=canonical HREF=https://x.example/b>`, "https://x.example/b", true},
		{"multiple rel tokens", `<link rel="alternate canonical" href="/c">`, "/c", true},
		{"skips other links", `<link rel="icon" href="/i.png"><link rel="canonical" href="/d">`, "/d", true},
		{"empty href", `<link rel="canonical" href="">`, "", false},
		{"rel canonicalish", `<link rel="canonical-ish" href="/e">`, "", false},
		{"none", `<a href="/x">canonical</a>`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchCanonical(tt.body)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchMetaRefresh(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{"standard", `<meta http-equiv="refresh" content="0;url=/next">`, "/next", true},
		{"content first", `<meta content="5; URL=https://x.example/" http-equiv="Refresh">`, "https://x.example/", true},
		{"no url", `<meta http-equiv="refresh" content="30">`, "", false},
		{"other meta", `<meta name="description" content="0;url=/nope">`, "", false},
		{"multiline tag", "<meta\n  http-equiv=\"refresh\"\n  content=\"0;url=/ml\"\n>", "/ml", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchMetaRefresh(tt.body)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRefreshContent(t *testing.T) {
	tests := []struct {
		content string
		want    string
		wantOK  bool
	}{
		{"0;url=/next", "/next", true},
		{"0; URL=/next", "/next", true},
		{"0 ; url = /next ", "/next", true},
		{"1.5, url='/quoted' trailing", "/quoted", true},
		{`0;url="/dq"`, "/dq", true},
		{"0; /bare", "/bare", true},
		{"0;urlencoded.html", "urlencoded.html", true},
		{"10", "", false},
		{"", "", false},
		{"0;url=", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			got, ok := parseRefreshContent(tt.content)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchScriptNavigation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{"assign", `window.location = "https://a.example/"`, "https://a.example/", true},
		{"href single quotes", `window.location.href='/b'`, "/b", true},
		{"replace", `location.replace( "https://c.example/" )`, "https://c.example/", true},
		{"pattern order beats position", `location.replace("/late"); window.location = "/first-pattern"`, "/first-pattern", true},
		{"comparison is not navigation", `if (window.location == "x") {}`, "", false},
		{"none", `console.log("location")`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchScriptNavigation(tt.body)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectSignal(t *testing.T) {
	base := mustParse(t, "https://www.site.example/start")
	origin := domain.DomainKey("origin.example")

	t.Run("unresolvable reference skipped", func(t *testing.T) {
		body := `<meta http-equiv="refresh" content="0;url=javascript:void(0)">` +
			`<script>location.replace("https://dest.example/")</script>`
		sig, ok := selectSignal(body, base, origin)
		require.True(t, ok)
		assert.Equal(t, domain.ScriptNavigation, sig.Kind)
		assert.Equal(t, "https://dest.example/", sig.Target.String())
	})

	t.Run("malformed canonical falls through to meta refresh", func(t *testing.T) {
		body := `<link rel="canonical" href="http://[bad">` +
			`<meta http-equiv="refresh" content="0;url=/next">`
		sig, ok := selectSignal(body, base, origin)
		require.True(t, ok)
		assert.Equal(t, domain.MetaRefresh, sig.Kind)
		assert.Equal(t, "https://www.site.example/next", sig.Target.String())
	})

	t.Run("canonical to origin domain gated", func(t *testing.T) {
		_, ok := selectSignal(`<link rel="canonical" href="http://origin.example/x">`, base, origin)
		assert.False(t, ok)
	})

	t.Run("canonical resolved against base", func(t *testing.T) {
		sig, ok := selectSignal(`<link rel="canonical" href="//cdn.other.example/p">`, base, origin)
		require.True(t, ok)
		assert.Equal(t, "https://cdn.other.example/p", sig.Target.String())
		assert.Equal(t, "//cdn.other.example/p", sig.Ref)
	})

	t.Run("script same domain ignoring www", func(t *testing.T) {
		_, ok := selectSignal(`<script>window.location="https://site.example/app"</script>`, base, origin)
		assert.False(t, ok)
	})

	t.Run("empty body", func(t *testing.T) {
		_, ok := selectSignal("", base, origin)
		assert.False(t, ok)
	})
}

func TestParseAbsolute(t *testing.T) {
	u, err := ParseAbsolute("  https://Example.com/a?b=c  ")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "Example.com", u.Host)

	_, err = ParseAbsolute("mailto:someone@example.com")
	assert.Equal(t, InvalidURL, KindOf(err))
	assert.ErrorIs(t, err, errNotAbsolute)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
