// Package domain
package domain

import (
	"net/url"
	"strings"
	"time"
)

type SignalKind string

const (
	CanonicalLink    SignalKind = "canonical-link"
	MetaRefresh      SignalKind = "meta-refresh"
	ScriptNavigation SignalKind = "script-navigation"
)

type FetchResult struct {
	RequestURL  *url.URL
	FinalURL    *url.URL // after transport-level redirects
	StatusCode  int
	ContentType string
	IsHTML      bool
	Body        string // only set when IsHTML
	Elapsed     time.Duration
}

type RedirectSignal struct {
	Kind   SignalKind
	Ref    string
	Target *url.URL
}

// DomainKey is a hostname normalised for same-site comparison.
type DomainKey string

// KeyOf lowercases the hostname of u and strips one leading "www." label.
// Scheme and port never take part in the comparison.
func KeyOf(u *url.URL) DomainKey {
	if u == nil {
		return ""
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	return DomainKey(strings.TrimPrefix(host, "www."))
}

type Hop struct {
	URL         string        `json:"url"`
	FinalURL    string        `json:"finalUrl"`
	StatusCode  int           `json:"status"`
	ContentType string        `json:"contentType,omitempty"`
	Signal      SignalKind    `json:"signal,omitempty"`
	Elapsed     time.Duration `json:"-"`
}

type Resolution struct {
	OriginalURL     string
	FinalURL        string
	Hops            []Hop
	MaxDepthReached bool
}

type BatchItem struct {
	OriginalURL string `json:"originalUrl"`
	TrimmedURL  string `json:"trimmedUrl,omitempty"`
	FinalURL    string `json:"finalUrl,omitempty"`
	Error       string `json:"error,omitempty"`
	Err         error  `json:"-"`
}
