// Package resolver follows a URL through transport redirects and the
// redirect signals embedded in HTML (canonical links, meta refresh and
// script navigation) until it settles or the depth bound is hit.
//
// A Resolver holds no mutable state. Any number of resolutions may run on
// one Resolver concurrently.
package resolver

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/simplesapien/redirect-resolver/packages/domain"
)

// MaxDepth is the deepest recursion level that still fetches. Depths 0..5
// give one initial fetch plus up to five re-fetches.
const MaxDepth = 5

var errNotAbsolute = errors.New("not an absolute http(s) URL")

// Fetcher performs one GET with transport-level redirects followed.
type Fetcher interface {
	Fetch(ctx context.Context, target *url.URL) (*domain.FetchResult, error)
}

type Resolver struct {
	fetcher Fetcher
}

func New(fetcher Fetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Resolve returns the final URL for rawURL. Reaching MaxDepth is not an
// error; the last URL reached is returned.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	res, err := r.Trace(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return res.FinalURL, nil
}

// Trace is Resolve with the hop log kept.
func (r *Resolver) Trace(ctx context.Context, rawURL string) (*domain.Resolution, error) {
	start, err := ParseAbsolute(rawURL)
	if err != nil {
		return nil, err
	}
	res := &domain.Resolution{OriginalURL: rawURL}
	final, err := r.resolve(ctx, start, domain.KeyOf(start), 0, res)
	if err != nil {
		return nil, err
	}
	res.FinalURL = final
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, current *url.URL, origin domain.DomainKey, depth int, res *domain.Resolution) (string, error) {
	if depth > MaxDepth {
		res.MaxDepthReached = true
		return current.String(), nil
	}
	if err := ctx.Err(); err != nil {
		return "", &ResolutionError{Kind: FetchFailed, URL: current.String(), Err: err}
	}

	fetched, err := r.fetcher.Fetch(ctx, current)
	if err != nil {
		return "", &ResolutionError{Kind: FetchFailed, URL: current.String(), Err: err}
	}
	final := fetched.FinalURL
	if final == nil {
		final = current
	}
	hop := domain.Hop{
		URL:         current.String(),
		FinalURL:    final.String(),
		StatusCode:  fetched.StatusCode,
		ContentType: fetched.ContentType,
		Elapsed:     fetched.Elapsed,
	}

	if !fetched.IsHTML {
		res.Hops = append(res.Hops, hop)
		return final.String(), nil
	}

	signal, ok := selectSignal(fetched.Body, final, origin)
	if !ok {
		res.Hops = append(res.Hops, hop)
		return final.String(), nil
	}
	next := signal.Target.String()
	if next == current.String() || next == final.String() {
		res.Hops = append(res.Hops, hop)
		return final.String(), nil
	}

	hop.Signal = signal.Kind
	res.Hops = append(res.Hops, hop)
	return r.resolve(ctx, signal.Target, origin, depth+1, res)
}

// ParseAbsolute parses raw and requires an http or https scheme and a host.
func ParseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, &ResolutionError{Kind: InvalidURL, URL: raw, Err: err}
	}
	if !isFetchable(u) {
		return nil, &ResolutionError{Kind: InvalidURL, URL: raw, Err: errNotAbsolute}
	}
	return u, nil
}
