package crawler

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"github.com/simplesapien/redirect-resolver/packages/domain"
)

const (
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 5 * 1024 * 1024
	maxTransportHops    = 10
)

// errUndecodable marks a body that could not be turned into text. Callers
// treat such responses as non-HTML.
var errUndecodable = errors.New("body is not decodable text")

type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	ProxyURL     string
	// Client replaces the default client when set. Its redirect policy is
	// left untouched; a zero client timeout is replaced by Timeout.
	Client *http.Client
}

type Crawler struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

func New(opts Options) (*Crawler, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = DefaultUserAgent
	}

	client := opts.Client
	if client != nil && client.Timeout <= 0 {
		bounded := *client
		bounded.Timeout = opts.Timeout
		client = &bounded
	}
	if client == nil {
		transport := &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: opts.Timeout, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   opts.Timeout,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		if strings.TrimSpace(opts.ProxyURL) != "" {
			proxyURL, err := url.Parse(opts.ProxyURL)
			if err != nil {
				return nil, fmt.Errorf("parse proxy url: %w", err)
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		client = &http.Client{
			Timeout:       opts.Timeout,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		}
	}

	return &Crawler{
		client:       client,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
	}, nil
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxTransportHops {
		return fmt.Errorf("stopped after %d redirects", maxTransportHops)
	}
	return nil
}

// Fetch issues a single GET, letting the client follow 3xx responses. The
// body is only read and decoded when the content type indicates HTML.
func (c *Crawler) Fetch(ctx context.Context, target *url.URL) (*domain.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result := &domain.FetchResult{
		RequestURL:  target,
		FinalURL:    target,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL
	}

	if !IsHTMLContentType(result.ContentType) {
		result.Elapsed = time.Since(start)
		return result, nil
	}

	body, err := c.readBody(resp)
	result.Elapsed = time.Since(start)
	switch {
	case errors.Is(err, errUndecodable):
		return result, nil
	case err != nil:
		return nil, err
	}
	result.IsHTML = true
	result.Body = body
	return result, nil
}

func IsHTMLContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "html")
}

func (c *Crawler) readBody(resp *http.Response) (string, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("%w: gzip: %v", errUndecodable, err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl, err := newDeflateReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("%w: deflate: %v", errUndecodable, err)
		}
		defer fl.Close()
		reader = fl
	default:
		return "", fmt.Errorf("%w: unsupported content encoding", errUndecodable)
	}

	// Oversized bodies are truncated; redirect signals live near the top.
	raw, err := io.ReadAll(io.LimitReader(reader, c.maxBodyBytes))
	if err != nil {
		if isDecodeError(err) {
			return "", fmt.Errorf("%w: %v", errUndecodable, err)
		}
		return "", fmt.Errorf("read body: %w", err)
	}

	decoded, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: charset: %v", errUndecodable, err)
	}
	text, err := io.ReadAll(decoded)
	if err != nil {
		return "", fmt.Errorf("%w: charset: %v", errUndecodable, err)
	}
	return string(text), nil
}

// newDeflateReader handles zlib-wrapped deflate and falls back to a raw
// flate stream when no zlib header is present.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	buf := bufio.NewReader(r)
	header, err := buf.Peek(2)
	if err == nil && isZlibHeader(header[0], header[1]) {
		return zlib.NewReader(buf)
	}
	return flate.NewReader(buf), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

func isDecodeError(err error) bool {
	var corrupt flate.CorruptInputError
	return errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, zlib.ErrChecksum) || errors.Is(err, zlib.ErrHeader) ||
		errors.Is(err, zlib.ErrDictionary) || errors.As(err, &corrupt)
}
