package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/simplesapien/redirect-resolver/packages/crawler"
)

// testWeb serves pages for any number of hostnames from one httptest server.
// Its client dials the server whatever host a URL names, except hosts
// starting with "unreachable." which fail to connect.
type testWeb struct {
	srv   *httptest.Server
	mu    sync.Mutex
	pages map[string]http.HandlerFunc
	hits  []string
}

func newTestWeb(t *testing.T) *testWeb {
	t.Helper()
	w := &testWeb{pages: make(map[string]http.HandlerFunc)}
	w.srv = httptest.NewServer(http.HandlerFunc(w.serve))
	t.Cleanup(w.srv.Close)
	return w
}

func (w *testWeb) serve(rw http.ResponseWriter, r *http.Request) {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	key := host + r.URL.Path

	w.mu.Lock()
	w.hits = append(w.hits, key)
	handler, ok := w.pages[key]
	w.mu.Unlock()

	if !ok {
		http.NotFound(rw, r)
		return
	}
	handler(rw, r)
}

func (w *testWeb) handle(hostPath string, h http.HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[hostPath] = h
}

func (w *testWeb) html(hostPath, body string) {
	w.handle(hostPath, func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(rw, body)
	})
}

func (w *testWeb) redirect(hostPath, location string, code int) {
	w.handle(hostPath, func(rw http.ResponseWriter, r *http.Request) {
		http.Redirect(rw, r, location, code)
	})
}

func (w *testWeb) file(hostPath, contentType, body string) {
	w.handle(hostPath, func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", contentType)
		fmt.Fprint(rw, body)
	})
}

func (w *testWeb) Hits() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.hits...)
}

func (w *testWeb) client() *http.Client {
	addr := w.srv.Listener.Addr().String()
	dialer := &net.Dialer{Timeout: time.Second}
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, hostport string) (net.Conn, error) {
				if strings.HasPrefix(hostport, "unreachable.") {
					return nil, &net.OpError{Op: "dial", Net: network, Err: errors.New("connection refused")}
				}
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
}

func (w *testWeb) resolver(t *testing.T) *Resolver {
	t.Helper()
	c, err := crawler.New(crawler.Options{Client: w.client()})
	require.NoError(t, err)
	return New(c)
}

func page(head string) string {
	return "<!doctype html><html><head><title>t</title>" + head + "</head><body><p>hello</p></body></html>"
}
