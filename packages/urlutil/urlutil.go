// Package urlutil
package urlutil

import (
	"net/url"
	"strings"
)

// TrimToBaseDomain reduces rawURL to scheme://hostname/, dropping port, path,
// query and fragment. Input that does not parse as an absolute URL is
// returned unchanged.
func TrimToBaseDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return rawURL
	}
	host := u.Hostname()
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return u.Scheme + "://" + host + "/"
}
