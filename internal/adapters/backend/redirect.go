package backend

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DefaultRedirectDomains are trusted redirect targets besides the base URL's own domain.
// Apps Script web apps answer with a redirect to a googleusercontent.com host.
var DefaultRedirectDomains = []string{"googleusercontent.com"}

var (
	errTooManyRedirects  = errors.New("too many redirects")
	errRedirectForbidden = errors.New("redirect target not allowed")
)

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// redirectPolicy decides whether a Location may be followed.
type redirectPolicy struct {
	baseScheme string
	baseHost   string
	domains    map[string]struct{}
}

func newRedirectPolicy(base *url.URL, extra []string) redirectPolicy {
	p := redirectPolicy{
		baseScheme: strings.ToLower(base.Scheme),
		baseHost:   strings.ToLower(base.Hostname()),
		domains:    make(map[string]struct{}),
	}
	if d := registrableDomain(p.baseHost); d != "" {
		p.domains[d] = struct{}{}
	}
	for _, d := range extra {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d == "" {
			continue
		}
		if reg := registrableDomain(d); reg != "" {
			d = reg
		}
		p.domains[d] = struct{}{}
	}
	return p
}

// resolve parses location relative to current and checks it against the policy.
func (p redirectPolicy) resolve(current *url.URL, location string) (*url.URL, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("%w: empty Location", errRedirectForbidden)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errRedirectForbidden, err)
	}
	next := current.ResolveReference(ref)

	scheme := strings.ToLower(next.Scheme)
	if scheme != "https" && scheme != p.baseScheme {
		return nil, fmt.Errorf("%w: scheme %q", errRedirectForbidden, next.Scheme)
	}

	host := strings.ToLower(next.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: no host", errRedirectForbidden)
	}
	if host == p.baseHost {
		return next, nil
	}
	if net.ParseIP(host) != nil {
		return nil, fmt.Errorf("%w: host %s", errRedirectForbidden, host)
	}
	if _, ok := p.domains[registrableDomain(host)]; ok {
		return next, nil
	}
	return nil, fmt.Errorf("%w: host %s", errRedirectForbidden, host)
}

// registrableDomain returns the eTLD+1 of host, or "" for IPs, localhost and bare suffixes.
func registrableDomain(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return etld1
}
