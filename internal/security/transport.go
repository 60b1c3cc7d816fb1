// Package security guards outbound requests whose destination is chosen by
// the caller. The image-comparator probes user-supplied image URLs; those
// probes go through a SafeTransport so a request cannot be pointed at the
// instance metadata service, loopback or private ranges.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// dnsTimeout bounds one DNS resolution.
const dnsTimeout = 500 * time.Millisecond

// DefaultMaxRedirects is the redirect limit of NewSafeHTTPClient callers.
const DefaultMaxRedirects = 3

var (
	// ErrBlocked is returned when a request targets a blocked IP range.
	ErrBlocked = errors.New("security: request to blocked IP range")
	// ErrDNSTimeout is returned when DNS resolution exceeds dnsTimeout.
	ErrDNSTimeout = errors.New("security: DNS resolution timeout")
	// ErrDNSFailed is returned when a host does not resolve.
	ErrDNSFailed = errors.New("security: DNS resolution failed")
	// ErrTooManyRedirects is returned when the redirect limit is exceeded.
	ErrTooManyRedirects = errors.New("security: too many redirects")
)

// BlockedCIDRs are the ranges a caller-chosen URL may never reach.
var BlockedCIDRs = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var blockedNets = sync.OnceValues(func() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(BlockedCIDRs))
	for _, cidr := range BlockedCIDRs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("security: parse CIDR %q: %w", cidr, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
})

// IsBlockedIP reports whether ip falls within any blocked range.
func IsBlockedIP(ip net.IP) bool {
	nets, err := blockedNets()
	if err != nil {
		return true
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver abstracts DNS resolution for tests.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// SafeTransport is an http.RoundTripper whose dialer refuses blocked
// addresses. Every resolved address is checked before the first is dialed.
type SafeTransport struct {
	Base     *http.Transport
	Resolver Resolver
}

// NewSafeTransport wraps base, overriding its DialContext. A nil base gets a
// clone of http.DefaultTransport.
func NewSafeTransport(base *http.Transport) (*SafeTransport, error) {
	if _, err := blockedNets(); err != nil {
		return nil, err
	}
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	// Proxies would hide the real destination from the dialer.
	base.Proxy = nil
	st := &SafeTransport{Base: base}
	base.DialContext = st.dialContext
	return st, nil
}

// RoundTrip implements http.RoundTripper.
func (st *SafeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return st.Base.RoundTrip(req)
}

func (st *SafeTransport) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("security: invalid address %q: %w", addr, err)
	}
	ip, err := safeAddr(ctx, st.resolver(), host)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
}

func (st *SafeTransport) resolver() Resolver {
	if st.Resolver != nil {
		return st.Resolver
	}
	return net.DefaultResolver
}

// safeAddr resolves host and returns the address to dial, or an error when
// any resolved address is blocked.
func safeAddr(ctx context.Context, r Resolver, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if IsBlockedIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, ip)
		}
		return ip, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()
	addrs, err := r.LookupIPAddr(dnsCtx, host)
	if err != nil {
		if dnsCtx.Err() != nil {
			return nil, fmt.Errorf("%w: host %q", ErrDNSTimeout, host)
		}
		return nil, fmt.Errorf("%w: host %q: %v", ErrDNSFailed, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrDNSFailed, host)
	}
	for _, a := range addrs {
		if IsBlockedIP(a.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrBlocked, a.IP, host)
		}
	}
	return addrs[0].IP, nil
}

// CheckRedirect returns an http.Client CheckRedirect func that enforces
// maxRedirects and rejects redirects into blocked ranges.
func CheckRedirect(maxRedirects int, r Resolver) func(req *http.Request, via []*http.Request) error {
	if r == nil {
		r = net.DefaultResolver
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect URL has no host", ErrBlocked)
		}
		_, err := safeAddr(req.Context(), r, host)
		return err
	}
}

// NewSafeHTTPClient returns an http.Client using a SafeTransport and the
// redirect guard.
func NewSafeHTTPClient(timeout time.Duration, maxRedirects int) (*http.Client, error) {
	transport, err := NewSafeTransport(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport:     transport,
		Timeout:       timeout,
		CheckRedirect: CheckRedirect(maxRedirects, nil),
	}, nil
}
