// Package fetch pulls job postings from caller-supplied URLs. Because the
// URL is untrusted, the fetcher validates the scheme and hostname, resolves
// DNS exactly once, rejects internal address ranges, and pins the connection
// to the validated IP so a second resolution can never route the request
// somewhere else (DNS rebinding).
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrInvalidURL means the URL could not be parsed or uses a scheme other
	// than http/https.
	ErrInvalidURL = errors.New("invalid url")
	// ErrBlocked means the URL targets an internal or otherwise disallowed
	// address.
	ErrBlocked = errors.New("internal urls are not allowed")
	// ErrUpstream means the remote server answered but unusably (redirect,
	// non-2xx, wrong content type).
	ErrUpstream = errors.New("upstream error")
	// ErrTooLarge means the response advertised a size over the cap.
	ErrTooLarge = errors.New("response too large")
)

const userAgent = "Kariro/1.0 Job Analyzer"

// LookupFunc resolves a hostname to IPs. Injectable for tests.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

// Fetcher retrieves and sanitizes text from public HTTP(S) URLs.
type Fetcher struct {
	timeout  time.Duration
	maxBytes int64
	maxChars int
	lookup   LookupFunc
}

// New creates a Fetcher. A nil lookup uses the system resolver.
func New(timeout time.Duration, maxBytes int64, maxChars int, lookup LookupFunc) *Fetcher {
	if lookup == nil {
		lookup = func(ctx context.Context, host string) ([]net.IP, error) {
			addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			ips := make([]net.IP, len(addrs))
			for i, a := range addrs {
				ips[i] = a.IP
			}
			return ips, nil
		}
	}
	return &Fetcher{timeout: timeout, maxBytes: maxBytes, maxChars: maxChars, lookup: lookup}
}

// FetchText validates the URL, fetches it with the connection pinned to the
// resolved IP, and returns the markup-stripped, length-capped body text.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	parsed, ip, err := f.validate(ctx, rawURL)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, err := f.request(ctx, parsed, ip)
	if err != nil {
		return "", err
	}

	return TruncateChars(stripHTML(body), f.maxChars), nil
}

// validate parses the URL, checks the scheme and literal hostname, resolves
// DNS once, and rejects disallowed address ranges. The returned IP is the
// only address the request may connect to.
func (f *Fetcher) validate(ctx context.Context, rawURL string) (*url.URL, net.IP, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, nil, fmt.Errorf("%w: only http and https URLs are allowed", ErrInvalidURL)
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if strings.EqualFold(host, "localhost") || host == "0.0.0.0" {
		return nil, nil, ErrBlocked
	}

	var ip net.IP
	if literal := net.ParseIP(host); literal != nil {
		ip = literal
	} else {
		ips, err := f.lookup(ctx, host)
		if err != nil || len(ips) == 0 {
			return nil, nil, fmt.Errorf("%w: could not resolve host", ErrInvalidURL)
		}
		ip = ips[0]
	}

	if isBlockedIP(ip) {
		return nil, nil, ErrBlocked
	}
	return parsed, ip, nil
}

// isBlockedIP rejects loopback, private, link-local, current-network, and
// unspecified ranges. To4 normalizes IPv4-mapped IPv6 addresses
// (::ffff:10.0.0.1) before the IPv4 checks, closing the dual-stack bypass of
// IPv4-only filters.
func isBlockedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		// 0.0.0.0/8 "current network"
		if ip4[0] == 0 {
			return true
		}
	}
	return false
}

// request issues the GET by dialing the pre-validated IP directly. The URL
// keeps the original hostname, so the Host header and TLS SNI stay correct
// while no second DNS resolution ever happens.
func (f *Fetcher) request(ctx context.Context, u *url.URL, ip net.IP) (string, error) {
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	pinned := net.JoinHostPort(ip.String(), port)

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{}
			return d.DialContext(ctx, network, pinned)
		},
		TLSClientConfig: &tls.Config{ServerName: u.Hostname()},
	}
	client := &http.Client{
		Transport: transport,
		// Surface 3xx to the caller instead of following it; a redirect
		// target never went through validation.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	defer transport.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: request timed out", ErrUpstream)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return "", fmt.Errorf("%w: url redirects are not allowed", ErrUpstream)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return "", fmt.Errorf("%w: url does not point to an HTML or text page", ErrUpstream)
	}
	if resp.ContentLength > f.maxBytes {
		return "", ErrTooLarge
	}

	// Read at most maxBytes+1; overflow aborts the read but keeps the
	// buffered prefix rather than failing the whole fetch.
	buf, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil && len(buf) == 0 {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: request timed out", ErrUpstream)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if int64(len(buf)) > f.maxBytes {
		buf = buf[:f.maxBytes]
	}
	return string(buf), nil
}

var (
	scriptRe = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// stripHTML removes script/style blocks and markup tags, collapsing
// whitespace.
func stripHTML(s string) string {
	s = scriptRe.ReplaceAllString(s, "")
	s = styleRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// TruncateChars cuts s to at most max characters. The length caps in this
// service count characters, not bytes, so a multi-byte rune counts once and
// is never split.
func TruncateChars(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
