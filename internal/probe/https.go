package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/netmon/internal/config"
)

func init() {
	Register("https",
		[]string{"url"},
		[]string{"method", "minBytes", "maxAgeMinutes", "minCertDays", "serverIP", "timeout"},
		newHTTPS)
}

// maxBody caps how much of a response body is read to count its size.
const maxBody = 64 << 20

// HTTPS fetches one URL and checks reachability, status, body size,
// Last-Modified age and the remaining lifetime of the TLS certificates.
type HTTPS struct {
	*Base
	url         string
	method      string
	minBytes    int64
	maxAge      time.Duration
	minCertDays int
	serverIP    string
	timeout     time.Duration

	client *http.Client
	now    func() time.Time
}

func newHTTPS(rd *config.Reader, b *Base) (Probe, error) {
	p := &HTTPS{
		Base:        b,
		url:         rd.String("url"),
		method:      strings.ToUpper(rd.StringOr("method", http.MethodGet)),
		minBytes:    int64(rd.IntOr("minBytes", 0)),
		maxAge:      time.Duration(rd.IntOr("maxAgeMinutes", 0)) * time.Minute,
		minCertDays: rd.IntOr("minCertDays", 14),
		serverIP:    rd.String("serverIP"),
		timeout:     timeoutOf(rd, 10*time.Second),
		now:         time.Now,
	}
	if err := mustHave("https", "url", strings.HasPrefix(p.url, "https://") || strings.HasPrefix(p.url, "http://"), "must be an http(s) URL"); err != nil {
		return nil, err
	}
	if err := mustHave("https", "method", p.method == http.MethodGet || p.method == http.MethodHead, "must be GET or HEAD"); err != nil {
		return nil, err
	}
	if p.serverIP != "" {
		if err := mustHave("https", "serverIP", net.ParseIP(p.serverIP) != nil, "must be an IP address"); err != nil {
			return nil, err
		}
	}
	p.client = newHTTPClient(p.timeout, p.serverIP, nil)

	b.setAttribute("url", p.url)
	b.setAttribute("method", p.method)
	b.setAttribute("min_cert_days", p.minCertDays)
	if p.serverIP != "" {
		b.setAttribute("server_ip", p.serverIP)
	}
	return p, nil
}

// newHTTPClient dials serverIP instead of the URL host when it is set,
// keeping the host name for SNI and the Host header.
func newHTTPClient(timeout time.Duration, serverIP string, checkRedirect func(*http.Request, []*http.Request) error) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &net.Dialer{Timeout: timeout}
	if serverIP != "" {
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			_, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(serverIP, port))
		}
	} else {
		transport.DialContext = dialer.DialContext
	}
	return &http.Client{Timeout: timeout, Transport: transport, CheckRedirect: checkRedirect}
}

func (p *HTTPS) Kind() string { return "https" }

func (p *HTTPS) Describe() string {
	d := fmt.Sprintf("HTTPS check, URL %s, method %s, minCertDays %d", p.url, p.method, p.minCertDays)
	if p.minBytes > 0 {
		d += fmt.Sprintf(", minBytes %d", p.minBytes)
	}
	if p.maxAge > 0 {
		d += fmt.Sprintf(", maxAge %s", p.maxAge)
	}
	if p.serverIP != "" {
		d += ", server " + p.serverIP
	}
	return d
}

func (p *HTTPS) Perform(ctx context.Context) CheckResult {
	p.resetResults()
	req, err := http.NewRequestWithContext(ctx, p.method, p.url, nil)
	if err != nil {
		return Fail("%s: %v", p.url, err)
	}
	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return p.failWith(err, "%s unreachable", p.url)
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	latency := time.Since(start)
	if err != nil {
		return p.failWith(err, "%s: reading body", p.url)
	}
	p.SetResult("http", map[string]any{
		"status": resp.StatusCode,
		"bytes":  n,
		"ms":     float64(latency.Microseconds()) / 1000,
	})

	now := p.now()
	if resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		leaf := resp.TLS.PeerCertificates[0]
		expiry := leaf.NotAfter
		for _, c := range resp.TLS.PeerCertificates[1:] {
			if c.NotAfter.Before(expiry) {
				expiry = c.NotAfter
			}
		}
		left := expiry.Sub(now)
		days := int(left.Hours() / 24)
		p.SetResult("cert", map[string]any{"days_left": days, "expires": expiry.UTC().Format(time.RFC3339)})
		if left < time.Duration(p.minCertDays)*24*time.Hour {
			return Fail("certificate for %s expires within %d days (%s)", req.URL.Hostname(), p.minCertDays, expiry.UTC().Format(time.RFC3339))
		}
	}

	if resp.StatusCode/100 != 2 {
		return Fail("%s returned %s", p.url, resp.Status)
	}
	if n < p.minBytes {
		return Fail("%s returned fewer than %d bytes", p.url, p.minBytes)
	}
	if p.maxAge > 0 {
		lm, err := http.ParseTime(resp.Header.Get("Last-Modified"))
		if err != nil {
			return Fail("%s has no usable Last-Modified header", p.url)
		}
		age := now.Sub(lm)
		p.SetResult("content", map[string]any{
			"last_modified": lm.UTC().Format(time.RFC3339),
			"age_minutes":   int(age / time.Minute),
		})
		if age > p.maxAge {
			return Fail("%s is older than %s", p.url, p.maxAge)
		}
	}
	return Pass()
}
