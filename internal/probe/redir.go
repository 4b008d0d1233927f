package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hamed0406/netmon/internal/config"
)

func init() {
	Register("redir",
		[]string{"fromUrl", "toUrl"},
		[]string{"timeout"},
		newRedirect)
}

// Redirect checks that fromUrl answers with a redirect to exactly toUrl.
// Redirects are not followed.
type Redirect struct {
	*Base
	from, to string
	timeout  time.Duration
	client   *http.Client
}

func newRedirect(rd *config.Reader, b *Base) (Probe, error) {
	p := &Redirect{
		Base:    b,
		from:    rd.String("fromUrl"),
		to:      rd.String("toUrl"),
		timeout: timeoutOf(rd, 10*time.Second),
	}
	if err := mustHave("redir", "fromUrl", p.from != "", "must not be empty"); err != nil {
		return nil, err
	}
	if err := mustHave("redir", "toUrl", p.to != "", "must not be empty"); err != nil {
		return nil, err
	}
	p.client = newHTTPClient(p.timeout, "", func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	})
	b.setAttribute("from", p.from)
	b.setAttribute("to", p.to)
	return p, nil
}

func (p *Redirect) Kind() string { return "redir" }

func (p *Redirect) Describe() string {
	return fmt.Sprintf("HTTP(s) redir check, from %s, to %s", p.from, p.to)
}

func (p *Redirect) Perform(ctx context.Context) CheckResult {
	p.resetResults()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.from, nil)
	if err != nil {
		return Fail("%s: %v", p.from, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return p.failWith(err, "%s unreachable", p.from)
	}
	resp.Body.Close()

	if resp.StatusCode/100 != 3 {
		return Fail("%s did not redirect, got %s", p.from, resp.Status)
	}
	loc, err := resp.Location()
	if err != nil {
		return Fail("%s redirect without usable Location: %v", p.from, err)
	}
	p.SetResult("redirect", map[string]any{"status": resp.StatusCode, "location": loc.String()})
	if loc.String() != p.to {
		return Fail("%s redirects to %s, want %s", p.from, loc, p.to)
	}
	return Pass()
}
