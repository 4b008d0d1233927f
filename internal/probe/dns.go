package probe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/hamed0406/netmon/internal/config"
)

func init() {
	Register("dns",
		[]string{"server", "name", "type", "acceptable"},
		[]string{"rd", "timeout"},
		newDNS)
}

// DNSAnswer asks one resolver for (name, type) and checks every answer
// of that type against a set of acceptable values.
type DNSAnswer struct {
	*Base
	server     string
	qname      string
	qtype      uint16
	acceptable map[string]bool
	rd         bool
	timeout    time.Duration
}

func newDNS(rd *config.Reader, b *Base) (Probe, error) {
	p := &DNSAnswer{
		Base:       b,
		server:     withPort(rd.String("server"), "53"),
		qname:      dns.Fqdn(rd.String("name")),
		rd:         rd.BoolOr("rd", true),
		timeout:    timeoutOf(rd, 5*time.Second),
		acceptable: make(map[string]bool),
	}
	qt, err := parseType("dns", rd.String("type"))
	if err != nil {
		return nil, err
	}
	p.qtype = qt
	for _, a := range rd.Strings("acceptable") {
		p.acceptable[normalizeRdata(a)] = true
	}
	if err := mustHave("dns", "acceptable", len(p.acceptable) > 0, "needs at least one value"); err != nil {
		return nil, err
	}

	b.setAttribute("server", p.server)
	b.setAttribute("qname", p.qname)
	b.setAttribute("qtype", dns.TypeToString[p.qtype])
	return p, nil
}

func (p *DNSAnswer) Kind() string { return "dns" }

func (p *DNSAnswer) Describe() string {
	return fmt.Sprintf("DNS check, server %s, qname %s, qtype %s, acceptable: %s",
		p.server, p.qname, dns.TypeToString[p.qtype], strings.Join(p.acceptableList(), ", "))
}

func (p *DNSAnswer) acceptableList() []string {
	out := make([]string, 0, len(p.acceptable))
	for a := range p.acceptable {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (p *DNSAnswer) Perform(ctx context.Context) CheckResult {
	p.resetResults()
	m := new(dns.Msg)
	m.SetQuestion(p.qname, p.qtype)
	m.RecursionDesired = p.rd

	r, rtt, err := exchange(ctx, m, p.server, p.timeout)
	if err != nil {
		return p.failWith(err, "%s/%s at %s", p.qname, dns.TypeToString[p.qtype], p.server)
	}
	if r.Rcode != dns.RcodeSuccess {
		return Fail("%s/%s at %s: rcode %s", p.qname, dns.TypeToString[p.qtype], p.server, dns.RcodeToString[r.Rcode])
	}

	matched := 0
	for _, rr := range r.Answer {
		if rr.Header().Rrtype != p.qtype {
			continue
		}
		matched++
		if v := normalizeRdata(rdata(rr)); !p.acceptable[v] {
			return Fail("unacceptable answer %q for %s/%s from %s", v, p.qname, dns.TypeToString[p.qtype], p.server)
		}
	}
	p.SetResult("answer", map[string]any{
		"count":  matched,
		"rcode":  dns.RcodeToString[r.Rcode],
		"rtt_ms": float64(rtt.Microseconds()) / 1000,
	})
	if matched == 0 {
		return Fail("no %s record for %s at %s", dns.TypeToString[p.qtype], p.qname, p.server)
	}
	return Pass()
}

// exchange sends m over UDP and falls back to TCP when the answer was
// truncated.
func exchange(ctx context.Context, m *dns.Msg, server string, timeout time.Duration) (*dns.Msg, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := &dns.Client{Timeout: timeout}
	r, rtt, err := c.ExchangeContext(ctx, m, server)
	if err == nil && r.Truncated {
		c.Net = "tcp"
		r, rtt, err = c.ExchangeContext(ctx, m, server)
	}
	return r, rtt, err
}

func parseType(kind, s string) (uint16, error) {
	t, ok := dns.StringToType[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return 0, &config.Error{Kind: kind, Key: "type", Msg: fmt.Sprintf("unknown record type %q", s)}
	}
	return t, nil
}

// rdata is the presentation form of rr without its header,
// e.g. "192.0.2.1" or "10 mx.example.com.".
func rdata(rr dns.RR) string {
	return strings.TrimSpace(strings.TrimPrefix(rr.String(), rr.Header().String()))
}

func normalizeRdata(s string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "."))
}
