package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"

	"github.com/hamed0406/netmon/internal/config"
)

func init() {
	Register("rrsig",
		[]string{"server", "name"},
		[]string{"type", "minDays", "timeout"},
		newRRSIG)
}

// RRSIG fails when the signature covering (name, type) is missing or
// expires sooner than minDays from now.
type RRSIG struct {
	*Base
	server  string
	qname   string
	qtype   uint16
	minDays int
	timeout time.Duration
	now     func() time.Time
}

func newRRSIG(rd *config.Reader, b *Base) (Probe, error) {
	p := &RRSIG{
		Base:    b,
		server:  withPort(rd.String("server"), "53"),
		qname:   dns.Fqdn(rd.String("name")),
		minDays: rd.IntOr("minDays", 0),
		timeout: timeoutOf(rd, 5*time.Second),
		now:     time.Now,
	}
	qt, err := parseType("rrsig", rd.StringOr("type", "SOA"))
	if err != nil {
		return nil, err
	}
	p.qtype = qt
	if err := mustHave("rrsig", "minDays", p.minDays >= 0, "must not be negative"); err != nil {
		return nil, err
	}

	b.setAttribute("server", p.server)
	b.setAttribute("qname", p.qname)
	b.setAttribute("qtype", dns.TypeToString[p.qtype])
	b.setAttribute("min_days", p.minDays)
	return p, nil
}

func (p *RRSIG) Kind() string { return "rrsig" }

func (p *RRSIG) Describe() string {
	return fmt.Sprintf("RRSIG check, server %s, qname %s, qtype %s, minDays: %d",
		p.server, p.qname, dns.TypeToString[p.qtype], p.minDays)
}

func (p *RRSIG) Perform(ctx context.Context) CheckResult {
	p.resetResults()
	m := new(dns.Msg)
	m.SetQuestion(p.qname, p.qtype)
	m.SetEdns0(4096, true)

	r, _, err := exchange(ctx, m, p.server, p.timeout)
	if err != nil {
		return p.failWith(err, "RRSIG %s/%s at %s", p.qname, dns.TypeToString[p.qtype], p.server)
	}
	if r.Rcode != dns.RcodeSuccess {
		return Fail("RRSIG %s/%s at %s: rcode %s", p.qname, dns.TypeToString[p.qtype], p.server, dns.RcodeToString[r.Rcode])
	}

	var earliest time.Time
	for _, rr := range r.Answer {
		sig, ok := rr.(*dns.RRSIG)
		if !ok || sig.TypeCovered != p.qtype {
			continue
		}
		exp := time.Unix(int64(sig.Expiration), 0)
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}
	if earliest.IsZero() {
		return Fail("no RRSIG for %s/%s at %s", p.qname, dns.TypeToString[p.qtype], p.server)
	}

	left := earliest.Sub(p.now())
	days := int(left.Hours() / 24)
	p.SetResult("rrsig", map[string]any{"days_left": days, "expires": earliest.UTC().Format(time.RFC3339)})
	if left < time.Duration(p.minDays)*24*time.Hour {
		return Fail("RRSIG for %s/%s expires within %d days (%s)", p.qname, dns.TypeToString[p.qtype], p.minDays, earliest.UTC().Format(time.RFC3339))
	}
	return Pass()
}
