package probe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/hamed0406/netmon/internal/config"
)

func init() {
	Register("dnssoa",
		[]string{"domain", "servers"},
		[]string{"timeout"},
		newSOA)
}

// SOA asks every authoritative server for the domain's SOA and fails if
// one does not answer or the serials disagree.
type SOA struct {
	*Base
	domain  string
	servers []string
	timeout time.Duration
}

func newSOA(rd *config.Reader, b *Base) (Probe, error) {
	p := &SOA{
		Base:    b,
		domain:  dns.Fqdn(rd.String("domain")),
		timeout: timeoutOf(rd, 5*time.Second),
	}
	for _, s := range rd.Strings("servers") {
		p.servers = append(p.servers, withPort(s, "53"))
	}
	if err := mustHave("dnssoa", "servers", len(p.servers) > 0, "needs at least one server"); err != nil {
		return nil, err
	}
	b.setAttribute("domain", p.domain)
	b.setAttribute("servers", strings.Join(p.servers, ","))
	return p, nil
}

func (p *SOA) Kind() string { return "dnssoa" }

func (p *SOA) Describe() string {
	return fmt.Sprintf("DNS SOA check, servers [%s], domain %s", strings.Join(p.servers, ", "), p.domain)
}

type soaAnswer struct {
	serial uint32
	err    error
}

func (p *SOA) Perform(ctx context.Context) CheckResult {
	p.resetResults()
	answers := make([]soaAnswer, len(p.servers))
	var wg sync.WaitGroup
	for i, server := range p.servers {
		wg.Add(1)
		go func(i int, server string) {
			defer wg.Done()
			answers[i] = p.query(ctx, server)
		}(i, server)
	}
	wg.Wait()

	serials := make(map[string]any, len(p.servers))
	distinct := make(map[uint32]bool)
	for i, a := range answers {
		if a.err != nil {
			return p.failWith(a.err, "%s SOA at %s", p.domain, p.servers[i])
		}
		serials[p.servers[i]] = a.serial
		distinct[a.serial] = true
	}
	p.SetResult("serials", serials)

	if len(distinct) > 1 {
		parts := make([]string, 0, len(p.servers))
		for i, a := range answers {
			parts = append(parts, fmt.Sprintf("%s=%d", p.servers[i], a.serial))
		}
		sort.Strings(parts)
		return Fail("SOA serials for %s differ: %s", p.domain, strings.Join(parts, ", "))
	}
	return Pass()
}

func (p *SOA) query(ctx context.Context, server string) soaAnswer {
	m := new(dns.Msg)
	m.SetQuestion(p.domain, dns.TypeSOA)
	m.RecursionDesired = false

	r, _, err := exchange(ctx, m, server, p.timeout)
	if err != nil {
		return soaAnswer{err: err}
	}
	if r.Rcode != dns.RcodeSuccess {
		return soaAnswer{err: &answerError{"rcode " + dns.RcodeToString[r.Rcode]}}
	}
	for _, rr := range r.Answer {
		if soa, ok := rr.(*dns.SOA); ok {
			return soaAnswer{serial: soa.Serial}
		}
	}
	return soaAnswer{err: &answerError{"no SOA in answer"}}
}
