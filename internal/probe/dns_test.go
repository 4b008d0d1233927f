package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"

	"github.com/hamed0406/netmon/internal/config"
)

// startDNS runs an in-process UDP DNS server and returns its address.
func startDNS(t *testing.T, h dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: h, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

// answer replies to questions for zone with the given records, %[1]s
// being replaced by the qname. Any other name gets NXDOMAIN.
func answer(zone string, records ...string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		if r.Question[0].Name != dns.Fqdn(zone) {
			m.SetRcode(r, dns.RcodeNameError)
			_ = w.WriteMsg(m)
			return
		}
		m.SetReply(r)
		for _, rec := range records {
			rr, err := dns.NewRR(fmt.Sprintf(rec, r.Question[0].Name))
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		}
		_ = w.WriteMsg(m)
	}
}

func newDNSProbe(t *testing.T, server string) Probe {
	t.Helper()
	p, err := New("dns", config.Record{
		"server":     server,
		"name":       "www.example.com",
		"type":       "A",
		"acceptable": []any{"192.0.2.1", "192.0.2.2"},
		"timeout":    2,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestDNS_AcceptableAnswerPasses(t *testing.T) {
	addr := startDNS(t, answer("www.example.com", "%[1]s 300 IN A 192.0.2.1"))
	p := newDNSProbe(t, addr)

	res := p.Perform(context.Background())
	if !res.OK() {
		t.Fatalf("want pass, got %q", res.Reason)
	}
	if got := p.Results()["answer"]["count"]; got != 1 {
		t.Fatalf("answer count: %v", got)
	}
}

func TestDNS_UnacceptableAnswerFails(t *testing.T) {
	addr := startDNS(t, answer("www.example.com", "%[1]s 300 IN A 198.51.100.7"))
	res := newDNSProbe(t, addr).Perform(context.Background())
	if res.OK() || !strings.Contains(res.Reason, "198.51.100.7") {
		t.Fatalf("want unacceptable answer failure, got %q", res.Reason)
	}
}

func TestDNS_CNAMEOnlyFails(t *testing.T) {
	addr := startDNS(t, answer("www.example.com", "%[1]s 300 IN CNAME elsewhere.example.net."))
	res := newDNSProbe(t, addr).Perform(context.Background())
	if res.OK() || !strings.Contains(res.Reason, "no A record") {
		t.Fatalf("want no-A failure, got %q", res.Reason)
	}
}

func TestDNS_ServerFailure(t *testing.T) {
	addr := startDNS(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeServerFailure)
		_ = w.WriteMsg(m)
	})
	res := newDNSProbe(t, addr).Perform(context.Background())
	if res.OK() || !strings.Contains(res.Reason, "SERVFAIL") {
		t.Fatalf("want SERVFAIL, got %q", res.Reason)
	}
}

func TestDNS_SilentServerIsBounded(t *testing.T) {
	addr := startDNS(t, func(dns.ResponseWriter, *dns.Msg) {}) // never answers
	p := newDNSProbe(t, addr).(*DNSAnswer)
	p.timeout = 300 * time.Millisecond

	start := time.Now()
	res := p.Perform(context.Background())
	if res.OK() {
		t.Fatal("want failure against a silent server")
	}
	if el := time.Since(start); el > 2*time.Second {
		t.Fatalf("perform took %s", el)
	}
}

func TestDNS_AsksForConfiguredName(t *testing.T) {
	asked := make(chan dns.Question, 1)
	addr := startDNS(t, func(w dns.ResponseWriter, r *dns.Msg) {
		asked <- r.Question[0]
		answer("www.example.com", "%[1]s 300 IN A 192.0.2.1")(w, r)
	})
	p := newDNSProbe(t, addr)
	if res := p.Perform(context.Background()); !res.OK() {
		t.Fatalf("want pass, got %q", res.Reason)
	}
	q := <-asked
	if q.Name != "www.example.com." || q.Qtype != dns.TypeA {
		t.Fatalf("server was asked %s/%s", q.Name, dns.TypeToString[q.Qtype])
	}
	if p.ID() == "www.example.com" || !strings.HasPrefix(p.ID(), "dns-") {
		t.Fatalf("query name leaked into the id: %q", p.ID())
	}
}

func TestDNS_SameNameDifferentTypesGetDistinctIDs(t *testing.T) {
	rec := func(typ string) config.Record {
		return config.Record{"server": "9.9.9.9", "name": "example.com", "type": typ, "acceptable": "192.0.2.1"}
	}
	a, err := New("dns", rec("A"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	aaaa, err := New("dns", rec("AAAA"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.ID() == aaaa.ID() {
		t.Fatalf("ids collide: %q", a.ID())
	}
}

func TestDNS_TimeoutReasonIsStable(t *testing.T) {
	addr := startDNS(t, func(dns.ResponseWriter, *dns.Msg) {})
	p := newDNSProbe(t, addr).(*DNSAnswer)
	p.timeout = 200 * time.Millisecond

	first := p.Perform(context.Background())
	second := p.Perform(context.Background())
	if first.OK() || first.Reason != second.Reason {
		t.Fatalf("reasons differ: %q vs %q", first.Reason, second.Reason)
	}
	if !strings.HasSuffix(first.Reason, ": timeout") {
		t.Fatalf("want timeout class, got %q", first.Reason)
	}
	if _, ok := p.Results()["error"]["detail"].(string); !ok {
		t.Fatalf("raw error not kept in results: %v", p.Results())
	}
}

func TestDNS_ResultsResetEachRun(t *testing.T) {
	var fail atomic.Bool
	addr := startDNS(t, func(w dns.ResponseWriter, r *dns.Msg) {
		if fail.Load() {
			m := new(dns.Msg)
			m.SetRcode(r, dns.RcodeServerFailure)
			_ = w.WriteMsg(m)
			return
		}
		answer("www.example.com", "%[1]s 300 IN A 192.0.2.1")(w, r)
	})
	p := newDNSProbe(t, addr)
	if res := p.Perform(context.Background()); !res.OK() {
		t.Fatalf("want pass, got %q", res.Reason)
	}
	if _, ok := p.Results()["answer"]; !ok {
		t.Fatal("want answer result after a pass")
	}

	fail.Store(true)
	if res := p.Perform(context.Background()); res.OK() {
		t.Fatal("want SERVFAIL failure")
	}
	if _, ok := p.Results()["answer"]; ok {
		t.Fatalf("stale answer result kept: %v", p.Results())
	}
}

func TestDNS_BadType(t *testing.T) {
	_, err := New("dns", config.Record{"server": "9.9.9.9", "name": "x", "type": "BOGUS", "acceptable": "1.1.1.1"}, nil)
	if err == nil || !strings.Contains(err.Error(), "BOGUS") {
		t.Fatalf("want bad type error, got %v", err)
	}
}

func rrsigHandler(covered uint16, expires time.Time) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		q := r.Question[0].Name
		if q != "example.com." {
			m.SetRcode(r, dns.RcodeNameError)
			_ = w.WriteMsg(m)
			return
		}
		m.SetReply(r)
		soa, _ := dns.NewRR(q + " 300 IN SOA ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 300")
		m.Answer = append(m.Answer, soa, &dns.RRSIG{
			Hdr:         dns.RR_Header{Name: q, Rrtype: dns.TypeRRSIG, Class: dns.ClassINET, Ttl: 300},
			TypeCovered: covered,
			Algorithm:   dns.ECDSAP256SHA256,
			Labels:      2,
			OrigTtl:     300,
			Expiration:  uint32(expires.Unix()),
			Inception:   uint32(expires.Add(-30 * 24 * time.Hour).Unix()),
			KeyTag:      12345,
			SignerName:  q,
			Signature:   "dGVzdHNpZ25hdHVyZQ==",
		})
		_ = w.WriteMsg(m)
	}
}

func newRRSIGProbe(t *testing.T, server string) Probe {
	t.Helper()
	p, err := New("rrsig", config.Record{"server": server, "name": "example.com", "minDays": 7, "timeout": 2}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestRRSIG_FreshSignaturePasses(t *testing.T) {
	addr := startDNS(t, rrsigHandler(dns.TypeSOA, time.Now().Add(20*24*time.Hour)))
	if res := newRRSIGProbe(t, addr).Perform(context.Background()); !res.OK() {
		t.Fatalf("want pass, got %q", res.Reason)
	}
}

func TestRRSIG_ExpiringSignatureFails(t *testing.T) {
	addr := startDNS(t, rrsigHandler(dns.TypeSOA, time.Now().Add(3*24*time.Hour)))
	res := newRRSIGProbe(t, addr).Perform(context.Background())
	if res.OK() || !strings.Contains(res.Reason, "expires within 7 days") {
		t.Fatalf("want expiry failure, got %q", res.Reason)
	}
}

func TestRRSIG_MissingSignatureFails(t *testing.T) {
	addr := startDNS(t, rrsigHandler(dns.TypeA, time.Now().Add(20*24*time.Hour)))
	res := newRRSIGProbe(t, addr).Perform(context.Background())
	if res.OK() || !strings.Contains(res.Reason, "no RRSIG") {
		t.Fatalf("want missing RRSIG failure, got %q", res.Reason)
	}
}

func soaServer(t *testing.T, serial int) string {
	return startDNS(t, answer("example.com", "%[1]s 300 IN SOA ns1.example.com. hostmaster.example.com. "+fmt.Sprint(serial)+" 7200 3600 1209600 300"))
}

func TestSOA_ConsistentSerialsPass(t *testing.T) {
	a, b := soaServer(t, 2024010101), soaServer(t, 2024010101)
	p, err := New("dnssoa", config.Record{"domain": "example.com", "servers": []any{a, b}, "timeout": 2}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if res := p.Perform(context.Background()); !res.OK() {
		t.Fatalf("want pass, got %q", res.Reason)
	}
	if len(p.Results()["serials"]) != 2 {
		t.Fatalf("serials: %v", p.Results())
	}
}

func TestSOA_SerialMismatchFails(t *testing.T) {
	a, b := soaServer(t, 2024010101), soaServer(t, 2024010102)
	p, _ := New("dnssoa", config.Record{"domain": "example.com", "servers": []any{a, b}, "timeout": 2}, nil)
	res := p.Perform(context.Background())
	if res.OK() || !strings.Contains(res.Reason, "differ") {
		t.Fatalf("want mismatch, got %q", res.Reason)
	}
}

func TestSOA_UnreachableServerFails(t *testing.T) {
	a := soaServer(t, 1)
	silent := startDNS(t, func(dns.ResponseWriter, *dns.Msg) {})
	p, _ := New("dnssoa", config.Record{"domain": "example.com", "servers": []any{a, silent}, "timeout": 1}, nil)
	res := p.Perform(context.Background())
	if res.OK() || !strings.Contains(res.Reason, silent) {
		t.Fatalf("want failure naming %s, got %q", silent, res.Reason)
	}
}
