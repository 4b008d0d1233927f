package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/hamed0406/netmon/internal/config"
)

func init() {
	Register("ping",
		[]string{"servers"},
		[]string{"timeout"},
		newPing)
}

// Ping sends one ICMP echo to every server and fails if any of them does
// not reply in time.
type Ping struct {
	*Base
	servers []string
	timeout time.Duration
}

func newPing(rd *config.Reader, b *Base) (Probe, error) {
	p := &Ping{
		Base:    b,
		servers: rd.Strings("servers"),
		timeout: timeoutOf(rd, 2*time.Second),
	}
	if err := mustHave("ping", "servers", len(p.servers) > 0, "needs at least one server"); err != nil {
		return nil, err
	}
	b.setAttribute("servers", strings.Join(p.servers, ","))
	return p, nil
}

func (p *Ping) Kind() string { return "ping" }

func (p *Ping) Describe() string {
	return fmt.Sprintf("PING check, servers [%s]", strings.Join(p.servers, ", "))
}

func (p *Ping) Perform(ctx context.Context) CheckResult {
	p.resetResults()
	errs := make([]error, len(p.servers))
	rtts := make([]time.Duration, len(p.servers))
	var wg sync.WaitGroup
	for i, server := range p.servers {
		wg.Add(1)
		go func(i int, server string) {
			defer wg.Done()
			rtts[i], errs[i] = echo(ctx, server, p.timeout)
		}(i, server)
	}
	wg.Wait()

	rttMS := make(map[string]any, len(p.servers))
	for i, server := range p.servers {
		if errs[i] == nil {
			rttMS[server] = float64(rtts[i].Microseconds()) / 1000
		}
	}
	p.SetResult("rtt", rttMS)

	for i, server := range p.servers {
		if errs[i] != nil {
			return p.failWith(errs[i], "no ping reply from %s", server)
		}
	}
	return Pass()
}

var echoSeq atomic.Uint32

type icmpFamily struct {
	udp, raw, listen string
	request, reply   icmp.Type
}

var (
	family4 = icmpFamily{"udp4", "ip4:icmp", "0.0.0.0", ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply}
	family6 = icmpFamily{"udp6", "ip6:ipv6-icmp", "::", ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply}
)

// echo sends a single echo request and waits for the matching reply. It
// prefers unprivileged datagram ICMP sockets and falls back to raw ones.
func echo(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ip, err := resolveIP(ctx, host)
	if err != nil {
		return 0, err
	}
	fam := family4
	if ip.To4() == nil {
		fam = family6
	}

	raw := false
	conn, err := icmp.ListenPacket(fam.udp, fam.listen)
	if err != nil {
		conn, err = icmp.ListenPacket(fam.raw, fam.listen)
		if err != nil {
			return 0, fmt.Errorf("open icmp socket: %w", err)
		}
		raw = true
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, err
	}

	seq := int(echoSeq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: fam.request,
		Body: &icmp.Echo{ID: os.Getpid() & 0xffff, Seq: seq, Data: []byte("netmon")},
	}
	b, err := msg.Marshal(nil)
	if err != nil {
		return 0, err
	}
	var dst net.Addr = &net.UDPAddr{IP: ip}
	if raw {
		dst = &net.IPAddr{IP: ip}
	}

	start := time.Now()
	if _, err := conn.WriteTo(b, dst); err != nil {
		return 0, err
	}
	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return 0, context.DeadlineExceeded
			}
			return 0, err
		}
		rm, err := icmp.ParseMessage(fam.reply.Protocol(), buf[:n])
		if err != nil || rm.Type != fam.reply {
			continue
		}
		// datagram sockets rewrite the ID, so only the sequence is compared
		if e, ok := rm.Body.(*icmp.Echo); ok && e.Seq == seq {
			return time.Since(start), nil
		}
	}
}

func resolveIP(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs[0].IP, nil
}
