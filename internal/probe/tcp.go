package probe

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hamed0406/netmon/internal/config"
)

func init() {
	Register("tcpportclosed",
		[]string{"servers", "ports"},
		[]string{"timeout"},
		newTCPPortClosed)
}

// TCPPortClosed has inverted semantics: a successful connection to any
// configured (server, port) pair is the failure. Refused or timed out
// connections pass.
type TCPPortClosed struct {
	*Base
	servers []string
	ports   []int
	timeout time.Duration
}

func newTCPPortClosed(rd *config.Reader, b *Base) (Probe, error) {
	p := &TCPPortClosed{
		Base:    b,
		servers: rd.Strings("servers"),
		ports:   rd.Ints("ports"),
		timeout: timeoutOf(rd, 3*time.Second),
	}
	if err := mustHave("tcpportclosed", "servers", len(p.servers) > 0, "needs at least one server"); err != nil {
		return nil, err
	}
	if err := mustHave("tcpportclosed", "ports", len(p.ports) > 0, "needs at least one port"); err != nil {
		return nil, err
	}
	for _, port := range p.ports {
		if port < 1 || port > 65535 {
			return nil, &config.Error{Kind: "tcpportclosed", Key: "ports", Msg: fmt.Sprintf("port %d out of range", port)}
		}
	}
	b.setAttribute("servers", strings.Join(p.servers, ","))
	b.setAttribute("ports", joinInts(p.ports))
	return p, nil
}

func (p *TCPPortClosed) Kind() string { return "tcpportclosed" }

func (p *TCPPortClosed) Describe() string {
	return fmt.Sprintf("TCP closed check, servers [%s], ports [%s]", strings.Join(p.servers, ", "), joinInts(p.ports))
}

func (p *TCPPortClosed) Perform(ctx context.Context) CheckResult {
	var (
		mu   sync.Mutex
		open []string
		wg   sync.WaitGroup
	)
	d := net.Dialer{Timeout: p.timeout}
	for _, server := range p.servers {
		for _, port := range p.ports {
			addr := net.JoinHostPort(server, strconv.Itoa(port))
			wg.Add(1)
			go func() {
				defer wg.Done()
				conn, err := d.DialContext(ctx, "tcp", addr)
				if err != nil {
					return
				}
				conn.Close()
				mu.Lock()
				open = append(open, addr)
				mu.Unlock()
			}()
		}
	}
	wg.Wait()

	if len(open) > 0 {
		sort.Strings(open)
		return Fail("TCP port open on %s", strings.Join(open, ", "))
	}
	return Pass()
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
