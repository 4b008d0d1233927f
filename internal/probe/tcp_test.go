package probe

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/netmon/internal/config"
)

func tcpProbe(t *testing.T, servers []any, ports []any) Probe {
	t.Helper()
	p, err := New("tcpportclosed", config.Record{"servers": servers, "ports": ports, "timeout": 1}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, port := listen(t)
	ln.Close()
	return port
}

func TestTCPPortClosed_OpenPortFails(t *testing.T) {
	ln, open := listen(t)
	defer ln.Close()

	p := tcpProbe(t, []any{"127.0.0.1"}, []any{closedPort(t), open})
	res := p.Perform(context.Background())
	if res.OK() || !strings.Contains(res.Reason, "open") {
		t.Fatalf("want failure for the open port, got %q", res.Reason)
	}
}

func TestTCPPortClosed_AllRefusedPasses(t *testing.T) {
	p := tcpProbe(t, []any{"127.0.0.1"}, []any{closedPort(t), closedPort(t)})
	if res := p.Perform(context.Background()); !res.OK() {
		t.Fatalf("want pass, got %q", res.Reason)
	}
}

func TestTCPPortClosed_UnreachableIsBoundedAndPasses(t *testing.T) {
	p := tcpProbe(t, []any{"192.0.2.1"}, []any{22})
	start := time.Now()
	res := p.Perform(context.Background())
	if el := time.Since(start); el > 3*time.Second {
		t.Fatalf("perform took %s", el)
	}
	if !res.OK() {
		t.Fatalf("timeout counts as closed, got %q", res.Reason)
	}
}

func TestTCPPortClosed_BadPort(t *testing.T) {
	if _, err := New("tcpportclosed", config.Record{"servers": "h", "ports": 70000}, nil); err == nil {
		t.Fatal("want port range error")
	}
}
