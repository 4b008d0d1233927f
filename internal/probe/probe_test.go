package probe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/netmon/internal/config"
	"github.com/hamed0406/netmon/internal/notify"
)

type nopNotifier struct{ name string }

func (n nopNotifier) Send(context.Context, string, string) error { return nil }
func (n nopNotifier) Name() string                                { return n.name }

func tcpRecord() config.Record {
	return config.Record{"kind": "tcpportclosed", "servers": []any{"192.0.2.1"}, "ports": []any{22}}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New("carrier-pigeon", config.Record{}, nil)
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestNew_MissingMandatory(t *testing.T) {
	_, err := New("dns", config.Record{"server": "9.9.9.9", "name": "example.com", "type": "A"}, nil)
	if !errors.Is(err, config.ErrInvalid) || !strings.Contains(err.Error(), "acceptable") {
		t.Fatalf("want missing acceptable, got %v", err)
	}
}

func TestNew_UnknownOption(t *testing.T) {
	rec := tcpRecord()
	rec["colour"] = "red"
	_, err := New("tcpportclosed", rec, nil)
	if !errors.Is(err, config.ErrInvalid) || !strings.Contains(err.Error(), "colour") {
		t.Fatalf("want unknown option error, got %v", err)
	}
}

func TestNew_DefaultsAndOverrides(t *testing.T) {
	rec := tcpRecord()
	p, err := New("tcpportclosed", rec, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.MinFailures() != 1 || p.FailureWindow() != 120*time.Second {
		t.Fatalf("defaults: min=%d window=%s", p.MinFailures(), p.FailureWindow())
	}
	if len(rec) != 3 {
		t.Fatalf("caller's record must not be consumed, got %v", rec)
	}

	rec["minFailures"] = 3
	rec["failureWindowSeconds"] = 60
	rec["subject"] = "ssh exposed"
	p, err = New("tcpportclosed", rec, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.MinFailures() != 3 || p.FailureWindow() != time.Minute || p.Subject() != "ssh exposed" {
		t.Fatalf("overrides not applied: min=%d window=%s subject=%q", p.MinFailures(), p.FailureWindow(), p.Subject())
	}
	if p.Attributes()["ports"] != "22" {
		t.Fatalf("attributes: %v", p.Attributes())
	}
}

func TestNew_RejectsBadThreshold(t *testing.T) {
	rec := tcpRecord()
	rec["minFailures"] = 0
	if _, err := New("tcpportclosed", rec, nil); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestNew_IDStableAndNamed(t *testing.T) {
	a, _ := New("tcpportclosed", tcpRecord(), nil)
	b, _ := New("tcpportclosed", tcpRecord(), nil)
	if a.ID() == "" || a.ID() != b.ID() || !strings.HasPrefix(a.ID(), "tcpportclosed-") {
		t.Fatalf("ids: %q %q", a.ID(), b.ID())
	}
	rec := tcpRecord()
	rec["id"] = "no-ssh"
	c, _ := New("tcpportclosed", rec, nil)
	if c.ID() != "no-ssh" {
		t.Fatalf("named id: %q", c.ID())
	}
}

func TestNew_NotifiersCopiedAtConstruction(t *testing.T) {
	ns := []notify.Notifier{nopNotifier{"first"}}
	p, err := New("tcpportclosed", tcpRecord(), ns)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ns[0] = nopNotifier{"replaced"}
	ns = append(ns, nopNotifier{"later"})

	got := p.Notifiers()
	if len(got) != 1 || notify.NameOf(got[0]) != "first" {
		t.Fatalf("probe saw later changes: %v", got)
	}
	got[0] = nil
	if p.Notifiers()[0] == nil {
		t.Fatal("Notifiers must return a copy")
	}
}

func TestBase_StatusConcurrentAccess(t *testing.T) {
	b := NewBase(Settings{}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				b.SetStatus(Fail("down"), time.Now())
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = b.Status()
			}
		}()
	}
	wg.Wait()
	if st := b.Status(); st.Result.Reason != "down" || st.CheckedAt.IsZero() {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestKinds(t *testing.T) {
	want := []string{"dns", "dnssoa", "https", "ping", "redir", "rrsig", "tcpportclosed"}
	got := Kinds()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("kinds: %v", got)
	}
}

func TestNew_LeavesCallerRecordIntact(t *testing.T) {
	rec := tcpRecord()
	rec["minFailures"] = 2
	if _, err := New("tcpportclosed", rec, nil); err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(rec) != 4 || rec["minFailures"] != 2 {
		t.Fatalf("record was modified: %v", rec)
	}
}

func TestNew_UnreadOptionIsLeftover(t *testing.T) {
	kinds["forgetful"] = kindSpec{
		optional: []string{"colour"},
		build: func(rd *config.Reader, b *Base) (Probe, error) {
			return &TCPPortClosed{Base: b}, nil
		},
	}
	t.Cleanup(func() { delete(kinds, "forgetful") })

	_, err := New("forgetful", config.Record{"colour": "red"}, nil)
	if !errors.Is(err, config.ErrInvalid) || !strings.Contains(err.Error(), "colour") {
		t.Fatalf("want leftover error naming colour, got %v", err)
	}
}
