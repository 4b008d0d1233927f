package probe

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/hamed0406/netmon/internal/config"
	"github.com/hamed0406/netmon/internal/notify"
)

const (
	DefaultMinFailures   = 1
	DefaultFailureWindow = 120 * time.Second
)

// Options understood by every kind.
var commonOptions = []string{"id", "subject", "minFailures", "failureWindowSeconds"}

// Constructor builds one probe kind. It reads its parameters from rd,
// which consumes them, and records static attributes on b.
type Constructor func(rd *config.Reader, b *Base) (Probe, error)

type kindSpec struct {
	mandatory []string
	optional  []string
	build     Constructor
}

var kinds = map[string]kindSpec{}

// Register makes a probe kind available to New. It is meant to be called
// from init and panics on duplicates.
func Register(kind string, mandatory, optional []string, c Constructor) {
	if _, dup := kinds[kind]; dup {
		panic("probe: kind registered twice: " + kind)
	}
	kinds[kind] = kindSpec{mandatory: mandatory, optional: optional, build: c}
}

// Kinds lists the registered kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New validates rec against the kind's recognized options and builds the
// probe. The record itself is left untouched; a copy is consumed and any
// key left over afterwards is a configuration error.
func New(kind string, rec config.Record, notifiers []notify.Notifier) (Probe, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, &config.Error{Kind: kind, Msg: "unknown check kind"}
	}
	rec = rec.Clone()
	delete(rec, "kind")

	optional := append(append([]string(nil), commonOptions...), spec.optional...)
	if err := rec.Check(kind, spec.mandatory, optional); err != nil {
		return nil, err
	}

	rd := rec.Reader(kind)
	s := Settings{
		ID:            rd.String("id"),
		Subject:       rd.String("subject"),
		MinFailures:   rd.IntOr("minFailures", DefaultMinFailures),
		FailureWindow: time.Duration(rd.IntOr("failureWindowSeconds", int(DefaultFailureWindow/time.Second))) * time.Second,
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	if s.MinFailures < 1 {
		return nil, &config.Error{Kind: kind, Key: "minFailures", Msg: "must be at least 1"}
	}
	if s.FailureWindow < time.Second {
		return nil, &config.Error{Kind: kind, Key: "failureWindowSeconds", Msg: "must be at least 1"}
	}

	b := NewBase(s, notifiers)
	p, err := spec.build(rd, b)
	if err != nil {
		return nil, err
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	if err := rec.Leftover(kind); err != nil {
		return nil, err
	}
	if b.id == "" {
		sum := sha1.Sum([]byte(kind + "\x00" + p.Describe()))
		b.id = kind + "-" + hex.EncodeToString(sum[:4])
	}
	return p, nil
}

// timeoutOf reads the optional "timeout" key in seconds.
func timeoutOf(rd *config.Reader, def time.Duration) time.Duration {
	return time.Duration(rd.IntOr("timeout", int(def/time.Second))) * time.Second
}

// withPort appends port to addr unless it already carries one.
func withPort(addr, port string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, port)
}

func mustHave(kind, key string, ok bool, format string, args ...any) error {
	if ok {
		return nil
	}
	return &config.Error{Kind: kind, Key: key, Msg: fmt.Sprintf(format, args...)}
}
