package notify

import (
	"fmt"

	"github.com/hamed0406/netmon/internal/config"
)

// FromRecord builds a notifier from a configuration record such as
// {kind: slack, webhook: ...} or {kind: ntfy, url: ..., token: ...}.
func FromRecord(rec config.Record) (Notifier, error) {
	rec = rec.Clone()
	kind, _ := rec["kind"].(string)
	delete(rec, "kind")

	var (
		n   Notifier
		err error
	)
	switch kind {
	case "slack":
		if err = rec.Check(kind, []string{"webhook"}, nil); err != nil {
			return nil, err
		}
		rd := rec.Reader(kind)
		s := NewSlack(rd.String("webhook"))
		n, err = s, rd.Err()
	case "ntfy":
		if err = rec.Check(kind, []string{"url"}, []string{"token", "priority"}); err != nil {
			return nil, err
		}
		rd := rec.Reader(kind)
		nt := NewNtfy(rd.String("url"), rd.String("token"))
		nt.Priority = rd.String("priority")
		n, err = nt, rd.Err()
	default:
		return nil, &config.Error{Kind: "notifier", Key: "kind", Msg: fmt.Sprintf("unknown notifier kind %q", kind)}
	}
	if err != nil {
		return nil, err
	}
	if err := rec.Leftover(kind); err != nil {
		return nil, err
	}
	return n, nil
}
