package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netmon/internal/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return store
}

func TestPostgresStore_AppendAndHistory(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	// Use a unique probe ID per run so earlier rows do not interfere.
	id := domain.ProbeID(fmt.Sprintf("https-test-%d", time.Now().UTC().UnixNano()))
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, reason := range []string{"", "example.com returned 500 Internal Server Error"} {
		sm := &domain.Sample{
			ProbeID:     id,
			Kind:        "https",
			Description: "HTTPS check, URL https://example.com",
			OK:          reason == "",
			Reason:      reason,
			Attributes:  map[string]any{"url": "https://example.com"},
			Results:     map[string]map[string]any{"http": {"status": 200}},
			DurationMS:  42,
			CycleID:     "cycle-1",
			CheckedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Append(ctx, sm); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := store.History(ctx, id, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0].OK || got[0].Reason == "" {
		t.Fatalf("expected newest (failing) sample first, got %+v", got[0])
	}
	if got[1].Attributes["url"] != "https://example.com" {
		t.Fatalf("attributes not round-tripped: %v", got[1].Attributes)
	}
	// JSONB numbers come back as float64
	if got[1].Results["http"]["status"] != float64(200) {
		t.Fatalf("results not round-tripped: %v", got[1].Results)
	}
}

func TestPostgresStore_RecordAlertsAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	cycle := fmt.Sprintf("cycle-%d", time.Now().UTC().UnixNano())
	alerts := []domain.Alert{{
		ProbeID:   "tcpportclosed-test",
		Kind:      "tcpportclosed",
		Subject:   "tcpportclosed check failing",
		Reason:    "TCP port open on 192.0.2.1:22",
		Count:     2,
		WindowSec: 120,
		RaisedAt:  time.Now().UTC().Add(time.Hour), // newer than anything else in the table
	}}
	if err := store.RecordAlerts(ctx, cycle, alerts); err != nil {
		t.Fatalf("RecordAlerts: %v", err)
	}
	if err := store.RecordAlerts(ctx, cycle, nil); err != nil {
		t.Fatalf("RecordAlerts empty: %v", err)
	}

	got, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].CycleID != cycle || got[0].Count != 2 {
		t.Fatalf("unexpected recent alerts: %+v", got)
	}
}
