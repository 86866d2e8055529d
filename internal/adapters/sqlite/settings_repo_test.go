package sqlite

import (
	"context"
	"testing"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
)

func TestSettingsRepository_DefaultsThenRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSettingsRepository(db.SQL)

	// Rien en base -> valeurs par défaut.
	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != domain.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", got)
	}

	want := domain.Settings{
		Destination:           "exports",
		MaxWorkers:            3,
		MaxConcurrentRequests: 20,
		RequestTimeoutSeconds: 15,
		ProxyHostMarker:       "127.0.0.1",
		ProxyPathPattern:      `/live/(\d+)_`,
	}
	if _, err := repo.Put(ctx, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err = repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get after Put: %v", err)
	}
	if got != want {
		t.Fatalf("settings round trip: want %+v, got %+v", want, got)
	}
}
