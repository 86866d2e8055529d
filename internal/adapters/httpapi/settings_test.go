package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/adapters/sqlite"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/app"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
	"github.com/go-chi/chi/v5"
)

func TestSettingsHandler_PutUpdatesRequestLimiter(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewSettingsRepository(db.SQL)
	svc := app.NewSettingsService(repo)
	lim := app.NewRequestLimiter(1)

	h := NewSettingsHandler(svc, func(updated domain.Settings) {
		lim.SetLimit(updated.MaxConcurrentRequests)
	})

	r := chi.NewRouter()
	h.Routes(r)

	body := []byte(`{"destination":"playlists","maxWorkers":2,"maxConcurrentRequests":25,"requestTimeoutSeconds":10}`)
	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: want %d, got %d", http.StatusOK, rr.Code)
	}
	if lim.Limit() != 25 {
		t.Fatalf("limiter limit: want %d, got %d", 25, lim.Limit())
	}
}

func TestSettingsHandler_PutRejectsBadProxyPattern(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	svc := app.NewSettingsService(sqlite.NewSettingsRepository(db.SQL))
	h := NewSettingsHandler(svc, nil)

	r := chi.NewRouter()
	h.Routes(r)

	body := []byte(`{"proxyPathPattern":"["}`)
	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: want %d, got %d", http.StatusBadRequest, rr.Code)
	}
}
