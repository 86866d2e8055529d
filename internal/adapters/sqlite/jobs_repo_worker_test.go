package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/ports"
)

func TestJobsRepository_ClaimNextQueued(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewJobsRepository(db.SQL)

	// Aucun job -> not found
	if _, err := repo.ClaimNextQueued(ctx); err == nil || !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound when no queued jobs, got %v", err)
	}

	now := time.Now().UTC()
	_, err = repo.Create(ctx, domain.Job{
		ID:        "job1",
		Type:      "export",
		State:     domain.JobQueued,
		Progress:  0,
		CreatedAt: now.Add(-2 * time.Minute),
		UpdatedAt: now.Add(-2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Create(job1): %v", err)
	}
	_, err = repo.Create(ctx, domain.Job{
		ID:        "job2",
		Type:      "export",
		State:     domain.JobQueued,
		Progress:  0,
		CreatedAt: now.Add(-1 * time.Minute),
		UpdatedAt: now.Add(-1 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Create(job2): %v", err)
	}

	claimed, err := repo.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if claimed.ID != "job1" {
		t.Fatalf("expected to claim oldest (job1), got %q", claimed.ID)
	}
	if claimed.State != domain.JobRunning {
		t.Fatalf("expected claimed state running, got %q", claimed.State)
	}

	updated, err := repo.UpdateProgress(ctx, claimed.ID, 0.5)
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if updated.Progress != 0.5 {
		t.Fatalf("expected progress=0.5, got %v", updated.Progress)
	}
}

func TestJobsRepository_StateTransitions(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewJobsRepository(db.SQL)

	now := time.Now().UTC()
	if _, err := repo.Create(ctx, domain.Job{
		ID:        "job1",
		Type:      "export",
		State:     domain.JobRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// running -> completed n'est pas une transition directe valide.
	if _, err := repo.UpdateState(ctx, "job1", domain.JobRunning, domain.JobCompleted); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	phase, err := repo.UpdateState(ctx, "job1", domain.JobRunning, domain.JobWriting)
	if err != nil {
		t.Fatalf("running -> writing: %v", err)
	}
	if phase.State != domain.JobWriting {
		t.Fatalf("state: want writing, got %q", phase.State)
	}

	done, err := repo.UpdateState(ctx, "job1", domain.JobWriting, domain.JobCompleted)
	if err != nil {
		t.Fatalf("writing -> completed: %v", err)
	}
	if done.State != domain.JobCompleted {
		t.Fatalf("state: want completed, got %q", done.State)
	}

	// L'état attendu ne matche plus -> not found (CAS).
	if _, err := repo.UpdateState(ctx, "job1", domain.JobWriting, domain.JobCompleted); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on stale expected state, got %v", err)
	}
}

func TestJobsRepository_UpdateResultAndError(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewJobsRepository(db.SQL)

	now := time.Now().UTC()
	if _, err := repo.Create(ctx, domain.Job{
		ID:        "job1",
		Type:      "export",
		State:     domain.JobRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	withResult, err := repo.UpdateResult(ctx, "job1", []byte(`{"file":"out.m3u","entries":42}`))
	if err != nil {
		t.Fatalf("UpdateResult: %v", err)
	}
	if string(withResult.ResultJSON) != `{"file":"out.m3u","entries":42}` {
		t.Fatalf("result: got %s", withResult.ResultJSON)
	}

	withErr, err := repo.UpdateError(ctx, "job1", "auth_failed", "handshake refused")
	if err != nil {
		t.Fatalf("UpdateError: %v", err)
	}
	if withErr.ErrorCode != "auth_failed" || withErr.ErrorMessage != "handshake refused" {
		t.Fatalf("error fields: %+v", withErr)
	}
}
