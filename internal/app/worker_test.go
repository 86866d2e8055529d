package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/ports"
)

// memJobs est un JobRepository en mémoire pour tester le worker sans base.
type memJobs struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]domain.Job{}}
}

func (m *memJobs) Create(_ context.Context, job domain.Job) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return job, nil
}

func (m *memJobs) Get(_ context.Context, id string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, ports.ErrNotFound
	}
	return j, nil
}

func (m *memJobs) List(_ context.Context, _ int) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (m *memJobs) ClaimNextQueued(_ context.Context) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *domain.Job
	for id := range m.jobs {
		j := m.jobs[id]
		if j.State != domain.JobQueued {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = &j
		}
	}
	if oldest == nil {
		return domain.Job{}, ports.ErrNotFound
	}
	oldest.State = domain.JobRunning
	m.jobs[oldest.ID] = *oldest
	return *oldest, nil
}

func (m *memJobs) UpdateProgress(_ context.Context, id string, progress float64) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, ports.ErrNotFound
	}
	j.Progress = progress
	m.jobs[id] = j
	return j, nil
}

func (m *memJobs) UpdateResult(_ context.Context, id string, resultJSON []byte) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, ports.ErrNotFound
	}
	j.ResultJSON = resultJSON
	m.jobs[id] = j
	return j, nil
}

func (m *memJobs) UpdateError(_ context.Context, id string, code, message string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, ports.ErrNotFound
	}
	j.ErrorCode = code
	j.ErrorMessage = message
	m.jobs[id] = j
	return j, nil
}

func (m *memJobs) UpdateState(_ context.Context, id string, expected, next domain.JobState) (domain.Job, error) {
	if !domain.CanTransition(expected, next) {
		return domain.Job{}, domain.ErrInvalidTransition
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.State != expected {
		return domain.Job{}, ports.ErrNotFound
	}
	j.State = next
	m.jobs[id] = j
	return j, nil
}

func testRegistry() ExecutorRegistry {
	return NewExecutorRegistry(ExecutorDeps{Logger: zerolog.Nop()})
}

func TestWorker_ExecuteCompletesNoopJob(t *testing.T) {
	ctx := context.Background()
	repo := newMemJobs()
	now := time.Now().UTC()
	job := domain.Job{ID: "j1", Type: "noop", State: domain.JobQueued, CreatedAt: now, UpdatedAt: now}
	if _, err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := repo.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	w := NewWorker(zerolog.Nop(), repo, nil, WorkerOptions{}, testRegistry())
	w.execute(ctx, claimed)

	final, err := repo.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.State != domain.JobCompleted {
		t.Fatalf("state: want completed, got %q", final.State)
	}
	if final.Progress != 1 {
		t.Fatalf("progress: want 1, got %v", final.Progress)
	}
}

func TestWorker_ExecuteFailsUnknownType(t *testing.T) {
	ctx := context.Background()
	repo := newMemJobs()
	now := time.Now().UTC()
	if _, err := repo.Create(ctx, domain.Job{ID: "j1", Type: "mystery", State: domain.JobQueued, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := repo.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	w := NewWorker(zerolog.Nop(), repo, nil, WorkerOptions{}, testRegistry())
	w.execute(ctx, claimed)

	final, _ := repo.Get(ctx, "j1")
	if final.State != domain.JobFailed {
		t.Fatalf("state: want failed, got %q", final.State)
	}
	if final.ErrorCode != "invalid_params" {
		t.Fatalf("errorCode: want invalid_params, got %q", final.ErrorCode)
	}
}

func TestWorker_CanceledJobStaysCanceled(t *testing.T) {
	ctx := context.Background()
	repo := newMemJobs()
	now := time.Now().UTC()
	if _, err := repo.Create(ctx, domain.Job{ID: "j1", Type: "noop", State: domain.JobQueued, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := repo.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	// Annulation concurrente pendant l'exécution.
	if _, err := repo.UpdateState(ctx, "j1", domain.JobRunning, domain.JobCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	w := NewWorker(zerolog.Nop(), repo, nil, WorkerOptions{}, testRegistry())
	w.execute(ctx, claimed)

	final, _ := repo.Get(ctx, "j1")
	if final.State != domain.JobCanceled {
		t.Fatalf("state: want canceled, got %q", final.State)
	}
}
