package ports

import (
	"context"
	"time"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
)

type ScheduleRepository interface {
	Create(ctx context.Context, sched domain.Schedule) (domain.Schedule, error)
	Get(ctx context.Context, id string) (domain.Schedule, error)
	List(ctx context.Context, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, sched domain.Schedule) (domain.Schedule, error)
	Delete(ctx context.Context, id string) error
	Due(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	// RecordResult mémorise le fichier et le nombre d'entrées du dernier export terminé.
	RecordResult(ctx context.Context, id string, file string, entries int) (domain.Schedule, error)
}
