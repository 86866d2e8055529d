package app

import (
	"context"
	"time"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/ports"
	"github.com/rs/zerolog"
)

// ExportScheduler déclenche les schedules arrivés à échéance: chaque tick
// interroge les échéances et met en file un job d'export par schedule dû.
type ExportScheduler struct {
	logger zerolog.Logger
	scheds *ScheduleService
	repo   ports.ScheduleRepository

	TickInterval time.Duration
	BatchSize    int
	Enqueue      bool
}

func NewExportScheduler(logger zerolog.Logger, scheds *ScheduleService, repo ports.ScheduleRepository) *ExportScheduler {
	return &ExportScheduler{
		logger:       logger,
		scheds:       scheds,
		repo:         repo,
		TickInterval: 60 * time.Second,
		BatchSize:    10,
		Enqueue:      true,
	}
}

func (sch *ExportScheduler) Run(ctx context.Context) {
	interval := sch.TickInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sch.logger.Info().Msg("export scheduler stopped")
			return
		case <-ticker.C:
			sch.tick(ctx)
		}
	}
}

func (sch *ExportScheduler) tick(ctx context.Context) {
	if sch.scheds == nil || sch.repo == nil {
		return
	}
	limit := sch.BatchSize
	if limit <= 0 {
		limit = 10
	}

	due, err := sch.repo.Due(ctx, time.Now().UTC(), limit)
	if err != nil {
		sch.logger.Error().Err(err).Msg("scheduler due query failed")
		return
	}
	if len(due) == 0 {
		return
	}

	for _, sched := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, err := sch.scheds.RunOnce(ctx, sched.ID, sch.Enqueue)
		if err != nil {
			sch.logger.Warn().Err(err).Str("schedule_id", sched.ID).Msg("schedule run failed")
		}
	}
}
