package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/ports"
	"github.com/rs/zerolog"
)

// ExportCompletionUpdater écoute les jobs d'export terminés et reporte le
// fichier produit sur le schedule d'origine.
type ExportCompletionUpdater struct {
	logger zerolog.Logger
	bus    ports.EventBus
	scheds ports.ScheduleRepository
}

func NewExportCompletionUpdater(logger zerolog.Logger, bus ports.EventBus, scheds ports.ScheduleRepository) *ExportCompletionUpdater {
	return &ExportCompletionUpdater{logger: logger, bus: bus, scheds: scheds}
}

type exportJobMeta struct {
	ScheduleID string `json:"scheduleId"`
}

type exportJobResult struct {
	File    string `json:"file"`
	Entries int    `json:"entries"`
}

func (u *ExportCompletionUpdater) Run(ctx context.Context) {
	if u == nil || u.bus == nil || u.scheds == nil {
		return
	}
	ch, cancel := u.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			u.logger.Info().Msg("export completion updater stopped")
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			u.handleEvent(ctx, evt)
		}
	}
}

func (u *ExportCompletionUpdater) handleEvent(ctx context.Context, evt ports.Event) {
	if evt.Topic != "job.completed" {
		return
	}

	var job JobDTO
	if err := json.Unmarshal(evt.Payload, &job); err != nil {
		return
	}
	if job.Type != "export" {
		return
	}

	meta := exportJobMeta{}
	if len(job.Params) > 0 {
		_ = json.Unmarshal(job.Params, &meta)
	}
	meta.ScheduleID = strings.TrimSpace(meta.ScheduleID)
	if meta.ScheduleID == "" {
		return
	}

	result := exportJobResult{}
	if len(job.Result) > 0 {
		_ = json.Unmarshal(job.Result, &result)
	}
	if result.File == "" {
		return
	}

	updated, err := u.scheds.RecordResult(ctx, meta.ScheduleID, result.File, result.Entries)
	if err != nil {
		u.logger.Warn().Err(err).Str("schedule_id", meta.ScheduleID).Msg("failed to record export result")
		return
	}

	// Best-effort notification.
	b, _ := json.Marshal(toScheduleDTO(updated))
	if len(b) > 0 {
		u.bus.Publish("schedule.exported", b)
	}
}
