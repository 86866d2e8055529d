package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/ports"
	"github.com/rs/xid"
)

const defaultScheduleIntervalHours = 24

// ScheduleService gère les exports récurrents: un schedule décrit un portail,
// un type de contenu et une cadence; chaque échéance est matérialisée par un
// job "export" mis en file.
type ScheduleService struct {
	repo ports.ScheduleRepository
	jobs *JobService
	bus  ports.EventBus
}

func NewScheduleService(repo ports.ScheduleRepository, jobs *JobService, bus ports.EventBus) *ScheduleService {
	return &ScheduleService{repo: repo, jobs: jobs, bus: bus}
}

type ScheduleDTO struct {
	ID string `json:"id"`

	PortalURL string `json:"portalUrl"`
	MAC       string `json:"mac"`
	Kind      string `json:"kind"`
	Label     string `json:"label"`

	IntervalHours int `json:"intervalHours"`

	NextRunAt      time.Time `json:"nextRunAt"`
	LastRunAt      time.Time `json:"lastRunAt"`
	LastFile       string    `json:"lastFile"`
	LastEntryCount int       `json:"lastEntryCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toScheduleDTO(s domain.Schedule) ScheduleDTO {
	return ScheduleDTO{
		ID:             s.ID,
		PortalURL:      s.PortalURL,
		MAC:            s.MAC,
		Kind:           string(s.Kind),
		Label:          s.Label,
		IntervalHours:  s.IntervalHours,
		NextRunAt:      s.NextRunAt,
		LastRunAt:      s.LastRunAt,
		LastFile:       s.LastFile,
		LastEntryCount: s.LastEntryCount,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (s *ScheduleService) Create(ctx context.Context, portalURL, mac, kind, label string, intervalHours int) (ScheduleDTO, error) {
	portalURL = strings.TrimSpace(portalURL)
	mac = strings.ToUpper(strings.TrimSpace(mac))
	if portalURL == "" {
		return ScheduleDTO{}, errors.New("missing portalUrl")
	}
	if mac == "" {
		return ScheduleDTO{}, errors.New("missing mac")
	}
	ck, err := domain.ParseContentKind(kind)
	if err != nil {
		return ScheduleDTO{}, err
	}
	canon, err := NormalizePortalURL(portalURL)
	if err != nil {
		return ScheduleDTO{}, err
	}
	if label == "" {
		label = canon
	}
	if intervalHours <= 0 {
		intervalHours = defaultScheduleIntervalHours
	}

	now := time.Now().UTC()
	sched := domain.Schedule{
		ID:            xid.New().String(),
		PortalURL:     canon,
		MAC:           mac,
		Kind:          ck,
		Label:         strings.TrimSpace(label),
		IntervalHours: intervalHours,
		NextRunAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, err := s.repo.Create(ctx, sched)
	if err != nil {
		return ScheduleDTO{}, err
	}
	s.publish("schedule.created", created)
	return toScheduleDTO(created), nil
}

func (s *ScheduleService) Get(ctx context.Context, id string) (ScheduleDTO, error) {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return ScheduleDTO{}, err
	}
	return toScheduleDTO(sched), nil
}

func (s *ScheduleService) List(ctx context.Context, limit int) ([]ScheduleDTO, error) {
	scheds, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ScheduleDTO, 0, len(scheds))
	for _, sched := range scheds {
		out = append(out, toScheduleDTO(sched))
	}
	return out, nil
}

func (s *ScheduleService) Update(ctx context.Context, dto ScheduleDTO) (ScheduleDTO, error) {
	existing, err := s.repo.Get(ctx, dto.ID)
	if err != nil {
		return ScheduleDTO{}, err
	}
	if strings.TrimSpace(dto.PortalURL) != "" {
		canon, err := NormalizePortalURL(dto.PortalURL)
		if err != nil {
			return ScheduleDTO{}, err
		}
		existing.PortalURL = canon
	}
	if strings.TrimSpace(dto.MAC) != "" {
		existing.MAC = strings.ToUpper(strings.TrimSpace(dto.MAC))
	}
	if strings.TrimSpace(dto.Kind) != "" {
		ck, err := domain.ParseContentKind(dto.Kind)
		if err != nil {
			return ScheduleDTO{}, err
		}
		existing.Kind = ck
	}
	if strings.TrimSpace(dto.Label) != "" {
		existing.Label = strings.TrimSpace(dto.Label)
	}
	if dto.IntervalHours > 0 {
		existing.IntervalHours = dto.IntervalHours
	}
	existing.UpdatedAt = time.Now().UTC()
	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		return ScheduleDTO{}, err
	}
	s.publish("schedule.updated", updated)
	return toScheduleDTO(updated), nil
}

func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if err == nil {
		s.publishRaw("schedule.deleted", map[string]any{"id": id})
	}
	return err
}

type RunResult struct {
	Schedule ScheduleDTO `json:"schedule"`
	JobID    string      `json:"jobId,omitempty"`
}

// RunOnce met en file un job d'export pour le schedule et repousse la
// prochaine échéance. enqueue=false repousse seulement (dry run).
func (s *ScheduleService) RunOnce(ctx context.Context, id string, enqueue bool) (RunResult, error) {
	sched, err := s.repo.Get(ctx, id)
	if err != nil {
		return RunResult{}, err
	}

	jobID := ""
	if enqueue && s.jobs != nil {
		params := map[string]any{
			"portalUrl":  sched.PortalURL,
			"mac":        sched.MAC,
			"kind":       string(sched.Kind),
			"scheduleId": sched.ID,
		}
		b, _ := json.Marshal(params)
		created, err := s.jobs.Create(ctx, CreateJobRequest{Type: "export", Params: b})
		if err != nil {
			return RunResult{}, err
		}
		jobID = created.ID
	}

	now := time.Now().UTC()
	sched.LastRunAt = now
	sched.NextRunAt = now.Add(time.Duration(sched.IntervalHours) * time.Hour)
	sched.UpdatedAt = now
	updated, err := s.repo.Update(ctx, sched)
	if err != nil {
		return RunResult{}, err
	}
	s.publish("schedule.run", updated)

	return RunResult{Schedule: toScheduleDTO(updated), JobID: jobID}, nil
}

func (s *ScheduleService) publish(topic string, sched domain.Schedule) {
	if s.bus == nil {
		return
	}
	b, err := json.Marshal(toScheduleDTO(sched))
	if err != nil {
		return
	}
	s.bus.Publish(topic, b)
}

func (s *ScheduleService) publishRaw(topic string, v any) {
	if s.bus == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.bus.Publish(topic, b)
}
