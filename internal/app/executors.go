package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
)

type JobExecutor interface {
	Execute(ctx context.Context, job domain.Job, env ExecEnv) error
}

type ExecEnv struct {
	UpdateProgress func(progress float64) error
	SetResult      func(resultJSON []byte) error
	IsCanceled     func() (bool, error)
}

type ExecutorRegistry struct {
	byType   map[string]JobExecutor
	fallback JobExecutor
}

func (r ExecutorRegistry) Get(jobType string) JobExecutor {
	if r.byType != nil {
		if ex, ok := r.byType[jobType]; ok {
			return ex
		}
	}
	return r.fallback
}

// ExecutorDeps regroupe ce que les executors partagent avec le reste du
// serveur: les settings courants et le limiteur global de requêtes.
type ExecutorDeps struct {
	Logger   zerolog.Logger
	Settings func(ctx context.Context) (domain.Settings, error)
	Limiter  *RequestLimiter
}

func NewExecutorRegistry(deps ExecutorDeps) ExecutorRegistry {
	return ExecutorRegistry{
		byType: map[string]JobExecutor{
			"noop":   NoopExecutor{},
			"export": &ExportExecutor{deps: deps},
		},
		fallback: UnknownTypeExecutor{},
	}
}

type NoopExecutor struct{}

func (NoopExecutor) Execute(ctx context.Context, job domain.Job, env ExecEnv) error {
	canceled, err := env.IsCanceled()
	if err != nil {
		return err
	}
	if canceled {
		return nil
	}
	return env.UpdateProgress(1)
}

type UnknownTypeExecutor struct{}

func (UnknownTypeExecutor) Execute(ctx context.Context, job domain.Job, env ExecEnv) error {
	return &CodedError{Code: "invalid_params", Message: "unknown job type: " + job.Type}
}

// ExportExecutor exécute un job "export": authentification au portail,
// traversée du catalogue, écriture de la playlist, résultat persisté sur le
// job. Aucun fichier n'est créé tant que l'authentification n'a pas abouti.
type ExportExecutor struct {
	deps ExecutorDeps
}

type exportParams struct {
	PortalURL  string `json:"portalUrl"`
	MAC        string `json:"mac"`
	Kind       string `json:"kind"`
	ScheduleID string `json:"scheduleId,omitempty"`
}

type exportResult struct {
	File       string           `json:"file"`
	Entries    int              `json:"entries"`
	Unresolved int              `json:"unresolved"`
	Categories []CategoryReport `json:"categories"`
	MAC        string           `json:"mac"`
	Expiry     string           `json:"expiry"`
}

func (e *ExportExecutor) Execute(ctx context.Context, job domain.Job, env ExecEnv) error {
	p := exportParams{}
	if len(job.ParamsJSON) > 0 {
		if err := json.Unmarshal(job.ParamsJSON, &p); err != nil {
			return &CodedError{Code: "invalid_params", Message: "malformed params", Err: err}
		}
	}
	if p.PortalURL == "" || p.MAC == "" {
		return &CodedError{Code: "invalid_params", Message: "missing portalUrl or mac"}
	}
	kind, err := domain.ParseContentKind(p.Kind)
	if err != nil {
		return &CodedError{Code: "invalid_params", Err: err}
	}

	settings := domain.DefaultSettings()
	if e.deps.Settings != nil {
		if s, err := e.deps.Settings(ctx); err == nil {
			settings = s
		}
	}

	portal, err := NewPortalClient(p.PortalURL, p.MAC, PortalOptions{
		Timeout: time.Duration(settings.RequestTimeoutSeconds) * time.Second,
		Logger:  e.deps.Logger,
	})
	if err != nil {
		return &CodedError{Code: "invalid_params", Err: err}
	}

	// L'annulation côté API passe par l'état du job, pas par le contexte du
	// worker: un poll relaie l'une vers l'autre.
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-cctx.Done():
				return
			case <-ticker.C:
				canceled, err := env.IsCanceled()
				if err == nil && canceled {
					cancel()
					return
				}
			}
		}
	}()

	if err := portal.Handshake(cctx); err != nil {
		return &CodedError{Code: "auth_failed", Err: err}
	}
	account, err := portal.AccountInfo(cctx)
	if err != nil {
		return &CodedError{Code: "subscription_invalid", Err: err}
	}

	w, err := NewPlaylistWriter(settings.Destination, portal.BaseURL(), time.Now())
	if err != nil {
		return &CodedError{Code: "io_error", Err: err}
	}

	exporter, err := NewExporter(portal, e.deps.Logger, ExporterOptions{
		Workers:          settings.MaxConcurrentRequests,
		Limiter:          e.deps.Limiter,
		Reporter:         LogReporter{Logger: e.deps.Logger},
		ProxyHostMarker:  settings.ProxyHostMarker,
		ProxyPathPattern: settings.ProxyPathPattern,
		OnCategoryDone: func(done, total int) {
			if total > 0 {
				_ = env.UpdateProgress(float64(done) / float64(total))
			}
		},
	})
	if err != nil {
		_ = w.Close()
		return &CodedError{Code: "invalid_params", Err: err}
	}

	report, expErr := exporter.Export(cctx, kind, w)
	closeErr := w.Close()

	if expErr != nil && !errors.Is(expErr, context.Canceled) {
		return expErr
	}
	if closeErr != nil {
		return &CodedError{Code: "io_error", Err: closeErr}
	}

	result := exportResult{
		File:       w.Path(),
		Entries:    report.Entries,
		Unresolved: report.Unresolved,
		Categories: report.Categories,
		MAC:        account.MAC,
		Expiry:     account.Expiry,
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if env.SetResult != nil {
		if err := env.SetResult(b); err != nil {
			return err
		}
	}
	return nil
}
