package app

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/ports"
)

type SettingsService struct {
	repo ports.SettingsRepository
}

func NewSettingsService(repo ports.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	return s.repo.Get(ctx)
}

func (s *SettingsService) Put(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	// Validation légère: les champs vides retombent sur les défauts, un
	// pattern de réécriture invalide est rejeté.
	defaults := domain.DefaultSettings()
	if settings.Destination == "" {
		settings.Destination = defaults.Destination
	}
	if settings.MaxWorkers <= 0 {
		settings.MaxWorkers = defaults.MaxWorkers
	}
	if settings.MaxConcurrentRequests <= 0 {
		settings.MaxConcurrentRequests = defaults.MaxConcurrentRequests
	}
	if settings.RequestTimeoutSeconds <= 0 {
		settings.RequestTimeoutSeconds = defaults.RequestTimeoutSeconds
	}
	if settings.ProxyHostMarker == "" {
		settings.ProxyHostMarker = defaults.ProxyHostMarker
	}
	if settings.ProxyPathPattern == "" {
		settings.ProxyPathPattern = defaults.ProxyPathPattern
	}
	if _, err := regexp.Compile(settings.ProxyPathPattern); err != nil {
		return domain.Settings{}, fmt.Errorf("invalid proxyPathPattern: %w", err)
	}
	return s.repo.Put(ctx, settings)
}
