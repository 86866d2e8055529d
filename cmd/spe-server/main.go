package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/adapters/httpapi"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/adapters/memorybus"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/adapters/sqlite"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/app"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/buildinfo"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/config"
	"github.com/Guilhem-Bonnet/Stalker-Portal-Exporter/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	def := config.Default()
	addr := flag.String("addr", def.Addr, "Adresse d'écoute (ex: 127.0.0.1:8080)")
	dbPath := flag.String("db", def.DBPath, "Chemin SQLite (ex: spe.db)")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "spe-server").Logger()
	log.Logger = logger

	logger.Info().Interface("build", buildinfo.Current()).Str("db", *dbPath).Msg("starting")

	ctx := context.Background()
	db, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open db")
	}
	defer func() { _ = db.Close() }()

	bus := memorybus.New()
	jobsRepo := sqlite.NewJobsRepository(db.SQL)
	jobsSvc := app.NewJobService(jobsRepo, bus)
	settingsRepo := sqlite.NewSettingsRepository(db.SQL)
	settingsSvc := app.NewSettingsService(settingsRepo)
	schedulesRepo := sqlite.NewSchedulesRepository(db.SQL)
	schedulesSvc := app.NewScheduleService(schedulesRepo, jobsSvc, bus)

	// Limiteur global (partagé) pour tous les exports + hook côté API settings.
	requestLimiter := app.NewRequestLimiter(domain.DefaultSettings().MaxConcurrentRequests)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers := 1
	if s, err := settingsSvc.Get(ctx); err == nil {
		if s.MaxWorkers > 0 {
			workers = s.MaxWorkers
		}
		if s.MaxConcurrentRequests > 0 {
			requestLimiter.SetLimit(s.MaxConcurrentRequests)
		}
	}

	execs := app.NewExecutorRegistry(app.ExecutorDeps{
		Logger:   logger.With().Str("component", "executor").Logger(),
		Settings: settingsSvc.Get,
		Limiter:  requestLimiter,
	})

	pool := app.NewWorkerPool(shutdownCtx, logger, jobsRepo, bus, app.DefaultWorkerOptions(), execs)
	pool.SetCount(workers)
	defer pool.Close()
	logger.Info().Int("workers", workers).Msg("workers started")

	// Scheduler: met en file les exports récurrents arrivés à échéance.
	scheduler := app.NewExportScheduler(logger.With().Str("component", "scheduler").Logger(), schedulesSvc, schedulesRepo)
	go scheduler.Run(shutdownCtx)

	// Updater: reporte le fichier produit sur le schedule à la fin des exports.
	updater := app.NewExportCompletionUpdater(logger.With().Str("component", "export-updater").Logger(), bus, schedulesRepo)
	go updater.Run(shutdownCtx)

	srv := httpapi.NewServer(logger, jobsSvc, settingsSvc, schedulesSvc, bus, requestLimiter, func(updated domain.Settings) {
		if updated.MaxWorkers > 0 {
			pool.SetCount(updated.MaxWorkers)
		}
	})
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", *addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	shutdownTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownTimeout)
	logger.Info().Msg("bye")
}
