package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/dispatch-core/internal/auth"
	"github.com/nurpe/dispatch-core/internal/config"
	"github.com/nurpe/dispatch-core/internal/db"
	"github.com/nurpe/dispatch-core/internal/excel"
	httphandler "github.com/nurpe/dispatch-core/internal/http"
	"github.com/nurpe/dispatch-core/internal/http/middleware"
	"github.com/nurpe/dispatch-core/internal/logger"
	"github.com/nurpe/dispatch-core/internal/pdf"
	"github.com/nurpe/dispatch-core/internal/repository"
	"github.com/nurpe/dispatch-core/internal/scheduler"
	"github.com/nurpe/dispatch-core/internal/service"
	"github.com/nurpe/dispatch-core/internal/tracing"
)

const shutdownTimeout = 15 * time.Second

type stores struct {
	requests      service.RequestStore
	catalog       service.Catalog
	professionals service.ProfessionalDirectory
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdownTracer, err := tracing.InitTracer("dispatch-core", os.Stdout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init tracer")
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to flush tracer")
			}
		}()
	}

	st, err := openStores(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}

	retry := service.ReadRetry{
		MaxRetries: cfg.Dispatch.ReadRetryMax,
		Backoff:    cfg.Dispatch.ReadRetryBackoff,
	}
	feedService := service.NewFeedService(st.requests, retry)
	services := httphandler.Services{
		Intake:  service.NewIntakeService(st.requests, st.catalog, log),
		Feed:    feedService,
		Claims:  service.NewClaimService(st.requests, st.professionals, log),
		Tracker: service.NewTrackerService(st.requests, cfg.Dispatch.TrackerPollInterval, retry, log),
		Admin:   service.NewAdminService(st.requests, log),
		Reports: service.NewReportService(st.requests, excel.NewGenerator(), pdf.NewGenerator(cfg.Reports.Currency)),

		FeedPollInterval: cfg.Dispatch.FeedPollInterval,
	}

	jobs := scheduler.New(log)
	if err := jobs.AddOpenRequestGauge(cfg.Dispatch.GaugeSchedule, feedService); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule jobs")
	}
	jobsDone := make(chan struct{})
	go func() {
		defer close(jobsDone)
		jobs.Run(ctx)
	}()

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(services, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.CORSAllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("store", cfg.DB.Driver).Msg("starting dispatch service")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
			<-jobsDone
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
	<-jobsDone
}

func openStores(cfg *config.Config, log zerolog.Logger) (stores, error) {
	switch cfg.DB.Driver {
	case config.StoreDriverMemory:
		entries, err := repository.ParseCatalogSeed(cfg.DB.MemoryCatalog)
		if err != nil {
			return stores{}, err
		}
		pros, err := repository.ParseProfessionalSeed(cfg.DB.MemoryPros)
		if err != nil {
			return stores{}, err
		}
		mem := repository.NewMemoryStore()
		mem.SeedCatalog(entries)
		mem.SeedProfessionals(pros)
		log.Warn().
			Int("catalog_entries", len(entries)).
			Int("professionals", len(pros)).
			Msg("using in-memory store, data is lost on restart")
		return stores{requests: mem, catalog: mem, professionals: mem}, nil
	default:
		database, err := db.New(cfg, log)
		if err != nil {
			return stores{}, err
		}
		return stores{
			requests:      repository.NewRequestRepository(database),
			catalog:       repository.NewCatalogRepository(database),
			professionals: repository.NewProfessionalRepository(database),
		}, nil
	}
}
