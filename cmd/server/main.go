package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fedlearn/internal/crypto"
	"fedlearn/internal/dataset/blob"
	datasethandler "fedlearn/internal/dataset/handler"
	datasetmetrics "fedlearn/internal/dataset/metrics"
	"fedlearn/internal/dataset/projects"
	datasetservice "fedlearn/internal/dataset/service"
	datasetstore "fedlearn/internal/dataset/store"
	"fedlearn/internal/explain"
	jwttoken "fedlearn/internal/jwt_token"
	"fedlearn/internal/platform/config"
	"fedlearn/internal/platform/httpserver"
	"fedlearn/internal/platform/logger"
	"fedlearn/internal/platform/metrics"
	"fedlearn/internal/platform/middleware"
	"fedlearn/internal/training/dispatch"
	"fedlearn/internal/training/events"
	traininghandler "fedlearn/internal/training/handler"
	trainingmetrics "fedlearn/internal/training/metrics"
	"fedlearn/internal/training/orchestrator"
	trainingservice "fedlearn/internal/training/service"
	runstore "fedlearn/internal/training/store/run"
	"fedlearn/pkg/platform/audit"
	"fedlearn/pkg/platform/audit/publishers/compliance"
	auditmemory "fedlearn/pkg/platform/audit/store/memory"
	auditpostgres "fedlearn/pkg/platform/audit/store/postgres"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	infra, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.close(log)

	httpMetrics := metrics.New()
	datasetSvc, err := buildDatasetService(cfg, infra, log)
	if err != nil {
		return err
	}
	trainingSvc, closeExplainer := buildTrainingService(ctx, cfg, infra, datasetSvc, log)
	defer closeExplainer()

	rateLimiter, err := buildRateLimiter(cfg, infra, log)
	if err != nil {
		return err
	}
	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, jwttoken.Issuer, jwttoken.Audience)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log, httpMetrics))
	r.Use(middleware.Logger(log, httpMetrics))
	r.Get("/health", healthHandler(infra))
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwttoken.NewJWTServiceAdapter(jwtService), httpMetrics, log))
		r.Use(rateLimiter.RateLimitClassified(classifyRequest))
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
		datasethandler.New(datasetSvc, log).Register(r)
		traininghandler.New(trainingSvc, log).Register(r)
	})

	srv := httpserver.New(cfg.Server, r)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting fedlearn", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func buildDatasetService(cfg config.Config, infra *infra, log *slog.Logger) (*datasetservice.Service, error) {
	keys, err := crypto.NewKeyDeriver([]byte(cfg.Crypto.Salt), crypto.WithIterations(cfg.Crypto.KDFIterations))
	if err != nil {
		return nil, fmt.Errorf("key deriver: %w", err)
	}

	var store datasetservice.DatasetStore = datasetstore.NewInMemoryStore()
	if infra.db != nil {
		store = datasetstore.NewPostgres(infra.db)
	}
	var audits audit.Store = auditmemory.NewInMemoryStore()
	if infra.db != nil {
		audits = auditpostgres.New(infra.db)
	}
	auditor := compliance.New(audits, compliance.WithLogger(log), compliance.WithMetrics(compliance.NewMetrics()))

	var blobs datasetservice.BlobStore = blob.NewMemoryStore()
	if infra.blobs != nil {
		blobs = infra.blobs
	}
	if len(cfg.Projects) == 0 {
		log.Warn("no projects configured; uploads will be rejected until PROJECTS is set")
	}
	if len(cfg.ProjectMembers) == 0 {
		log.Warn("no project members configured; every project request will be forbidden until PROJECT_MEMBERS is set")
	}

	return datasetservice.New(store, blobs, projects.NewStaticDirectory(cfg.Projects, cfg.ProjectMembers), keys,
		datasetservice.WithLogger(log),
		datasetservice.WithMetrics(datasetmetrics.New()),
		datasetservice.WithAuditor(auditor),
		datasetservice.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	), nil
}

func buildTrainingService(ctx context.Context, cfg config.Config, infra *infra,
	datasets trainingservice.Datasets, log *slog.Logger) (*trainingservice.Service, func()) {
	m := trainingmetrics.New()

	var runs trainingservice.RunStore = runstore.NewInMemoryStore()
	if infra.db != nil {
		runs = runstore.NewPostgres(infra.db)
	}

	var guard dispatch.Guard = dispatch.NewMemoryGuard()
	if infra.redis != nil {
		guard = dispatch.NewRedisGuard(infra.redis.Client, dispatch.WithLockTTL(cfg.Training.DispatchLockTTL))
	}

	var publisher events.Publisher = events.NewMemoryPublisher()
	if infra.kafka != nil {
		publisher = events.NewKafkaPublisher(infra.kafka, cfg.Kafka.Topic)
	}

	var explainer explain.Explainer = explain.Fallback{}
	closeExplainer := func() {}
	if cfg.Explain.GeminiAPIKey != "" {
		gemini, err := explain.NewGemini(ctx, explain.GeminiConfig{
			APIKey:  cfg.Explain.GeminiAPIKey,
			Model:   cfg.Explain.GeminiModel,
			Timeout: cfg.Explain.Timeout,
		})
		if err != nil {
			log.Warn("gemini unavailable, using template explanations", "error", err)
		} else {
			explainer = explain.NewResilient(gemini, log)
			closeExplainer = func() { _ = gemini.Close() }
		}
	}

	exec := orchestrator.New(
		orchestrator.WithWorkers(cfg.Training.Workers),
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(m),
	)
	svc := trainingservice.New(runs, datasets, exec, guard,
		trainingservice.WithLogger(log),
		trainingservice.WithMetrics(m),
		trainingservice.WithPublisher(publisher),
		trainingservice.WithExplainer(explainer),
	)
	return svc, closeExplainer
}
