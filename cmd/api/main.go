package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imagejobs/internal/adapter/repo"
	"imagejobs/internal/domain"
	"imagejobs/internal/http/handlers"
	"imagejobs/internal/http/httpapi"
	"imagejobs/internal/infra"
	"imagejobs/internal/infra/credentials"
	"imagejobs/internal/jobs"
	"imagejobs/internal/metrics"
	"imagejobs/internal/providers/genai"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api: exited with error")
	}
	logger.Info().Msg("api: stopped")
}

func run(ctx context.Context, cfg *infra.Config, logger infra.Logger) error {
	var (
		records domain.JobRepository
		ready   func(context.Context) error
		apiKey  = cfg.GeminiAPIKey
	)

	if cfg.UsesDatabase() {
		if err := infra.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			return err
		}
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		runner := infra.NewSQLRunner(pool, logger)
		records = repo.NewJobRepository(runner)
		ready = pool.Ping

		creds, err := credentials.NewStore(runner).ResolveGemini(ctx, credentials.Gemini{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
		if err != nil {
			return err
		}
		apiKey, cfg.GeminiModel = creds.APIKey, creds.Model
	} else {
		logger.Warn().Msg("api: DATABASE_URL not set, job records are kept in memory")
		records = repo.NewMemoryJobRepository()
		if apiKey == "" {
			return credentials.ErrMissingKey
		}
	}

	if cfg.GeminiModel == "" {
		cfg.GeminiModel = genai.DefaultModel
	}

	store, staticDir, err := newArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}
	model, closeModel, err := newModelClient(ctx, cfg, apiKey, logger)
	if err != nil {
		return err
	}
	defer closeModel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	validator := domain.NewValidator(cfg.ImageSourceAllowlist)
	orch, err := jobs.NewOrchestrator(jobs.Options{
		Records:   records,
		Model:     model,
		Store:     store,
		Validator: validator,
		Logger:    &logger,
		Metrics:   metrics.New(reg),
	})
	if err != nil {
		return err
	}

	app := handlers.NewApp(orch, logger)
	app.Ready = ready
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:              logger,
		JWTSecret:           cfg.JWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		SubmitRatePerMinute: cfg.SubmitRatePerMinute,
		Metrics:             promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		StaticDir:           staticDir,
	})

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().
		Str("addr", server.Addr()).
		Str("storage", cfg.StorageDriver).
		Str("model_transport", cfg.ModelTransport).
		Str("model", cfg.GeminiModel).
		Msg("api: listening")
	return server.Run(ctx)
}
