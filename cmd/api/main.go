package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/newdo/backend/internal/dashboard"
	"github.com/newdo/backend/internal/execution"
	"github.com/newdo/backend/internal/handlers"
	"github.com/newdo/backend/internal/kie"
	"github.com/newdo/backend/internal/ledger"
	"github.com/newdo/backend/internal/models"
	"github.com/newdo/backend/internal/providers"
	"github.com/newdo/backend/internal/repository"
	"github.com/newdo/backend/internal/router"
	"github.com/newdo/backend/internal/services"
	"github.com/newdo/backend/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := loadConfig()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. make dev-up", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// KIE client and provider registry
	kieClient, err := kie.NewClient(kie.Config{BaseURL: cfg.KieBaseURL, AccessKey: cfg.KieKey})
	if err != nil {
		slog.Error("Failed to create KIE client", "error", err)
		os.Exit(1)
	}
	providerClients := map[models.Provider]providers.Client{
		models.ProviderKie4o:      providers.NewFourO(kieClient),
		models.ProviderKieKontext: providers.NewKontext(kieClient),
	}

	// Object storage
	cdnURL, err := url.Parse(cfg.CDNBaseURL)
	if err != nil {
		slog.Error("Invalid CDN_BASE_URL", "error", err)
		os.Exit(1)
	}
	bucket := storage.NewBucket(storage.NewDirStore(cfg.StorageDir), cdnURL)

	// Ledger and repositories
	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo)
	taskRepo := repository.NewTaskRepo(pool)
	userRepo := repository.NewUserRepo(pool)

	// Advance scheduling: the insert func is set after the River client
	// exists (breaks the service <-> worker init cycle).
	var insertMu sync.Mutex
	var insertFn services.ScheduleAdvanceFunc
	scheduleAdvance := func(ctx context.Context, taskNo string, at time.Time) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, taskNo, at)
	}

	taskSvc := services.NewTaskService(taskRepo, ledgerSvc, bucket, providerClients, scheduleAdvance, cfg.CallbackURL, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewAdvanceTaskWorker(taskSvc, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, taskNo string, at time.Time) error {
		_, err := riverClient.Insert(ctx, execution.AdvanceTaskArgs{TaskNo: taskNo}, &river.InsertOpts{
			ScheduledAt: at,
		})
		return err
	}
	insertMu.Unlock()

	// Validator and handlers
	validator, err := services.NewValidator(ctx, cfg.SchemaDir)
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	taskHandler := &handlers.TaskHandler{
		Lifecycle: taskSvc,
		Tasks:     taskRepo,
		Validator: validator,
		Logger:    logger,
	}
	dashHandler := dashboard.NewHandler(ledgerRepo, kieClient, logger)

	mux := router.New(taskHandler, dashHandler, userRepo)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (drives advance jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
