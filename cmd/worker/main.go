package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/chunker"
	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/consolidation"
	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/extraction"
	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/parsejob"
	"github.com/alonsogarciap/financial-parsing-service/internal/infrastructure/cache"
	"github.com/alonsogarciap/financial-parsing-service/internal/infrastructure/database"
	"github.com/alonsogarciap/financial-parsing-service/internal/infrastructure/database/repositories"
	"github.com/alonsogarciap/financial-parsing-service/internal/infrastructure/queue"
	"github.com/alonsogarciap/financial-parsing-service/internal/infrastructure/rasterizer"
	"github.com/alonsogarciap/financial-parsing-service/internal/pkg/config"
	"github.com/alonsogarciap/financial-parsing-service/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	appLogger := logger.Initialize(cfg.Environment)
	appLogger.Info("starting financial parsing worker",
		slog.String("environment", cfg.Environment))

	db, err := database.NewPostgresDB(&cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.AutoMigrate(
		&domain.ParseJob{},
		&domain.FinancialStatement{},
		&domain.LineItem{},
		&domain.EditLog{},
	); err != nil {
		appLogger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisCache, err := cache.NewRedisCache(&cfg.Cache, appLogger)
	if err != nil {
		appLogger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisCache.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	extractor, err := extraction.NewClient(ctx, cfg.LLM, logger.NewServiceLogger("extraction"))
	if err != nil {
		appLogger.Error("failed to create extraction client", slog.Any("error", err))
		os.Exit(1)
	}

	jobRepo := repositories.NewParseJobRepository(db.DB, logger.NewServiceLogger("parse_jobs"))
	stmtRepo := repositories.NewStatementRepository(db.DB, logger.NewServiceLogger("statements"))
	docRepo := repositories.NewDocumentRepository(db.DB, logger.NewServiceLogger("documents"))

	chunks := chunker.NewService(cfg.Parsing, rasterizer.NewFitzOpener(), logger.NewServiceLogger("chunker"))

	client, err := queue.NewAsynqClient(&cfg.Queue, appLogger)
	if err != nil {
		appLogger.Error("failed to create queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer client.Close()

	aggregator := consolidation.NewAggregator(stmtRepo, redisCache, logger.NewServiceLogger("consolidation"))

	runner := parsejob.NewService(
		cfg.Parsing,
		cfg.LLM,
		chunks,
		extractor,
		jobRepo,
		stmtRepo,
		docRepo,
		client,
		aggregator,
		logger.NewServiceLogger("parsejob"),
	)

	server, err := queue.NewAsynqServer(&cfg.Queue, appLogger)
	if err != nil {
		appLogger.Error("failed to create queue server", slog.Any("error", err))
		os.Exit(1)
	}
	server.RegisterParseHandler(runner)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		appLogger.Info("shutdown signal received")
		server.Shutdown()
		cancel()
	}()

	if err := server.Start(); err != nil {
		appLogger.Error("worker server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
