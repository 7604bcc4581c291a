package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/parsejob"
	"github.com/alonsogarciap/financial-parsing-service/internal/pkg/config"
)

// Task types
const (
	TaskTypeParseFinancials = "financials:parse"
)

// AsynqClient wraps the Asynq client for enqueuing tasks
type AsynqClient struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewAsynqClient creates a new Asynq client
func NewAsynqClient(cfg *config.QueueConfig, logger *slog.Logger) (*AsynqClient, error) {
	client := asynq.NewClient(redisOpt(cfg))

	logger.Info("asynq client created",
		slog.String("redis_host", cfg.RedisHost),
		slog.Int("redis_port", cfg.RedisPort),
	)

	return &AsynqClient{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Asynq client
func (a *AsynqClient) Close() error {
	a.logger.Info("closing asynq client")
	return a.client.Close()
}

// EnqueueParse submits a document parse task to the worker. Parse
// tasks are not retried by the queue; the job row records the outcome.
func (a *AsynqClient) EnqueueParse(ctx context.Context, task parsejob.ParseTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal parse task: %w", err)
	}

	info, err := a.client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypeParseFinancials, payload),
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
	)
	if err != nil {
		a.logger.Error("failed to enqueue parse task",
			slog.String("job_id", task.JobID.String()),
			slog.Any("error", err),
		)
		return err
	}

	a.logger.Debug("parse task enqueued",
		slog.String("task_id", info.ID),
		slog.String("job_id", task.JobID.String()),
		slog.String("queue", info.Queue),
	)

	return nil
}

// AsynqServer wraps the Asynq server for processing tasks
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewAsynqServer creates a new Asynq server
func NewAsynqServer(cfg *config.QueueConfig, logger *slog.Logger) (*AsynqServer, error) {
	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"high":     3,
				"default":  1,
			},
			StrictPriority: cfg.StrictPriority,

			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				return time.Duration(1<<uint(n)) * time.Second
			},

			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing failed",
					slog.String("task_type", task.Type()),
					slog.Any("error", err),
				)
			}),

			HealthCheckFunc: func(e error) {
				if e != nil {
					logger.Error("health check failed", slog.Any("error", e))
				}
			},
			HealthCheckInterval: 20 * time.Second,

			ShutdownTimeout: 25 * time.Second,
		},
	)

	mux := asynq.NewServeMux()

	logger.Info("asynq server created",
		slog.String("redis_host", cfg.RedisHost),
		slog.Int("redis_port", cfg.RedisPort),
		slog.Int("concurrency", cfg.Concurrency),
	)

	return &AsynqServer{
		server: server,
		mux:    mux,
		logger: logger,
	}, nil
}

// RegisterParseHandler binds the parse task type to the job runner.
// The handler always returns nil: failures are recorded on the job row
// rather than retried by the queue.
func (a *AsynqServer) RegisterParseHandler(runner *parsejob.Service) {
	a.mux.HandleFunc(TaskTypeParseFinancials, func(ctx context.Context, t *asynq.Task) error {
		var task parsejob.ParseTask
		if err := json.Unmarshal(t.Payload(), &task); err != nil {
			a.logger.Error("invalid parse task payload", slog.Any("error", err))
			return nil
		}
		runner.Run(ctx, task)
		return nil
	})
	a.logger.Debug("handler registered", slog.String("pattern", TaskTypeParseFinancials))
}

// HandleFunc registers a handler function for a task type
func (a *AsynqServer) HandleFunc(pattern string, handler func(context.Context, *asynq.Task) error) {
	a.mux.HandleFunc(pattern, handler)
	a.logger.Debug("handler registered", slog.String("pattern", pattern))
}

// Use adds a middleware to the mux
func (a *AsynqServer) Use(middleware func(asynq.Handler) asynq.Handler) {
	a.mux.Use(middleware)
}

// Start starts the Asynq server
func (a *AsynqServer) Start() error {
	a.logger.Info("starting asynq server")
	if err := a.server.Run(a.mux); err != nil {
		return fmt.Errorf("failed to run asynq server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (a *AsynqServer) Shutdown() {
	a.logger.Info("shutting down asynq server")
	a.server.Shutdown()
}

func redisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}
}
