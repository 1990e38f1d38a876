// Package main is the entry point for the loom-worker binary.
// It consumes pipeline run requests from the Redis queue, executes them,
// and announces completions over pub/sub.
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

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/governance"
	"github.com/loomworks/loom/pkg/analytics"
	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/export"
	"github.com/loomworks/loom/pkg/logging"
	"github.com/loomworks/loom/pkg/pubsub"
	"github.com/loomworks/loom/pkg/queue"
	"github.com/loomworks/loom/pkg/runstore"
	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for loom-worker.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loom-worker",
		Short: "Queue worker for the loom pipeline engine",
		Long: `A worker that pops pipeline run requests from the Redis queue, executes
them through the engine, and publishes completion events so submitters can
wait on results.

Run several workers against the same queue to scale out; each request is
delivered to exactly one worker.`,
		RunE: runWorker,
	}

	rootCmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.Flags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().IntP("concurrency", "n", 0, "Concurrent runs (overrides config if non-zero)")

	return rootCmd
}

// buildEngine assembles an engine with the full built-in handler set.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	var objects storage.ObjectStore
	var err error
	switch cfg.Storage.Kind {
	case "minio":
		objects, err = storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.Minio.Endpoint,
			AccessKey: cfg.Storage.Minio.AccessKey,
			SecretKey: cfg.Storage.Minio.SecretKey,
			Bucket:    cfg.Storage.Minio.Bucket,
			Secure:    cfg.Storage.Minio.UseSSL,
		})
	default:
		objects, err = storage.NewFSStore(cfg.Storage.FS.Dir)
	}
	if err != nil {
		return nil, err
	}

	registry := engine.NewBuiltinRegistry(engine.Collaborators{
		Storage: objects,
		Analytics: analytics.New(analytics.Config{
			MemoryLimit:  cfg.Analytics.MemoryLimit,
			Threads:      cfg.Analytics.Threads,
			EnableHTTPFS: cfg.Analytics.EnableHTTPFS,
		}, logger),
		Connectors: connector.NewRegistry(),
		Exporters:  export.NewRegistry(),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	})

	return engine.New(engine.Config{
		Handlers: registry,
		Store:    runstore.NewMemoryStore(),
		Retry: governance.RetryConfig{
			MaxAttempts: cfg.Engine.MaxAttempts,
			BaseDelay:   cfg.Engine.RetryBaseDelay(),
		},
		ScratchDir: cfg.Engine.ScratchDir,
		Logger:     logger,
	}), nil
}

// makeHandler builds the queue handler: parse the definition, execute the
// run, announce the outcome. The completion event is published on a fresh
// context so a run that used up its deadline still reports its fate.
func makeHandler(eng *engine.Engine, publisher pubsub.Publisher, logger *slog.Logger) queue.HandlerFunc {
	publish := func(event pubsub.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := publisher.PublishRunCompleted(ctx, event); err != nil {
			logger.Warn("completion publish failed", "run_id", event.RunID, "error", err)
		}
	}

	return func(ctx context.Context, req queue.RunRequest) error {
		pipeline, err := engine.ParseDefinition(req.Definition)
		if err != nil {
			publish(pubsub.Event{
				RunID:  req.RunID,
				Status: domain.RunFailed,
				Error:  fmt.Sprintf("invalid definition: %v", err),
			})
			return fmt.Errorf("run %s: %w", req.RunID, err)
		}

		pipelineID := req.PipelineID
		if pipelineID == "" {
			pipelineID = pipeline.ID
		}
		trigger := req.TriggeredBy
		if trigger == "" {
			trigger = domain.TriggerManual
		}

		run := &domain.Run{
			ID:          req.RunID,
			PipelineID:  pipelineID,
			Status:      domain.RunPending,
			TriggeredBy: trigger,
		}

		result := eng.Execute(ctx, &pipeline.Graph, run)

		publish(pubsub.Event{RunID: result.RunID, Status: result.Status, Error: result.Error})

		if result.Status != domain.RunSuccess {
			return fmt.Errorf("run %s failed: %s", result.RunID, result.Error)
		}
		return nil
	}
}

// runWorker is the main entry point for the worker command.
func runWorker(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		cfg.Worker.Concurrency = n
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "loom-worker",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
	}

	eng, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}

	metrics := queue.NewMetrics()
	consumer := queue.NewConsumer(
		client,
		cfg.Redis.Queue,
		makeHandler(eng, pubsub.NewRedisPublisher(client), logger),
		logger,
		queue.WithConcurrency(cfg.Worker.Concurrency),
		queue.WithRunTimeout(cfg.Engine.RunTimeout()),
		queue.WithMetrics(metrics),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint error", "error", err)
		}
	}()

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	logger.Info("worker started",
		"queue", cfg.Redis.Queue,
		"concurrency", cfg.Worker.Concurrency,
		"storage", cfg.Storage.Kind,
	)

	<-ctx.Done()

	// Give in-flight runs time to finish before cancelling them.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumer.Stop(shutdownCtx); err != nil {
		logger.Error("consumer shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics endpoint shutdown error", "error", err)
	}

	logger.Info("worker stopped")
	return nil
}
