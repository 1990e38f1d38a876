// Package main is the entry point for the loom binary.
// It provides a CLI for validating, previewing, executing, and submitting
// pipeline definitions.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
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

// newRootCmd creates the root command for loom.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "Pipeline engine for data workflows",
		Long: `Loom executes declarative data pipelines: DAGs of typed nodes that load,
transform, validate, merge, and deliver tabular data.

Definitions are YAML or JSON documents. Runs execute in-process with the run
subcommand, or on a worker fleet through the submit subcommand.

Example:
  loom validate pipeline.yaml
  loom run pipeline.yaml
  loom submit --wait pipeline.yaml`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newPreviewCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSubmitCmd())

	return rootCmd
}

// setup loads configuration and installs the CLI logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: true, // Use pretty logging for CLI
	})

	return cfg, logger, nil
}

// readDefinition loads and parses a pipeline definition file.
func readDefinition(path string) (*domain.Pipeline, error) {
	//nolint:gosec // Definition path comes from the operator's command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return engine.ParseDefinition(data)
}

// buildObjectStore selects the configured object store backend.
func buildObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.Storage.Kind {
	case "minio":
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.Minio.Endpoint,
			AccessKey: cfg.Storage.Minio.AccessKey,
			SecretKey: cfg.Storage.Minio.SecretKey,
			Bucket:    cfg.Storage.Minio.Bucket,
			Secure:    cfg.Storage.Minio.UseSSL,
		})
	default:
		return storage.NewFSStore(cfg.Storage.FS.Dir)
	}
}

// buildEngine assembles an engine with the full built-in handler set.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, runs runstore.Store) (*engine.Engine, error) {
	objects, err := buildObjectStore(ctx, cfg)
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
		Store:    runs,
		Retry: governance.RetryConfig{
			MaxAttempts: cfg.Engine.MaxAttempts,
			BaseDelay:   cfg.Engine.RetryBaseDelay(),
		},
		ScratchDir: cfg.Engine.ScratchDir,
		Logger:     logger,
	}), nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definition>",
		Short: "Check a pipeline definition without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := readDefinition(args[0])
			if err != nil {
				return err
			}
			if _, err := engine.ExecutionOrder(&pipeline.Graph); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "definition valid: %d nodes, %d edges\n",
				len(pipeline.Graph.Nodes), len(pipeline.Graph.Edges))
			return nil
		},
	}
}

func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <definition>",
		Short: "Print the execution order of a pipeline definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := readDefinition(args[0])
			if err != nil {
				return err
			}
			order, err := engine.ExecutionOrder(&pipeline.Graph)
			if err != nil {
				return err
			}
			for i, id := range order {
				node := pipeline.Graph.Node(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s (%s)\n", i+1, id, node.Type)
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <definition>",
		Short: "Execute a pipeline definition in-process",
		Args:  cobra.ExactArgs(1),
		RunE:  runPipeline,
	}
	cmd.Flags().String("run-id", "", "Run identifier (default: random)")
	return cmd
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	pipeline, err := readDefinition(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "loom",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	eng, err := buildEngine(ctx, cfg, logger, runstore.NewMemoryStore())
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run-id")
	if runID == "" {
		runID = uuid.NewString()
	}
	run := &domain.Run{
		ID:          runID,
		PipelineID:  pipeline.ID,
		Status:      domain.RunPending,
		TriggeredBy: domain.TriggerManual,
	}

	result := eng.Execute(ctx, &pipeline.Graph, run)
	if result.Status != domain.RunSuccess {
		return fmt.Errorf("run %s failed: %s", result.RunID, result.Error)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s succeeded: %d rows in %s\n",
		result.RunID, result.RowsProcessed, result.Duration.Round(time.Millisecond))
	return nil
}

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <definition>",
		Short: "Enqueue a pipeline run for the worker fleet",
		Args:  cobra.ExactArgs(1),
		RunE:  submitPipeline,
	}
	cmd.Flags().Bool("wait", false, "Wait for the run to finish")
	cmd.Flags().Duration("timeout", 10*time.Minute, "How long to wait with --wait")
	return cmd
}

func submitPipeline(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}

	pipeline, err := readDefinition(args[0])
	if err != nil {
		return err
	}
	if _, err := engine.ExecutionOrder(&pipeline.Graph); err != nil {
		return err
	}

	// Workers parse JSON or YAML, but RunRequest carries the definition as
	// raw JSON, so normalize here.
	definition, err := json.Marshal(pipeline)
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	queueName := cfg.Redis.Queue
	if queueName == "" {
		queueName = queue.DefaultQueue
	}

	runID := uuid.NewString()

	wait, _ := cmd.Flags().GetBool("wait")
	var sub *goredis.PubSub
	if wait {
		// Subscribe before enqueueing so a fast worker cannot finish the
		// run before we are listening.
		sub = client.Subscribe(ctx, pubsub.ChannelFor(runID))
		defer sub.Close()
	}

	err = queue.NewProducer(client, queueName).Enqueue(ctx, queue.RunRequest{
		RunID:       runID,
		PipelineID:  pipeline.ID,
		TriggeredBy: domain.TriggerManual,
		Definition:  definition,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s queued on %s\n", runID, queueName)

	if !wait {
		return nil
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	select {
	case msg := <-sub.Channel():
		var event pubsub.Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			return fmt.Errorf("decode completion event: %w", err)
		}
		if event.Status != domain.RunSuccess {
			return fmt.Errorf("run %s finished %s: %s", runID, event.Status, event.Error)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s succeeded\n", runID)
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s waiting for run %s", timeout, runID)
	case <-ctx.Done():
		return ctx.Err()
	}
}
