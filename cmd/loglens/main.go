// LogLens server — provides the HTTP API, manages queue workers, and runs
// the log ingestion and analysis pipeline.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/loglens/loglens/pkg/analyzer"
	"github.com/loglens/loglens/pkg/api"
	"github.com/loglens/loglens/pkg/classify"
	"github.com/loglens/loglens/pkg/cleanup"
	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/database"
	"github.com/loglens/loglens/pkg/embedder"
	"github.com/loglens/loglens/pkg/llm"
	"github.com/loglens/loglens/pkg/pipeline"
	"github.com/loglens/loglens/pkg/provider"
	"github.com/loglens/loglens/pkg/queue"
	"github.com/loglens/loglens/pkg/rag"
	"github.com/loglens/loglens/pkg/store"
	"github.com/loglens/loglens/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	httpPort := getEnv("HTTP_PORT", "8080")
	podID := resolvePodID()

	slog.Info("Starting LogLens", "version", version.Full(), "http_port", httpPort, "pod_id", podID)

	ctx := context.Background()

	// 1. Configuration
	pipelineCfg := config.LoadPipelineConfigFromEnv()
	queueCfg := config.LoadQueueConfigFromEnv()

	// 2. Database (runs migrations, then opens the pool)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL database")

	st := store.New(dbClient.Pool())

	// 3. One-time startup stall cleanup for this pod
	if err := queue.CleanupStartupStalls(ctx, dbClient.Pool(), podID, queueCfg); err != nil {
		slog.Error("Failed to clean up startup stalls", "error", err)
		// Non-fatal — the sweeper will catch anything left behind
	}

	// 4. LLM client. Without it the pipeline still runs; analyses fall back
	// to classifier narratives and search is disabled.
	var llmProvider llm.Provider
	llmClient, err := llm.NewClient(llm.WithEmbeddingDim(pipelineCfg.EmbeddingDim))
	if err != nil {
		slog.Warn("LLM client unavailable, analyses will use classifier narratives", "error", err)
	} else {
		llmProvider = llmClient
		slog.Info("LLM client initialized")
	}

	// 5. Pipeline assembly
	classifier := classify.New(pipelineCfg)

	var chunkEmbedder *embedder.Embedder
	var retriever *rag.Retriever
	if llmProvider != nil {
		chunkEmbedder = embedder.New(llmProvider, st, pipelineCfg, logger)
		retriever = rag.New(st, chunkEmbedder, pipelineCfg, logger)
	}

	var runAnalyzer *analyzer.Analyzer
	if retriever != nil {
		runAnalyzer = analyzer.New(classifier, retriever, llmProvider, st, logger)
	} else {
		runAnalyzer = analyzer.New(classifier, nil, llmProvider, st, logger)
	}

	var pipelineEmbedder pipeline.ChunkEmbedder
	if chunkEmbedder != nil {
		pipelineEmbedder = chunkEmbedder
	}
	pl := pipeline.New(st, pipelineEmbedder, runAnalyzer, pipelineCfg, logger)

	// 6. Worker pool
	fetcher := provider.NewClient("", logger)
	executor := queue.NewLogProcessingExecutor(fetcher, st, pl, logger)
	workerPool := queue.NewWorkerPool(podID, dbClient.Pool(), queueCfg, executor)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 7. Job retention
	queueClient := queue.NewClient(dbClient.Pool())
	cleanupService := cleanup.NewService(config.LoadRetentionConfigFromEnv(), queueClient, logger)
	cleanupService.Start(ctx)

	// 8. HTTP server
	var queryEmbedder api.QueryEmbedder
	if chunkEmbedder != nil {
		queryEmbedder = chunkEmbedder
	}
	apiServer := api.NewServer(st, pl, queueClient, queryEmbedder, workerPool, pipelineCfg, queueCfg, logger)
	httpServer := apiServer.HTTPServer(":" + httpPort)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("LogLens started successfully", "pod_id", podID, "workers", queueCfg.WorkerCount)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: drain workers first, then the HTTP server
	cleanupService.Stop()

	workerShutdownCtx, workerCancel := context.WithTimeout(ctx, queueCfg.GracefulShutdownTimeout)
	defer workerCancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-workerShutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded — incomplete jobs will be stall-recovered")
	}

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
