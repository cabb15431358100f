package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/api"
	"github.com/dvloznov/receipt-auditor/internal/api/handlers"
	"github.com/dvloznov/receipt-auditor/internal/app"
	"github.com/dvloznov/receipt-auditor/internal/config"
	"github.com/dvloznov/receipt-auditor/internal/extract"
	"github.com/dvloznov/receipt-auditor/internal/jobs/inmemory"
	"github.com/dvloznov/receipt-auditor/internal/logger"
	"github.com/dvloznov/receipt-auditor/internal/pipeline"
	"github.com/dvloznov/receipt-auditor/internal/risk"
)

func main() {
	cfg := config.Load()

	var (
		port   = flag.String("port", cfg.APIPort, "HTTP server port (or set API_PORT env)")
		bucket = flag.String("bucket", cfg.Bucket, "GCS bucket for receipt uploads (or set GCS_BUCKET env)")
	)
	flag.Parse()
	cfg.Bucket = *bucket

	log := logger.NewWithLevel(cfg.LogLevel)

	if cfg.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - receipt uploads will be disabled")
	}

	ctx := context.Background()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueueWithOptions(jobStore, inmemory.Options{
		BufferSize: cfg.QueueSize,
		Workers:    cfg.WorkerCount,
		MaxRetries: cfg.JobMaxRetries,
		Logger:     log,
	})

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, pipeline.NewJobHandler(services.PipelineDeps())); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	router := api.NewRouter(api.RouterConfig{
		Receipts: handlers.NewReceiptsHandler(services.Storage, services.Ledger, jobQueue, cfg.Bucket),
		Extract:  handlers.NewExtractHandler(extract.New(), risk.NewClassifier(log)),
		Jobs:     handlers.NewJobsHandler(jobStore),
		Metrics:  services.Metrics.Handler(),
		APIKey:   cfg.APIKey,
		Logger:   log,
	})

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop accepting jobs and wait for in-flight audits before cancelling them.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
