package main

import (
	"bufio"
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/app"
	"github.com/dvloznov/receipt-auditor/internal/config"
	"github.com/dvloznov/receipt-auditor/internal/gcsuploader"
	"github.com/dvloznov/receipt-auditor/internal/jobs"
	"github.com/dvloznov/receipt-auditor/internal/jobs/inmemory"
	"github.com/dvloznov/receipt-auditor/internal/logger"
	"github.com/dvloznov/receipt-auditor/internal/pipeline"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	var (
		metricsPort = flag.String("metrics-port", cfg.MetricsPort, "Port serving /metrics (or set METRICS_PORT env)")
		workers     = flag.Int("workers", cfg.WorkerCount, "Concurrent audits (or set WORKER_COUNT env)")
		fromStdin   = flag.Bool("stdin", false, "Read gs:// URIs from stdin, one per line")
	)
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueueWithOptions(jobStore, inmemory.Options{
		BufferSize: cfg.QueueSize,
		Workers:    *workers,
		MaxRetries: cfg.JobMaxRetries,
		Logger:     log,
	})

	log.Info().Msg("Starting worker service")

	if err := jobQueue.Start(ctx, pipeline.NewJobHandler(services.PipelineDeps())); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	metricsServer := &http.Server{
		Addr:              ":" + *metricsPort,
		Handler:           services.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("port", *metricsPort).Msg("Serving metrics")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	enqueueAll(ctx, log, jobQueue, flag.Args())
	if *fromStdin {
		go enqueueStdin(ctx, log, jobQueue)
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop metrics server")
	}

	log.Info().Msg("Worker service exited")
}

func enqueueAll(ctx context.Context, log zerolog.Logger, pub jobs.Publisher, uris []string) {
	for _, uri := range uris {
		enqueue(ctx, log, pub, uri)
	}
}

func enqueueStdin(ctx context.Context, log zerolog.Logger, pub jobs.Publisher) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if uri := strings.TrimSpace(scanner.Text()); uri != "" {
			enqueue(ctx, log, pub, uri)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Failed to read URIs from stdin")
	}
}

func enqueue(ctx context.Context, log zerolog.Logger, pub jobs.Publisher, uri string) {
	if _, _, err := gcsuploader.ParseGCSURI(uri); err != nil {
		log.Warn().Err(err).Msg("Skipping invalid URI")
		return
	}
	job := &jobs.AuditReceiptJob{GCSURI: uri}
	if err := pub.PublishAuditReceipt(ctx, job); err != nil {
		log.Error().Err(err).Str("gcs_uri", uri).Msg("Failed to enqueue audit job")
		return
	}
	log.Info().Str("job_id", job.JobID).Str("gcs_uri", uri).Msg("Audit job enqueued")
}
