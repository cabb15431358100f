// Package app builds the collaborators shared by the cmds from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/receipt-auditor/internal/config"
	"github.com/dvloznov/receipt-auditor/internal/gcsuploader"
	infra "github.com/dvloznov/receipt-auditor/internal/infra/bigquery"
	"github.com/dvloznov/receipt-auditor/internal/metrics"
	"github.com/dvloznov/receipt-auditor/internal/notify"
	"github.com/dvloznov/receipt-auditor/internal/ocr"
	"github.com/dvloznov/receipt-auditor/internal/ocr/gemini"
	"github.com/dvloznov/receipt-auditor/internal/ocr/ocrspace"
	"github.com/dvloznov/receipt-auditor/internal/pipeline"
	"github.com/rs/zerolog"
)

// Services holds the live clients of a running process.
type Services struct {
	Config     config.Config
	Logger     zerolog.Logger
	Storage    *gcsuploader.GCSStorageService
	Ledger     *infra.BigQueryAuditRepository
	Recognizer ocr.Recognizer
	Notifier   notify.Notifier
	Metrics    *metrics.AuditMetrics

	closers []func()
}

// New connects storage, the ledger, the recognizer and the notifier.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Services, error) {
	if err := cfg.ValidateLedger(); err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	s := &Services{Config: cfg, Logger: log, Metrics: metrics.NewAuditMetrics()}

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		return nil, err
	}
	s.Storage = storage
	s.closers = append(s.closers, func() { _ = storage.Close() })

	ledger, err := infra.NewBigQueryAuditRepository(ctx, TableRef(cfg))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Ledger = ledger
	s.closers = append(s.closers, func() { _ = ledger.Close() })

	recognizer, err := NewRecognizer(ctx, cfg, log)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Recognizer = recognizer

	notifier, closeNotifier, err := NewNotifier(cfg, log)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Notifier = notifier
	s.closers = append(s.closers, closeNotifier)

	return s, nil
}

// PipelineDeps returns the collaborators of the audit pipeline.
func (s *Services) PipelineDeps() pipeline.Deps {
	return pipeline.Deps{
		Storage:    s.Storage,
		Recognizer: s.Recognizer,
		Store:      s.Ledger,
		Notifier:   s.Notifier,
		Metrics:    s.Metrics,
		Logger:     s.Logger,
	}
}

// Close releases clients in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// TableRef names the ledger table from configuration.
func TableRef(cfg config.Config) infra.TableRef {
	return infra.TableRef{ProjectID: cfg.ProjectID, Dataset: cfg.Dataset, Table: cfg.Table}
}

// NewRecognizer builds the configured OCR provider.
func NewRecognizer(ctx context.Context, cfg config.Config, log zerolog.Logger) (ocr.Recognizer, error) {
	if err := cfg.ValidateRecognizer(); err != nil {
		return nil, fmt.Errorf("NewRecognizer: %w", err)
	}

	switch cfg.OCRProvider {
	case config.OCRProviderGemini:
		return gemini.NewRecognizer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return ocrspace.New(ocrspace.Options{
			Endpoint: cfg.OCREndpoint,
			APIKey:   cfg.OCRAPIKey,
			Language: cfg.OCRLanguage,
			Logger:   log,
		}), nil
	}
}

// NewNotifier publishes alerts to NATS when NATS_URL is set and logs them otherwise.
// The returned func closes the connection.
func NewNotifier(cfg config.Config, log zerolog.Logger) (notify.Notifier, func(), error) {
	if cfg.NATSURL == "" {
		return notify.LogNotifier{Logger: log}, func() {}, nil
	}
	n, err := notify.Connect(cfg.NATSURL, cfg.NATSAlertSubject, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("subject", n.Subject()).Msg("Publishing flag alerts to NATS")
	return n, n.Close, nil
}
