// Package pipeline audits a stored receipt image: fetch, recognize, extract,
// assess, record and alert.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/domain"
	"github.com/dvloznov/receipt-auditor/internal/extract"
	infra "github.com/dvloznov/receipt-auditor/internal/infra/bigquery"
	"github.com/dvloznov/receipt-auditor/internal/logger"
	"github.com/dvloznov/receipt-auditor/internal/metrics"
	"github.com/dvloznov/receipt-auditor/internal/notify"
	"github.com/dvloznov/receipt-auditor/internal/ocr"
	"github.com/dvloznov/receipt-auditor/internal/risk"
	"github.com/rs/zerolog"
)

// ErrNoText is returned when recognition yields no text for an image.
var ErrNoText = errors.New("no text recognized in receipt")

// Deps are the collaborators of the audit pipeline. Extractor, Classifier,
// Notifier and Now default when nil; Metrics is optional.
type Deps struct {
	Storage    StorageService
	Recognizer ocr.Recognizer
	Store      AuditStore
	Extractor  *extract.Extractor
	Classifier *risk.Classifier
	Notifier   notify.Notifier
	Metrics    *metrics.AuditMetrics
	Logger     zerolog.Logger
	Now        func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Extractor == nil {
		d.Extractor = extract.NewWithClock(d.Now)
	}
	if d.Classifier == nil {
		d.Classifier = risk.NewClassifier(d.Logger)
	}
	if d.Notifier == nil {
		d.Notifier = notify.LogNotifier{Logger: d.Logger}
	}
	return d
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs the steps sequentially, stopping early once a step marks the
// state as skipped.
func (p *Pipeline) Execute(ctx context.Context, state *AuditState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		if state.Skipped {
			return nil
		}
	}
	return nil
}

// NewReceiptAuditPipeline creates the standard receipt audit pipeline.
func NewReceiptAuditPipeline(deps Deps) *Pipeline {
	deps = deps.withDefaults()
	return NewPipeline(
		&FetchReceiptStep{storage: deps.Storage},
		&DedupStep{store: deps.Store, log: deps.Logger},
		&RecognizeTextStep{recognizer: deps.Recognizer},
		&ExtractFieldsStep{extractor: deps.Extractor},
		&AssessRiskStep{classifier: deps.Classifier},
		&StoreAuditStep{store: deps.Store, now: deps.Now},
		&NotifyStep{notifier: deps.Notifier, log: deps.Logger},
	)
}

// AuditReceiptFromGCS audits a single receipt image stored in GCS.
// gcsURI should look like: "gs://bucket/path/to/receipt.jpg".
// A receipt whose image was already audited returns the existing ledger entry
// with state.Skipped set.
func AuditReceiptFromGCS(ctx context.Context, gcsURI string, deps Deps) (*AuditState, error) {
	deps = deps.withDefaults()
	log := logger.WithReceipt(deps.Logger, gcsURI, "")
	deps.Logger = log

	if deps.Metrics != nil {
		deps.Metrics.StartReceipt()
	}
	started := time.Now()

	state := &AuditState{GCSURI: gcsURI}
	err := NewReceiptAuditPipeline(deps).Execute(ctx, state)

	if deps.Metrics != nil {
		deps.Metrics.FinishReceipt(outcome(state, err), time.Since(started), state.Assessment.FlagStrings())
	}

	if err != nil {
		log.Error().Err(err).Msg("Receipt audit failed")
		return state, fmt.Errorf("AuditReceiptFromGCS: %w", err)
	}

	if state.Skipped {
		log.Info().Str("receipt_id", state.Receipt.ReceiptID).Msg("Receipt already audited, skipping")
		return state, nil
	}

	log.Info().
		Str("receipt_id", state.Receipt.ReceiptID).
		Str("merchant", state.Receipt.Merchant).
		Str("total", state.Receipt.Total).
		Str("risk_status", state.Receipt.RiskStatus).
		Strs("flags", state.Receipt.RiskFlags).
		Msg("Receipt audited")
	return state, nil
}

// AuditText runs extraction and assessment over already recognized text.
func AuditText(text string, ex *extract.Extractor, c *risk.Classifier) (extract.Record, risk.Assessment) {
	if ex == nil {
		ex = extract.New()
	}
	if c == nil {
		c = risk.NewClassifier(zerolog.Nop())
	}
	record := ex.Extract(text)
	return record, c.Assess(record.Merchant, record.Total, record.Date)
}

func outcome(state *AuditState, err error) string {
	switch {
	case err != nil:
		return metrics.StatusError
	case state.Skipped:
		return metrics.StatusDuplicate
	case state.Assessment.NeedsReview():
		return metrics.StatusFlagged
	default:
		return metrics.StatusApproved
	}
}

// receiptFromState assembles the ledger entry from a completed state.
func receiptFromState(state *AuditState, receiptID string, now time.Time) *domain.AuditedReceipt {
	return &domain.AuditedReceipt{
		ReceiptID:     receiptID,
		Filename:      state.Filename,
		GCSURI:        state.GCSURI,
		Checksum:      state.Checksum,
		FileSize:      int64(len(state.Image)),
		Merchant:      state.Record.Merchant,
		Date:          state.Record.Date,
		Total:         infra.FormatAmount(state.Record.Total),
		Status:        domain.StatusAudited,
		RiskStatus:    string(state.Assessment.Status),
		RiskFlags:     state.Assessment.FlagStrings(),
		ExtractedText: state.Text,
		UploadedAt:    now,
		AuditedAt:     now,
	}
}
