package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/domain"
	"github.com/dvloznov/receipt-auditor/internal/extract"
	"github.com/dvloznov/receipt-auditor/internal/gcsuploader"
	infra "github.com/dvloznov/receipt-auditor/internal/infra/bigquery"
	"github.com/dvloznov/receipt-auditor/internal/notify"
	"github.com/dvloznov/receipt-auditor/internal/ocr"
	"github.com/dvloznov/receipt-auditor/internal/risk"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PipelineStep represents a single step in the audit pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *AuditState) error
}

// AuditState holds the shared state across all pipeline steps.
type AuditState struct {
	GCSURI      string
	Filename    string
	ContentType string
	Image       []byte
	Checksum    string

	Text       string
	Record     extract.Record
	Assessment risk.Assessment

	// Receipt is the stored ledger entry, or the existing one when Skipped.
	Receipt *domain.AuditedReceipt
	Skipped bool

	// Notified is false when NotifyStep did not deliver an alert.
	Notified bool
}

// Step 1: FetchReceiptStep downloads the image and fingerprints it.
type FetchReceiptStep struct {
	storage StorageService
}

func (s *FetchReceiptStep) Execute(ctx context.Context, state *AuditState) error {
	data, err := s.storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return fmt.Errorf("fetching receipt: %w", err)
	}
	sum := sha256.Sum256(data)

	state.Image = data
	state.Checksum = hex.EncodeToString(sum[:])
	state.Filename = s.storage.ExtractFilenameFromGCSURI(state.GCSURI)
	state.ContentType = gcsuploader.ContentTypeForName(state.Filename)
	return nil
}

// Step 2: DedupStep ends the pipeline when the same image was already audited.
type DedupStep struct {
	store AuditStore
	log   zerolog.Logger
}

func (s *DedupStep) Execute(ctx context.Context, state *AuditState) error {
	existing, err := s.store.FindAuditByChecksum(ctx, state.Checksum)
	if err != nil {
		return fmt.Errorf("checking for duplicate: %w", err)
	}
	if existing == nil {
		return nil
	}

	s.log.Debug().
		Str("checksum", state.Checksum).
		Str("existing_receipt_id", existing.ReceiptID).
		Msg("Duplicate receipt image")
	state.Receipt = existing.ToReceipt()
	state.Skipped = true
	return nil
}

// Step 3: RecognizeTextStep turns the image into raw text.
type RecognizeTextStep struct {
	recognizer ocr.Recognizer
}

func (s *RecognizeTextStep) Execute(ctx context.Context, state *AuditState) error {
	text, err := s.recognizer.Recognize(ctx, state.Image, state.ContentType)
	if err != nil {
		return fmt.Errorf("recognizing text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return ErrNoText
	}
	state.Text = ocr.NormalizeNewlines(text)
	return nil
}

// Step 4: ExtractFieldsStep pulls date, merchant and total from the text.
type ExtractFieldsStep struct {
	extractor *extract.Extractor
}

func (s *ExtractFieldsStep) Execute(ctx context.Context, state *AuditState) error {
	state.Record = s.extractor.Extract(state.Text)
	return nil
}

// Step 5: AssessRiskStep classifies the extracted record.
type AssessRiskStep struct {
	classifier *risk.Classifier
}

func (s *AssessRiskStep) Execute(ctx context.Context, state *AuditState) error {
	r := state.Record
	state.Assessment = s.classifier.Assess(r.Merchant, r.Total, r.Date)
	return nil
}

// Step 6: StoreAuditStep appends the audited receipt to the ledger.
type StoreAuditStep struct {
	store AuditStore
	now   func() time.Time
}

func (s *StoreAuditStep) Execute(ctx context.Context, state *AuditState) error {
	receipt := receiptFromState(state, uuid.NewString(), s.now().UTC())
	if err := s.store.InsertAudit(ctx, infra.RowFromReceipt(receipt)); err != nil {
		return fmt.Errorf("storing audit: %w", err)
	}
	state.Receipt = receipt
	return nil
}

// Step 7: NotifyStep alerts on flagged receipts. Delivery failures are logged only.
type NotifyStep struct {
	notifier notify.Notifier
	log      zerolog.Logger
}

func (s *NotifyStep) Execute(ctx context.Context, state *AuditState) error {
	if !state.Assessment.NeedsReview() || state.Receipt == nil {
		return nil
	}
	if err := s.notifier.NotifyFlagged(ctx, notify.NewAlert(state.Receipt)); err != nil {
		s.log.Warn().Err(err).Str("receipt_id", state.Receipt.ReceiptID).Msg("Failed to send flag alert")
		return nil
	}
	state.Notified = true
	return nil
}
