package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/extract"
	infra "github.com/dvloznov/receipt-auditor/internal/infra/bigquery"
	"github.com/dvloznov/receipt-auditor/internal/metrics"
	"github.com/dvloznov/receipt-auditor/internal/notify"
	"github.com/dvloznov/receipt-auditor/internal/ocr"
	"github.com/dvloznov/receipt-auditor/internal/pipeline"
	"github.com/dvloznov/receipt-auditor/internal/risk"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	FetchFromGCSFunc              func(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURIFunc func(uri string) string
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return []byte("mock image data"), nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	if m.ExtractFilenameFromGCSURIFunc != nil {
		return m.ExtractFilenameFromGCSURIFunc(uri)
	}
	return "receipt.jpg"
}

// MockAuditStore is a mock implementation of AuditStore for testing.
type MockAuditStore struct {
	InsertAuditFunc         func(ctx context.Context, row *infra.ReceiptAuditRow) error
	FindAuditByChecksumFunc func(ctx context.Context, checksum string) (*infra.ReceiptAuditRow, error)

	Inserted []*infra.ReceiptAuditRow
}

func (m *MockAuditStore) InsertAudit(ctx context.Context, row *infra.ReceiptAuditRow) error {
	if m.InsertAuditFunc != nil {
		return m.InsertAuditFunc(ctx, row)
	}
	m.Inserted = append(m.Inserted, row)
	return nil
}

func (m *MockAuditStore) FindAuditByChecksum(ctx context.Context, checksum string) (*infra.ReceiptAuditRow, error) {
	if m.FindAuditByChecksumFunc != nil {
		return m.FindAuditByChecksumFunc(ctx, checksum)
	}
	return nil, nil
}

// MockNotifier records alerts.
type MockNotifier struct {
	NotifyFlaggedFunc func(ctx context.Context, alert notify.Alert) error

	Alerts []notify.Alert
}

func (m *MockNotifier) NotifyFlagged(ctx context.Context, alert notify.Alert) error {
	m.Alerts = append(m.Alerts, alert)
	if m.NotifyFlaggedFunc != nil {
		return m.NotifyFlaggedFunc(ctx, alert)
	}
	return nil
}

func textRecognizer(text string) ocr.Recognizer {
	return ocr.RecognizerFunc(func(ctx context.Context, image []byte, mimeType string) (string, error) {
		return text, nil
	})
}

func fixedNow() time.Time {
	return time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)
}

func testDeps(store *MockAuditStore, notifier *MockNotifier, text string) pipeline.Deps {
	return pipeline.Deps{
		Storage:    &MockStorageService{},
		Recognizer: textRecognizer(text),
		Store:      store,
		Notifier:   notifier,
		Logger:     zerolog.Nop(),
		Now:        fixedNow,
	}
}

func TestAuditReceiptFromGCS_Approved(t *testing.T) {
	store := &MockAuditStore{}
	notifier := &MockNotifier{}
	deps := testDeps(store, notifier, "Joe's Diner\r\nSubtotal 45.00\r\nTax 5.00\r\nTotal Due $50.00\r\n12/25/2024")

	state, err := pipeline.AuditReceiptFromGCS(context.Background(), "gs://receipts/joes.jpg", deps)
	require.NoError(t, err)
	require.False(t, state.Skipped)

	require.Len(t, store.Inserted, 1)
	row := store.Inserted[0]
	assert.NotEmpty(t, row.ReceiptID)
	assert.Equal(t, "gs://receipts/joes.jpg", row.GCSURI)
	assert.Equal(t, "receipt.jpg", row.Filename)
	assert.Equal(t, "Joe's Diner", row.Merchant)
	assert.Equal(t, "2024-12-25", row.ReceiptDate)
	assert.Equal(t, "50.00", row.Total)
	assert.Equal(t, "Audited", row.Status)
	assert.Equal(t, "APPROVED", row.RiskStatus)
	assert.Equal(t, []string{"NONE"}, row.RiskFlags)
	assert.Len(t, row.ChecksumSHA256, 64)
	assert.Equal(t, int64(len("mock image data")), row.FileSize)
	assert.Equal(t, fixedNow(), row.AuditedTS)

	assert.Empty(t, notifier.Alerts)
	assert.False(t, state.Notified)
}

func TestAuditReceiptFromGCS_FlaggedNotifies(t *testing.T) {
	store := &MockAuditStore{}
	notifier := &MockNotifier{}
	deps := testDeps(store, notifier, "Casino Royale\nTotal 8000.00\n01-01-2026")

	state, err := pipeline.AuditReceiptFromGCS(context.Background(), "gs://receipts/casino.jpg", deps)
	require.NoError(t, err)

	assert.Equal(t, risk.StatusFlagged, state.Assessment.Status)
	assert.Equal(t, []risk.Flag{risk.FlagHighValue, risk.FlagNonCompliantMerchant}, state.Assessment.Flags)
	require.Len(t, notifier.Alerts, 1)
	assert.Equal(t, state.Receipt.ReceiptID, notifier.Alerts[0].ReceiptID)
	assert.Equal(t, "8000.00", notifier.Alerts[0].Total)
	assert.True(t, state.Notified)
}

func TestAuditReceiptFromGCS_NotifyFailureIsNotFatal(t *testing.T) {
	store := &MockAuditStore{}
	notifier := &MockNotifier{NotifyFlaggedFunc: func(context.Context, notify.Alert) error {
		return errors.New("broker down")
	}}
	buf := &bytes.Buffer{}
	deps := testDeps(store, notifier, "Casino Royale\nTotal 8000.00\n01-01-2026")
	deps.Logger = zerolog.New(buf)

	state, err := pipeline.AuditReceiptFromGCS(context.Background(), "gs://receipts/casino.jpg", deps)
	require.NoError(t, err)
	assert.Len(t, store.Inserted, 1)
	assert.False(t, state.Notified)
	assert.Contains(t, buf.String(), "Failed to send flag alert")
}

func TestAuditReceiptFromGCS_DuplicateSkips(t *testing.T) {
	existing := &infra.ReceiptAuditRow{ReceiptID: "existing-1", RiskStatus: "APPROVED", Total: "12.00"}
	var gotChecksum string
	store := &MockAuditStore{
		FindAuditByChecksumFunc: func(ctx context.Context, checksum string) (*infra.ReceiptAuditRow, error) {
			gotChecksum = checksum
			return existing, nil
		},
	}
	recognized := false
	deps := testDeps(store, &MockNotifier{}, "")
	deps.Recognizer = ocr.RecognizerFunc(func(context.Context, []byte, string) (string, error) {
		recognized = true
		return "x", nil
	})

	state, err := pipeline.AuditReceiptFromGCS(context.Background(), "gs://receipts/dup.jpg", deps)
	require.NoError(t, err)

	assert.True(t, state.Skipped)
	assert.Equal(t, "existing-1", state.Receipt.ReceiptID)
	assert.Len(t, gotChecksum, 64)
	assert.False(t, recognized)
	assert.Empty(t, store.Inserted)
}

func TestAuditReceiptFromGCS_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *pipeline.Deps)
		wantErr error
		wantMsg string
	}{
		{
			name: "fetch fails",
			mutate: func(d *pipeline.Deps) {
				d.Storage = &MockStorageService{FetchFromGCSFunc: func(context.Context, string) ([]byte, error) {
					return nil, errors.New("object not found")
				}}
			},
			wantMsg: "object not found",
		},
		{
			name: "dedup lookup fails",
			mutate: func(d *pipeline.Deps) {
				d.Store = &MockAuditStore{FindAuditByChecksumFunc: func(context.Context, string) (*infra.ReceiptAuditRow, error) {
					return nil, errors.New("bq unavailable")
				}}
			},
			wantMsg: "checking for duplicate",
		},
		{
			name: "recognizer fails",
			mutate: func(d *pipeline.Deps) {
				d.Recognizer = ocr.RecognizerFunc(func(context.Context, []byte, string) (string, error) {
					return "", errors.New("ocr timeout")
				})
			},
			wantMsg: "ocr timeout",
		},
		{
			name: "empty text",
			mutate: func(d *pipeline.Deps) {
				d.Recognizer = textRecognizer("  \n ")
			},
			wantErr: pipeline.ErrNoText,
		},
		{
			name: "insert fails",
			mutate: func(d *pipeline.Deps) {
				d.Store = &MockAuditStore{InsertAuditFunc: func(context.Context, *infra.ReceiptAuditRow) error {
					return errors.New("quota")
				}}
			},
			wantMsg: "storing audit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(&MockAuditStore{}, &MockNotifier{}, "Shop\nTotal 9.00")
			tt.mutate(&deps)

			_, err := pipeline.AuditReceiptFromGCS(context.Background(), "gs://receipts/r.jpg", deps)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestAuditReceiptFromGCS_RecordsMetrics(t *testing.T) {
	m := metrics.NewAuditMetrics()
	deps := testDeps(&MockAuditStore{}, &MockNotifier{}, "Club Cafe\nTotal 9.00\n2024-12-25")
	deps.Metrics = m

	_, err := pipeline.AuditReceiptFromGCS(context.Background(), "gs://receipts/club.jpg", deps)
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["auditor_receipts_processed_total"])
	assert.True(t, names["auditor_receipt_flags_total"])
}

func TestPipeline_StopsWhenSkipped(t *testing.T) {
	ran := 0
	skip := stepFunc(func(ctx context.Context, s *pipeline.AuditState) error {
		ran++
		s.Skipped = true
		return nil
	})
	after := stepFunc(func(ctx context.Context, s *pipeline.AuditState) error {
		ran++
		return nil
	})

	err := pipeline.NewPipeline(skip, after).Execute(context.Background(), &pipeline.AuditState{})
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
}

func TestPipeline_WrapsStepNumber(t *testing.T) {
	ok := stepFunc(func(context.Context, *pipeline.AuditState) error { return nil })
	fail := stepFunc(func(context.Context, *pipeline.AuditState) error { return errors.New("boom") })

	err := pipeline.NewPipeline(ok, fail).Execute(context.Background(), &pipeline.AuditState{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline step 2 failed: boom")
}

func TestAuditText(t *testing.T) {
	ex := extract.NewWithClock(fixedNow)

	record, assessment := pipeline.AuditText("Casino Royale\nTotal 8000.00\n01-01-2026", ex, nil)
	assert.Equal(t, extract.Record{Date: "2026-01-01", Merchant: "Casino Royale", Total: 8000}, record)
	assert.Equal(t, risk.StatusFlagged, assessment.Status)

	record, assessment = pipeline.AuditText("", ex, nil)
	assert.Equal(t, extract.UnknownMerchant, record.Merchant)
	assert.Equal(t, "2025-03-07", record.Date)
	// 2025-03-07 is a Friday.
	assert.Equal(t, risk.StatusApproved, assessment.Status)
}

type stepFunc func(ctx context.Context, s *pipeline.AuditState) error

func (f stepFunc) Execute(ctx context.Context, s *pipeline.AuditState) error { return f(ctx, s) }
