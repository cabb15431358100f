package app

import (
	"context"
	"testing"

	"github.com/dvloznov/receipt-auditor/internal/config"
	"github.com/dvloznov/receipt-auditor/internal/notify"
	"github.com/dvloznov/receipt-auditor/internal/ocr/ocrspace"
	"github.com/rs/zerolog"
)

func TestNewRecognizer(t *testing.T) {
	ctx := context.Background()

	r, err := NewRecognizer(ctx, config.Config{OCRProvider: config.OCRProviderOCRSpace, OCRAPIKey: "k"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRecognizer: %v", err)
	}
	if _, ok := r.(*ocrspace.Client); !ok {
		t.Errorf("recognizer = %T, want *ocrspace.Client", r)
	}

	if _, err := NewRecognizer(ctx, config.Config{OCRProvider: config.OCRProviderOCRSpace}, zerolog.Nop()); err == nil {
		t.Error("expected error without OCR_API_KEY")
	}
	if _, err := NewRecognizer(ctx, config.Config{OCRProvider: "tesseract"}, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewNotifier_DefaultsToLog(t *testing.T) {
	n, closeFn, err := NewNotifier(config.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer closeFn()

	if _, ok := n.(notify.LogNotifier); !ok {
		t.Errorf("notifier = %T, want notify.LogNotifier", n)
	}
}

func TestTableRef(t *testing.T) {
	ref := TableRef(config.Config{ProjectID: "p", Dataset: "expenses", Table: "receipt_audits"})
	if ref.FullName() != "p.expenses.receipt_audits" {
		t.Errorf("FullName = %q", ref.FullName())
	}
}

func TestNew_RequiresLedgerConfig(t *testing.T) {
	if _, err := New(context.Background(), config.Config{}, zerolog.Nop()); err == nil {
		t.Error("expected error without project")
	}
}
