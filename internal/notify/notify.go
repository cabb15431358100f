// Package notify publishes alerts for receipts that need review.
package notify

import (
	"context"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/domain"
	"github.com/rs/zerolog"
)

// Alert is the message sent for a flagged receipt.
type Alert struct {
	ReceiptID string    `json:"receipt_id"`
	Merchant  string    `json:"merchant"`
	Total     string    `json:"total"`
	Date      string    `json:"date"`
	Status    string    `json:"risk_status"`
	Flags     []string  `json:"risk_flags"`
	GCSURI    string    `json:"gcs_uri"`
	AuditedAt time.Time `json:"audited_at"`
}

// NewAlert builds the alert for an audited receipt.
func NewAlert(r *domain.AuditedReceipt) Alert {
	flags := make([]string, len(r.RiskFlags))
	copy(flags, r.RiskFlags)
	return Alert{
		ReceiptID: r.ReceiptID,
		Merchant:  r.Merchant,
		Total:     r.Total,
		Date:      r.Date,
		Status:    r.RiskStatus,
		Flags:     flags,
		GCSURI:    r.GCSURI,
		AuditedAt: r.AuditedAt,
	}
}

// Notifier delivers flag alerts.
type Notifier interface {
	NotifyFlagged(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log. It is used when no broker is configured.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) NotifyFlagged(ctx context.Context, alert Alert) error {
	n.Logger.Warn().
		Str("receipt_id", alert.ReceiptID).
		Str("merchant", alert.Merchant).
		Str("total", alert.Total).
		Str("date", alert.Date).
		Strs("flags", alert.Flags).
		Msg("Receipt flagged for review")
	return nil
}

// Nop discards alerts.
type Nop struct{}

func (Nop) NotifyFlagged(context.Context, Alert) error { return nil }
