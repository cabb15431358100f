package domain

import (
	"time"
)

// Ledger status written for every processed receipt.
const StatusAudited = "Audited"

// AuditedReceipt is one receipt after extraction and risk assessment, as it
// is persisted in the audit ledger. Total is an exact decimal string so that
// currency values never round-trip through a binary float in storage.
type AuditedReceipt struct {
	ReceiptID string `json:"receipt_id"`
	Filename  string `json:"filename"`
	GCSURI    string `json:"gcs_uri"`
	Checksum  string `json:"checksum_sha256"`
	FileSize  int64  `json:"file_size"`

	Merchant string `json:"merchant"`
	Date     string `json:"date"`  // canonical YYYY-MM-DD from extraction
	Total    string `json:"total"` // e.g. "50.00"

	Status     string   `json:"status"`
	RiskStatus string   `json:"risk_status"`
	RiskFlags  []string `json:"risk_flags"`

	ExtractedText string `json:"extracted_text,omitempty"`

	UploadedAt time.Time `json:"uploaded_at"`
	AuditedAt  time.Time `json:"audited_at"`
}

// Flagged reports whether the receipt was routed for review.
func (r AuditedReceipt) Flagged() bool {
	return r.RiskStatus == "FLAGGED"
}
