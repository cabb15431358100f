package bigquery

import (
	"strconv"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/domain"
)

// ReceiptAuditRow is one row of the receipt audit ledger table.
type ReceiptAuditRow struct {
	ReceiptID      string `bigquery:"receipt_id"`      // REQUIRED
	Filename       string `bigquery:"filename"`        // NULLABLE
	GCSURI         string `bigquery:"gcs_uri"`         // REQUIRED
	ChecksumSHA256 string `bigquery:"checksum_sha256"` // REQUIRED, dedup key
	FileSize       int64  `bigquery:"file_size"`       // NULLABLE

	Merchant string `bigquery:"merchant"` // REQUIRED
	// STRING, not DATE: extraction does not calendar-check and may emit "2024-02-31".
	ReceiptDate string `bigquery:"receipt_date"`
	Total       string `bigquery:"total"` // exact decimal STRING

	Status     string   `bigquery:"status"`      // always "Audited"
	RiskStatus string   `bigquery:"risk_status"` // APPROVED | FLAGGED
	RiskFlags  []string `bigquery:"risk_flags"`  // REPEATED STRING

	ExtractedText string `bigquery:"extracted_text"` // NULLABLE

	UploadTS  time.Time `bigquery:"upload_ts"`  // REQUIRED
	AuditedTS time.Time `bigquery:"audited_ts"` // REQUIRED
}

// FormatAmount renders an extracted total as a two-decimal string.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// RowFromReceipt maps a domain receipt onto a ledger row.
func RowFromReceipt(r *domain.AuditedReceipt) *ReceiptAuditRow {
	return &ReceiptAuditRow{
		ReceiptID:      r.ReceiptID,
		Filename:       r.Filename,
		GCSURI:         r.GCSURI,
		ChecksumSHA256: r.Checksum,
		FileSize:       r.FileSize,
		Merchant:       r.Merchant,
		ReceiptDate:    r.Date,
		Total:          r.Total,
		Status:         r.Status,
		RiskStatus:     r.RiskStatus,
		RiskFlags:      append([]string(nil), r.RiskFlags...),
		ExtractedText:  r.ExtractedText,
		UploadTS:       r.UploadedAt,
		AuditedTS:      r.AuditedAt,
	}
}

// ToReceipt maps a ledger row back onto the domain type.
func (row *ReceiptAuditRow) ToReceipt() *domain.AuditedReceipt {
	return &domain.AuditedReceipt{
		ReceiptID:     row.ReceiptID,
		Filename:      row.Filename,
		GCSURI:        row.GCSURI,
		Checksum:      row.ChecksumSHA256,
		FileSize:      row.FileSize,
		Merchant:      row.Merchant,
		Date:          row.ReceiptDate,
		Total:         row.Total,
		Status:        row.Status,
		RiskStatus:    row.RiskStatus,
		RiskFlags:     append([]string(nil), row.RiskFlags...),
		ExtractedText: row.ExtractedText,
		UploadedAt:    row.UploadTS,
		AuditedAt:     row.AuditedTS,
	}
}
