package pipeline

import (
	"context"

	infra "github.com/dvloznov/receipt-auditor/internal/infra/bigquery"
)

// StorageService is the part of receipt storage the pipeline reads from.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// AuditStore is the part of the audit ledger the pipeline writes to.
// infra.AuditRepository satisfies it.
type AuditStore interface {
	InsertAudit(ctx context.Context, row *infra.ReceiptAuditRow) error
	FindAuditByChecksum(ctx context.Context, checksum string) (*infra.ReceiptAuditRow, error)
}
