package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// AuditRepository provides the receipt audit ledger operations.
type AuditRepository interface {
	// InsertAudit appends a single audited receipt to the ledger.
	InsertAudit(ctx context.Context, row *ReceiptAuditRow) error

	// ListAudits returns ledger rows, newest first.
	ListAudits(ctx context.Context, filter AuditFilter) ([]*ReceiptAuditRow, error)

	// FindAuditByChecksum returns the row for an image checksum, or nil if none exists.
	FindAuditByChecksum(ctx context.Context, checksum string) (*ReceiptAuditRow, error)
}

// AuditFilter narrows ListAudits.
type AuditFilter struct {
	// RiskStatus keeps only APPROVED or FLAGGED rows when set.
	RiskStatus string

	// Limit caps the number of rows; zero means DefaultListLimit.
	Limit int
}

// DefaultListLimit bounds unfiltered ledger listings.
const DefaultListLimit = 1000

// TableRef names the ledger table.
type TableRef struct {
	ProjectID string
	Dataset   string
	Table     string
}

// FullName returns the backtick-free project.dataset.table name.
func (t TableRef) FullName() string {
	return fmt.Sprintf("%s.%s.%s", t.ProjectID, t.Dataset, t.Table)
}

// BigQueryAuditRepository is the concrete implementation of AuditRepository.
// It holds a shared BigQuery client for all operations.
type BigQueryAuditRepository struct {
	client *bigquery.Client
	table  TableRef
}

// NewBigQueryAuditRepository creates a repository with its own client.
func NewBigQueryAuditRepository(ctx context.Context, table TableRef) (*BigQueryAuditRepository, error) {
	client, err := bigquery.NewClient(ctx, table.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryAuditRepository: creating client: %w", err)
	}
	return &BigQueryAuditRepository{client: client, table: table}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryAuditRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertAudit delegates to InsertAuditWithClient with the shared client.
func (r *BigQueryAuditRepository) InsertAudit(ctx context.Context, row *ReceiptAuditRow) error {
	return InsertAuditWithClient(ctx, r.client, r.table, row)
}

// ListAudits delegates to ListAuditsWithClient with the shared client.
func (r *BigQueryAuditRepository) ListAudits(ctx context.Context, filter AuditFilter) ([]*ReceiptAuditRow, error) {
	return ListAuditsWithClient(ctx, r.client, r.table, filter)
}

// FindAuditByChecksum delegates to FindAuditByChecksumWithClient with the shared client.
func (r *BigQueryAuditRepository) FindAuditByChecksum(ctx context.Context, checksum string) (*ReceiptAuditRow, error) {
	return FindAuditByChecksumWithClient(ctx, r.client, r.table, checksum)
}

// EnsureSchema creates the dataset and table if they do not exist.
func (r *BigQueryAuditRepository) EnsureSchema(ctx context.Context, location string) error {
	return EnsureSchemaWithClient(ctx, r.client, r.table, location)
}

var _ AuditRepository = (*BigQueryAuditRepository)(nil)
