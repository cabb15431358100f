package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const auditColumns = `
			receipt_id,
			filename,
			gcs_uri,
			checksum_sha256,
			file_size,
			merchant,
			receipt_date,
			total,
			status,
			risk_status,
			risk_flags,
			extracted_text,
			upload_ts,
			audited_ts`

// InsertAuditWithClient streams one ledger row into the audit table.
func InsertAuditWithClient(ctx context.Context, client *bigquery.Client, table TableRef, row *ReceiptAuditRow) error {
	if row == nil {
		return fmt.Errorf("InsertAudit: nil row")
	}

	inserter := client.DatasetInProject(table.ProjectID, table.Dataset).Table(table.Table).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertAudit: inserting row %s: %w", row.ReceiptID, err)
	}

	return nil
}

// ListAuditsWithClient reads ledger rows newest first, optionally filtered by risk status.
func ListAuditsWithClient(ctx context.Context, client *bigquery.Client, table TableRef, filter AuditFilter) ([]*ReceiptAuditRow, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	where := ""
	params := []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}
	if filter.RiskStatus != "" {
		where = "WHERE risk_status = @risk_status"
		params = append(params, bigquery.QueryParameter{Name: "risk_status", Value: filter.RiskStatus})
	}

	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM `+"`%s`"+`
		%s
		ORDER BY audited_ts DESC
		LIMIT @limit
	`, auditColumns, table.FullName(), where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAudits: query read: %w", err)
	}

	var rows []*ReceiptAuditRow
	for {
		var r ReceiptAuditRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAudits: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// FindAuditByChecksumWithClient returns the ledger row for an image checksum.
// Returns nil if the image has not been audited yet.
func FindAuditByChecksumWithClient(ctx context.Context, client *bigquery.Client, table TableRef, checksum string) (*ReceiptAuditRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM `+"`%s`"+`
		WHERE checksum_sha256 = @checksum
		LIMIT 1
	`, auditColumns, table.FullName()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "checksum", Value: checksum},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindAuditByChecksum: reading query: %w", err)
	}

	var row ReceiptAuditRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindAuditByChecksum: reading row: %w", err)
	}

	return &row, nil
}
