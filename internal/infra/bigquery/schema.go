package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

// AuditSchema returns the table schema inferred from ReceiptAuditRow.
func AuditSchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(ReceiptAuditRow{})
	if err != nil {
		return nil, fmt.Errorf("AuditSchema: inferring schema: %w", err)
	}
	return schema, nil
}

// EnsureSchemaWithClient creates the ledger dataset and table. Existing
// resources are left untouched.
func EnsureSchemaWithClient(ctx context.Context, client *bigquery.Client, table TableRef, location string) error {
	ds := client.DatasetInProject(table.ProjectID, table.Dataset)
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: location}); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("EnsureSchema: creating dataset %s: %w", table.Dataset, err)
	}

	schema, err := AuditSchema()
	if err != nil {
		return err
	}

	meta := &bigquery.TableMetadata{
		Name:        table.Table,
		Description: "Audited receipts with extracted fields and risk assessment",
		Schema:      schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "audited_ts",
		},
	}
	if err := ds.Table(table.Table).Create(ctx, meta); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("EnsureSchema: creating table %s: %w", table.Table, err)
	}

	return nil
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
