package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/receipt-auditor/internal/jobs"
)

// NewJobHandler returns a queue handler that audits AuditReceiptJobs.
// Images without text fail permanently; other errors are retried by the queue.
func NewJobHandler(deps Deps) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		auditJob, ok := job.(*jobs.AuditReceiptJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		log := deps.Logger.With().Str("job_id", auditJob.JobID).Logger()
		log.Info().Str("gcs_uri", auditJob.GCSURI).Msg("Processing audit job")

		jobDeps := deps
		jobDeps.Logger = log
		state, err := AuditReceiptFromGCS(ctx, auditJob.GCSURI, jobDeps)
		if err != nil {
			if errors.Is(err, ErrNoText) {
				return jobs.Permanent(err)
			}
			return err
		}

		auditJob.Duplicate = state.Skipped
		if state.Receipt != nil {
			auditJob.ReceiptID = state.Receipt.ReceiptID
			auditJob.RiskStatus = state.Receipt.RiskStatus
		}
		return nil
	}
}
