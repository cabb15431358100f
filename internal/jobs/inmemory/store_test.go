package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/jobs"
)

func TestStore_SaveAndGetReturnCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	job := &jobs.AuditReceiptJob{JobID: "j1", GCSURI: "gs://b/a.jpg", Status: jobs.JobStatusPending}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	job.Status = jobs.JobStatusFailed

	got, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("stored job was modified through caller pointer: %s", got.Status)
	}
}

func TestStore_Errors(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.SaveJob(ctx, &jobs.AuditReceiptJob{}); err == nil {
		t.Error("expected error for missing job ID")
	}
	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob error = %v, want ErrJobNotFound", err)
	}
	if err := s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus error = %v, want ErrJobNotFound", err)
	}
}

func TestStore_ListJobs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []*jobs.AuditReceiptJob{
		{JobID: "a", GCSURI: "gs://b/1.jpg", Status: jobs.JobStatusCompleted},
		{JobID: "b", GCSURI: "gs://b/2.jpg", Status: jobs.JobStatusFailed},
		{JobID: "c", GCSURI: "gs://b/1.jpg", Status: jobs.JobStatusCompleted},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_ = s.SaveJob(ctx, j)
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"by uri", jobs.JobFilter{GCSURI: "gs://b/2.jpg"}, []string{"b"}},
		{"limit", jobs.JobFilter{Limit: 1}, []string{"c"}},
		{"offset", jobs.JobFilter{Offset: 2}, []string{"a"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs: %v", err)
			}
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("got %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.SaveJob(ctx, &jobs.AuditReceiptJob{JobID: "j1", Status: jobs.JobStatusRunning})

	if err := s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	got, _ := s.GetJob(ctx, "j1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("unexpected job: %+v", got)
	}
}
