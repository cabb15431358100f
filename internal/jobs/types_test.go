package jobs

import (
	"errors"
	"fmt"
	"testing"
)

func TestPermanent(t *testing.T) {
	base := errors.New("no text")

	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should be nil")
	}

	err := fmt.Errorf("handler: %w", Permanent(base))
	if !IsPermanent(err) {
		t.Error("wrapped permanent error not detected")
	}
	if !errors.Is(err, base) {
		t.Error("permanent error should unwrap to its cause")
	}
	if IsPermanent(base) {
		t.Error("plain error reported as permanent")
	}
}

func TestAuditReceiptJob_Job(t *testing.T) {
	var j Job = &AuditReceiptJob{JobID: "j1", Status: JobStatusPending}

	if j.GetID() != "j1" || j.GetType() != JobTypeAuditReceipt || j.GetStatus() != JobStatusPending {
		t.Errorf("unexpected job accessors: %s %s %s", j.GetID(), j.GetType(), j.GetStatus())
	}
}
