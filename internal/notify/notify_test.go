package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	PublishFunc func(subject string, data []byte) error
}

func (m *MockPublisher) Publish(subject string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(subject, data)
	}
	return nil
}

func flaggedReceipt() *domain.AuditedReceipt {
	return &domain.AuditedReceipt{
		ReceiptID:  "r-1",
		GCSURI:     "gs://receipts/casino.jpg",
		Merchant:   "Casino Royale",
		Date:       "2026-01-01",
		Total:      "8000.00",
		Status:     domain.StatusAudited,
		RiskStatus: "FLAGGED",
		RiskFlags:  []string{"HIGH_VALUE", "NON_COMPLIANT_MERCHANT"},
		AuditedAt:  time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewAlert(t *testing.T) {
	r := flaggedReceipt()
	alert := NewAlert(r)

	assert.Equal(t, "r-1", alert.ReceiptID)
	assert.Equal(t, "8000.00", alert.Total)
	assert.Equal(t, []string{"HIGH_VALUE", "NON_COMPLIANT_MERCHANT"}, alert.Flags)

	r.RiskFlags[0] = "CHANGED"
	assert.Equal(t, "HIGH_VALUE", alert.Flags[0])
}

func TestNATSNotifier_Publishes(t *testing.T) {
	var gotSubject string
	var gotData []byte
	pub := &MockPublisher{PublishFunc: func(subject string, data []byte) error {
		gotSubject = subject
		gotData = data
		return nil
	}}

	n := newNATSNotifier(pub, "")
	require.NoError(t, n.NotifyFlagged(context.Background(), NewAlert(flaggedReceipt())))

	assert.Equal(t, DefaultSubject, gotSubject)
	var decoded Alert
	require.NoError(t, json.Unmarshal(gotData, &decoded))
	assert.Equal(t, "Casino Royale", decoded.Merchant)
	assert.Equal(t, "FLAGGED", decoded.Status)
}

func TestNATSNotifier_PublishError(t *testing.T) {
	pub := &MockPublisher{PublishFunc: func(string, []byte) error {
		return errors.New("nats: connection closed")
	}}

	err := newNATSNotifier(pub, "audit.alerts").NotifyFlagged(context.Background(), Alert{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit.alerts")
}

func TestNATSNotifier_CanceledContext(t *testing.T) {
	called := false
	pub := &MockPublisher{PublishFunc: func(string, []byte) error {
		called = true
		return nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newNATSNotifier(pub, "").NotifyFlagged(ctx, Alert{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestLogNotifier(t *testing.T) {
	buf := &bytes.Buffer{}
	n := LogNotifier{Logger: zerolog.New(buf)}

	require.NoError(t, n.NotifyFlagged(context.Background(), NewAlert(flaggedReceipt())))
	assert.Contains(t, buf.String(), "Receipt flagged for review")
	assert.Contains(t, buf.String(), "HIGH_VALUE")
}
