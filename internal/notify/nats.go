package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultSubject is the subject flag alerts are published on.
const DefaultSubject = "receipts.flagged"

// publisher is the part of *nats.Conn used for alerts.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes alerts as JSON on a NATS subject.
type NATSNotifier struct {
	pub     publisher
	conn    *nats.Conn
	subject string
}

// NewNATSNotifier wraps an existing connection.
func NewNATSNotifier(conn *nats.Conn, subject string) *NATSNotifier {
	n := newNATSNotifier(conn, subject)
	n.conn = conn
	return n
}

func newNATSNotifier(pub publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{pub: pub, subject: subject}
}

// Connect dials NATS with reconnect handling and returns a notifier owning the connection.
func Connect(url, subject string, log zerolog.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("receipt-auditor"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("notify.Connect: connecting to nats: %w", err)
	}
	return NewNATSNotifier(conn, subject), nil
}

// Subject returns the subject alerts are published on.
func (n *NATSNotifier) Subject() string {
	return n.subject
}

func (n *NATSNotifier) NotifyFlagged(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("NotifyFlagged: encoding alert: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("NotifyFlagged: publishing to %s: %w", n.subject, err)
	}
	return nil
}

// Close drains and closes the owned connection.
func (n *NATSNotifier) Close() {
	if n.conn != nil {
		_ = n.conn.Drain()
	}
}
