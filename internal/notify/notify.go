// Package notify announces freshly published snapshots to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"hotprices/pkg/metadata"
)

// DefaultSubject is the subject snapshot events are published on.
const DefaultSubject = "hotprices.snapshot.published"

// flushTimeout bounds how long Notify waits for the server to acknowledge the publish.
const flushTimeout = 5 * time.Second

// SnapshotEvent describes one published snapshot.
type SnapshotEvent struct {
	RunID       string               `json:"runId"`
	Day         string               `json:"day"`
	Items       int                  `json:"items"`
	Stores      []string             `json:"stores"`
	Files       []metadata.FileEntry `json:"files"`
	PublishedAt time.Time            `json:"publishedAt"`
}

// Notifier sends snapshot events.
type Notifier interface {
	Notify(ctx context.Context, event SnapshotEvent) error
	Close() error
}

// Publisher is the subset of *nats.Conn used by NATSNotifier.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
}

// NATSNotifier publishes JSON events on a NATS subject.
type NATSNotifier struct {
	pub     Publisher
	subject string
}

// Connect dials url and returns a notifier publishing on subject.
func Connect(url, subject string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("hotprices"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return NewNATSNotifier(conn, subject), nil
}

// NewNATSNotifier wraps an existing publisher.
func NewNATSNotifier(pub Publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}

	return &NATSNotifier{pub: pub, subject: subject}
}

// Notify publishes event and waits for the server to process it.
func (n *NATSNotifier) Notify(ctx context.Context, event SnapshotEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	if event.PublishedAt.IsZero() {
		event.PublishedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal snapshot event: %w", err)
	}

	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", n.subject, err)
	}

	timeout := flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	if err := n.pub.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush %s: %w", n.subject, err)
	}

	return nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() error {
	return n.pub.Drain()
}

// Nop is used when no NATS server is configured.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, SnapshotEvent) error { return nil }

// Close implements Notifier.
func (Nop) Close() error { return nil }
