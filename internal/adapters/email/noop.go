package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NoopSender logs messages instead of delivering them. Used when no provider key is configured.
type NoopSender struct {
	mu   sync.Mutex
	sent []Message
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs and records the message.
// POST: Never fails
func (s *NoopSender) Send(_ context.Context, msg Message) (Receipt, error) {
	slog.Info("noop_email_send", "to", msg.To, "subject", msg.Subject)

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	n := len(s.sent)
	s.mu.Unlock()

	now := time.Now()
	return Receipt{
		MessageID: fmt.Sprintf("noop-%d-%d", now.UnixNano(), n),
		SentAt:    now,
	}, nil
}

// Sent returns a copy of every message passed to Send.
func (s *NoopSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
