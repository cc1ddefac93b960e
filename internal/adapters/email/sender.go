package email

import (
	"context"
	"time"
)

// Message is one outgoing email.
type Message struct {
	To      []string // Recipient email addresses
	From    string   // Sender address; empty uses the sender's default
	Subject string
	HTML    string
}

// Receipt is what the provider reports for an accepted message.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers email through an external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
