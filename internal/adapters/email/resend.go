package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// ErrNoRecipients is returned when a message has no To addresses.
var ErrNoRecipients = errors.New("email has no recipients")

// ResendSender sends email via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender with the given API key and default from address.
// PRE: apiKey is a valid Resend API key; from is a valid sender address
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// request converts a Message into Resend's request shape.
func (s *ResendSender) request(msg Message) (*resend.SendEmailRequest, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}
	from := msg.From
	if from == "" {
		from = s.from
	}
	return &resend.SendEmailRequest{
		From:    from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}, nil
}

// Send delivers one message.
// POST: Returns the Resend message ID on success
func (s *ResendSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	params, err := s.request(msg)
	if err != nil {
		return Receipt{}, err
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		slog.Error("resend_send_failed", "error", err, "to", msg.To, "subject", msg.Subject)
		return Receipt{}, fmt.Errorf("resend send failed: %w", err)
	}

	slog.Info("resend_sent", "message_id", sent.Id, "to", msg.To, "subject", msg.Subject)
	return Receipt{
		MessageID: sent.Id,
		SentAt:    time.Now(),
	}, nil
}
