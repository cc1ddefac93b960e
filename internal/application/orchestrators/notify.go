package orchestrators

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"memberdesk/internal/adapters/email"
	"memberdesk/internal/domain/member"
)

var changeEmail = template.Must(template.New("change").Parse(
	`<p>Member <strong>{{.Member.Name}}</strong> (#{{.Member.ID}}) was {{.Action}}.</p>
<ul><li>Email: {{.Member.Email}}</li><li>Company: {{.Member.Company.Name}}</li></ul>`))

// ChangeNotifier emails a short summary of each member mutation.
type ChangeNotifier struct {
	Sender email.Sender
	From   string
	To     []string
}

var _ Notifier = (*ChangeNotifier)(nil)

// MemberChanged sends one notification email.
// POST: No-op when there are no recipients
func (n *ChangeNotifier) MemberChanged(ctx context.Context, action Action, m member.Member) error {
	if n.Sender == nil || len(n.To) == 0 {
		return nil
	}

	var body bytes.Buffer
	if err := changeEmail.Execute(&body, struct {
		Action Action
		Member member.Member
	}{action, m}); err != nil {
		return fmt.Errorf("render change email: %w", err)
	}

	_, err := n.Sender.Send(ctx, email.Message{
		To:      n.To,
		From:    n.From,
		Subject: fmt.Sprintf("Member %s: %s", action, m.Name),
		HTML:    body.String(),
	})
	return err
}
