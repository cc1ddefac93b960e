package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"memberdesk/internal/domain/member"
)

// CreateMemberInput carries the fields typed into the add form.
type CreateMemberInput struct {
	Values member.Patch
}

// CreateMemberDeps holds dependencies for CreateMember.
type CreateMemberDeps struct {
	API      MemberAPI
	Notifier Notifier // optional
}

// ExecuteCreateMember validates the new member, assigns the next id and submits it.
// PRE: input.Values comes from one add form submission
// POST: Member created remotely with id max(existing)+1
// INVARIANT: Two concurrent creates may compute the same id; the remote service decides
func ExecuteCreateMember(ctx context.Context, input CreateMemberInput, deps CreateMemberDeps) (member.Member, error) {
	m := input.Values.Apply(member.Member{})
	if err := m.Validate(); err != nil {
		return member.Member{}, fmt.Errorf("%w: %w", ErrInvalidMember, err)
	}

	existing, err := deps.API.ReadAll(ctx)
	if err != nil {
		return member.Member{}, fmt.Errorf("list members before create: %w", err)
	}
	m.ID = member.NextID(existing)

	created, err := deps.API.Create(ctx, m)
	if err != nil {
		return member.Member{}, fmt.Errorf("create member %d: %w", m.ID, err)
	}
	if created.ID == 0 {
		created = m
	}

	slog.Info("member_event", "action", ActionCreated, "member_id", created.ID)
	notify(ctx, deps.Notifier, ActionCreated, created)
	return created, nil
}

// notify reports a mutation. Failures are logged and never returned.
func notify(ctx context.Context, n Notifier, action Action, m member.Member) {
	if n == nil {
		return
	}
	if err := n.MemberChanged(ctx, action, m); err != nil {
		slog.Warn("member_notify_failed", "action", action, "member_id", m.ID, "error", err)
	}
}
