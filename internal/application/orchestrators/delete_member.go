package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"memberdesk/internal/domain/member"
)

// DeleteMemberInput names the member to remove.
type DeleteMemberInput struct {
	ID int
}

// DeleteMemberDeps holds dependencies for DeleteMember.
type DeleteMemberDeps struct {
	API      MemberAPI
	Notifier Notifier // optional
}

// ExecuteDeleteMember removes a member. There is no confirmation step.
// PRE: input.ID > 0
// POST: Returns the removed record as reported by the remote
func ExecuteDeleteMember(ctx context.Context, input DeleteMemberInput, deps DeleteMemberDeps) (member.Member, error) {
	if input.ID <= 0 {
		return member.Member{}, member.ErrInvalidID
	}

	removed, err := deps.API.Delete(ctx, input.ID)
	if err != nil {
		return member.Member{}, fmt.Errorf("delete member %d: %w", input.ID, err)
	}
	if removed.ID == 0 {
		removed.ID = input.ID
	}

	slog.Info("member_event", "action", ActionDeleted, "member_id", input.ID)
	notify(ctx, deps.Notifier, ActionDeleted, removed)
	return removed, nil
}
