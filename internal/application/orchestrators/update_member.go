package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"memberdesk/internal/domain/member"
)

// UpdateMemberInput carries the edited fields for one member.
type UpdateMemberInput struct {
	ID     int
	Values member.Patch
}

// UpdateMemberDeps holds dependencies for UpdateMember.
type UpdateMemberDeps struct {
	API      MemberAPI
	Notifier Notifier // optional
}

// ExecuteUpdateMember merges the edit into the current record and submits it.
// PRE: input.ID > 0
// POST: Remote record replaced; id unchanged
func ExecuteUpdateMember(ctx context.Context, input UpdateMemberInput, deps UpdateMemberDeps) (member.Member, error) {
	if input.ID <= 0 {
		return member.Member{}, member.ErrInvalidID
	}

	original, err := deps.API.ReadOne(ctx, input.ID)
	if err != nil {
		return member.Member{}, fmt.Errorf("read member %d: %w", input.ID, err)
	}

	merged := input.Values.Apply(original)
	merged.ID = input.ID
	if err := merged.Validate(); err != nil {
		return member.Member{}, fmt.Errorf("%w: %w", ErrInvalidMember, err)
	}

	updated, err := deps.API.Update(ctx, input.ID, merged)
	if err != nil {
		return member.Member{}, fmt.Errorf("update member %d: %w", input.ID, err)
	}
	if updated.ID == 0 {
		updated = merged
	}

	slog.Info("member_event", "action", ActionUpdated, "member_id", input.ID)
	notify(ctx, deps.Notifier, ActionUpdated, updated)
	return updated, nil
}
