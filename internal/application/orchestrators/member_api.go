package orchestrators

import (
	"context"
	"errors"

	"memberdesk/internal/domain/member"
)

// ErrInvalidMember wraps member validation failures so callers can map them to one response.
var ErrInvalidMember = errors.New("invalid member")

// MemberAPI is the remote member service as the orchestrators see it.
type MemberAPI interface {
	ReadAll(ctx context.Context) ([]member.Member, error)
	ReadOne(ctx context.Context, id int) (member.Member, error)
	Create(ctx context.Context, m member.Member) (member.Member, error)
	Update(ctx context.Context, id int, m member.Member) (member.Member, error)
	Delete(ctx context.Context, id int) (member.Member, error)
}

// Notifier is told about every successful mutation.
type Notifier interface {
	MemberChanged(ctx context.Context, action Action, m member.Member) error
}

// Action names a member mutation.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)
