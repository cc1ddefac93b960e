package member

import (
	"context"
	"errors"

	domain "memberdesk/internal/domain/member"
)

// Store errors
var (
	ErrNotFound    = errors.New("member not found")
	ErrDuplicateID = errors.New("member id already exists")
)

// Store persists Member state for the stand-in users service.
type Store interface {
	List(ctx context.Context) ([]domain.Member, error)
	GetByID(ctx context.Context, id int) (domain.Member, error)
	Insert(ctx context.Context, value domain.Member) (domain.Member, error)
	Update(ctx context.Context, value domain.Member) error
	Delete(ctx context.Context, id int) (domain.Member, error)
	Count(ctx context.Context) (int, error)
}

var _ Store = (*SQLiteStore)(nil)
