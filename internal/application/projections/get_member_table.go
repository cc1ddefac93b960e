package projections

import (
	"context"
	"fmt"

	"memberdesk/internal/domain/member"
)

// MemberReader is the read side of the remote member service.
type MemberReader interface {
	ReadAll(ctx context.Context) ([]member.Member, error)
	ReadOne(ctx context.Context, id int) (member.Member, error)
}

// GetMemberTableQuery carries query parameters. The table is never filtered.
type GetMemberTableQuery struct{}

// GetMemberTableResult carries the query result.
type GetMemberTableResult struct {
	Members []member.Member
	Count   int
}

// GetMemberTableDeps holds dependencies for GetMemberTable.
type GetMemberTableDeps struct {
	Reader MemberReader
}

// QueryGetMemberTable fetches every member for the table.
// POST: Members keeps the remote order; Count == len(Members)
func QueryGetMemberTable(ctx context.Context, _ GetMemberTableQuery, deps GetMemberTableDeps) (GetMemberTableResult, error) {
	members, err := deps.Reader.ReadAll(ctx)
	if err != nil {
		return GetMemberTableResult{}, fmt.Errorf("load member table: %w", err)
	}
	if members == nil {
		members = []member.Member{}
	}
	return GetMemberTableResult{Members: members, Count: len(members)}, nil
}

// GetMemberForEditQuery names the member being edited.
type GetMemberForEditQuery struct {
	ID int
}

// GetMemberForEditDeps holds dependencies for GetMemberForEdit.
type GetMemberForEditDeps struct {
	Reader MemberReader
}

// QueryGetMemberForEdit loads the editable fields of one member.
// PRE: query.ID > 0
// POST: Returns the current values to prefill the edit form
func QueryGetMemberForEdit(ctx context.Context, query GetMemberForEditQuery, deps GetMemberForEditDeps) (member.Patch, error) {
	if query.ID <= 0 {
		return member.Patch{}, member.ErrInvalidID
	}
	m, err := deps.Reader.ReadOne(ctx, query.ID)
	if err != nil {
		return member.Patch{}, fmt.Errorf("load member %d for edit: %w", query.ID, err)
	}
	return member.PatchOf(m), nil
}
