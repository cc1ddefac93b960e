package usersphp

import (
	"context"
	"fmt"
	"log/slog"

	memberStore "memberdesk/internal/adapters/storage/member"
	"memberdesk/internal/domain/member"
)

// DefaultMembers is the sample data loaded into an empty store.
var DefaultMembers = []member.Member{
	{ID: 1, Name: "Ann Lavigne", Email: "ann@acme.test", Company: member.Company{Name: "Acme"}},
	{ID: 2, Name: "Bruno Keller", Email: "bruno@globex.test", Company: member.Company{Name: "Globex"}},
	{ID: 3, Name: "Chloé Martin", Email: "chloe@initech.test", Company: member.Company{Name: "Initech"}},
}

// SeedDefaults inserts DefaultMembers when the store is empty.
// POST: Returns the number of members inserted (0 if the store already had data)
func SeedDefaults(ctx context.Context, store memberStore.Store) (int, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	for _, m := range DefaultMembers {
		if _, err := store.Insert(ctx, m); err != nil {
			return 0, fmt.Errorf("seed member %d: %w", m.ID, err)
		}
	}
	slog.Info("usersapi_seeded", "count", len(DefaultMembers))
	return len(DefaultMembers), nil
}
