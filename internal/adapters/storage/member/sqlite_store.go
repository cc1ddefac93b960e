package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"memberdesk/internal/adapters/storage"
	domain "memberdesk/internal/domain/member"
)

const selectColumns = "SELECT id, name, email, company_name FROM member"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new member store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (domain.Member, error) {
	var entity domain.Member
	err := row.Scan(&entity.ID, &entity.Name, &entity.Email, &entity.Company.Name)
	return entity, err
}

// List returns all members ordered by id.
// POST: Returns an empty, non-nil slice when the table is empty
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.Member{}
	for rows.Next() {
		entity, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// GetByID retrieves a Member by its ID.
// PRE: id > 0
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id int) (domain.Member, error) {
	entity, err := scanMember(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return entity, err
}

// Insert stores a new member. A zero ID is assigned max(id)+1 inside the same transaction.
// PRE: entity has been validated
// POST: Returns the stored entity; ErrDuplicateID if entity.ID is taken
func (s *SQLiteStore) Insert(ctx context.Context, entity domain.Member) (domain.Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Member{}, err
	}
	defer tx.Rollback()

	if entity.ID <= 0 {
		var maxID sql.NullInt64
		if err := tx.QueryRowContext(ctx, "SELECT MAX(id) FROM member").Scan(&maxID); err != nil {
			return domain.Member{}, err
		}
		entity.ID = int(maxID.Int64) + 1
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO member (id, name, email, company_name) VALUES (?, ?, ?, ?)",
		entity.ID, entity.Name, entity.Email, entity.Company.Name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Member{}, fmt.Errorf("member %d: %w", entity.ID, ErrDuplicateID)
		}
		return domain.Member{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Member{}, err
	}
	return entity, nil
}

// Update replaces the stored fields of an existing member.
// PRE: entity.ID > 0, entity has been validated
// POST: Returns ErrNotFound if no row has entity.ID
func (s *SQLiteStore) Update(ctx context.Context, entity domain.Member) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE member SET name = ?, email = ?, company_name = ? WHERE id = ?",
		entity.Name, entity.Email, entity.Company.Name, entity.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("member %d: %w", entity.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a member and returns the removed record.
// PRE: id > 0
// POST: Returns ErrNotFound if no row has id
func (s *SQLiteStore) Delete(ctx context.Context, id int) (domain.Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Member{}, err
	}
	defer tx.Rollback()

	entity, err := scanMember(tx.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Member{}, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM member WHERE id = ?", id); err != nil {
		return domain.Member{}, err
	}
	return entity, tx.Commit()
}

// Count returns the number of stored members.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM member").Scan(&count)
	return count, err
}

// isUniqueViolation matches SQLite's primary key / unique constraint failures.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
