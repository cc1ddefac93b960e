package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"memberdesk/internal/adapters/http/perf"
)

// SQLDB is the database interface used by all stores.
// Both *sql.DB and *TimedDB satisfy this interface.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var _ SQLDB = (*sql.DB)(nil)

// DefaultSlowQueryMs is the default threshold for slow query warnings.
const DefaultSlowQueryMs = 50

// TimedDB wraps a *sql.DB, logging each statement and recording it to an optional collector.
type TimedDB struct {
	db        *sql.DB
	collector *perf.Collector
	threshold float64
}

var _ SQLDB = (*TimedDB)(nil)

// NewTimedDB wraps a *sql.DB with timing instrumentation.
// PRE: db is a valid database connection
// POST: Returns a TimedDB that logs queries slower than slowMs (DefaultSlowQueryMs when <= 0)
func NewTimedDB(db *sql.DB, collector *perf.Collector, slowMs int) *TimedDB {
	if slowMs <= 0 {
		slowMs = DefaultSlowQueryMs
	}
	return &TimedDB{
		db:        db,
		collector: collector,
		threshold: float64(slowMs),
	}
}

// RawDB returns the underlying *sql.DB (needed for migrations).
func (t *TimedDB) RawDB() *sql.DB {
	return t.db
}

// statementLabel reduces a query to its verb and table, e.g. "SELECT member".
// The label is the collector path, so every call site of one statement shares a row in /debug/perf.
func statementLabel(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "EMPTY"
	}
	verb := strings.ToUpper(fields[0])
	var marker string
	switch verb {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT", "REPLACE":
		marker = "INTO"
	case "UPDATE":
		if len(fields) > 1 {
			return verb + " " + fields[1]
		}
		return verb
	default:
		return verb
	}
	for i := 1; i < len(fields)-1; i++ {
		if strings.EqualFold(fields[i], marker) {
			return verb + " " + strings.Trim(fields[i+1], "(`\"")
		}
	}
	return verb
}

func (t *TimedDB) observe(label string, start time.Time, err error) {
	ms := float64(time.Since(start).Microseconds()) / 1000.0
	failed := err != nil && !errors.Is(err, sql.ErrNoRows)

	level, event := slog.LevelDebug, "query"
	if ms >= t.threshold {
		level, event = slog.LevelWarn, "slow_query"
	}
	slog.Log(context.Background(), level, event, "statement", label, "duration_ms", ms, "failed", failed)

	if t.collector != nil {
		t.collector.Record(perf.Entry{
			Kind:       perf.KindQuery,
			Path:       label,
			DurationMs: ms,
			Timestamp:  start,
		})
	}
}

// ExecContext runs a statement and times it.
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	t.observe(statementLabel(query), start, err)
	return result, err
}

// QueryContext runs a query and times it up to the first row.
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.observe(statementLabel(query), start, err)
	return rows, err
}

// QueryRowContext runs a single-row query and times it.
// Scan errors surface later and are not visible here.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.observe(statementLabel(query), start, row.Err())
	return row
}

// BeginTx starts a transaction. Statements inside it are not timed individually.
func (t *TimedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	start := time.Now()
	tx, err := t.db.BeginTx(ctx, opts)
	t.observe("BEGIN", start, err)
	return tx, err
}

// Close closes the underlying database connection.
func (t *TimedDB) Close() error {
	return t.db.Close()
}
