package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/ports"
)

//go:embed schema.sql
var schema string

const lookupChunk = 500

// SQLiteLedger persists delivered item ids in a local SQLite file. Every
// mutation runs in a single transaction, so readers see either the whole
// batch or none of it, and a crash mid-write leaves the previous state intact.
type SQLiteLedger struct {
	db *sql.DB
}

var (
	_ ports.Ledger       = (*SQLiteLedger)(nil)
	_ ports.SourceHealth = (*SQLiteLedger)(nil)
)

// OpenSQLiteLedger opens (or creates) the ledger database at path.
func OpenSQLiteLedger(ctx context.Context, path string) (*SQLiteLedger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// Close releases the database handle.
func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// FilterUnseen returns the items whose id is not in the ledger, preserving
// input order. Repeated ids within the input keep their first occurrence.
// It never writes.
func (l *SQLiteLedger) FilterUnseen(ctx context.Context, items []domain.FeedItem) ([]domain.FeedItem, error) {
	if len(items) == 0 {
		return []domain.FeedItem{}, nil
	}

	ids := lo.Uniq(lo.Map(items, func(item domain.FeedItem, _ int) string { return item.ID }))

	seen, err := l.lookup(ctx, ids)
	if err != nil {
		return nil, &domain.LedgerError{Op: "filter", Err: err}
	}

	unseen := make([]domain.FeedItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		unseen = append(unseen, item)
	}
	return unseen, nil
}

// lookup reads all chunks inside one transaction so they share a snapshot.
func (l *SQLiteLedger) lookup(ctx context.Context, ids []string) (map[string]struct{}, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seen := make(map[string]struct{})
	for _, chunk := range lo.Chunk(ids, lookupChunk) {
		query, args, err := sq.Select("item_id").
			From("delivered_items").
			Where(sq.Eq{"item_id": chunk}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build lookup: %w", err)
		}

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query delivered: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan id: %w", err)
			}
			seen[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("rows iteration: %w", err)
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close rows: %w", err)
		}
	}
	return seen, nil
}

// Commit records the ids of items as delivered at the given time. Ids that
// are already present keep their original delivery time.
func (l *SQLiteLedger) Commit(ctx context.Context, items []domain.FeedItem, at time.Time) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.LedgerError{Op: "commit", Err: fmt.Errorf("begin: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	for _, chunk := range lo.Chunk(items, lookupChunk) {
		insert := sq.Insert("delivered_items").Columns("item_id", "source", "delivered_at")
		for _, item := range chunk {
			insert = insert.Values(item.ID, item.Source, at.Unix())
		}
		query, args, err := insert.Suffix("ON CONFLICT(item_id) DO NOTHING").ToSql()
		if err != nil {
			return &domain.LedgerError{Op: "commit", Err: fmt.Errorf("build insert: %w", err)}
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return &domain.LedgerError{Op: "commit", Err: fmt.Errorf("insert delivered: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.LedgerError{Op: "commit", Err: err}
	}
	return nil
}

// Prune removes entries strictly older than now-retention and reports how
// many were deleted.
func (l *SQLiteLedger) Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, &domain.LedgerError{Op: "prune", Err: errors.New("retention must be positive")}
	}
	cutoff := now.Add(-retention).Unix()

	query, args, err := sq.Delete("delivered_items").
		Where(sq.Lt{"delivered_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, &domain.LedgerError{Op: "prune", Err: err}
	}

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &domain.LedgerError{Op: "prune", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.LedgerError{Op: "prune", Err: err}
	}
	return n, nil
}

// RecordFetch updates the consecutive-empty counter of a source and returns it.
func (l *SQLiteLedger) RecordFetch(ctx context.Context, source string, count int, at time.Time) (int, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sq.Select("empty_streak").
		From("source_health").
		Where(sq.Eq{"source": source}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select: %w", err)
	}

	var streak int
	err = tx.QueryRowContext(ctx, query, args...).Scan(&streak)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read streak: %w", err)
	}

	if count == 0 {
		streak++
	} else {
		streak = 0
	}

	query, args, err = sq.Insert("source_health").
		Columns("source", "empty_streak", "updated_at").
		Values(source, streak, at.Unix()).
		Suffix("ON CONFLICT(source) DO UPDATE SET empty_streak = excluded.empty_streak, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("write streak: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit streak: %w", err)
	}
	return streak, nil
}
