package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
)

// DefaultTable is the table created by the embedded migrations.
const DefaultTable = "kv_entries"

// SQLStore keeps entries in a postgres table. Expired rows are invisible to
// Get and removed by PurgeExpired.
type SQLStore struct {
	db     *sql.DB
	table  string
	psql   sq.StatementBuilderType
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ ports.KVStore  = (*SQLStore)(nil)
	_ ports.KVPurger = (*SQLStore)(nil)
)

// NewSQLStore creates a store over db using table
func NewSQLStore(db *sql.DB, table string, logger *slog.Logger) *SQLStore {
	if table == "" {
		table = DefaultTable
	}
	return &SQLStore{
		db:     db,
		table:  table,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db),
		logger: logger.With(slog.String("component", "kv_sql")),
		now:    time.Now,
	}
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.psql.Select("value").
		From(s.table).
		Where(sq.Eq{"key": key}).
		Where(sq.Or{sq.Eq{"expires_at": nil}, sq.Gt{"expires_at": s.now().UTC()}}).
		QueryRowContext(ctx).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value; a zero ttl stores the row without expiry.
func (s *SQLStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now().UTC()
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}

	_, err := s.psql.Insert(s.table).
		Columns("key", "value", "expires_at", "updated_at").
		Values(key, value, expiresAt, now).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at").
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.psql.Delete(s.table).Where(sq.Eq{"key": key}).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// PurgeExpired deletes rows whose expiry has passed and returns how many
// were removed.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.psql.Delete(s.table).
		Where(sq.NotEq{"expires_at": nil}).
		Where(sq.LtOrEq{"expires_at": s.now().UTC()}).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged entries: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Purged expired entries", slog.Int64("count", n))
	}
	return n, nil
}
