package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is the subset of *sql.DB and *sql.Tx the Postgres store needs.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
	PingContext(context.Context) error
}

// PostgresStore keeps attributes in the entity_meta table.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a Store backed by Postgres.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

const getMeta = `SELECT value FROM entity_meta
WHERE namespace = $1 AND entity_id = $2 AND field = $3`

func (s *PostgresStore) Get(ctx context.Context, key Key) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	var v int64
	err := s.db.QueryRowContext(ctx, getMeta, key.Namespace, key.ID, key.Field).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

const setMeta = `INSERT INTO entity_meta (namespace, entity_id, field, value)
VALUES ($1, $2, $3, $4)
ON CONFLICT (namespace, entity_id, field)
DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

func (s *PostgresStore) Set(ctx context.Context, key Key, value int64) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, setMeta, key.Namespace, key.ID, key.Field, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

const deleteMeta = `DELETE FROM entity_meta
WHERE namespace = $1 AND entity_id = $2 AND field = $3`

func (s *PostgresStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, deleteMeta, key.Namespace, key.ID, key.Field); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

const incrementMeta = `INSERT INTO entity_meta (namespace, entity_id, field, value)
VALUES ($1, $2, $3, 1)
ON CONFLICT (namespace, entity_id, field)
DO UPDATE SET value = entity_meta.value + 1, updated_at = NOW()
RETURNING value`

func (s *PostgresStore) Increment(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	var v int64
	if err := s.db.QueryRowContext(ctx, incrementMeta, key.Namespace, key.ID, key.Field).Scan(&v); err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return v, nil
}

// The conflict branch only fires while the stored value is below the
// limit, so the row lock taken by ON CONFLICT serializes concurrent callers.
const incrementMetaIfBelow = `INSERT INTO entity_meta (namespace, entity_id, field, value)
VALUES ($1, $2, $3, 1)
ON CONFLICT (namespace, entity_id, field)
DO UPDATE SET value = entity_meta.value + 1, updated_at = NOW()
WHERE entity_meta.value < $4
RETURNING value`

func (s *PostgresStore) IncrementIfBelow(ctx context.Context, key Key, limit int64) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	if limit <= 0 {
		v, _, err := s.Get(ctx, key)
		return v, false, err
	}

	var v int64
	err := s.db.QueryRowContext(ctx, incrementMetaIfBelow, key.Namespace, key.ID, key.Field, limit).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		current, _, err := s.Get(ctx, key)
		return current, false, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment %s below %d: %w", key, limit, err)
	}
	return v, true, nil
}

const decrementMeta = `UPDATE entity_meta SET value = value - 1, updated_at = NOW()
WHERE namespace = $1 AND entity_id = $2 AND field = $3 AND value > 0
RETURNING value`

const purgeMeta = `DELETE FROM entity_meta
WHERE namespace = $1 AND entity_id = $2 AND field = $3 AND value <= 0`

func (s *PostgresStore) Decrement(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	var v int64
	err := s.db.QueryRowContext(ctx, decrementMeta, key.Namespace, key.ID, key.Field).Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("decrement %s: %w", key, err)
	}
	if v > 0 {
		return v, nil
	}
	if _, err := s.db.ExecContext(ctx, purgeMeta, key.Namespace, key.ID, key.Field); err != nil {
		return 0, fmt.Errorf("decrement %s: %w", key, err)
	}
	return 0, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
