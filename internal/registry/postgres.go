package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/ivengine/internal/model"
)

// Schema creates the registry tables.
const Schema = `
CREATE TABLE IF NOT EXISTS engine_params (
	key        TEXT PRIMARY KEY,
	value      BIGINT NOT NULL CHECK (value >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cdf_datapoints (
	bucket      BIGINT PRIMARY KEY CHECK (bucket >= 0),
	probability BIGINT NOT NULL CHECK (probability BETWEEN 0 AND 100000),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a PostgresStore on db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the registry tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create registry schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Uint(ctx context.Context, key string) (uint64, error) {
	var value int64
	err := s.db.QueryRow(ctx, `SELECT value FROM engine_params WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", key, err)
	}
	return uint64(value), nil
}

func (s *PostgresStore) SetUint(ctx context.Context, key string, value uint64) error {
	if value > 1<<63-1 {
		return fmt.Errorf("set %s: value %d exceeds bigint", key, value)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO engine_params (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, int64(value))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) DataPoints(ctx context.Context) ([]model.DataPoint, error) {
	rows, err := s.db.Query(ctx, `SELECT bucket, probability FROM cdf_datapoints ORDER BY bucket`)
	if err != nil {
		return nil, fmt.Errorf("query data points: %w", err)
	}

	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.DataPoint, error) {
		var p model.DataPoint
		err := row.Scan(&p.Bucket, &p.Probability)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan data points: %w", err)
	}
	return points, nil
}

// PutDataPoints upserts points in a single batch.
func (s *PostgresStore) PutDataPoints(ctx context.Context, points []model.DataPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO cdf_datapoints (bucket, probability, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (bucket) DO UPDATE SET probability = EXCLUDED.probability, updated_at = EXCLUDED.updated_at
		`, p.Bucket, p.Probability)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, p := range points {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert bucket %d: %w", p.Bucket, err)
		}
	}
	return nil
}
