package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool behind a PostgresStore.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// pgPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore keeps one checkpoint row per crawl id in a single upsert
// table:
//
//	CREATE TABLE checkpoints (
//	    crawl_id   TEXT PRIMARY KEY,
//	    version    INT NOT NULL,
//	    payload    JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool  pgPool
	table string
}

// NewPostgresStore connects to Postgres and returns a Store backed by it.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("checkpoint: postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: connect postgres: %w", err)
	}
	return newPostgresStore(pool, cfg.Table)
}

func newPostgresStore(pool pgPool, table string) (*PostgresStore, error) {
	if table == "" {
		table = "checkpoints"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("checkpoint: invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// Save upserts the checkpoint row for cp's crawl id.
func (s *PostgresStore) Save(ctx context.Context, cp *Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (crawl_id, version, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (crawl_id)
		DO UPDATE SET version = $2, payload = $3, updated_at = $4`, s.table)
	if _, err := s.pool.Exec(ctx, query, cp.CrawlID, cp.Version, payload, cp.CreatedAt); err != nil {
		return fmt.Errorf("checkpoint: upsert row: %w", err)
	}
	return nil
}

// Load reads and validates the checkpoint row for crawlID.
func (s *PostgresStore) Load(ctx context.Context, crawlID string) (*Checkpoint, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE crawl_id = $1`, s.table)
	var payload []byte
	if err := s.pool.QueryRow(ctx, query, crawlID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("checkpoint: select row: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(payload, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Clear deletes the checkpoint row for crawlID.
func (s *PostgresStore) Clear(ctx context.Context, crawlID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE crawl_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, crawlID); err != nil {
		return fmt.Errorf("checkpoint: delete row: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
