package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS sheet_sessions (
	id          UUID PRIMARY KEY,
	file_name   TEXT        NOT NULL DEFAULT '',
	rows        JSONB,
	filter      TEXT        NOT NULL DEFAULT '',
	edited      BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS sheet_sessions_updated_at_idx ON sheet_sessions (updated_at);`

// Postgres stores records in the sheet_sessions table. Rows are kept as a
// JSONB array of string arrays.
type Postgres struct {
	pool *pgxpool.Pool
}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// OpenPostgres connects to url, applies pc and makes sure the schema exists.
func OpenPostgres(ctx context.Context, url string, pc PoolConfig) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := NewPostgres(pool)
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool. The schema must already exist.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create sheet_sessions: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, r Record) error {
	var rows []byte
	if r.Rows != nil {
		var err error
		rows, err = json.Marshal(r.Rows)
		if err != nil {
			return fmt.Errorf("encode rows: %w", err)
		}
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO sheet_sessions (id, file_name, rows, filter, edited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			file_name  = EXCLUDED.file_name,
			rows       = EXCLUDED.rows,
			filter     = EXCLUDED.filter,
			edited     = EXCLUDED.edited,
			updated_at = EXCLUDED.updated_at`,
		r.ID, r.FileName, rows, r.Filter, r.Edited, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", r.ID, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (Record, error) {
	var (
		r    Record
		rows []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id::text, file_name, rows, filter, edited, created_at, updated_at
		FROM sheet_sessions WHERE id = $1`, id,
	).Scan(&r.ID, &r.FileName, &rows, &r.Filter, &r.Edited, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get session %s: %w", id, err)
	}

	if rows != nil {
		if err := json.Unmarshal(rows, &r.Rows); err != nil {
			return Record{}, fmt.Errorf("decode rows for %s: %w", id, err)
		}
	}
	return r, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM sheet_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sheet_sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
