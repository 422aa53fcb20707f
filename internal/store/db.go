package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool создаёт пул соединений PostgreSQL и проверяет доступность БД.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// EnsureSchema создаёт таблицы истории runs, если их ещё нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id          uuid PRIMARY KEY,
			pipeline    text NOT NULL,
			source      text NOT NULL,
			status      text NOT NULL,
			started_at  timestamptz,
			finished_at timestamptz,
			error       text,
			created_at  timestamptz NOT NULL
		);

		CREATE TABLE IF NOT EXISTS job_results (
			run_id       uuid NOT NULL REFERENCES runs (id),
			job          text NOT NULL,
			stage        text NOT NULL,
			status       text NOT NULL,
			allowed      boolean NOT NULL DEFAULT false,
			exit_code    integer NOT NULL DEFAULT 0,
			failure_kind text,
			error        text,
			log          text,
			started_at   timestamptz,
			finished_at  timestamptz,
			PRIMARY KEY (run_id, job)
		);

		CREATE INDEX IF NOT EXISTS runs_pipeline_created_idx
			ON runs (pipeline, created_at DESC);
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
