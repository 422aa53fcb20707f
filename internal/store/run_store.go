package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// RunStore — хранилище истории runs и результатов jobs.
//
// Оркестрация работает в памяти; между runs во внешнем хранилище
// живут только записи runs, результаты jobs и их логи.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore создаёт новый RunStore.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// SaveRun вставляет или обновляет запись run.
func (s *RunStore) SaveRun(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, pipeline, source, status, started_at, finished_at, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET status = $4, started_at = $5, finished_at = $6, error = $7
	`
	_, err := s.pool.Exec(ctx, query,
		run.ID,
		run.Pipeline,
		run.Source,
		run.Status,
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// SaveJobResult сохраняет терминальный результат job вместе
// с полным combined-логом.
func (s *RunStore) SaveJobResult(ctx context.Context, runID uuid.UUID, res *domain.JobResult, log string) error {
	query := `
		INSERT INTO job_results (run_id, job, stage, status, allowed, exit_code,
		                         failure_kind, error, log, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, job) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		runID,
		res.Job,
		res.Stage,
		res.Status,
		res.Allowed,
		res.ExitCode,
		nullString(string(res.FailureKind)),
		nullString(res.Error),
		nullString(log),
		res.StartedAt,
		res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save job result: %w", err)
	}
	return nil
}

// GetRun возвращает run по ID.
func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, pipeline, source, status, started_at, finished_at, error, created_at
		FROM runs
		WHERE id = $1
	`
	return scanRun(s.pool.QueryRow(ctx, query, id))
}

// ListRuns возвращает последние runs, новые первыми.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `
		SELECT id, pipeline, source, status, started_at, finished_at, error, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListJobResults возвращает результаты jobs run'а без полных логов.
func (s *RunStore) ListJobResults(ctx context.Context, runID uuid.UUID) ([]domain.JobResult, error) {
	query := `
		SELECT job, stage, status, allowed, exit_code, failure_kind, error, started_at, finished_at
		FROM job_results
		WHERE run_id = $1
		ORDER BY started_at ASC NULLS LAST
	`
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list job results: %w", err)
	}
	defer rows.Close()

	var results []domain.JobResult
	for rows.Next() {
		var res domain.JobResult
		var failureKind, resError *string

		err := rows.Scan(
			&res.Job,
			&res.Stage,
			&res.Status,
			&res.Allowed,
			&res.ExitCode,
			&failureKind,
			&resError,
			&res.StartedAt,
			&res.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job result: %w", err)
		}
		if failureKind != nil {
			res.FailureKind = domain.FailureKind(*failureKind)
		}
		if resError != nil {
			res.Error = *resError
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// GetJobLog возвращает полный combined-лог одного job.
func (s *RunStore) GetJobLog(ctx context.Context, runID uuid.UUID, job string) (string, error) {
	query := `SELECT log FROM job_results WHERE run_id = $1 AND job = $2`

	var log *string
	err := s.pool.QueryRow(ctx, query, runID, job).Scan(&log)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get job log: %w", err)
	}
	if log == nil {
		return "", nil
	}
	return *log, nil
}

// scanRun сканирует одну строку в Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var runError *string

	err := row.Scan(
		&run.ID,
		&run.Pipeline,
		&run.Source,
		&run.Status,
		&run.StartedAt,
		&run.FinishedAt,
		&runError,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if runError != nil {
		run.Error = *runError
	}
	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
