package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akorzh/Conveyor/internal/domain"
)

// JobRepo — репозиторий для работы с jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Create создаёт новый job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	specJSON, err := json.Marshal(job.Spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	query := `
		INSERT INTO jobs (id, build_id, name, status, spec, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.BuildID,
		job.Name,
		job.Status,
		specJSON,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, build_id, name, status, spec, steps, tests, log_ref,
		       started_at, finished_at, error, created_at
		FROM jobs
		WHERE id = $1
	`
	return r.scanJob(r.pool.QueryRow(ctx, query, id))
}

// GetByBuildAndName возвращает job по build_id и имени.
func (r *JobRepo) GetByBuildAndName(ctx context.Context, buildID uuid.UUID, name string) (*domain.Job, error) {
	query := `
		SELECT id, build_id, name, status, spec, steps, tests, log_ref,
		       started_at, finished_at, error, created_at
		FROM jobs
		WHERE build_id = $1 AND name = $2
	`
	return r.scanJob(r.pool.QueryRow(ctx, query, buildID, name))
}

// ListByBuildID возвращает все jobs build.
func (r *JobRepo) ListByBuildID(ctx context.Context, buildID uuid.UUID) ([]domain.Job, error) {
	query := `
		SELECT id, build_id, name, status, spec, steps, tests, log_ref,
		       started_at, finished_at, error, created_at
		FROM jobs
		WHERE build_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, buildID)
	if err != nil {
		return nil, fmt.Errorf("list jobs by build_id: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Update обновляет job.
func (r *JobRepo) Update(ctx context.Context, job *domain.Job) error {
	stepsJSON, err := json.Marshal(job.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	var testsJSON []byte
	if job.Tests != nil {
		testsJSON, err = json.Marshal(job.Tests)
		if err != nil {
			return fmt.Errorf("marshal tests: %w", err)
		}
	}

	query := `
		UPDATE jobs
		SET status = $2, steps = $3, tests = $4, log_ref = $5,
		    started_at = $6, finished_at = $7, error = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		stepsJSON,
		testsJSON,
		nullString(job.LogRef),
		job.StartedAt,
		job.FinishedAt,
		nullString(job.Error),
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQueued возвращает jobs в статусе QUEUED.
func (r *JobRepo) ListQueued(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		SELECT id, build_id, name, status, spec, steps, tests, log_ref,
		       started_at, finished_at, error, created_at
		FROM jobs
		WHERE status = 'QUEUED'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountByBuildAndStatus возвращает количество jobs по статусу для build.
func (r *JobRepo) CountByBuildAndStatus(ctx context.Context, buildID uuid.UUID, status domain.JobStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs WHERE build_id = $1 AND status = $2
	`, buildID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

// --- Helpers ---

func (r *JobRepo) scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var specJSON, stepsJSON, testsJSON []byte
	var logRef, jobError *string

	err := row.Scan(
		&job.ID,
		&job.BuildID,
		&job.Name,
		&job.Status,
		&specJSON,
		&stepsJSON,
		&testsJSON,
		&logRef,
		&job.StartedAt,
		&job.FinishedAt,
		&jobError,
		&job.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if err := r.fillJSON(&job, specJSON, stepsJSON, testsJSON); err != nil {
		return nil, err
	}
	if logRef != nil {
		job.LogRef = *logRef
	}
	if jobError != nil {
		job.Error = *jobError
	}

	return &job, nil
}

func (r *JobRepo) scanJobFromRows(rows pgx.Rows) (*domain.Job, error) {
	var job domain.Job
	var specJSON, stepsJSON, testsJSON []byte
	var logRef, jobError *string

	err := rows.Scan(
		&job.ID,
		&job.BuildID,
		&job.Name,
		&job.Status,
		&specJSON,
		&stepsJSON,
		&testsJSON,
		&logRef,
		&job.StartedAt,
		&job.FinishedAt,
		&jobError,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if err := r.fillJSON(&job, specJSON, stepsJSON, testsJSON); err != nil {
		return nil, err
	}
	if logRef != nil {
		job.LogRef = *logRef
	}
	if jobError != nil {
		job.Error = *jobError
	}

	return &job, nil
}

// fillJSON десериализует JSONB колонки job.
func (r *JobRepo) fillJSON(job *domain.Job, specJSON, stepsJSON, testsJSON []byte) error {
	if specJSON != nil {
		if err := json.Unmarshal(specJSON, &job.Spec); err != nil {
			return fmt.Errorf("unmarshal spec: %w", err)
		}
	}
	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &job.Steps); err != nil {
			return fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	if testsJSON != nil {
		if err := json.Unmarshal(testsJSON, &job.Tests); err != nil {
			return fmt.Errorf("unmarshal tests: %w", err)
		}
	}
	return nil
}
