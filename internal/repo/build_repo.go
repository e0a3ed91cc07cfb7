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

// BuildRepo — репозиторий для работы с builds.
type BuildRepo struct {
	pool *pgxpool.Pool
}

// NewBuildRepo создаёт новый BuildRepo.
func NewBuildRepo(pool *pgxpool.Pool) *BuildRepo {
	return &BuildRepo{pool: pool}
}

// Create создаёт новый build.
// Номер build автоматически инкрементируется в рамках pipeline.
func (r *BuildRepo) Create(ctx context.Context, build *domain.Build) error {
	envJSON, err := json.Marshal(build.Env)
	if err != nil {
		return fmt.Errorf("marshal env: %w", err)
	}

	query := `
		INSERT INTO builds (id, pipeline_id, revision, number, status, branch, commit_sha,
		                    trigger, env, idempotency_key, created_at)
		VALUES ($1, $2, $3,
		        (SELECT COALESCE(MAX(number), 0) + 1 FROM builds WHERE pipeline_id = $2),
		        $4, $5, $6, $7, $8, $9, $10)
		RETURNING number
	`
	err = r.pool.QueryRow(ctx, query,
		build.ID,
		build.PipelineID,
		build.Revision,
		build.Status,
		build.Branch,
		nullString(build.Commit),
		build.Trigger,
		envJSON,
		nullString(build.IdempotencyKey),
		build.CreatedAt,
	).Scan(&build.Number)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// GetByID возвращает build по ID.
func (r *BuildRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Build, error) {
	query := `
		SELECT id, pipeline_id, revision, number, status, branch, commit_sha,
		       trigger, env, started_at, finished_at, error, idempotency_key, created_at
		FROM builds
		WHERE id = $1
	`
	return r.scanBuild(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает build по ключу идемпотентности.
func (r *BuildRepo) GetByIdempotencyKey(ctx context.Context, pipelineID uuid.UUID, key string) (*domain.Build, error) {
	query := `
		SELECT id, pipeline_id, revision, number, status, branch, commit_sha,
		       trigger, env, started_at, finished_at, error, idempotency_key, created_at
		FROM builds
		WHERE pipeline_id = $1 AND idempotency_key = $2
	`
	return r.scanBuild(r.pool.QueryRow(ctx, query, pipelineID, key))
}

// List возвращает список builds с фильтрацией.
func (r *BuildRepo) List(ctx context.Context, filter BuildFilter) ([]domain.Build, error) {
	query := `
		SELECT id, pipeline_id, revision, number, status, branch, commit_sha,
		       trigger, env, started_at, finished_at, error, idempotency_key, created_at
		FROM builds
		WHERE ($1::uuid IS NULL OR pipeline_id = $1)
		  AND ($2::text IS NULL OR status = $2::build_status)
		  AND ($3::text IS NULL OR branch = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.PipelineID),
		nullString(string(filter.Status)),
		nullString(filter.Branch),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var builds []domain.Build
	for rows.Next() {
		build, err := r.scanBuildFromRows(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, *build)
	}
	return builds, rows.Err()
}

// Update обновляет build.
func (r *BuildRepo) Update(ctx context.Context, build *domain.Build) error {
	query := `
		UPDATE builds
		SET status = $2, started_at = $3, finished_at = $4, error = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		build.ID,
		build.Status,
		build.StartedAt,
		build.FinishedAt,
		nullString(build.Error),
	)
	if err != nil {
		return fmt.Errorf("update build: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending возвращает builds в статусе PENDING.
func (r *BuildRepo) ListPending(ctx context.Context, limit int) ([]domain.Build, error) {
	query := `
		SELECT id, pipeline_id, revision, number, status, branch, commit_sha,
		       trigger, env, started_at, finished_at, error, idempotency_key, created_at
		FROM builds
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending builds: %w", err)
	}
	defer rows.Close()

	var builds []domain.Build
	for rows.Next() {
		build, err := r.scanBuildFromRows(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, *build)
	}
	return builds, rows.Err()
}

// --- Helpers ---

// BuildFilter — параметры фильтрации builds.
type BuildFilter struct {
	PipelineID *uuid.UUID
	Status     domain.BuildStatus
	Branch     string
	Limit      int
	Offset     int
}

// scanBuild сканирует одну строку в Build.
func (r *BuildRepo) scanBuild(row pgx.Row) (*domain.Build, error) {
	var build domain.Build
	var envJSON []byte
	var commit, buildError, idempotencyKey *string

	err := row.Scan(
		&build.ID,
		&build.PipelineID,
		&build.Revision,
		&build.Number,
		&build.Status,
		&build.Branch,
		&commit,
		&build.Trigger,
		&envJSON,
		&build.StartedAt,
		&build.FinishedAt,
		&buildError,
		&idempotencyKey,
		&build.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan build: %w", err)
	}

	if envJSON != nil {
		if err := json.Unmarshal(envJSON, &build.Env); err != nil {
			return nil, fmt.Errorf("unmarshal env: %w", err)
		}
	}

	if commit != nil {
		build.Commit = *commit
	}
	if buildError != nil {
		build.Error = *buildError
	}
	if idempotencyKey != nil {
		build.IdempotencyKey = *idempotencyKey
	}

	return &build, nil
}

// scanBuildFromRows сканирует строку из rows в Build.
func (r *BuildRepo) scanBuildFromRows(rows pgx.Rows) (*domain.Build, error) {
	var build domain.Build
	var envJSON []byte
	var commit, buildError, idempotencyKey *string

	err := rows.Scan(
		&build.ID,
		&build.PipelineID,
		&build.Revision,
		&build.Number,
		&build.Status,
		&build.Branch,
		&commit,
		&build.Trigger,
		&envJSON,
		&build.StartedAt,
		&build.FinishedAt,
		&buildError,
		&idempotencyKey,
		&build.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan build: %w", err)
	}

	if envJSON != nil {
		if err := json.Unmarshal(envJSON, &build.Env); err != nil {
			return nil, fmt.Errorf("unmarshal env: %w", err)
		}
	}

	if commit != nil {
		build.Commit = *commit
	}
	if buildError != nil {
		build.Error = *buildError
	}
	if idempotencyKey != nil {
		build.IdempotencyKey = *idempotencyKey
	}

	return &build, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
