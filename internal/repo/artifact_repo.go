package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akorzh/Conveyor/internal/domain"
)

// ArtifactRepo — репозиторий для метаданных артефактов.
// Содержимое файлов лежит в artifact store, здесь только записи о них.
type ArtifactRepo struct {
	pool *pgxpool.Pool
}

// NewArtifactRepo создаёт новый ArtifactRepo.
func NewArtifactRepo(pool *pgxpool.Pool) *ArtifactRepo {
	return &ArtifactRepo{pool: pool}
}

// Create создаёт запись об артефакте.
func (r *ArtifactRepo) Create(ctx context.Context, artifact *domain.Artifact) error {
	query := `
		INSERT INTO artifacts (id, build_id, job_id, kind, path, stored_path, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		artifact.ID,
		artifact.BuildID,
		artifact.JobID,
		artifact.Kind,
		artifact.Path,
		artifact.StoredPath,
		artifact.SizeBytes,
		artifact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// CreateBatch создаёт записи о нескольких артефактах.
func (r *ArtifactRepo) CreateBatch(ctx context.Context, artifacts []domain.Artifact) error {
	for i := range artifacts {
		if err := r.Create(ctx, &artifacts[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetByID возвращает артефакт по ID.
func (r *ArtifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	query := `
		SELECT id, build_id, job_id, kind, path, stored_path, size_bytes, created_at
		FROM artifacts
		WHERE id = $1
	`
	var a domain.Artifact
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.BuildID,
		&a.JobID,
		&a.Kind,
		&a.Path,
		&a.StoredPath,
		&a.SizeBytes,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact by id: %w", err)
	}
	return &a, nil
}

// ListByBuildID возвращает все артефакты build.
func (r *ArtifactRepo) ListByBuildID(ctx context.Context, buildID uuid.UUID) ([]domain.Artifact, error) {
	query := `
		SELECT id, build_id, job_id, kind, path, stored_path, size_bytes, created_at
		FROM artifacts
		WHERE build_id = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, buildID)
}

// ListByJobID возвращает все артефакты job.
func (r *ArtifactRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]domain.Artifact, error) {
	query := `
		SELECT id, build_id, job_id, kind, path, stored_path, size_bytes, created_at
		FROM artifacts
		WHERE job_id = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, jobID)
}

func (r *ArtifactRepo) list(ctx context.Context, query string, arg any) ([]domain.Artifact, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(
			&a.ID,
			&a.BuildID,
			&a.JobID,
			&a.Kind,
			&a.Path,
			&a.StoredPath,
			&a.SizeBytes,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
