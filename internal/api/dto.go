package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
)

// Pipeline DTOs

// CreatePipelineRequest — запрос на создание pipeline.
type CreatePipelineRequest struct {
	Name    string `json:"name"`
	RepoURL string `json:"repo_url"`
}

// UpdatePipelineRequest — запрос на обновление pipeline.
type UpdatePipelineRequest struct {
	Name     *string `json:"name,omitempty"`
	RepoURL  *string `json:"repo_url,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// PipelineResponse — ответ с pipeline.
type PipelineResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	RepoURL   string    `json:"repo_url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// PipelineFromDomain конвертирует domain.Pipeline в PipelineResponse.
func PipelineFromDomain(p domain.Pipeline) PipelineResponse {
	return PipelineResponse{
		ID:        p.ID,
		Name:      p.Name,
		RepoURL:   p.RepoURL,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
}

// Config DTOs

// ConfigRevisionResponse — ответ с ревизией конфигурации pipeline.
type ConfigRevisionResponse struct {
	PipelineID uuid.UUID           `json:"pipeline_id"`
	Revision   int                 `json:"revision"`
	Spec       domain.PipelineSpec `json:"spec"`
	CreatedAt  time.Time           `json:"created_at"`
}

// ConfigRevisionFromDomain конвертирует domain.PipelineVersion в ConfigRevisionResponse.
func ConfigRevisionFromDomain(v domain.PipelineVersion) ConfigRevisionResponse {
	return ConfigRevisionResponse{
		PipelineID: v.PipelineID,
		Revision:   v.Revision,
		Spec:       v.Spec,
		CreatedAt:  v.CreatedAt,
	}
}

// ValidateConfigResponse — результат проверки YAML конфигурации.
type ValidateConfigResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Jobs  int    `json:"jobs,omitempty"`
}

// Build DTOs

// TriggerBuildRequest — запрос на запуск build.
type TriggerBuildRequest struct {
	Branch         string            `json:"branch"`
	Commit         string            `json:"commit,omitempty"`
	Revision       *int              `json:"revision,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// BuildResponse — ответ с build.
type BuildResponse struct {
	ID             uuid.UUID         `json:"id"`
	PipelineID     uuid.UUID         `json:"pipeline_id"`
	Revision       int               `json:"revision"`
	Number         int               `json:"number"`
	Status         string            `json:"status"`
	Branch         string            `json:"branch"`
	Commit         string            `json:"commit,omitempty"`
	Trigger        string            `json:"trigger"`
	Env            map[string]string `json:"env,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	Error          string            `json:"error,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// BuildFromDomain конвертирует domain.Build в BuildResponse.
func BuildFromDomain(b domain.Build) BuildResponse {
	return BuildResponse{
		ID:             b.ID,
		PipelineID:     b.PipelineID,
		Revision:       b.Revision,
		Number:         b.Number,
		Status:         string(b.Status),
		Branch:         b.Branch,
		Commit:         b.Commit,
		Trigger:        string(b.Trigger),
		Env:            b.Env,
		StartedAt:      b.StartedAt,
		FinishedAt:     b.FinishedAt,
		Error:          b.Error,
		IdempotencyKey: b.IdempotencyKey,
		CreatedAt:      b.CreatedAt,
	}
}

// Job DTOs

// JobResponse — ответ с job.
type JobResponse struct {
	ID         uuid.UUID           `json:"id"`
	BuildID    uuid.UUID           `json:"build_id"`
	Name       string              `json:"name"`
	Status     string              `json:"status"`
	Steps      []domain.StepResult `json:"steps,omitempty"`
	Tests      *domain.TestSummary `json:"tests,omitempty"`
	LogRef     string              `json:"log_ref,omitempty"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
func JobFromDomain(j domain.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		BuildID:    j.BuildID,
		Name:       j.Name,
		Status:     string(j.Status),
		Steps:      j.Steps,
		Tests:      j.Tests,
		LogRef:     j.LogRef,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
	}
}

// Artifact DTOs

// ArtifactResponse — ответ с артефактом.
type ArtifactResponse struct {
	ID        uuid.UUID `json:"id"`
	BuildID   uuid.UUID `json:"build_id"`
	JobID     uuid.UUID `json:"job_id"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ArtifactFromDomain конвертирует domain.Artifact в ArtifactResponse.
func ArtifactFromDomain(a domain.Artifact) ArtifactResponse {
	return ArtifactResponse{
		ID:        a.ID,
		BuildID:   a.BuildID,
		JobID:     a.JobID,
		Kind:      string(a.Kind),
		Path:      a.Path,
		SizeBytes: a.SizeBytes,
		CreatedAt: a.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string            `json:"name"`
	Branch      string            `json:"branch"`
	CronExpr    string            `json:"cron_expr,omitempty"`
	IntervalSec int               `json:"interval_sec,omitempty"`
	Timezone    string            `json:"timezone,omitempty"`
	Enabled     bool              `json:"enabled"`
	Env         map[string]string `json:"env,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string            `json:"name,omitempty"`
	Branch      *string            `json:"branch,omitempty"`
	CronExpr    *string            `json:"cron_expr,omitempty"`
	IntervalSec *int               `json:"interval_sec,omitempty"`
	Timezone    *string            `json:"timezone,omitempty"`
	Env         *map[string]string `json:"env,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID          uuid.UUID         `json:"id"`
	PipelineID  uuid.UUID         `json:"pipeline_id"`
	Name        string            `json:"name"`
	Branch      string            `json:"branch"`
	CronExpr    string            `json:"cron_expr,omitempty"`
	IntervalSec int               `json:"interval_sec,omitempty"`
	Timezone    string            `json:"timezone"`
	Enabled     bool              `json:"enabled"`
	NextDueAt   *time.Time        `json:"next_due_at,omitempty"`
	LastBuildAt *time.Time        `json:"last_build_at,omitempty"`
	LastBuildID *uuid.UUID        `json:"last_build_id,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:          s.ID,
		PipelineID:  s.PipelineID,
		Name:        s.Name,
		Branch:      s.Branch,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastBuildAt: s.LastBuildAt,
		LastBuildID: s.LastBuildID,
		Env:         s.Env,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
