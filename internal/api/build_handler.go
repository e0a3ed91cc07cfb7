package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
	"github.com/akorzh/Conveyor/internal/repo"
)

// Пагинация списков.
const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ListBuilds возвращает список builds с фильтрацией.
// GET /api/v1/builds?pipeline_id=...&status=...&branch=...&limit=...&offset=...
func (h *Handler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	filter := repo.BuildFilter{}

	// Парсим query параметры
	if pipelineIDStr := r.URL.Query().Get("pipeline_id"); pipelineIDStr != "" {
		pipelineID, err := uuid.Parse(pipelineIDStr)
		if err != nil {
			BadRequest(w, "invalid pipeline_id")
			return
		}
		filter.PipelineID = &pipelineID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.BuildStatus(status)
	}

	filter.Branch = r.URL.Query().Get("branch")

	filter.Limit = parseLimit(r.URL.Query().Get("limit"))
	filter.Offset = parseOffset(r.URL.Query().Get("offset"))

	builds, err := h.buildRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]BuildResponse, len(builds))
	for i, b := range builds {
		result[i] = BuildFromDomain(b)
	}

	List(w, result, len(result))
}

// TriggerBuild создаёт новый build для pipeline.
// POST /api/v1/pipelines/{id}/builds
func (h *Handler) TriggerBuild(w http.ResponseWriter, r *http.Request) {
	pipelineID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var req TriggerBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Branch == "" {
		BadRequest(w, "branch is required")
		return
	}

	// Проверяем, что pipeline существует
	pipeline, err := h.pipelineRepo.GetByID(r.Context(), pipelineID)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	// Определяем ревизию конфигурации
	var revision int
	if req.Revision != nil {
		revision = *req.Revision
		// Проверяем, что ревизия существует
		_, err := h.pipelineRepo.GetVersion(r.Context(), pipelineID, revision)
		if HandleRepoError(w, h.logger, err, "config revision not found") {
			return
		}
	} else {
		// Используем последнюю ревизию
		latest, err := h.pipelineRepo.GetLatestVersion(r.Context(), pipelineID)
		if HandleRepoError(w, h.logger, err, "pipeline has no config") {
			return
		}
		revision = latest.Revision
	}

	// Проверяем idempotency key
	if req.IdempotencyKey != "" {
		existingBuild, err := h.buildRepo.GetByIdempotencyKey(r.Context(), pipelineID, req.IdempotencyKey)
		if err == nil && existingBuild != nil {
			// Возвращаем существующий build
			Success(w, BuildFromDomain(*existingBuild))
			return
		}
	}

	build := &domain.Build{
		ID:             uuid.New(),
		PipelineID:     pipeline.ID,
		Revision:       revision,
		Status:         domain.BuildStatusPending,
		Branch:         req.Branch,
		Commit:         req.Commit,
		Trigger:        domain.TriggerAPI,
		Env:            req.Env,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	}

	if err := h.buildRepo.Create(r.Context(), build); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Публикуем событие в очередь
	if h.publisher != nil {
		if err := h.publisher.PublishBuildPending(r.Context(), build.ID); err != nil {
			h.logger.Warn("failed to publish build.pending", "build_id", build.ID, "error", err)
		}
	}

	Created(w, BuildFromDomain(*build))
}

// GetBuild возвращает build по ID.
// GET /api/v1/builds/{id}
func (h *Handler) GetBuild(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid build id")
		return
	}

	build, err := h.buildRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "build not found") {
		return
	}

	Success(w, BuildFromDomain(*build))
}

// CancelBuild отменяет build.
// POST /api/v1/builds/{id}/cancel
func (h *Handler) CancelBuild(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid build id")
		return
	}

	build, err := h.buildRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "build not found") {
		return
	}

	if build.IsFinished() {
		InvalidState(w, "build is already finished")
		return
	}

	build.MarkCancelled()

	if err := h.buildRepo.Update(r.Context(), build); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, BuildFromDomain(*build))
}

// ListBuildJobs возвращает jobs build.
// GET /api/v1/builds/{id}/jobs
func (h *Handler) ListBuildJobs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid build id")
		return
	}

	// Проверяем, что build существует
	_, err = h.buildRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "build not found") {
		return
	}

	jobs, err := h.jobRepo.ListByBuildID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		result[i] = JobFromDomain(j)
	}

	List(w, result, len(result))
}

// parseLimit разбирает query-параметр limit. Мусорные и неположительные
// значения заменяются дефолтом, сверху limit ограничен maxPageSize:
// эти значения уходят в SQL как есть.
func parseLimit(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return defaultPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

// parseOffset разбирает query-параметр offset. Мусор и отрицательные
// значения дают 0.
func parseOffset(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
