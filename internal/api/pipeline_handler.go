package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
	"github.com/akorzh/Conveyor/internal/engine"
)

// maxConfigSize ограничивает размер загружаемой YAML конфигурации.
const maxConfigSize = 1 << 20 // 1 MiB

// ListPipelines возвращает список всех pipelines.
// GET /api/v1/pipelines
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := h.pipelineRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]PipelineResponse, len(pipelines))
	for i, p := range pipelines {
		result[i] = PipelineFromDomain(p)
	}

	List(w, result, len(result))
}

// CreatePipeline создаёт новый pipeline.
// POST /api/v1/pipelines
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.RepoURL == "" {
		BadRequest(w, "repo_url is required")
		return
	}

	pipeline := &domain.Pipeline{
		ID:        uuid.New(),
		Name:      req.Name,
		RepoURL:   req.RepoURL,
		IsActive:  false,
		CreatedAt: time.Now(),
	}

	if err := h.pipelineRepo.Create(r.Context(), pipeline); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, PipelineFromDomain(*pipeline))
}

// GetPipeline возвращает pipeline по ID.
// GET /api/v1/pipelines/{id}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	Success(w, PipelineFromDomain(*pipeline))
}

// UpdatePipeline обновляет pipeline.
// PUT /api/v1/pipelines/{id}
func (h *Handler) UpdatePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var req UpdatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	if req.Name != nil {
		pipeline.Name = *req.Name
	}
	if req.RepoURL != nil {
		pipeline.RepoURL = *req.RepoURL
	}
	if req.IsActive != nil {
		pipeline.IsActive = *req.IsActive
	}

	if err := h.pipelineRepo.Update(r.Context(), pipeline); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, PipelineFromDomain(*pipeline))
}

// DeletePipeline удаляет pipeline.
// DELETE /api/v1/pipelines/{id}
func (h *Handler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	if err := h.pipelineRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "pipeline not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// ListConfigRevisions возвращает ревизии конфигурации pipeline.
// GET /api/v1/pipelines/{id}/config
func (h *Handler) ListConfigRevisions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	// Проверяем, что pipeline существует
	_, err = h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	versions, err := h.pipelineRepo.ListVersions(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ConfigRevisionResponse, len(versions))
	for i, v := range versions {
		result[i] = ConfigRevisionFromDomain(v)
	}

	List(w, result, len(result))
}

// UploadConfig загружает YAML конфигурацию как новую ревизию.
// POST /api/v1/pipelines/{id}/config
//
// Тело запроса — YAML конфигурация pipeline (не JSON).
// Конфигурация валидируется до сохранения; невалидная отклоняется с 422.
func (h *Handler) UploadConfig(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxConfigSize))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}
	if len(data) == 0 {
		BadRequest(w, "config body is empty")
		return
	}

	// Проверяем, что pipeline существует
	_, err = h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	spec, err := engine.ParseSpec(data)
	if err != nil {
		InvalidConfig(w, err.Error())
		return
	}

	version, err := h.pipelineRepo.CreateVersion(r.Context(), id, *spec)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ConfigRevisionFromDomain(*version))
}

// GetConfigRevision возвращает конкретную ревизию конфигурации.
// GET /api/v1/pipelines/{id}/config/{revision}
func (h *Handler) GetConfigRevision(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	revision, err := strconv.Atoi(r.PathValue("revision"))
	if err != nil {
		BadRequest(w, "invalid revision number")
		return
	}

	version, err := h.pipelineRepo.GetVersion(r.Context(), id, revision)
	if HandleRepoError(w, h.logger, err, "config revision not found") {
		return
	}

	Success(w, ConfigRevisionFromDomain(*version))
}

// ValidateConfig проверяет YAML конфигурацию без сохранения.
// POST /api/v1/pipelines/validate
//
// Тело запроса — YAML конфигурация. Возвращает результат валидации
// и количество jobs в workflow.
func (h *Handler) ValidateConfig(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxConfigSize))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}
	if len(data) == 0 {
		BadRequest(w, "config body is empty")
		return
	}

	spec, err := engine.ParseSpec(data)
	if err != nil {
		Success(w, ValidateConfigResponse{Valid: false, Error: err.Error()})
		return
	}

	Success(w, ValidateConfigResponse{
		Valid: true,
		Jobs:  len(spec.Workflow.Jobs),
	})
}
