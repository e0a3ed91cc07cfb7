package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
)

// ListBuildArtifacts возвращает артефакты build.
// GET /api/v1/builds/{id}/artifacts
func (h *Handler) ListBuildArtifacts(w http.ResponseWriter, r *http.Request) {
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

	artifacts, err := h.artifactRepo.ListByBuildID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ArtifactResponse, len(artifacts))
	for i, a := range artifacts {
		result[i] = ArtifactFromDomain(a)
	}

	List(w, result, len(result))
}

// DownloadArtifact отдаёт содержимое артефакта.
// GET /api/v1/artifacts/{id}/download
func (h *Handler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid artifact id")
		return
	}

	artifact, err := h.artifactRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "artifact not found") {
		return
	}

	f, err := h.store.Open(artifact)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			NotFound(w, "artifact file not found in store")
			return
		}
		InternalError(w, h.logger, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(artifact.Path)+`"`)

	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("failed to stream artifact", "artifact_id", id, "error", err)
	}
}

// GetJob возвращает job по ID.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(*job))
}

// GetJobLog отдаёт полный лог job как текст.
// GET /api/v1/jobs/{id}/log
func (h *Handler) GetJobLog(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	if job.LogRef == "" {
		NotFound(w, "job has no log")
		return
	}

	f, err := h.store.Open(&domain.Artifact{StoredPath: job.LogRef})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			NotFound(w, "job log not found in store")
			return
		}
		InternalError(w, h.logger, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("failed to stream job log", "job_id", id, "error", err)
	}
}
