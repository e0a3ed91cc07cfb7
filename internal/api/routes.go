package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Pipelines
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("POST /api/v1/pipelines", chain(http.HandlerFunc(h.CreatePipeline)))
	mux.Handle("POST /api/v1/pipelines/validate", chain(http.HandlerFunc(h.ValidateConfig)))
	mux.Handle("GET /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("PUT /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.UpdatePipeline)))
	mux.Handle("DELETE /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.DeletePipeline)))

	// Pipeline Config Revisions
	mux.Handle("GET /api/v1/pipelines/{id}/config", chain(http.HandlerFunc(h.ListConfigRevisions)))
	mux.Handle("POST /api/v1/pipelines/{id}/config", chain(http.HandlerFunc(h.UploadConfig)))
	mux.Handle("GET /api/v1/pipelines/{id}/config/{revision}", chain(http.HandlerFunc(h.GetConfigRevision)))

	// Builds
	mux.Handle("GET /api/v1/builds", chain(http.HandlerFunc(h.ListBuilds)))
	mux.Handle("POST /api/v1/pipelines/{id}/builds", chain(http.HandlerFunc(h.TriggerBuild)))
	mux.Handle("GET /api/v1/builds/{id}", chain(http.HandlerFunc(h.GetBuild)))
	mux.Handle("POST /api/v1/builds/{id}/cancel", chain(http.HandlerFunc(h.CancelBuild)))
	mux.Handle("GET /api/v1/builds/{id}/jobs", chain(http.HandlerFunc(h.ListBuildJobs)))
	mux.Handle("GET /api/v1/builds/{id}/artifacts", chain(http.HandlerFunc(h.ListBuildArtifacts)))

	// Jobs
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
	mux.Handle("GET /api/v1/jobs/{id}/log", chain(http.HandlerFunc(h.GetJobLog)))

	// Artifacts
	mux.Handle("GET /api/v1/artifacts/{id}/download", chain(http.HandlerFunc(h.DownloadArtifact)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/pipelines/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
}
