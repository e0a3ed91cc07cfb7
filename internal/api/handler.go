package api

import (
	"log/slog"

	"github.com/akorzh/Conveyor/internal/artifacts"
	"github.com/akorzh/Conveyor/internal/mq"
	"github.com/akorzh/Conveyor/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	pipelineRepo *repo.PipelineRepo
	buildRepo    *repo.BuildRepo
	jobRepo      *repo.JobRepo
	scheduleRepo *repo.ScheduleRepo
	artifactRepo *repo.ArtifactRepo
	publisher    *mq.Publisher
	store        *artifacts.Store
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	PipelineRepo *repo.PipelineRepo
	BuildRepo    *repo.BuildRepo
	JobRepo      *repo.JobRepo
	ScheduleRepo *repo.ScheduleRepo
	ArtifactRepo *repo.ArtifactRepo
	Publisher    *mq.Publisher
	Store        *artifacts.Store
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		pipelineRepo: cfg.PipelineRepo,
		buildRepo:    cfg.BuildRepo,
		jobRepo:      cfg.JobRepo,
		scheduleRepo: cfg.ScheduleRepo,
		artifactRepo: cfg.ArtifactRepo,
		publisher:    cfg.Publisher,
		store:        cfg.Store,
		logger:       cfg.Logger,
	}
}
