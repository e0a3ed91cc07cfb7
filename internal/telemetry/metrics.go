package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики оркестрации builds.
var (
	// BuildsStarted — количество builds, взятых в обработку.
	BuildsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_builds_started_total",
		Help: "Total number of builds started",
	})

	// BuildsFinished — количество завершённых builds по статусу.
	BuildsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_builds_finished_total",
		Help: "Total number of finished builds by status",
	}, []string{"status"})

	// BuildDuration — продолжительность builds в секундах.
	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conveyor_build_duration_seconds",
		Help:    "Build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s .. ~2.3h
	})
)

// Метрики выполнения jobs.
var (
	// JobsDispatched — количество jobs, отправленных агентам.
	JobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_jobs_dispatched_total",
		Help: "Total number of jobs dispatched to agents",
	})

	// JobsFinished — количество завершённых jobs по статусу.
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_jobs_finished_total",
		Help: "Total number of finished jobs by status",
	}, []string{"status"})

	// StepDuration — продолжительность шагов в секундах по типу.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conveyor_step_duration_seconds",
		Help:    "Step duration in seconds by step type",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms .. ~13m
	}, []string{"type"})
)

// Метрики артефактов.
var (
	// ArtifactsStored — количество сохранённых артефактов по kind.
	ArtifactsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_artifacts_stored_total",
		Help: "Total number of stored artifacts by kind",
	}, []string{"kind"})

	// ArtifactBytes — суммарный объём сохранённых артефактов.
	ArtifactBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_artifact_bytes_total",
		Help: "Total size of stored artifacts in bytes",
	})
)

// Метрики scheduler.
var (
	// ScheduledBuilds — количество builds, созданных scheduler'ом.
	ScheduledBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_scheduled_builds_total",
		Help: "Total number of builds created by scheduler",
	})

	// ScheduleTickErrors — количество ошибок в тиках scheduler.
	ScheduleTickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_schedule_tick_errors_total",
		Help: "Total number of scheduler tick errors",
	})
)
