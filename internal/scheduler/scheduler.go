package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
	"github.com/akorzh/Conveyor/internal/mq"
	"github.com/akorzh/Conveyor/internal/repo"
	"github.com/akorzh/Conveyor/internal/telemetry"
)

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	scheduleRepo *repo.ScheduleRepo
	buildRepo    *repo.BuildRepo
	pipelineRepo *repo.PipelineRepo
	publisher    *mq.Publisher
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Scheduler.
type Config struct {
	ScheduleRepo *repo.ScheduleRepo
	BuildRepo    *repo.BuildRepo
	PipelineRepo *repo.PipelineRepo
	Publisher    *mq.Publisher
	Logger       *slog.Logger
	BatchSize    int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		scheduleRepo: cfg.ScheduleRepo,
		buildRepo:    cfg.BuildRepo,
		pipelineRepo: cfg.PipelineRepo,
		publisher:    cfg.Publisher,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule создаёт build последней ревизии pipeline
// 3. Обновляет next_due_at
// 4. Публикует build.pending в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	// 1. Находим due schedules
	schedules, err := s.scheduleRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		telemetry.ScheduleTickErrors.Inc()
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	// 2. Обрабатываем каждый schedule
	var processed, created int
	for i := range schedules {
		sched := &schedules[i]

		buildCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			telemetry.ScheduleTickErrors.Inc()
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}

		processed++
		if buildCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"builds_created", created,
	)

	return nil
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если build был создан (не был дубликатом).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	// 1. Проверяем, что pipeline существует и имеет конфигурацию
	version, err := s.pipelineRepo.GetLatestVersion(ctx, sched.PipelineID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("pipeline has no config for schedule, skipping",
				"schedule_id", sched.ID,
				"pipeline_id", sched.PipelineID,
			)
			// Не возвращаем ошибку — просто пропускаем
			return false, nil
		}
		return false, fmt.Errorf("get latest pipeline version: %w", err)
	}

	// 2. Формируем idempotency key: "{schedule_id}_{next_due_at_unix}"
	// Это гарантирует, что для одного schedule и конкретного времени
	// будет создан только один build
	idempKey := fmt.Sprintf("%s_%d", sched.ID, sched.NextDueAt.Unix())

	// 3. Проверяем, не создан ли уже build (idempotency)
	existingBuild, err := s.buildRepo.GetByIdempotencyKey(ctx, sched.PipelineID, idempKey)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Errorf("check idempotency: %w", err)
	}

	var buildCreated bool
	var buildID uuid.UUID

	if existingBuild != nil {
		// Build уже существует — просто обновляем next_due_at
		s.logger.Debug("build already exists (idempotency)",
			"schedule_id", sched.ID,
			"build_id", existingBuild.ID,
			"idempotency_key", idempKey,
		)
		buildID = existingBuild.ID
		buildCreated = false
	} else {
		// 4. Создаём новый build
		build := &domain.Build{
			ID:             uuid.New(),
			PipelineID:     sched.PipelineID,
			Revision:       version.Revision,
			Status:         domain.BuildStatusPending,
			Branch:         sched.Branch,
			Trigger:        domain.TriggerSchedule,
			Env:            sched.Env,
			IdempotencyKey: idempKey,
			CreatedAt:      now,
		}

		if err := s.buildRepo.Create(ctx, build); err != nil {
			return false, fmt.Errorf("create build: %w", err)
		}

		telemetry.ScheduledBuilds.Inc()

		s.logger.Info("created build from schedule",
			"build_id", build.ID,
			"schedule_id", sched.ID,
			"schedule_name", sched.Name,
			"pipeline_id", sched.PipelineID,
			"revision", version.Revision,
			"branch", sched.Branch,
		)

		buildID = build.ID
		buildCreated = true
	}

	// 5. Вычисляем следующее время запуска
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.Error("failed to calculate next due, leaving schedule as is",
			"schedule_id", sched.ID,
			"error", err,
		)
		// Schedule некорректный — лучше не трогать next_due_at
		return buildCreated, nil
	}

	// 6. Обновляем schedule
	sched.RecordBuild(buildID, nextDue)
	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return buildCreated, fmt.Errorf("update schedule: %w", err)
	}

	// 7. Публикуем событие в RabbitMQ (если publisher настроен и build создан)
	if s.publisher != nil && buildCreated {
		if err := s.publisher.PublishBuildPending(ctx, buildID); err != nil {
			// Не фатальная ошибка — build уже создан в БД
			// Orchestrator может забрать его через polling
			s.logger.Warn("failed to publish build.pending",
				"build_id", buildID,
				"error", err,
			)
		}
	}

	return buildCreated, nil
}
