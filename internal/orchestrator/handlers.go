package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
	"github.com/akorzh/Conveyor/internal/engine"
	"github.com/akorzh/Conveyor/internal/mq"
	"github.com/akorzh/Conveyor/internal/repo"
	"github.com/akorzh/Conveyor/internal/telemetry"
)

// handleBuildPending обрабатывает событие о новом pending build.
func (o *Orchestrator) handleBuildPending(ctx context.Context, delivery *mq.Delivery) error {
	// Парсим payload
	payload, err := mq.ParsePayload[mq.BuildPendingPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse build.pending payload", "error", err)
		return err
	}

	o.logger.Debug("received build.pending event", "build_id", payload.BuildID)

	// Проверяем, не обрабатывается ли уже
	if o.isBuildActive(payload.BuildID) {
		o.logger.Debug("build already active, skipping", "build_id", payload.BuildID)
		return nil
	}

	// Обрабатываем build
	if err := o.processBuild(ctx, payload.BuildID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrBuildNotPending) || errors.Is(err, ErrBuildAlreadyActive) {
			o.logger.Debug("build not processed", "build_id", payload.BuildID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process build", "build_id", payload.BuildID, "error", err)
		return err
	}

	return nil
}

// handleJobCompleted обрабатывает событие о завершённом job.
func (o *Orchestrator) handleJobCompleted(ctx context.Context, delivery *mq.Delivery) error {
	// Парсим payload
	payload, err := mq.ParsePayload[mq.JobCompletedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse job.completed payload", "error", err)
		return err
	}

	o.logger.Debug("received job.completed event",
		"job_id", payload.JobID,
		"build_id", payload.BuildID,
		"job", payload.JobName,
		"status", payload.Status,
	)

	if err := o.processJobCompleted(ctx, payload); err != nil {
		o.logger.Error("failed to process job completion",
			"job_id", payload.JobID,
			"build_id", payload.BuildID,
			"error", err,
		)
		return err
	}

	return nil
}

// processBuild обрабатывает новый build.
func (o *Orchestrator) processBuild(ctx context.Context, buildID uuid.UUID) error {
	// 1. Загружаем build из БД
	build, err := o.buildRepo.GetByID(ctx, buildID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrBuildNotFound, buildID)
		}
		return fmt.Errorf("get build: %w", err)
	}

	// 2. Проверяем статус
	if build.Status != domain.BuildStatusPending {
		return ErrBuildNotPending
	}

	// 3. Загружаем pipeline и ревизию конфигурации
	pipeline, err := o.pipelineRepo.GetByID(ctx, build.PipelineID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return o.failBuild(ctx, build, fmt.Sprintf("pipeline not found: %s", build.PipelineID))
		}
		return fmt.Errorf("get pipeline: %w", err)
	}

	version, err := o.pipelineRepo.GetVersion(ctx, build.PipelineID, build.Revision)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return o.failBuild(ctx, build, fmt.Sprintf("pipeline revision not found: %s r%d", build.PipelineID, build.Revision))
		}
		return fmt.Errorf("get pipeline version: %w", err)
	}

	// 4. Создаём BuildState
	state := NewBuildState(pipeline, build, version)

	// 5. Инициализируем (валидация, DAG, разрешение jobs)
	if err := state.Initialize(); err != nil {
		return o.failBuild(ctx, build, fmt.Sprintf("initialization failed: %v", err))
	}

	// 6. Добавляем в активные builds
	if err := o.addActiveBuild(state); err != nil {
		return err
	}

	// 7. Переводим build в RUNNING
	build.MarkRunning()
	if err := o.buildRepo.Update(ctx, build); err != nil {
		o.removeActiveBuild(buildID)
		return fmt.Errorf("update build to running: %w", err)
	}

	telemetry.BuildsStarted.Inc()

	o.logger.Info("build started",
		"build_id", buildID,
		"pipeline", pipeline.Name,
		"number", build.Number,
		"branch", build.Branch,
		"jobs", state.DAG.Size(),
	)

	// 8. Запускаем корневые jobs (workflow без requires — все сразу)
	if err := o.dispatchReadyJobs(ctx, state); err != nil {
		o.logger.Error("failed to dispatch initial jobs", "build_id", buildID, "error", err)
		// Не удаляем из активных — попробуем при следующем событии
	}

	return nil
}

// processJobCompleted обрабатывает завершение job.
func (o *Orchestrator) processJobCompleted(ctx context.Context, payload mq.JobCompletedPayload) error {
	// 1. Получаем активный BuildState
	state := o.getActiveBuild(payload.BuildID)

	// Если build не в памяти, пытаемся восстановить
	if state == nil {
		var err error
		state, err = o.restoreBuildState(ctx, payload.BuildID)
		if err != nil {
			return fmt.Errorf("restore build state: %w", err)
		}
		if state == nil {
			// Build уже завершён или не существует
			o.logger.Debug("build not active and cannot restore", "build_id", payload.BuildID)
			return nil
		}
	}

	// 2. Обновляем состояние job
	o.applyJobResult(state, payload.JobName, domain.JobStatus(payload.Status), payload.Error)

	// 3. Пропускаем dependents упавших jobs, продолжаем остальные ветки
	if err := o.propagateSkips(ctx, state); err != nil {
		return err
	}

	// 4. Завершаем build, если все jobs финализированы
	if state.IsComplete() {
		return o.completeBuild(ctx, state)
	}

	// 5. Запускаем следующие готовые jobs
	return o.dispatchReadyJobs(ctx, state)
}

// applyJobResult обновляет in-memory состояние по итогу job.
func (o *Orchestrator) applyJobResult(state *BuildState, jobName string, status domain.JobStatus, errMsg string) {
	if state.IsJobFinished(jobName) {
		// Дубликат события (MQ + reconcile) — игнорируем
		return
	}

	if status == domain.JobStatusSucceeded {
		state.MarkJobSucceeded(jobName)
		o.logger.Debug("job completed",
			"build_id", state.BuildID(),
			"job", jobName,
		)
		return
	}

	state.MarkJobFailed(jobName)
	o.logger.Warn("job failed",
		"build_id", state.BuildID(),
		"job", jobName,
		"error", errMsg,
	)
}

// propagateSkips помечает SKIPPED все jobs, чьи requires упали или
// были пропущены. Jobs из независимых веток продолжают выполняться.
func (o *Orchestrator) propagateSkips(ctx context.Context, state *BuildState) error {
	for _, node := range state.CollectNewlyBlocked() {
		job := &domain.Job{
			ID:        uuid.New(),
			BuildID:   state.BuildID(),
			Name:      node.Name,
			Spec:      state.JobDef(node.Name),
			CreatedAt: time.Now(),
		}
		job.MarkSkipped(fmt.Sprintf("requirement failed: %v", state.GetFailedJobs()))

		if err := o.jobRepo.Create(ctx, job); err != nil {
			return fmt.Errorf("create skipped job %s: %w", node.Name, err)
		}

		state.MarkJobSkipped(node.Name, job)
		telemetry.JobsFinished.WithLabelValues(string(domain.JobStatusSkipped)).Inc()

		o.logger.Info("job skipped",
			"build_id", state.BuildID(),
			"job", node.Name,
		)
	}

	return nil
}

// dispatchReadyJobs создаёт jobs для готовых узлов DAG и публикует их.
func (o *Orchestrator) dispatchReadyJobs(ctx context.Context, state *BuildState) error {
	readyJobs := state.GetReadyJobs()

	if len(readyJobs) == 0 {
		return nil
	}

	o.logger.Debug("dispatching ready jobs",
		"build_id", state.BuildID(),
		"count", len(readyJobs),
	)

	for _, node := range readyJobs {
		if err := o.dispatchJob(ctx, state, node); err != nil {
			o.logger.Error("failed to dispatch job",
				"build_id", state.BuildID(),
				"job", node.Name,
				"error", err,
			)
			// Продолжаем с другими jobs
		}
	}

	return nil
}

// dispatchJob создаёт запись job и публикует событие для агентов.
func (o *Orchestrator) dispatchJob(ctx context.Context, state *BuildState, node *engine.Node) error {
	def := state.JobDef(node.Name)
	if def == nil {
		return fmt.Errorf("%w: %s", ErrJobNotInWorkflow, node.Name)
	}

	job := &domain.Job{
		ID:        uuid.New(),
		BuildID:   state.BuildID(),
		Name:      node.Name,
		Status:    domain.JobStatusQueued,
		Spec:      def,
		CreatedAt: time.Now(),
	}

	// Сохраняем в БД
	if err := o.jobRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	// Помечаем как queued
	state.MarkJobQueued(node.Name, job)

	// Публикуем событие для Agent
	if err := o.publisher.PublishJobReady(ctx, job.ID, job.BuildID); err != nil {
		o.logger.Warn("failed to publish job.ready",
			"job_id", job.ID,
			"build_id", state.BuildID(),
			"error", err,
		)
		// Job создан в БД — Agent заберёт его через polling
	}

	telemetry.JobsDispatched.Inc()

	o.logger.Debug("job dispatched",
		"job_id", job.ID,
		"build_id", state.BuildID(),
		"job", node.Name,
		"steps", len(def.Steps),
	)

	return nil
}

// completeBuild завершает build по итогам всех jobs.
func (o *Orchestrator) completeBuild(ctx context.Context, state *BuildState) error {
	build := state.Build

	if state.HasFailed() {
		failedJobs := state.GetFailedJobs()
		errMsg := fmt.Sprintf("jobs failed: %v", failedJobs)
		build.MarkFailed(errMsg)
		o.logger.Warn("build failed",
			"build_id", build.ID,
			"failed_jobs", failedJobs,
			"duration", build.Duration(),
		)
	} else {
		build.MarkSucceeded()
		o.logger.Info("build succeeded",
			"build_id", build.ID,
			"duration", build.Duration(),
		)
	}

	// Обновляем в БД
	if err := o.buildRepo.Update(ctx, build); err != nil {
		return fmt.Errorf("update build status: %w", err)
	}

	telemetry.BuildsFinished.WithLabelValues(string(build.Status)).Inc()
	telemetry.BuildDuration.Observe(build.Duration().Seconds())

	// Удаляем из активных
	o.removeActiveBuild(build.ID)

	return nil
}

// failBuild переводит build в статус FAILED до начала выполнения jobs.
func (o *Orchestrator) failBuild(ctx context.Context, build *domain.Build, errMsg string) error {
	build.MarkFailed(errMsg)

	if err := o.buildRepo.Update(ctx, build); err != nil {
		return fmt.Errorf("update build to failed: %w", err)
	}

	telemetry.BuildsFinished.WithLabelValues(string(build.Status)).Inc()

	o.logger.Warn("build failed early",
		"build_id", build.ID,
		"error", errMsg,
	)

	return fmt.Errorf("build failed: %s", errMsg)
}

// restoreBuildState восстанавливает BuildState из БД.
// Используется когда job.completed приходит для build, которого нет в памяти
// (после рестарта Orchestrator).
func (o *Orchestrator) restoreBuildState(ctx context.Context, buildID uuid.UUID) (*BuildState, error) {
	// Загружаем build
	build, err := o.buildRepo.GetByID(ctx, buildID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil // Build не существует
		}
		return nil, fmt.Errorf("get build: %w", err)
	}

	// Если build уже завершён — ничего не делаем
	if build.IsFinished() {
		return nil, nil
	}

	// Загружаем pipeline и ревизию
	pipeline, err := o.pipelineRepo.GetByID(ctx, build.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("get pipeline: %w", err)
	}
	version, err := o.pipelineRepo.GetVersion(ctx, build.PipelineID, build.Revision)
	if err != nil {
		return nil, fmt.Errorf("get pipeline version: %w", err)
	}

	// Создаём и инициализируем state
	state := NewBuildState(pipeline, build, version)
	if err := state.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize state: %w", err)
	}

	// Загружаем jobs и восстанавливаем состояние
	jobs, err := o.jobRepo.ListByBuildID(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	state.RestoreFromJobs(jobs)

	// Добавляем в активные
	if err := o.addActiveBuild(state); err != nil {
		if errors.Is(err, ErrBuildAlreadyActive) {
			// Кто-то уже восстановил — возвращаем его
			return o.getActiveBuild(buildID), nil
		}
		return nil, err
	}

	o.logger.Info("build state restored",
		"build_id", buildID,
		"stats", state.Stats(),
	)

	return state, nil
}

// reconcileActiveBuilds сверяет активные builds с БД.
//
// Два сценария:
//   - Событие job.completed потерялось (агент не дотянулся до брокера) —
//     итог job виден в БД, применяем его вручную.
//   - Build отменён через API — прекращаем обработку.
func (o *Orchestrator) reconcileActiveBuilds(ctx context.Context) {
	for _, state := range o.listActiveBuilds() {
		if err := o.reconcileBuild(ctx, state); err != nil {
			o.logger.Error("failed to reconcile build",
				"build_id", state.BuildID(),
				"error", err,
			)
		}
	}
}

// reconcileBuild сверяет один активный build с БД.
func (o *Orchestrator) reconcileBuild(ctx context.Context, state *BuildState) error {
	// Проверяем отмену
	build, err := o.buildRepo.GetByID(ctx, state.BuildID())
	if err != nil {
		return fmt.Errorf("get build: %w", err)
	}
	if build.Status == domain.BuildStatusCancelled {
		o.logger.Info("build cancelled, dropping state", "build_id", state.BuildID())
		o.removeActiveBuild(state.BuildID())
		return nil
	}

	// Сверяем итоги jobs
	jobs, err := o.jobRepo.ListByBuildID(ctx, state.BuildID())
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	changed := false
	for i := range jobs {
		job := &jobs[i]
		if !job.IsFinished() || state.IsJobFinished(job.Name) {
			continue
		}
		if job.Status == domain.JobStatusSkipped {
			// Пропуски расставляет сам оркестратор
			continue
		}

		o.logger.Debug("reconciled job result from db",
			"build_id", state.BuildID(),
			"job", job.Name,
			"status", job.Status,
		)
		o.applyJobResult(state, job.Name, job.Status, job.Error)
		changed = true
	}

	if !changed {
		return nil
	}

	if err := o.propagateSkips(ctx, state); err != nil {
		return err
	}
	if state.IsComplete() {
		return o.completeBuild(ctx, state)
	}
	return o.dispatchReadyJobs(ctx, state)
}
