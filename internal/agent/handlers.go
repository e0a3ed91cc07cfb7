package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
	"github.com/akorzh/Conveyor/internal/engine"
	"github.com/akorzh/Conveyor/internal/mq"
	"github.com/akorzh/Conveyor/internal/repo"
	"github.com/akorzh/Conveyor/internal/report"
	"github.com/akorzh/Conveyor/internal/telemetry"
)

// handleJobReady обрабатывает событие о новом job из очереди jobs.ready.
func (a *Agent) handleJobReady(ctx context.Context, delivery *mq.Delivery) error {
	// Парсим payload
	payload, err := mq.ParsePayload[mq.JobReadyPayload](&delivery.Message)
	if err != nil {
		a.logger.Error("failed to parse job.ready payload", "error", err)
		return err
	}

	a.logger.Debug("received job.ready event",
		"job_id", payload.JobID,
		"build_id", payload.BuildID,
	)

	// Обрабатываем job
	if err := a.processJob(ctx, payload.JobID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrJobNotQueued) {
			a.logger.Debug("job not processed", "job_id", payload.JobID, "reason", err)
			return nil
		}
		a.logger.Error("failed to process job", "job_id", payload.JobID, "error", err)
		return err
	}

	return nil
}

// processJob загружает job из БД, выполняет шаги и обрабатывает результат.
func (a *Agent) processJob(ctx context.Context, jobID uuid.UUID) error {
	// 1. Загружаем job из БД
	job, err := a.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return fmt.Errorf("get job: %w", err)
	}

	// 2. Проверяем статус
	if job.Status != domain.JobStatusQueued {
		return ErrJobNotQueued
	}
	if job.Spec == nil {
		return fmt.Errorf("%w: %s", ErrJobWithoutSpec, jobID)
	}

	// 3. Загружаем build и pipeline (нужны для окружения и checkout)
	build, err := a.buildRepo.GetByID(ctx, job.BuildID)
	if err != nil {
		return fmt.Errorf("get build: %w", err)
	}
	pipeline, err := a.pipelineRepo.GetByID(ctx, build.PipelineID)
	if err != nil {
		return fmt.Errorf("get pipeline: %w", err)
	}

	// 4. Помечаем как running
	job.MarkRunning()
	if err := a.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job to running: %w", err)
	}

	a.logger.Info("job started",
		"job_id", job.ID,
		"build_id", job.BuildID,
		"job", job.Name,
		"steps", len(job.Spec.Steps),
	)

	// 5. Выполняем шаги
	execErr := a.executeJob(ctx, job, build, pipeline)

	// 6. Фиксируем результат
	errMsg := ""
	if execErr != nil {
		errMsg = execErr.Error()
		job.MarkFailed(errMsg)
		a.logger.Warn("job failed",
			"job_id", job.ID,
			"build_id", job.BuildID,
			"job", job.Name,
			"error", errMsg,
		)
	} else {
		job.MarkSucceeded()
		a.logger.Info("job succeeded",
			"job_id", job.ID,
			"build_id", job.BuildID,
			"job", job.Name,
			"duration", job.Duration(),
		)
	}

	telemetry.JobsFinished.WithLabelValues(string(job.Status)).Inc()

	if err := a.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job result: %w", err)
	}

	return a.publishCompletion(ctx, job, errMsg)
}

// executeJob выполняет шаги job и собирает артефакты.
// Возвращает ошибку, если job провален.
func (a *Agent) executeJob(ctx context.Context, job *domain.Job, build *domain.Build, pipeline *domain.Pipeline) error {
	spec := job.Spec

	// Таймаут job целиком
	if spec.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(spec.TimeoutSec)*time.Second)
		defer cancel()
	}

	// Workspace: отдельная директория на каждое исполнение
	workspace := filepath.Join(a.workRoot, job.ID.String())
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	if !a.keepWorkspaces {
		defer os.RemoveAll(workspace)
	}

	var logBuf bytes.Buffer

	sc := &StepContext{
		Workspace: workspace,
		WorkDir:   spec.WorkDir,
		Env:       a.buildEnv(job, build, pipeline),
		Shell:     spec.Shell,
		RepoURL:   pipeline.RepoURL,
		Branch:    build.Branch,
		Commit:    build.Commit,
		Log:       &logBuf,
	}

	stepErr := a.runSteps(ctx, job, sc, &logBuf)

	// Артефакты и отчёты собираются независимо от итога шагов:
	// у упавшего job отчёты тестов — самое ценное. Сбор идёт на
	// несокращённом контексте: истёкший таймаут job не должен
	// блокировать записи в БД и artifact store.
	collectCtx := context.WithoutCancel(ctx)
	a.collectResults(collectCtx, job, workspace)

	// Полный лог job
	a.saveLog(collectCtx, job, logBuf.Bytes())

	return stepErr
}

// runSteps выполняет шаги строго последовательно.
// Первый провал прерывает выполнение, оставшиеся шаги помечаются SKIPPED.
func (a *Agent) runSteps(ctx context.Context, job *domain.Job, sc *StepContext, logBuf *bytes.Buffer) error {
	spec := job.Spec
	job.Steps = make([]domain.StepResult, 0, len(spec.Steps))

	var failed error

	for i := range spec.Steps {
		step := &spec.Steps[i]
		name := step.DisplayName(i)

		if failed != nil {
			job.Steps = append(job.Steps, domain.StepResult{
				Name:   name,
				Type:   step.StepType(),
				Status: domain.StepStatusSkipped,
			})
			continue
		}

		fmt.Fprintf(logBuf, "--- step: %s ---\n", name)

		result := a.runStep(ctx, step, name, sc)
		job.Steps = append(job.Steps, *result)

		if result.Status == domain.StepStatusFailed {
			if result.Error != "" {
				failed = fmt.Errorf("step %s: %s", name, result.Error)
			} else {
				failed = fmt.Errorf("step %s: exit code %d", name, result.ExitCode)
			}
		}
	}

	return failed
}

// runStep выполняет один шаг и формирует StepResult.
func (a *Agent) runStep(ctx context.Context, step *domain.StepDef, name string, sc *StepContext) *domain.StepResult {
	result := &domain.StepResult{
		Name: name,
		Type: step.StepType(),
	}

	executor, err := a.registry.Get(step.StepType())
	if err != nil {
		result.Status = domain.StepStatusFailed
		result.Error = err.Error()
		return result
	}

	started := time.Now()
	execResult, execErr := executor.Execute(ctx, step, sc)
	result.DurationMs = time.Since(started).Milliseconds()

	telemetry.StepDuration.WithLabelValues(step.StepType()).Observe(time.Since(started).Seconds())

	if execResult != nil {
		result.ExitCode = execResult.ExitCode
		result.OutputTail = execResult.OutputTail
	}

	switch {
	case execErr != nil:
		// Инфраструктурная ошибка или таймаут
		result.Status = domain.StepStatusFailed
		result.Error = execErr.Error()
	case execResult != nil && execResult.ExitCode != 0:
		result.Status = domain.StepStatusFailed
	default:
		result.Status = domain.StepStatusSucceeded
	}

	return result
}

// collectResults собирает артефакты и отчёты тестов из workspace.
// Ошибки сбора не проваливают job — логируются и идут дальше.
func (a *Agent) collectResults(ctx context.Context, job *domain.Job, workspace string) {
	spec := job.Spec

	// Обычные артефакты
	if len(spec.Artifacts) > 0 {
		collected, err := a.store.Collect(workspace, job, spec.Artifacts, domain.ArtifactKindFile)
		if err != nil {
			a.logger.Warn("failed to collect artifacts", "job_id", job.ID, "error", err)
		}
		a.persistArtifacts(ctx, job, collected)
	}

	// Отчёты тестов: сохраняем файлы и парсим сводку
	if len(spec.TestReports) > 0 {
		collected, err := a.store.Collect(workspace, job, spec.TestReports, domain.ArtifactKindTestReport)
		if err != nil {
			a.logger.Warn("failed to collect test reports", "job_id", job.ID, "error", err)
		}
		a.persistArtifacts(ctx, job, collected)

		var summaries []*domain.TestSummary
		for i := range collected {
			summary, err := report.ParseJUnitFile(collected[i].StoredPath)
			if err != nil {
				a.logger.Warn("failed to parse test report",
					"job_id", job.ID,
					"path", collected[i].Path,
					"error", err,
				)
				continue
			}
			summaries = append(summaries, summary)
		}
		job.Tests = report.Merge(summaries...)
	}
}

// saveLog сохраняет полный лог job в artifact store.
func (a *Agent) saveLog(ctx context.Context, job *domain.Job, content []byte) {
	if len(content) == 0 {
		return
	}

	artifact, err := a.store.SaveLog(job, content)
	if err != nil {
		a.logger.Warn("failed to save job log", "job_id", job.ID, "error", err)
		return
	}

	job.LogRef = artifact.StoredPath
	a.persistArtifacts(ctx, job, []domain.Artifact{*artifact})
}

// persistArtifacts сохраняет метаданные артефактов в БД.
func (a *Agent) persistArtifacts(ctx context.Context, job *domain.Job, collected []domain.Artifact) {
	if len(collected) == 0 {
		return
	}

	if err := a.artifactRepo.CreateBatch(ctx, collected); err != nil {
		a.logger.Warn("failed to persist artifacts", "job_id", job.ID, "error", err)
		return
	}

	for i := range collected {
		telemetry.ArtifactsStored.WithLabelValues(string(collected[i].Kind)).Inc()
		telemetry.ArtifactBytes.Add(float64(collected[i].SizeBytes))
	}
}

// buildEnv формирует окружение процессов job.
// Слои (нижний перекрывается верхним):
//  1. Окружение агента (PATH и прочее наследуется)
//  2. Встроенные CONVEYOR_* переменные
//  3. Env job (уже слит с шаблоном и env build оркестратором)
func (a *Agent) buildEnv(job *domain.Job, build *domain.Build, pipeline *domain.Pipeline) []string {
	builtin := engine.NewContext(pipeline, build).BuiltinEnv()
	builtin["CONVEYOR_JOB"] = job.Name
	if job.Spec.Image != "" {
		builtin["CONVEYOR_IMAGE"] = job.Spec.Image
	}

	env := os.Environ()
	env = append(env, envSlice(builtin)...)
	env = append(env, envSlice(job.Spec.Env)...)
	return env
}

// publishCompletion публикует событие job.completed.
func (a *Agent) publishCompletion(ctx context.Context, job *domain.Job, errMsg string) error {
	if a.publisher == nil {
		a.logger.Warn("publisher not available, skipping job.completed publish",
			"job_id", job.ID,
		)
		return nil
	}

	payload := mq.JobCompletedPayload{
		JobID:   job.ID,
		BuildID: job.BuildID,
		JobName: job.Name,
		Status:  string(job.Status),
		Error:   errMsg,
	}

	if err := a.publisher.PublishJobCompleted(ctx, payload); err != nil {
		a.logger.Warn("failed to publish job.completed",
			"job_id", job.ID,
			"error", err,
		)
		// Не возвращаем ошибку — job обновлён в БД, оркестратор подхватит через polling
	}

	return nil
}
