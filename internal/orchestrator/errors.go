package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrBuildNotFound — build не найден в БД.
	ErrBuildNotFound = errors.New("build not found")

	// ErrPipelineNotFound — pipeline не найден.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrRevisionNotFound — ревизия конфигурации pipeline не найдена.
	ErrRevisionNotFound = errors.New("pipeline revision not found")

	// ErrInvalidSpec — конфигурация не прошла валидацию.
	ErrInvalidSpec = errors.New("invalid pipeline spec")

	// ErrBuildAlreadyActive — build уже обрабатывается.
	ErrBuildAlreadyActive = errors.New("build already being processed")

	// ErrBuildNotPending — build не в статусе PENDING.
	ErrBuildNotPending = errors.New("build is not in PENDING status")

	// ErrJobNotFound — job не найден.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotInWorkflow — job отсутствует в workflow build.
	ErrJobNotInWorkflow = errors.New("job not found in workflow")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
