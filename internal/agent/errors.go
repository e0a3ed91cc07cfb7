package agent

import "errors"

// Ошибки агента.
var (
	// ErrJobNotFound — job не найден в БД.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotQueued — job не в статусе QUEUED.
	ErrJobNotQueued = errors.New("job is not in QUEUED status")

	// ErrJobWithoutSpec — job не содержит эффективного определения.
	ErrJobWithoutSpec = errors.New("job has no resolved spec")

	// ErrUnknownStepType — нет executor'а для данного типа шага.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrStepTimeout — выполнение шага превысило таймаут.
	ErrStepTimeout = errors.New("step timeout")

	// ErrNoRepoURL — checkout невозможен: pipeline без repo_url.
	ErrNoRepoURL = errors.New("pipeline has no repo url")

	// ErrAgentStopped — агент остановлен.
	ErrAgentStopped = errors.New("agent stopped")
)
