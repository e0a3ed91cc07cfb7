package domain

// BuildStatus — статус выполнения build.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type BuildStatus string

const (
	// BuildStatusPending — build создан, но оркестратор ещё не начал обработку.
	BuildStatusPending BuildStatus = "PENDING"

	// BuildStatusRunning — build в процессе выполнения.
	BuildStatusRunning BuildStatus = "RUNNING"

	// BuildStatusSucceeded — все jobs завершились успешно.
	BuildStatusSucceeded BuildStatus = "SUCCEEDED"

	// BuildStatusFailed — хотя бы один job упал.
	BuildStatusFailed BuildStatus = "FAILED"

	// BuildStatusCancelled — build отменён пользователем.
	BuildStatusCancelled BuildStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (build завершён).
func (s BuildStatus) IsTerminal() bool {
	switch s {
	case BuildStatusSucceeded, BuildStatusFailed, BuildStatusCancelled:
		return true
	default:
		return false
	}
}

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → SUCCEEDED
//	                 ↘ FAILED
//	(или) → SKIPPED (зависимость упала, job не запускался)
type JobStatus string

const (
	// JobStatusQueued — job в очереди, ожидает агента.
	JobStatusQueued JobStatus = "QUEUED"

	// JobStatusRunning — job выполняется агентом.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusSucceeded — все шаги job завершились успешно.
	JobStatusSucceeded JobStatus = "SUCCEEDED"

	// JobStatusFailed — шаг job завершился ненулевым кодом или таймаутом.
	JobStatusFailed JobStatus = "FAILED"

	// JobStatusSkipped — job пропущен из-за упавшей зависимости.
	JobStatusSkipped JobStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusSkipped:
		return true
	default:
		return false
	}
}

// StepStatus — статус выполнения отдельного шага job.
type StepStatus string

const (
	// StepStatusSucceeded — шаг завершился с нулевым кодом выхода.
	StepStatusSucceeded StepStatus = "SUCCEEDED"

	// StepStatusFailed — шаг завершился с ненулевым кодом или таймаутом.
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusSkipped — шаг не выполнялся: предыдущий шаг упал.
	StepStatusSkipped StepStatus = "SKIPPED"
)

// BuildTrigger — источник запуска build.
type BuildTrigger string

const (
	// TriggerAPI — build запущен через API или CLI.
	TriggerAPI BuildTrigger = "api"

	// TriggerSchedule — build создан планировщиком.
	TriggerSchedule BuildTrigger = "schedule"
)
