package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — исполнение одного job workflow внутри build.
//
// Job создаётся Orchestrator'ом когда:
// - Build стартует (для jobs без requires)
// - Все requires job'а завершились успешно
//
// Job выполняется Agent'ом: шаги строго последовательно,
// первый ненулевой код выхода прерывает оставшиеся.
type Job struct {
	// ID — уникальный идентификатор исполнения.
	ID uuid.UUID `json:"id"`

	// BuildID — ссылка на родительский build.
	BuildID uuid.UUID `json:"build_id"`

	// Name — имя job из WorkflowDef (соответствует JobDef.Name).
	Name string `json:"name"`

	// Status — текущий статус job.
	Status JobStatus `json:"status"`

	// Spec — эффективное определение job: JobDef после слияния
	// с шаблоном и рендеринга контекста build. Это то, что Agent
	// получает для выполнения.
	Spec *JobDef `json:"spec,omitempty"`

	// Steps — результаты выполнения шагов.
	// Заполняется Agent'ом по ходу выполнения.
	Steps []StepResult `json:"steps,omitempty"`

	// Tests — сводка по отчётам тестов (если job объявил test_reports).
	Tests *TestSummary `json:"tests,omitempty"`

	// LogRef — путь к полному логу job в artifact store.
	LogRef string `json:"log_ref,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания job.
	CreatedAt time.Time `json:"created_at"`
}

// StepResult — результат выполнения одного шага.
type StepResult struct {
	// Name — имя шага.
	Name string `json:"name"`

	// Type — тип шага: "run", "checkout".
	Type string `json:"type"`

	// Status — итог выполнения.
	Status StepStatus `json:"status"`

	// ExitCode — код выхода процесса (для run-шагов).
	ExitCode int `json:"exit_code"`

	// DurationMs — продолжительность выполнения.
	DurationMs int64 `json:"duration_ms"`

	// OutputTail — последние строки combined output шага.
	// Полный лог лежит в файле, на который указывает Job.LogRef.
	OutputTail string `json:"output_tail,omitempty"`

	// Error — описание ошибки (таймаут, невозможность запуска).
	Error string `json:"error,omitempty"`
}

// TestSummary — сводка по разобранным отчётам тестов job.
type TestSummary struct {
	// Total — общее количество тестов.
	Total int `json:"total"`

	// Failures — количество упавших.
	Failures int `json:"failures"`

	// Errors — количество завершившихся ошибкой.
	Errors int `json:"errors"`

	// Skipped — количество пропущенных.
	Skipped int `json:"skipped"`
}

// Passed возвращает true, если ни один тест не упал.
func (t *TestSummary) Passed() bool {
	return t.Failures == 0 && t.Errors == 0
}

// Duration возвращает продолжительность выполнения.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// IsFinished возвращает true, если job завершён.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkRunning переводит job в статус RUNNING.
func (j *Job) MarkRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// MarkSucceeded переводит job в статус SUCCEEDED.
func (j *Job) MarkSucceeded() {
	now := time.Now()
	j.Status = JobStatusSucceeded
	j.FinishedAt = &now
}

// MarkFailed переводит job в статус FAILED с ошибкой.
func (j *Job) MarkFailed(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.FinishedAt = &now
	j.Error = err
}

// MarkSkipped помечает job пропущенным (зависимость упала).
func (j *Job) MarkSkipped(reason string) {
	now := time.Now()
	j.Status = JobStatusSkipped
	j.FinishedAt = &now
	j.Error = reason
}
