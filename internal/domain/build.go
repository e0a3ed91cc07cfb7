package domain

import (
	"time"

	"github.com/google/uuid"
)

// Build — одно выполнение pipeline для конкретного коммита.
//
// Build создаётся когда:
// - Пользователь запускает pipeline вручную (через API/CLI)
// - Scheduler создаёт build по расписанию
//
// Каждый build закреплён за конкретной ревизией конфигурации
// и имеет свой набор jobs.
type Build struct {
	// ID — уникальный идентификатор build.
	ID uuid.UUID `json:"id"`

	// PipelineID — ссылка на pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Revision — ревизия конфигурации, которая выполняется.
	Revision int `json:"revision"`

	// Number — порядковый номер build в рамках pipeline (для людей).
	Number int `json:"number"`

	// Status — текущий статус выполнения.
	Status BuildStatus `json:"status"`

	// Branch — ветка репозитория.
	Branch string `json:"branch"`

	// Commit — SHA коммита. Может быть пустым для ручных запусков —
	// тогда checkout берёт HEAD ветки.
	Commit string `json:"commit,omitempty"`

	// Trigger — источник запуска: api или schedule.
	Trigger BuildTrigger `json:"trigger"`

	// Env — дополнительные переменные окружения для всех jobs build.
	Env map[string]string `json:"env,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если build завершился с FAILED.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Для scheduled builds: "{schedule_id}_{next_due_at}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// CreatedAt — время создания build.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если build ещё не завершён.
func (b *Build) Duration() time.Duration {
	if b.StartedAt == nil || b.FinishedAt == nil {
		return 0
	}
	return b.FinishedAt.Sub(*b.StartedAt)
}

// IsFinished возвращает true, если build завершён (в любом статусе).
func (b *Build) IsFinished() bool {
	return b.Status.IsTerminal()
}

// MarkRunning переводит build в статус RUNNING.
func (b *Build) MarkRunning() {
	now := time.Now()
	b.Status = BuildStatusRunning
	b.StartedAt = &now
}

// MarkSucceeded переводит build в статус SUCCEEDED.
func (b *Build) MarkSucceeded() {
	now := time.Now()
	b.Status = BuildStatusSucceeded
	b.FinishedAt = &now
}

// MarkFailed переводит build в статус FAILED с ошибкой.
func (b *Build) MarkFailed(err string) {
	now := time.Now()
	b.Status = BuildStatusFailed
	b.FinishedAt = &now
	b.Error = err
}

// MarkCancelled переводит build в статус CANCELLED.
func (b *Build) MarkCancelled() {
	now := time.Now()
	b.Status = BuildStatusCancelled
	b.FinishedAt = &now
}
