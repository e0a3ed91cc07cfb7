package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического запуска pipeline.
//
// Schedule позволяет собирать pipeline:
// - По cron-выражению: "0 3 * * *" (nightly в 3:00)
// - По интервалу: каждые N секунд
//
// Scheduler проверяет next_due_at и создаёт build, когда время подошло.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// PipelineID — ссылка на pipeline, который нужно собирать.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Name — имя расписания для удобства ("nightly", "weekly-benchmarks").
	Name string `json:"name,omitempty"`

	// Branch — ветка, для которой создаются builds.
	Branch string `json:"branch"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Примеры:
	//   "0 3 * * *"     — каждый день в 3:00
	//   "0 0 * * 0"     — каждое воскресенье в полночь
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	// Используется если CronExpr не задан.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс для вычисления времени.
	// По умолчанию: "UTC".
	Timezone string `json:"timezone"`

	// Enabled — флаг активности расписания.
	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего запуска.
	// Scheduler создаёт build, когда now >= NextDueAt.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastBuildAt — время последнего запуска.
	LastBuildAt *time.Time `json:"last_build_at,omitempty"`

	// LastBuildID — ID последнего созданного build.
	LastBuildID *uuid.UUID `json:"last_build_id,omitempty"`

	// Env — переменные окружения для создаваемых builds.
	Env map[string]string `json:"env,omitempty"`

	// CreatedAt — время создания schedule.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.NextDueAt == nil {
		return false
	}
	return now.After(*s.NextDueAt) || now.Equal(*s.NextDueAt)
}

// RecordBuild записывает информацию о созданном build.
func (s *Schedule) RecordBuild(buildID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastBuildAt = &now
	s.LastBuildID = &buildID
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}
