package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pipeline — определение CI-конвейера.
//
// Pipeline — это "проект" в терминах CI: именованный набор jobs,
// который выполняется для конкретного коммита репозитория.
// Один pipeline может иметь множество ревизий конфигурации
// (PipelineVersion). Каждая сборка (Build) выполняет конкретную ревизию.
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя pipeline (например, "ibis", "backend-main").
	Name string `json:"name"`

	// RepoURL — URL git-репозитория, который собирает pipeline.
	// Используется шагом checkout.
	RepoURL string `json:"repo_url,omitempty"`

	// IsActive — флаг активности. Неактивные pipelines не собираются по расписанию.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания pipeline.
	CreatedAt time.Time `json:"created_at"`
}

// PipelineVersion — ревизия конфигурации pipeline.
//
// Каждая загрузка конфига создаёт новую ревизию с автоинкрементным номером.
// Builds закрепляются за конкретной ревизией, поэтому изменение конфига
// не влияет на уже запущенные сборки.
type PipelineVersion struct {
	// PipelineID — ссылка на родительский pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Revision — номер ревизии (1, 2, 3, ...).
	Revision int `json:"revision"`

	// Spec — разобранная конфигурация pipeline.
	Spec PipelineSpec `json:"spec"`

	// CreatedAt — время создания ревизии.
	CreatedAt time.Time `json:"created_at"`
}

// PipelineSpec — конфигурация pipeline (содержимое YAML-файла).
//
// Это "программа" для Conveyor: шаблоны jobs, сам workflow
// и настройки по умолчанию.
type PipelineSpec struct {
	// Version — версия формата конфигурации (для обратной совместимости).
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Name — имя pipeline (дублирует Pipeline.Name для удобства).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Templates — переиспользуемые заготовки jobs.
	// Ключ — имя шаблона, на которое ссылается JobDef.Template.
	// Это замена YAML anchor/merge: базовая заготовка + переопределения job.
	Templates map[string]JobTemplate `json:"templates,omitempty" yaml:"templates,omitempty"`

	// Defaults — настройки по умолчанию для всех jobs.
	Defaults *JobDefaults `json:"defaults,omitempty" yaml:"defaults,omitempty"`

	// Workflow — состав и связи jobs.
	Workflow WorkflowDef `json:"workflow" yaml:"workflow"`
}

// JobTemplate — переиспользуемая заготовка job.
//
// Шаблон задаёт окружение, в котором выполняются шаги:
// образ, рабочую директорию, переменные. Job, ссылающийся на шаблон,
// наследует эти поля и может переопределить любое из них.
type JobTemplate struct {
	// Image — образ/машина исполнения. Движок не контейнеризует job,
	// но экспортирует значение шагам через CONVEYOR_IMAGE.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// WorkDir — рабочая директория шагов относительно workspace.
	WorkDir string `json:"workdir,omitempty" yaml:"workdir,omitempty"`

	// Env — переменные окружения шаблона.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Shell — интерпретатор для run-шагов (default: sh).
	Shell string `json:"shell,omitempty" yaml:"shell,omitempty"`
}

// JobDefaults — настройки по умолчанию для jobs.
type JobDefaults struct {
	// Template — шаблон, применяемый к jobs без явного template.
	Template string `json:"template,omitempty" yaml:"template,omitempty"`

	// TimeoutSec — таймаут выполнения job в секундах.
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
}

// WorkflowDef — описание workflow: набор jobs и их связи.
//
// Jobs без requires выполняются параллельно (плоский fan-out).
// Requires задаёт рёбра DAG: job стартует только после
// успешного завершения всех перечисленных jobs.
type WorkflowDef struct {
	// Jobs — список jobs workflow.
	Jobs []JobDef `json:"jobs" yaml:"jobs"`
}

// JobDef — определение job в workflow.
type JobDef struct {
	// Name — уникальное имя job в рамках workflow.
	// Используется в requires и для идентификации исполнения.
	Name string `json:"name" yaml:"name"`

	// Template — имя шаблона из PipelineSpec.Templates.
	Template string `json:"template,omitempty" yaml:"template,omitempty"`

	// Image — переопределение образа шаблона.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// WorkDir — переопределение рабочей директории.
	WorkDir string `json:"workdir,omitempty" yaml:"workdir,omitempty"`

	// Env — переменные job. Сливаются поверх env шаблона.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Shell — переопределение интерпретатора.
	Shell string `json:"shell,omitempty" yaml:"shell,omitempty"`

	// Requires — имена jobs, от которых зависит этот job.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`

	// Steps — упорядоченный список шагов.
	// Выполняются строго последовательно; ненулевой код выхода
	// прерывает оставшиеся шаги.
	Steps []StepDef `json:"steps" yaml:"steps"`

	// Artifacts — glob-маски файлов workspace, сохраняемых после выполнения.
	Artifacts []string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`

	// TestReports — glob-маски файлов с отчётами тестов (JUnit XML).
	TestReports []string `json:"test_reports,omitempty" yaml:"test_reports,omitempty"`

	// TimeoutSec — таймаут job. Переопределяет defaults.timeout_sec.
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
}

// StepDef — определение шага внутри job.
type StepDef struct {
	// Name — человекочитаемое имя шага.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Type — тип шага: "run" (default), "checkout".
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Run — команда для shell (только для type="run").
	// Может содержать шаблонные выражения: {{ .Build.Branch }}.
	Run string `json:"run,omitempty" yaml:"run,omitempty"`

	// Env — переменные шага. Сливаются поверх env job.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// WorkDir — переопределение рабочей директории для шага.
	WorkDir string `json:"workdir,omitempty" yaml:"workdir,omitempty"`

	// TimeoutSec — таймаут шага в секундах.
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
}

// StepType возвращает тип шага с учётом значения по умолчанию.
func (s *StepDef) StepType() string {
	if s.Type == "" {
		return "run"
	}
	return s.Type
}

// DisplayName возвращает имя шага для логов и результатов.
func (s *StepDef) DisplayName(index int) string {
	if s.Name != "" {
		return s.Name
	}
	if s.StepType() == "checkout" {
		return "checkout"
	}
	return fmt.Sprintf("step %d", index+1)
}
