package engine

import "errors"

// Ошибки валидации PipelineSpec.
var (
	// ErrEmptyWorkflow — конфигурация не содержит jobs.
	ErrEmptyWorkflow = errors.New("workflow has no jobs")

	// ErrEmptyJobName — job не имеет имени.
	ErrEmptyJobName = errors.New("job has empty name")

	// ErrDuplicateJobName — несколько jobs с одинаковым именем.
	ErrDuplicateJobName = errors.New("duplicate job name")

	// ErrEmptySteps — job не содержит шагов.
	ErrEmptySteps = errors.New("job has no steps")

	// ErrEmptyRunCommand — run-шаг без команды.
	ErrEmptyRunCommand = errors.New("run step has empty command")

	// ErrUnknownStepType — неизвестный тип шага.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrUnknownTemplate — job ссылается на несуществующий шаблон.
	ErrUnknownTemplate = errors.New("job references unknown template")

	// ErrMissingRequirement — job зависит от несуществующего job.
	ErrMissingRequirement = errors.New("job requires unknown job")

	// ErrSelfRequirement — job зависит от самого себя.
	ErrSelfRequirement = errors.New("job requires itself")

	// ErrCyclicRequirement — обнаружен цикл в requires.
	ErrCyclicRequirement = errors.New("cyclic requirement detected")
)

// Ошибки разбора и рендеринга.
var (
	// ErrParseConfig — YAML конфигурация не разобрана.
	ErrParseConfig = errors.New("parse pipeline config failed")

	// ErrTemplateParse — ошибка парсинга шаблонного выражения.
	ErrTemplateParse = errors.New("template parse failed")

	// ErrTemplateRender — ошибка рендеринга шаблонного выражения.
	ErrTemplateRender = errors.New("template render failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Job     string // имя job, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Job != "" {
		return "job " + e.Job + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(job, field, message string, err error) *ValidationError {
	return &ValidationError{
		Job:     job,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
