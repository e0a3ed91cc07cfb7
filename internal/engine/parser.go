package engine

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/akorzh/Conveyor/internal/domain"
)

// Допустимые типы шагов.
var validStepTypes = map[string]bool{
	"run":      true,
	"checkout": true,
}

// ParseSpec разбирает YAML конфигурацию pipeline и валидирует её.
//
// Возвращаемый spec готов к резолвингу шаблонов (ResolveJobs)
// и построению DAG.
func ParseSpec(data []byte) (*domain.PipelineSpec, error) {
	var spec domain.PipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseConfig, err)
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}

	return &spec, nil
}

// Validate выполняет полную валидацию PipelineSpec.
//
// Проверяет:
// - Наличие jobs
// - Уникальность имён jobs
// - Наличие и корректность шагов (каждый job обязан определить шаги)
// - Существование шаблонов, на которые ссылаются jobs
// - Валидность requires
// - Отсутствие циклов (делегируется DAG)
func Validate(spec *domain.PipelineSpec) error {
	if spec == nil {
		return ErrEmptyWorkflow
	}

	jobs := spec.Workflow.Jobs
	if len(jobs) == 0 {
		return ErrEmptyWorkflow
	}

	// Собираем имена jobs
	jobNames := make(map[string]bool, len(jobs))

	for i := range jobs {
		job := &jobs[i]

		if err := validateJob(spec, job, jobNames); err != nil {
			return err
		}
	}

	// Валидируем requires
	for i := range jobs {
		job := &jobs[i]

		for _, req := range job.Requires {
			if req == job.Name {
				return NewValidationError(job.Name, "requires",
					"job requires itself", ErrSelfRequirement)
			}
			if !jobNames[req] {
				return NewValidationError(job.Name, "requires",
					fmt.Sprintf("requires unknown job: %s", req), ErrMissingRequirement)
			}
		}
	}

	// Проверка циклов — строим DAG
	if _, err := BuildDAG(spec); err != nil {
		return err
	}

	return nil
}

// validateJob валидирует один job.
// jobNames — уже встреченные имена (для проверки уникальности).
func validateJob(spec *domain.PipelineSpec, job *domain.JobDef, jobNames map[string]bool) error {
	// Проверка имени
	if job.Name == "" {
		return NewValidationError("", "name", "job has empty name", ErrEmptyJobName)
	}

	// Проверка уникальности
	if jobNames[job.Name] {
		return NewValidationError(job.Name, "name",
			fmt.Sprintf("duplicate job name: %s", job.Name), ErrDuplicateJobName)
	}
	jobNames[job.Name] = true

	// Проверка шаблона
	if job.Template != "" {
		if _, ok := spec.Templates[job.Template]; !ok {
			return NewValidationError(job.Name, "template",
				fmt.Sprintf("unknown template: %s", job.Template), ErrUnknownTemplate)
		}
	}

	// Шаблон по умолчанию тоже обязан существовать
	if spec.Defaults != nil && spec.Defaults.Template != "" {
		if _, ok := spec.Templates[spec.Defaults.Template]; !ok {
			return NewValidationError(job.Name, "defaults.template",
				fmt.Sprintf("unknown default template: %s", spec.Defaults.Template), ErrUnknownTemplate)
		}
	}

	// Каждый job обязан определить шаги
	if len(job.Steps) == 0 {
		return NewValidationError(job.Name, "steps",
			"job has no steps", ErrEmptySteps)
	}

	for i := range job.Steps {
		step := &job.Steps[i]
		if err := validateStep(job.Name, step, i); err != nil {
			return err
		}
	}

	return nil
}

// validateStep проверяет тип шага и наличие команды для run-шагов.
func validateStep(jobName string, step *domain.StepDef, index int) error {
	stepType := step.StepType()

	if !validStepTypes[stepType] {
		return NewValidationError(jobName, "steps",
			fmt.Sprintf("step %d: unknown step type: %s", index+1, stepType), ErrUnknownStepType)
	}

	if stepType == "run" && step.Run == "" {
		return NewValidationError(jobName, "steps",
			fmt.Sprintf("step %d: run step has empty command", index+1), ErrEmptyRunCommand)
	}

	return nil
}

// IsValidStepType проверяет, является ли тип шага допустимым.
func IsValidStepType(stepType string) bool {
	return validStepTypes[stepType]
}
