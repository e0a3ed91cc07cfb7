package engine

import (
	"github.com/akorzh/Conveyor/internal/domain"
)

// ResolveJob возвращает эффективное определение job: шаблон,
// слитый с переопределениями самого job.
//
// Правила слияния:
// - Скалярные поля (image, workdir, shell): значение job побеждает,
//   пустое значение наследуется из шаблона.
// - Env: сливается по ключам, ключи job перекрывают ключи шаблона.
// - TimeoutSec: job → defaults → 0 (без таймаута).
//
// Это программная замена YAML anchor/merge из CI-конфигураций:
// базовая заготовка + переопределения.
func ResolveJob(spec *domain.PipelineSpec, job *domain.JobDef) *domain.JobDef {
	resolved := *job
	resolved.Env = cloneEnv(job.Env)
	resolved.Requires = append([]string(nil), job.Requires...)
	resolved.Steps = append([]domain.StepDef(nil), job.Steps...)
	resolved.Artifacts = append([]string(nil), job.Artifacts...)
	resolved.TestReports = append([]string(nil), job.TestReports...)

	tmpl := lookupTemplate(spec, job)
	if tmpl != nil {
		if resolved.Image == "" {
			resolved.Image = tmpl.Image
		}
		if resolved.WorkDir == "" {
			resolved.WorkDir = tmpl.WorkDir
		}
		if resolved.Shell == "" {
			resolved.Shell = tmpl.Shell
		}
		resolved.Env = MergeEnv(tmpl.Env, resolved.Env)
	}

	if resolved.TimeoutSec == 0 && spec.Defaults != nil {
		resolved.TimeoutSec = spec.Defaults.TimeoutSec
	}

	return &resolved
}

// ResolveJobs резолвит все jobs workflow.
// Порядок сохраняется; ключ результата — имя job.
func ResolveJobs(spec *domain.PipelineSpec) map[string]*domain.JobDef {
	resolved := make(map[string]*domain.JobDef, len(spec.Workflow.Jobs))
	for i := range spec.Workflow.Jobs {
		job := &spec.Workflow.Jobs[i]
		resolved[job.Name] = ResolveJob(spec, job)
	}
	return resolved
}

// MergeEnv сливает два набора переменных: override перекрывает base.
// Оба аргумента остаются нетронутыми.
func MergeEnv(base, override map[string]string) map[string]string {
	if len(base) == 0 {
		return cloneEnv(override)
	}

	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// lookupTemplate находит шаблон для job: явный template или default.
func lookupTemplate(spec *domain.PipelineSpec, job *domain.JobDef) *domain.JobTemplate {
	name := job.Template
	if name == "" && spec.Defaults != nil {
		name = spec.Defaults.Template
	}
	if name == "" {
		return nil
	}

	tmpl, ok := spec.Templates[name]
	if !ok {
		// Валидация гарантирует существование; на всякий случай не падаем
		return nil
	}
	return &tmpl
}

func cloneEnv(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	cloned := make(map[string]string, len(env))
	for k, v := range env {
		cloned[k] = v
	}
	return cloned
}
