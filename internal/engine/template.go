package engine

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/akorzh/Conveyor/internal/domain"
)

// Context — контекст рендеринга для значений конфигурации.
//
// Используется в Go templates для доступа к данным build:
//   - {{ .Build.Branch }}
//   - {{ .Build.Commit }}
//   - {{ .Pipeline.Name }}
//   - {{ .Env.VAR_NAME }}
type Context struct {
	// Build — параметры текущего build.
	Build BuildContext `json:"build"`

	// Pipeline — параметры pipeline.
	Pipeline PipelineContext `json:"pipeline"`

	// Env — переменные окружения build (из Build.Env).
	Env map[string]string `json:"env"`
}

// BuildContext — данные build, доступные шаблонам.
type BuildContext struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Branch string `json:"branch"`
	Commit string `json:"commit"`
}

// PipelineContext — данные pipeline, доступные шаблонам.
type PipelineContext struct {
	Name    string `json:"name"`
	RepoURL string `json:"repo_url"`
}

// NewContext создаёт контекст рендеринга для build.
func NewContext(pipeline *domain.Pipeline, build *domain.Build) *Context {
	env := build.Env
	if env == nil {
		env = make(map[string]string)
	}
	return &Context{
		Build: BuildContext{
			ID:     build.ID.String(),
			Number: build.Number,
			Branch: build.Branch,
			Commit: build.Commit,
		},
		Pipeline: PipelineContext{
			Name:    pipeline.Name,
			RepoURL: pipeline.RepoURL,
		},
		Env: env,
	}
}

// BuiltinEnv возвращает переменные окружения, которые движок
// экспортирует каждому шагу. Это нижний слой env-наложения:
// template env, job env и step env перекрывают его.
func (c *Context) BuiltinEnv() map[string]string {
	return map[string]string{
		"CONVEYOR_BUILD_ID":  c.Build.ID,
		"CONVEYOR_BUILD_NUM": fmt.Sprintf("%d", c.Build.Number),
		"CONVEYOR_BRANCH":    c.Build.Branch,
		"CONVEYOR_COMMIT":    c.Build.Commit,
		"CONVEYOR_PIPELINE":  c.Pipeline.Name,
		"CONVEYOR_REPO_URL":  c.Pipeline.RepoURL,
	}
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// default — возвращает значение по умолчанию, если аргумент пустой
	"default": func(def, val string) string {
		if val == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...string) string {
		for _, v := range values {
			if v != "" {
				return v
			}
		}
		return ""
	},

	// shortSHA — первые 7 символов коммита
	"shortSHA": func(sha string) string {
		if len(sha) > 7 {
			return sha[:7]
		}
		return sha
	},

	// lower — приводит к нижнему регистру
	"lower": strings.ToLower,

	// upper — приводит к верхнему регистру
	"upper": strings.ToUpper,

	// trim — удаляет пробелы по краям
	"trim": strings.TrimSpace,

	// replace — заменяет подстроку
	"replace": strings.ReplaceAll,

	// contains — проверяет, содержит ли строка подстроку
	"contains": strings.Contains,

	// hasPrefix — проверяет префикс строки
	"hasPrefix": strings.HasPrefix,

	// hasSuffix — проверяет суффикс строки
	"hasSuffix": strings.HasSuffix,
}

// Render рендерит строковое значение конфигурации с контекстом.
//
// Значение может содержать Go template выражения:
//
//	docs/{{ .Build.Branch }}
//	{{ .Pipeline.Name }}-{{ shortSHA .Build.Commit }}.tar.gz
func Render(tmpl string, ctx *Context) (string, error) {
	// Строки без шаблонных выражений возвращаем как есть
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderEnv рендерит все значения набора переменных.
func RenderEnv(env map[string]string, ctx *Context) (map[string]string, error) {
	if env == nil {
		return nil, nil
	}

	rendered := make(map[string]string, len(env))
	for key, val := range env {
		r, err := Render(val, ctx)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", key, err)
		}
		rendered[key] = r
	}
	return rendered, nil
}

// RenderStrings рендерит слайс строковых значений (команды, glob-маски).
func RenderStrings(values []string, ctx *Context) ([]string, error) {
	if values == nil {
		return nil, nil
	}

	rendered := make([]string, len(values))
	for i, val := range values {
		r, err := Render(val, ctx)
		if err != nil {
			return nil, err
		}
		rendered[i] = r
	}
	return rendered, nil
}

// RenderJob рендерит все шаблонные значения эффективного job:
// env, команды шагов, glob-маски артефактов.
//
// Вызывается оркестратором перед диспетчеризацией, поэтому Agent
// получает уже готовые значения.
func RenderJob(job *domain.JobDef, ctx *Context) (*domain.JobDef, error) {
	rendered := *job

	var err error
	if rendered.Env, err = RenderEnv(job.Env, ctx); err != nil {
		return nil, err
	}
	if rendered.WorkDir, err = Render(job.WorkDir, ctx); err != nil {
		return nil, err
	}
	if rendered.Artifacts, err = RenderStrings(job.Artifacts, ctx); err != nil {
		return nil, err
	}
	if rendered.TestReports, err = RenderStrings(job.TestReports, ctx); err != nil {
		return nil, err
	}

	rendered.Steps = make([]domain.StepDef, len(job.Steps))
	for i := range job.Steps {
		step := job.Steps[i]

		if step.Run, err = Render(step.Run, ctx); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.DisplayName(i), err)
		}
		if step.Env, err = RenderEnv(step.Env, ctx); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.DisplayName(i), err)
		}
		if step.WorkDir, err = Render(step.WorkDir, ctx); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.DisplayName(i), err)
		}

		rendered.Steps[i] = step
	}

	return &rendered, nil
}
