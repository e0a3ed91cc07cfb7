package agent

import (
	"context"
	"fmt"
	"io"

	"github.com/akorzh/Conveyor/internal/domain"
)

// StepContext — окружение выполнения шага внутри job.
//
// Формируется агентом один раз на job и передаётся каждому шагу.
type StepContext struct {
	// Workspace — корневая директория job.
	Workspace string

	// WorkDir — рабочая директория job относительно workspace
	// (из эффективного JobDef; шаг может переопределить своей).
	WorkDir string

	// Env — полное окружение процесса шага в формате KEY=VALUE.
	// Слои: окружение агента < встроенные CONVEYOR_* < env job.
	// Env шага накладывается executor'ом поверх.
	Env []string

	// Shell — интерпретатор для run-шагов (default: sh).
	Shell string

	// RepoURL, Branch, Commit — параметры checkout.
	RepoURL string
	Branch  string
	Commit  string

	// Log — приёмник combined output шагов (полный лог job).
	Log io.Writer
}

// ExecutionResult — результат выполнения шага.
type ExecutionResult struct {
	// ExitCode — код выхода процесса. Ненулевой код проваливает job.
	ExitCode int

	// OutputTail — последние строки combined output.
	OutputTail string
}

// StepExecutor — интерфейс для выполнения конкретного типа шага.
//
// Реализации: RunExecutor, CheckoutExecutor.
//
// Инфраструктурные ошибки (невозможность запустить процесс, таймаут)
// возвращаются через error. Ненулевой код выхода — не error:
// он возвращается в ExecutionResult.ExitCode.
type StepExecutor interface {
	Execute(ctx context.Context, step *domain.StepDef, sc *StepContext) (*ExecutionResult, error)
}

// Registry — реестр executor'ов по типу шага.
type Registry struct {
	executors map[string]StepExecutor
}

// NewRegistry создаёт реестр с зарегистрированными executor'ами по умолчанию.
//
// Регистрирует: run, checkout.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]StepExecutor)}
	r.Register("run", &RunExecutor{})
	r.Register("checkout", &CheckoutExecutor{})
	return r
}

// Register добавляет executor для типа шага.
func (r *Registry) Register(stepType string, executor StepExecutor) {
	r.executors[stepType] = executor
}

// Get возвращает executor для типа шага.
func (r *Registry) Get(stepType string) (StepExecutor, error) {
	executor, ok := r.executors[stepType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStepType, stepType)
	}
	return executor, nil
}
