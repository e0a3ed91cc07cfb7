package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/akorzh/Conveyor/internal/domain"
)

const (
	defaultStepTimeout = 30 * time.Minute

	// outputTailLimit — сколько байт combined output сохраняется
	// в StepResult. Полный лог пишется в sc.Log.
	outputTailLimit = 4096
)

// RunExecutor — executor для шага типа "run".
//
// Выполняет команду через shell: `sh -c "<run>"`. Combined output
// (stdout+stderr) пишется в лог job, хвост возвращается в результате.
//
// Окружение процесса: sc.Env + env шага поверх.
type RunExecutor struct{}

// Execute выполняет run-шаг.
func (e *RunExecutor) Execute(ctx context.Context, step *domain.StepDef, sc *StepContext) (*ExecutionResult, error) {
	shell := sc.Shell
	if shell == "" {
		shell = "sh"
	}

	timeout := stepTimeout(step)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shell, "-c", step.Run)
	cmd.Dir = stepDir(sc, step)
	cmd.Env = append(append([]string(nil), sc.Env...), envSlice(step.Env)...)

	var output bytes.Buffer
	sink := io.Writer(&output)
	if sc.Log != nil {
		sink = io.MultiWriter(&output, sc.Log)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	err := cmd.Run()

	result := &ExecutionResult{
		ExitCode:   0,
		OutputTail: tail(output.Bytes(), outputTailLimit),
	}

	if err == nil {
		return result, nil
	}

	// Таймаут — инфраструктурная ошибка
	if ctx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("%w: after %s", ErrStepTimeout, timeout)
	}

	// Ненулевой код выхода — не ошибка executor'а
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	// Процесс не удалось запустить
	return result, fmt.Errorf("run step: %w", err)
}

// stepDir возвращает рабочую директорию шага.
// Шаг может переопределить директорию job.
func stepDir(sc *StepContext, step *domain.StepDef) string {
	dir := sc.WorkDir
	if step.WorkDir != "" {
		dir = step.WorkDir
	}
	if dir == "" {
		return sc.Workspace
	}
	return filepath.Join(sc.Workspace, filepath.FromSlash(dir))
}

// stepTimeout возвращает таймаут шага.
func stepTimeout(step *domain.StepDef) time.Duration {
	if step.TimeoutSec > 0 {
		return time.Duration(step.TimeoutSec) * time.Second
	}
	return defaultStepTimeout
}

// envSlice конвертирует map переменных в формат KEY=VALUE.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	vars := make([]string, 0, len(env))
	for k, v := range env {
		vars = append(vars, k+"="+v)
	}
	return vars
}

// tail возвращает последние limit байт вывода.
func tail(output []byte, limit int) string {
	if len(output) <= limit {
		return string(output)
	}
	return string(output[len(output)-limit:])
}
