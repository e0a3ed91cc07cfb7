package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/akorzh/Conveyor/internal/domain"
)

const defaultCheckoutTimeout = 10 * time.Minute

// CheckoutExecutor — executor для шага типа "checkout".
//
// Клонирует репозиторий pipeline в workspace и переключается на
// нужный коммит. Если коммит не задан, берётся HEAD ветки.
//
// Последовательность:
//  1. git clone --no-checkout <repo_url> <workspace>
//  2. git checkout <commit | origin/<branch>>
type CheckoutExecutor struct{}

// Execute выполняет checkout.
func (e *CheckoutExecutor) Execute(ctx context.Context, step *domain.StepDef, sc *StepContext) (*ExecutionResult, error) {
	if sc.RepoURL == "" {
		return nil, ErrNoRepoURL
	}

	timeout := stepTimeout(step)
	if step.TimeoutSec <= 0 {
		timeout = defaultCheckoutTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var output bytes.Buffer

	// Клонируем, если workspace ещё не содержит репозиторий.
	// Повторный checkout в том же workspace (несколько checkout-шагов
	// в одном job) просто переключает коммит.
	if _, err := os.Stat(filepath.Join(sc.Workspace, ".git")); err != nil {
		if result, err := e.git(ctx, sc, &output, "clone", "--no-checkout", sc.RepoURL, sc.Workspace); err != nil || result.ExitCode != 0 {
			return result, err
		}
	}

	ref := sc.Commit
	if ref == "" {
		ref = "origin/" + sc.Branch
		if result, err := e.git(ctx, sc, &output, "-C", sc.Workspace, "fetch", "origin", sc.Branch); err != nil || result.ExitCode != 0 {
			return result, err
		}
	}

	result, err := e.git(ctx, sc, &output, "-C", sc.Workspace, "checkout", "--force", ref)
	if err != nil || result.ExitCode != 0 {
		return result, err
	}

	return &ExecutionResult{
		ExitCode:   0,
		OutputTail: tail(output.Bytes(), outputTailLimit),
	}, nil
}

// git выполняет одну git-команду, накапливая вывод в общий буфер.
func (e *CheckoutExecutor) git(ctx context.Context, sc *StepContext, output *bytes.Buffer, args ...string) (*ExecutionResult, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = sc.Env

	sink := io.Writer(output)
	if sc.Log != nil {
		sink = io.MultiWriter(output, sc.Log)
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

	if ctx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("%w: git %s", ErrStepTimeout, args[len(args)-1])
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return result, fmt.Errorf("git: %w", err)
}
