package agent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/artifacts"
	"github.com/akorzh/Conveyor/internal/domain"
)

func runContext(t *testing.T) *StepContext {
	t.Helper()
	return &StepContext{
		Workspace: t.TempDir(),
		Env:       []string{"PATH=/usr/bin:/bin"},
	}
}

func TestRunExecutor_Success(t *testing.T) {
	e := &RunExecutor{}
	sc := runContext(t)

	result, err := e.Execute(context.Background(), &domain.StepDef{Run: "echo hello"}, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
	if !strings.Contains(result.OutputTail, "hello") {
		t.Errorf("expected output to contain hello, got %q", result.OutputTail)
	}
}

func TestRunExecutor_NonZeroExit(t *testing.T) {
	e := &RunExecutor{}
	sc := runContext(t)

	result, err := e.Execute(context.Background(), &domain.StepDef{Run: "exit 3"}, sc)
	if err != nil {
		t.Fatalf("non-zero exit must not be an executor error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", result.ExitCode)
	}
}

func TestRunExecutor_StepEnvOverrides(t *testing.T) {
	e := &RunExecutor{}
	sc := runContext(t)
	sc.Env = append(sc.Env, "GREETING=from-job")

	step := &domain.StepDef{
		Run: "echo $GREETING",
		Env: map[string]string{"GREETING": "from-step"},
	}

	result, err := e.Execute(context.Background(), step, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.OutputTail, "from-step") {
		t.Errorf("step env must override job env, got %q", result.OutputTail)
	}
}

func TestRunExecutor_Timeout(t *testing.T) {
	e := &RunExecutor{}
	sc := runContext(t)

	step := &domain.StepDef{Run: "sleep 5", TimeoutSec: 1}

	_, err := e.Execute(context.Background(), step, sc)
	if !errors.Is(err, ErrStepTimeout) {
		t.Errorf("expected ErrStepTimeout, got %v", err)
	}
}

func TestRunExecutor_CapturesStderr(t *testing.T) {
	e := &RunExecutor{}
	sc := runContext(t)

	result, err := e.Execute(context.Background(), &domain.StepDef{Run: "echo oops >&2"}, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.OutputTail, "oops") {
		t.Errorf("expected stderr in combined output, got %q", result.OutputTail)
	}
}

func TestRunExecutor_WritesToLog(t *testing.T) {
	e := &RunExecutor{}
	sc := runContext(t)

	var logBuf bytes.Buffer
	sc.Log = &logBuf

	if _, err := e.Execute(context.Background(), &domain.StepDef{Run: "echo logged"}, sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(logBuf.String(), "logged") {
		t.Errorf("expected job log to contain step output, got %q", logBuf.String())
	}
}

func TestCheckoutExecutor_RequiresRepoURL(t *testing.T) {
	e := &CheckoutExecutor{}
	sc := runContext(t)

	_, err := e.Execute(context.Background(), &domain.StepDef{Type: "checkout"}, sc)
	if !errors.Is(err, ErrNoRepoURL) {
		t.Errorf("expected ErrNoRepoURL, got %v", err)
	}
}

// recordingArtifactWriter запоминает состояние контекста на момент
// каждого вызова CreateBatch.
type recordingArtifactWriter struct {
	ctxErrs []error
	saved   []domain.Artifact
}

func (w *recordingArtifactWriter) CreateBatch(ctx context.Context, arts []domain.Artifact) error {
	w.ctxErrs = append(w.ctxErrs, ctx.Err())
	w.saved = append(w.saved, arts...)
	return nil
}

func TestExecuteJob_TimeoutStillCollectsArtifacts(t *testing.T) {
	writer := &recordingArtifactWriter{}

	a := &Agent{
		artifactRepo: writer,
		store:        artifacts.NewStore(t.TempDir()),
		registry:     NewRegistry(),
		workRoot:     t.TempDir(),
		logger:       slog.Default(),
	}

	job := &domain.Job{
		ID:      uuid.New(),
		BuildID: uuid.New(),
		Name:    "tests",
		Spec: &domain.JobDef{
			Name:       "tests",
			TimeoutSec: 1,
			Steps: []domain.StepDef{
				{Name: "report", Run: "echo data > out.txt"},
				{Name: "hang", Run: "sleep 5"},
			},
			Artifacts: []string{"out.txt"},
		},
	}
	build := &domain.Build{ID: job.BuildID, Branch: "main"}
	pipeline := &domain.Pipeline{Name: "demo"}

	err := a.executeJob(context.Background(), job, build, pipeline)
	if err == nil {
		t.Fatal("expected job to fail on timeout")
	}

	// Сбор результатов идёт после истечения таймаута job,
	// но артефакты и лог всё равно должны быть сохранены.
	if len(writer.saved) == 0 {
		t.Fatal("expected artifact metadata to be persisted")
	}
	for _, ctxErr := range writer.ctxErrs {
		if ctxErr != nil {
			t.Errorf("artifact persistence must not see the expired job context: %v", ctxErr)
		}
	}

	var foundFile bool
	for _, art := range writer.saved {
		if art.Kind == domain.ArtifactKindFile {
			foundFile = true
		}
	}
	if !foundFile {
		t.Errorf("expected collected file artifact, got %+v", writer.saved)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, stepType := range []string{"run", "checkout"} {
		if _, err := r.Get(stepType); err != nil {
			t.Errorf("expected executor for %s, got error: %v", stepType, err)
		}
	}

	_, err := r.Get("docker")
	if !errors.Is(err, ErrUnknownStepType) {
		t.Errorf("expected ErrUnknownStepType, got %v", err)
	}
}

func TestRunSteps_FailFast(t *testing.T) {
	a := New(Config{})

	job := &domain.Job{
		ID:      uuid.New(),
		BuildID: uuid.New(),
		Name:    "test",
		Spec: &domain.JobDef{
			Name: "test",
			Steps: []domain.StepDef{
				{Name: "first", Run: "echo ok"},
				{Name: "second", Run: "exit 1"},
				{Name: "third", Run: "echo never"},
			},
		},
		CreatedAt: time.Now(),
	}

	var logBuf bytes.Buffer
	sc := &StepContext{
		Workspace: t.TempDir(),
		Log:       &logBuf,
	}

	err := a.runSteps(context.Background(), job, sc, &logBuf)
	if err == nil {
		t.Fatal("expected job failure")
	}
	if !strings.Contains(err.Error(), "second") {
		t.Errorf("error must name the failed step, got %v", err)
	}

	if len(job.Steps) != 3 {
		t.Fatalf("expected 3 step results, got %d", len(job.Steps))
	}
	if job.Steps[0].Status != domain.StepStatusSucceeded {
		t.Errorf("first step should succeed, got %s", job.Steps[0].Status)
	}
	if job.Steps[1].Status != domain.StepStatusFailed {
		t.Errorf("second step should fail, got %s", job.Steps[1].Status)
	}
	if job.Steps[1].ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", job.Steps[1].ExitCode)
	}
	if job.Steps[2].Status != domain.StepStatusSkipped {
		t.Errorf("third step should be skipped, got %s", job.Steps[2].Status)
	}
}

func TestRunSteps_AllSucceed(t *testing.T) {
	a := New(Config{})

	job := &domain.Job{
		ID:      uuid.New(),
		BuildID: uuid.New(),
		Name:    "lint",
		Spec: &domain.JobDef{
			Name: "lint",
			Steps: []domain.StepDef{
				{Run: "echo one"},
				{Run: "echo two"},
			},
		},
		CreatedAt: time.Now(),
	}

	var logBuf bytes.Buffer
	sc := &StepContext{
		Workspace: t.TempDir(),
		Log:       &logBuf,
	}

	if err := a.runSteps(context.Background(), job, sc, &logBuf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, step := range job.Steps {
		if step.Status != domain.StepStatusSucceeded {
			t.Errorf("step %d should succeed, got %s", i, step.Status)
		}
	}
}

func TestStepDir(t *testing.T) {
	sc := &StepContext{Workspace: "/ws", WorkDir: "src"}

	if got := stepDir(sc, &domain.StepDef{}); got != "/ws/src" {
		t.Errorf("expected /ws/src, got %s", got)
	}
	if got := stepDir(sc, &domain.StepDef{WorkDir: "docs"}); got != "/ws/docs" {
		t.Errorf("expected /ws/docs, got %s", got)
	}

	sc.WorkDir = ""
	if got := stepDir(sc, &domain.StepDef{}); got != "/ws" {
		t.Errorf("expected /ws, got %s", got)
	}
}

func TestTail(t *testing.T) {
	if got := tail([]byte("short"), 10); got != "short" {
		t.Errorf("expected short, got %q", got)
	}
	if got := tail([]byte("0123456789abcdef"), 4); got != "cdef" {
		t.Errorf("expected cdef, got %q", got)
	}
}
