package orchestrator

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
)

// versionWithJobs создаёт ревизию конфигурации с перечисленными jobs.
func versionWithJobs(jobs ...domain.JobDef) *domain.PipelineVersion {
	return &domain.PipelineVersion{
		PipelineID: uuid.New(),
		Revision:   1,
		Spec: domain.PipelineSpec{
			Workflow: domain.WorkflowDef{Jobs: jobs},
		},
	}
}

func job(name string, requires ...string) domain.JobDef {
	return domain.JobDef{
		Name:     name,
		Requires: requires,
		Steps:    []domain.StepDef{{Run: "echo " + name}},
	}
}

func testState(jobs ...domain.JobDef) *BuildState {
	pipeline := &domain.Pipeline{ID: uuid.New(), Name: "demo", RepoURL: "https://example.com/demo.git"}
	build := &domain.Build{ID: uuid.New(), PipelineID: pipeline.ID, Revision: 1, Branch: "main"}
	return NewBuildState(pipeline, build, versionWithJobs(jobs...))
}

// --- BuildState Tests ---

func TestNewBuildState(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{}

	state := NewBuildState(&domain.Pipeline{}, build, version)

	if state.Build != build {
		t.Error("Build should be set")
	}
	if state.Version != version {
		t.Error("Version should be set")
	}
	if state.succeeded == nil {
		t.Error("succeeded map should be initialized")
	}
	if state.active == nil {
		t.Error("active map should be initialized")
	}
	if state.failed == nil {
		t.Error("failed map should be initialized")
	}
	if state.jobs == nil {
		t.Error("jobs map should be initialized")
	}
}

func TestBuildState_Initialize_EmptyWorkflow(t *testing.T) {
	state := testState()

	// Empty workflow should fail validation
	if err := state.Initialize(); err == nil {
		t.Error("expected error for empty workflow")
	}
}

func TestBuildState_Initialize_ValidSpec(t *testing.T) {
	state := testState(job("lint"), job("test"))

	if err := state.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.DAG == nil {
		t.Error("DAG should be built")
	}
	if state.JobDef("lint") == nil {
		t.Error("lint job def should be resolved")
	}
	if state.JobDef("test") == nil {
		t.Error("test job def should be resolved")
	}
}

func TestBuildState_Initialize_ResolvesTemplate(t *testing.T) {
	version := &domain.PipelineVersion{
		Revision: 1,
		Spec: domain.PipelineSpec{
			Templates: map[string]domain.JobTemplate{
				"go": {Image: "golang:1.24", Env: map[string]string{"CGO_ENABLED": "0"}},
			},
			Workflow: domain.WorkflowDef{Jobs: []domain.JobDef{
				{Name: "test", Template: "go", Steps: []domain.StepDef{{Run: "go test ./..."}}},
			}},
		},
	}
	pipeline := &domain.Pipeline{ID: uuid.New(), Name: "demo"}
	build := &domain.Build{ID: uuid.New(), PipelineID: pipeline.ID, Revision: 1, Branch: "main"}

	state := NewBuildState(pipeline, build, version)
	if err := state.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def := state.JobDef("test")
	if def == nil {
		t.Fatal("test job def should be resolved")
	}
	if def.Image != "golang:1.24" {
		t.Errorf("expected image from template, got %q", def.Image)
	}
	if def.Env["CGO_ENABLED"] != "0" {
		t.Error("template env should be inherited")
	}
}

func TestBuildState_Initialize_BuildEnvOverrides(t *testing.T) {
	version := versionWithJobs(domain.JobDef{
		Name:  "deploy",
		Env:   map[string]string{"TARGET": "staging"},
		Steps: []domain.StepDef{{Run: "make deploy"}},
	})
	pipeline := &domain.Pipeline{ID: uuid.New(), Name: "demo"}
	build := &domain.Build{
		ID:         uuid.New(),
		PipelineID: pipeline.ID,
		Revision:   1,
		Branch:     "main",
		Env:        map[string]string{"TARGET": "production"},
	}

	state := NewBuildState(pipeline, build, version)
	if err := state.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def := state.JobDef("deploy")
	if def.Env["TARGET"] != "production" {
		t.Errorf("build env must override job env, got %q", def.Env["TARGET"])
	}
}

func TestBuildState_MarkJobQueued(t *testing.T) {
	state := testState(job("lint"))
	_ = state.Initialize()

	j := &domain.Job{ID: uuid.New(), Name: "lint"}
	state.MarkJobQueued("lint", j)

	if !state.IsJobActive("lint") {
		t.Error("lint should be active")
	}
	if state.GetJob("lint") != j {
		t.Error("job should be stored")
	}
}

func TestBuildState_MarkJobSucceeded(t *testing.T) {
	state := testState(job("lint"))
	_ = state.Initialize()

	state.MarkJobQueued("lint", &domain.Job{})
	state.MarkJobSucceeded("lint")

	if state.IsJobActive("lint") {
		t.Error("lint should not be active")
	}
	if !state.IsJobFinished("lint") {
		t.Error("lint should be finished")
	}
	if state.HasFailed() {
		t.Error("state should not have failed jobs")
	}
}

func TestBuildState_MarkJobFailed(t *testing.T) {
	state := testState(job("test"))
	_ = state.Initialize()

	state.MarkJobQueued("test", &domain.Job{})
	state.MarkJobFailed("test")

	if state.IsJobActive("test") {
		t.Error("test should not be active")
	}
	if !state.HasFailed() {
		t.Error("state should have failed jobs")
	}

	failed := state.GetFailedJobs()
	if len(failed) != 1 || failed[0] != "test" {
		t.Errorf("test should be in failed jobs, got %v", failed)
	}
}

func TestBuildState_IsComplete(t *testing.T) {
	state := testState(job("lint"), job("test", "lint"))
	_ = state.Initialize()

	// Not complete initially
	if state.IsComplete() {
		t.Error("should not be complete initially")
	}

	state.MarkJobSucceeded("lint")
	if state.IsComplete() {
		t.Error("should not be complete with only lint done")
	}

	state.MarkJobSucceeded("test")
	if !state.IsComplete() {
		t.Error("should be complete with all jobs done")
	}
}

func TestBuildState_IsComplete_WithFailedAndSkipped(t *testing.T) {
	state := testState(job("build"), job("deploy", "build"))
	_ = state.Initialize()

	state.MarkJobFailed("build")
	if state.IsComplete() {
		t.Error("deploy is not finalized yet")
	}

	// Пропускаем dependents упавшего job
	blocked := state.CollectNewlyBlocked()
	if len(blocked) != 1 || blocked[0].Name != "deploy" {
		t.Fatalf("expected deploy to be blocked, got %v", blocked)
	}
	state.MarkJobSkipped("deploy", nil)

	if !state.IsComplete() {
		t.Error("should be complete: build failed, deploy skipped")
	}
}

func TestBuildState_GetReadyJobs(t *testing.T) {
	state := testState(
		job("lint"),
		job("test"),
		job("build", "lint", "test"),
	)
	_ = state.Initialize()

	// Initially lint and test are ready (flat fan-out)
	ready := state.GetReadyJobs()
	if len(ready) != 2 {
		t.Errorf("expected 2 ready jobs, got %d", len(ready))
	}

	readyNames := make(map[string]bool)
	for _, node := range ready {
		readyNames[node.Name] = true
	}
	if !readyNames["lint"] || !readyNames["test"] {
		t.Error("lint and test should be ready")
	}

	// Mark lint as queued
	state.MarkJobQueued("lint", &domain.Job{})

	ready = state.GetReadyJobs()
	if len(ready) != 1 {
		t.Errorf("expected 1 ready job, got %d", len(ready))
	}
	if ready[0].Name != "test" {
		t.Errorf("expected test to be ready, got %s", ready[0].Name)
	}

	// Complete both lint and test
	state.MarkJobSucceeded("lint")
	state.MarkJobQueued("test", &domain.Job{})
	state.MarkJobSucceeded("test")

	ready = state.GetReadyJobs()
	if len(ready) != 1 {
		t.Errorf("expected 1 ready job, got %d", len(ready))
	}
	if ready[0].Name != "build" {
		t.Errorf("expected build to be ready, got %s", ready[0].Name)
	}
}

func TestBuildState_CollectNewlyBlocked_Transitive(t *testing.T) {
	state := testState(
		job("build"),
		job("test", "build"),
		job("deploy", "test"),
	)
	_ = state.Initialize()

	state.MarkJobFailed("build")

	// Пропуск распространяется по всей цепочке за один вызов
	blocked := state.CollectNewlyBlocked()
	if len(blocked) != 2 {
		t.Fatalf("expected 2 blocked jobs, got %d", len(blocked))
	}

	names := make(map[string]bool)
	for _, node := range blocked {
		names[node.Name] = true
	}
	if !names["test"] || !names["deploy"] {
		t.Errorf("test and deploy should be blocked, got %v", names)
	}
}

func TestBuildState_IndependentBranchContinues(t *testing.T) {
	state := testState(
		job("lint"),
		job("build"),
		job("deploy", "build"),
	)
	_ = state.Initialize()

	state.MarkJobQueued("lint", &domain.Job{})
	state.MarkJobQueued("build", &domain.Job{})
	state.MarkJobFailed("build")

	for _, node := range state.CollectNewlyBlocked() {
		state.MarkJobSkipped(node.Name, nil)
	}

	// lint продолжает выполняться, несмотря на провал build
	if !state.IsJobActive("lint") {
		t.Error("lint should still be active")
	}
	if state.IsComplete() {
		t.Error("build is not complete while lint runs")
	}

	state.MarkJobSucceeded("lint")
	if !state.IsComplete() {
		t.Error("should be complete once lint finishes")
	}
	if !state.HasFailed() {
		t.Error("state should record the build job failure")
	}
}

func TestBuildState_Stats(t *testing.T) {
	state := testState(job("lint"), job("test"), job("build"))
	_ = state.Initialize()

	// Initial stats
	stats := state.Stats()
	if stats.TotalJobs != 3 {
		t.Errorf("expected 3 total jobs, got %d", stats.TotalJobs)
	}
	if stats.PendingJobs != 3 {
		t.Errorf("expected 3 pending jobs, got %d", stats.PendingJobs)
	}

	// Mark lint queued
	state.MarkJobQueued("lint", &domain.Job{})
	stats = state.Stats()
	if stats.ActiveJobs != 1 {
		t.Errorf("expected 1 active job, got %d", stats.ActiveJobs)
	}
	if stats.PendingJobs != 2 {
		t.Errorf("expected 2 pending jobs, got %d", stats.PendingJobs)
	}

	// Complete lint, fail test
	state.MarkJobSucceeded("lint")
	state.MarkJobFailed("test")
	stats = state.Stats()
	if stats.SucceededJobs != 1 {
		t.Errorf("expected 1 succeeded job, got %d", stats.SucceededJobs)
	}
	if stats.FailedJobs != 1 {
		t.Errorf("expected 1 failed job, got %d", stats.FailedJobs)
	}
	if stats.PendingJobs != 1 {
		t.Errorf("expected 1 pending job, got %d", stats.PendingJobs)
	}
}

func TestBuildState_RestoreFromJobs(t *testing.T) {
	state := testState(job("lint"), job("test"), job("build"), job("deploy"))
	_ = state.Initialize()

	jobs := []domain.Job{
		{ID: uuid.New(), Name: "lint", Status: domain.JobStatusSucceeded},
		{ID: uuid.New(), Name: "test", Status: domain.JobStatusFailed},
		{ID: uuid.New(), Name: "build", Status: domain.JobStatusRunning},
		{ID: uuid.New(), Name: "deploy", Status: domain.JobStatusQueued},
	}

	state.RestoreFromJobs(jobs)

	if !state.IsJobFinished("lint") {
		t.Error("lint should be finished")
	}
	if !state.HasFailed() {
		t.Error("state should have failed jobs")
	}
	if !state.IsJobActive("build") {
		t.Error("build should be active")
	}
	if !state.IsJobActive("deploy") {
		t.Error("deploy should be active")
	}
	if state.GetJob("lint") == nil {
		t.Error("lint job should be stored")
	}
}

func TestBuildState_IDs(t *testing.T) {
	buildID := uuid.New()
	pipelineID := uuid.New()
	build := &domain.Build{ID: buildID, PipelineID: pipelineID}
	state := NewBuildState(&domain.Pipeline{ID: pipelineID}, build, &domain.PipelineVersion{})

	if state.BuildID() != buildID {
		t.Error("BuildID should return build ID")
	}
	if state.PipelineID() != pipelineID {
		t.Error("PipelineID should return pipeline ID")
	}
}

// --- Orchestrator Tests ---

func TestNew(t *testing.T) {
	orch := New(Config{})

	if orch.activeBuilds == nil {
		t.Error("activeBuilds should be initialized")
	}
	if orch.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, orch.pollInterval)
	}
	if orch.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, orch.batchSize)
	}
}

func TestNew_CustomConfig(t *testing.T) {
	orch := New(Config{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
	})

	if orch.pollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", orch.pollInterval)
	}
	if orch.batchSize != 50 {
		t.Errorf("expected batch size 50, got %d", orch.batchSize)
	}
}

func TestOrchestrator_ActiveBuilds(t *testing.T) {
	orch := New(Config{})

	buildID := uuid.New()
	state := NewBuildState(&domain.Pipeline{}, &domain.Build{ID: buildID}, &domain.PipelineVersion{})

	// Initially no active builds
	if orch.ActiveBuildsCount() != 0 {
		t.Error("should have no active builds initially")
	}
	if orch.isBuildActive(buildID) {
		t.Error("build should not be active initially")
	}

	// Add active build
	if err := orch.addActiveBuild(state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if orch.ActiveBuildsCount() != 1 {
		t.Error("should have 1 active build")
	}
	if !orch.isBuildActive(buildID) {
		t.Error("build should be active")
	}
	if orch.getActiveBuild(buildID) != state {
		t.Error("getActiveBuild should return the state")
	}

	// Try to add same build again
	if err := orch.addActiveBuild(state); err != ErrBuildAlreadyActive {
		t.Errorf("expected ErrBuildAlreadyActive, got %v", err)
	}

	// Remove active build
	orch.removeActiveBuild(buildID)

	if orch.ActiveBuildsCount() != 0 {
		t.Error("should have no active builds after removal")
	}
	if orch.isBuildActive(buildID) {
		t.Error("build should not be active after removal")
	}
}

func TestOrchestrator_GetActiveBuildStats(t *testing.T) {
	orch := New(Config{})

	state := testState(job("lint"))
	_ = state.Initialize()
	buildID := state.BuildID()

	// No stats for non-existent build
	if _, ok := orch.GetActiveBuildStats(buildID); ok {
		t.Error("should not find stats for non-active build")
	}

	// Add build and get stats
	_ = orch.addActiveBuild(state)
	stats, ok := orch.GetActiveBuildStats(buildID)
	if !ok {
		t.Fatal("should find stats for active build")
	}
	if stats.TotalJobs != 1 {
		t.Errorf("expected 1 total job, got %d", stats.TotalJobs)
	}
}

func TestOrchestrator_IsStopped(t *testing.T) {
	orch := New(Config{})

	if orch.IsStopped() {
		t.Error("should not be stopped initially")
	}

	// Set stopped state directly (simulating Stop() call)
	orch.stoppedMu.Lock()
	orch.stopped = true
	orch.stoppedMu.Unlock()

	if !orch.IsStopped() {
		t.Error("should be stopped")
	}
}
