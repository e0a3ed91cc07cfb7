package engine

import (
	"errors"
	"testing"

	"github.com/akorzh/Conveyor/internal/domain"
)

func specWithJobs(jobs ...domain.JobDef) *domain.PipelineSpec {
	return &domain.PipelineSpec{
		Workflow: domain.WorkflowDef{Jobs: jobs},
	}
}

func runStep() []domain.StepDef {
	return []domain.StepDef{{Run: "true"}}
}

func TestBuildDAG_FlatFanOut(t *testing.T) {
	// Workflow без requires: все jobs корневые и выполняются параллельно
	spec := specWithJobs(
		domain.JobDef{Name: "lint", Steps: runStep()},
		domain.JobDef{Name: "test", Steps: runStep()},
		domain.JobDef{Name: "docs", Steps: runStep()},
	)

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", dag.Size())
	}
	if len(dag.RootNodes) != 3 {
		t.Errorf("expected 3 root nodes, got %d", len(dag.RootNodes))
	}

	for _, name := range []string{"lint", "test", "docs"} {
		node := dag.GetNode(name)
		if node == nil {
			t.Fatalf("node %s not found", name)
		}
		if node.InDegree != 0 {
			t.Errorf("node %s should have inDegree 0, got %d", name, node.InDegree)
		}
	}
}

func TestBuildDAG_SimpleChain(t *testing.T) {
	spec := specWithJobs(
		domain.JobDef{Name: "build", Steps: runStep()},
		domain.JobDef{Name: "test", Requires: []string{"build"}, Steps: runStep()},
		domain.JobDef{Name: "deploy", Requires: []string{"test"}, Steps: runStep()},
	)

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dag.RootNodes) != 1 {
		t.Errorf("expected 1 root node, got %d", len(dag.RootNodes))
	}
	if dag.RootNodes[0].Name != "build" {
		t.Errorf("expected root node build, got %s", dag.RootNodes[0].Name)
	}

	testNode := dag.GetNode("test")
	if len(testNode.Requires) != 1 || testNode.Requires[0].Name != "build" {
		t.Error("test should require build")
	}

	deployNode := dag.GetNode("deploy")
	if len(deployNode.Requires) != 1 || deployNode.Requires[0].Name != "test" {
		t.Error("deploy should require test")
	}
}

func TestBuildDAG_Diamond(t *testing.T) {
	// build → lint → release
	// build → test → release
	spec := specWithJobs(
		domain.JobDef{Name: "build", Steps: runStep()},
		domain.JobDef{Name: "lint", Requires: []string{"build"}, Steps: runStep()},
		domain.JobDef{Name: "test", Requires: []string{"build"}, Steps: runStep()},
		domain.JobDef{Name: "release", Requires: []string{"lint", "test"}, Steps: runStep()},
	)

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.Size() != 4 {
		t.Errorf("expected 4 nodes, got %d", dag.Size())
	}

	release := dag.GetNode("release")
	if len(release.Requires) != 2 {
		t.Errorf("release should have 2 requirements, got %d", len(release.Requires))
	}

	if dag.GetNode("build").InDegree != 0 {
		t.Error("build should have inDegree 0")
	}
	if dag.GetNode("lint").InDegree != 1 {
		t.Error("lint should have inDegree 1")
	}
	if dag.GetNode("release").InDegree != 2 {
		t.Error("release should have inDegree 2")
	}
}

func TestBuildDAG_DuplicateRequires(t *testing.T) {
	// Дубликат requires не должен задваивать InDegree
	spec := specWithJobs(
		domain.JobDef{Name: "build", Steps: runStep()},
		domain.JobDef{Name: "test", Requires: []string{"build", "build"}, Steps: runStep()},
	)

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.GetNode("test").InDegree != 1 {
		t.Errorf("test should have inDegree 1, got %d", dag.GetNode("test").InDegree)
	}
}

func TestBuildDAG_UnknownRequirement(t *testing.T) {
	spec := specWithJobs(
		domain.JobDef{Name: "test", Requires: []string{"nonexistent"}, Steps: runStep()},
	)

	_, err := BuildDAG(spec)
	if !errors.Is(err, ErrMissingRequirement) {
		t.Errorf("expected ErrMissingRequirement, got %v", err)
	}
}

func TestBuildDAG_CyclicRequirement(t *testing.T) {
	spec := specWithJobs(
		domain.JobDef{Name: "a", Requires: []string{"c"}, Steps: runStep()},
		domain.JobDef{Name: "b", Requires: []string{"a"}, Steps: runStep()},
		domain.JobDef{Name: "c", Requires: []string{"b"}, Steps: runStep()},
	)

	_, err := BuildDAG(spec)
	if !errors.Is(err, ErrCyclicRequirement) {
		t.Errorf("expected ErrCyclicRequirement, got %v", err)
	}
}

func TestGetReadyNodes(t *testing.T) {
	spec := specWithJobs(
		domain.JobDef{Name: "build", Steps: runStep()},
		domain.JobDef{Name: "docs", Steps: runStep()},
		domain.JobDef{Name: "test", Requires: []string{"build"}, Steps: runStep()},
		domain.JobDef{Name: "release", Requires: []string{"build", "docs"}, Steps: runStep()},
	)

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Изначально готовы build и docs (без зависимостей)
	ready := dag.GetReadyNodes(nil, nil, nil)
	if len(ready) != 2 {
		t.Errorf("expected 2 ready nodes, got %d", len(ready))
	}

	readyNames := make(map[string]bool)
	for _, node := range ready {
		readyNames[node.Name] = true
	}
	if !readyNames["build"] || !readyNames["docs"] {
		t.Error("build and docs should be ready initially")
	}

	// После успеха build готов test
	succeeded := map[string]bool{"build": true}
	ready = dag.GetReadyNodes(succeeded, nil, nil)

	readyNames = make(map[string]bool)
	for _, node := range ready {
		readyNames[node.Name] = true
	}
	if !readyNames["docs"] || !readyNames["test"] {
		t.Error("docs and test should be ready after build succeeds")
	}
	if readyNames["release"] {
		t.Error("release should not be ready (requires docs)")
	}

	// После успеха build и docs готов release
	succeeded = map[string]bool{"build": true, "docs": true}
	ready = dag.GetReadyNodes(succeeded, nil, nil)

	readyNames = make(map[string]bool)
	for _, node := range ready {
		readyNames[node.Name] = true
	}
	if !readyNames["test"] || !readyNames["release"] {
		t.Error("test and release should be ready after build and docs succeed")
	}
}

func TestGetReadyNodes_WithActive(t *testing.T) {
	spec := specWithJobs(
		domain.JobDef{Name: "lint", Steps: runStep()},
		domain.JobDef{Name: "test", Steps: runStep()},
	)

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// lint выполняется, готов только test
	active := map[string]bool{"lint": true}
	ready := dag.GetReadyNodes(nil, active, nil)

	if len(ready) != 1 {
		t.Fatalf("expected 1 ready node, got %d", len(ready))
	}
	if ready[0].Name != "test" {
		t.Errorf("expected test to be ready, got %s", ready[0].Name)
	}
}

func TestGetBlockedNodes_FailurePropagation(t *testing.T) {
	// build упал — test и release никогда не запустятся;
	// docs независим и остаётся готовым
	spec := specWithJobs(
		domain.JobDef{Name: "build", Steps: runStep()},
		domain.JobDef{Name: "docs", Steps: runStep()},
		domain.JobDef{Name: "test", Requires: []string{"build"}, Steps: runStep()},
		domain.JobDef{Name: "release", Requires: []string{"test"}, Steps: runStep()},
	)

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blocked := map[string]bool{"build": true}

	// Итерируем до неподвижной точки, как это делает оркестратор
	for {
		newly := dag.GetBlockedNodes(nil, nil, blocked)
		if len(newly) == 0 {
			break
		}
		for _, node := range newly {
			blocked[node.Name] = true
		}
	}

	if !blocked["test"] {
		t.Error("test should be blocked after build failure")
	}
	if !blocked["release"] {
		t.Error("release should be blocked transitively")
	}
	if blocked["docs"] {
		t.Error("docs should not be blocked")
	}

	// docs всё ещё готов к запуску
	ready := dag.GetReadyNodes(nil, nil, blocked)
	if len(ready) != 1 || ready[0].Name != "docs" {
		t.Errorf("expected only docs to be ready, got %v", ready)
	}
}

func TestTopologicalSort(t *testing.T) {
	spec := specWithJobs(
		domain.JobDef{Name: "build", Steps: runStep()},
		domain.JobDef{Name: "lint", Requires: []string{"build"}, Steps: runStep()},
		domain.JobDef{Name: "test", Requires: []string{"build"}, Steps: runStep()},
		domain.JobDef{Name: "release", Requires: []string{"lint", "test"}, Steps: runStep()},
	)

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := dag.Order
	if len(order) != 4 {
		t.Fatalf("expected 4 nodes in order, got %d", len(order))
	}

	positions := make(map[string]int)
	for i, node := range order {
		positions[node.Name] = i
	}

	if positions["build"] > positions["lint"] {
		t.Error("build should come before lint")
	}
	if positions["build"] > positions["test"] {
		t.Error("build should come before test")
	}
	if positions["lint"] > positions["release"] {
		t.Error("lint should come before release")
	}
	if positions["test"] > positions["release"] {
		t.Error("test should come before release")
	}
}

func TestDAG_IsComplete(t *testing.T) {
	spec := specWithJobs(
		domain.JobDef{Name: "lint", Steps: runStep()},
		domain.JobDef{Name: "test", Steps: runStep()},
	)

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.IsComplete(nil) {
		t.Error("should not be complete with no finished jobs")
	}
	if dag.IsComplete(map[string]bool{"lint": true}) {
		t.Error("should not be complete with only lint finished")
	}
	if !dag.IsComplete(map[string]bool{"lint": true, "test": true}) {
		t.Error("should be complete with all jobs finished")
	}
}
