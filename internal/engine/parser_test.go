package engine

import (
	"errors"
	"testing"
)

func TestParseSpec_Valid(t *testing.T) {
	data := []byte(`
version: "1"
name: ibis
templates:
  python:
    image: python:3.12
    env:
      PYTHONDONTWRITEBYTECODE: "1"
defaults:
  template: python
  timeout_sec: 3600
workflow:
  jobs:
    - name: lint
      steps:
        - type: checkout
        - name: flake8
          run: flake8 --ignore=E501 ibis
    - name: test
      env:
        PYTEST_ADDOPTS: -ra
      steps:
        - type: checkout
        - run: pytest --junitxml=junit.xml
      test_reports:
        - junit.xml
    - name: docs
      requires: [lint, test]
      steps:
        - type: checkout
        - run: make docs
      artifacts:
        - docs/build/**
`)

	spec, err := ParseSpec(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.Name != "ibis" {
		t.Errorf("expected name ibis, got %s", spec.Name)
	}
	if len(spec.Workflow.Jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(spec.Workflow.Jobs))
	}
	if spec.Defaults == nil || spec.Defaults.Template != "python" {
		t.Error("expected default template python")
	}

	tmpl, ok := spec.Templates["python"]
	if !ok {
		t.Fatal("template python not found")
	}
	if tmpl.Image != "python:3.12" {
		t.Errorf("expected image python:3.12, got %s", tmpl.Image)
	}

	lint := spec.Workflow.Jobs[0]
	if len(lint.Steps) != 2 {
		t.Fatalf("expected 2 steps in lint, got %d", len(lint.Steps))
	}
	if lint.Steps[0].StepType() != "checkout" {
		t.Errorf("expected first step checkout, got %s", lint.Steps[0].StepType())
	}
	// Тип по умолчанию — run
	if lint.Steps[1].StepType() != "run" {
		t.Errorf("expected second step run, got %s", lint.Steps[1].StepType())
	}

	docs := spec.Workflow.Jobs[2]
	if len(docs.Requires) != 2 {
		t.Errorf("expected 2 requires in docs, got %d", len(docs.Requires))
	}
}

func TestParseSpec_InvalidYAML(t *testing.T) {
	_, err := ParseSpec([]byte("workflow: [invalid"))
	if !errors.Is(err, ErrParseConfig) {
		t.Errorf("expected ErrParseConfig, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "no jobs",
			yaml:    `workflow: {jobs: []}`,
			wantErr: ErrEmptyWorkflow,
		},
		{
			name: "empty job name",
			yaml: `
workflow:
  jobs:
    - steps: [{run: "true"}]
`,
			wantErr: ErrEmptyJobName,
		},
		{
			name: "duplicate job name",
			yaml: `
workflow:
  jobs:
    - name: test
      steps: [{run: "true"}]
    - name: test
      steps: [{run: "true"}]
`,
			wantErr: ErrDuplicateJobName,
		},
		{
			name: "no steps",
			yaml: `
workflow:
  jobs:
    - name: test
`,
			wantErr: ErrEmptySteps,
		},
		{
			name: "unknown step type",
			yaml: `
workflow:
  jobs:
    - name: test
      steps: [{type: docker}]
`,
			wantErr: ErrUnknownStepType,
		},
		{
			name: "run step without command",
			yaml: `
workflow:
  jobs:
    - name: test
      steps: [{type: run}]
`,
			wantErr: ErrEmptyRunCommand,
		},
		{
			name: "unknown template",
			yaml: `
workflow:
  jobs:
    - name: test
      template: nonexistent
      steps: [{run: "true"}]
`,
			wantErr: ErrUnknownTemplate,
		},
		{
			name: "unknown default template",
			yaml: `
defaults:
  template: nonexistent
workflow:
  jobs:
    - name: test
      steps: [{run: "true"}]
`,
			wantErr: ErrUnknownTemplate,
		},
		{
			name: "self requirement",
			yaml: `
workflow:
  jobs:
    - name: test
      requires: [test]
      steps: [{run: "true"}]
`,
			wantErr: ErrSelfRequirement,
		},
		{
			name: "missing requirement",
			yaml: `
workflow:
  jobs:
    - name: test
      requires: [build]
      steps: [{run: "true"}]
`,
			wantErr: ErrMissingRequirement,
		},
		{
			name: "cyclic requirement",
			yaml: `
workflow:
  jobs:
    - name: a
      requires: [b]
      steps: [{run: "true"}]
    - name: b
      requires: [a]
      steps: [{run: "true"}]
`,
			wantErr: ErrCyclicRequirement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpec([]byte(tt.yaml))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ValidationErrorContext(t *testing.T) {
	yaml := `
workflow:
  jobs:
    - name: lint
      steps: []
`
	_, err := ParseSpec([]byte(yaml))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Job != "lint" {
		t.Errorf("expected job lint in error, got %s", verr.Job)
	}
	if verr.Field != "steps" {
		t.Errorf("expected field steps in error, got %s", verr.Field)
	}
}

func TestIsValidStepType(t *testing.T) {
	valid := []string{"run", "checkout"}
	for _, st := range valid {
		if !IsValidStepType(st) {
			t.Errorf("%s should be valid", st)
		}
	}

	invalid := []string{"", "docker", "http", "shell"}
	for _, st := range invalid {
		if IsValidStepType(st) {
			t.Errorf("%s should be invalid", st)
		}
	}
}
