package engine

import (
	"testing"

	"github.com/akorzh/Conveyor/internal/domain"
)

func TestResolveJob_InheritsTemplate(t *testing.T) {
	spec := &domain.PipelineSpec{
		Templates: map[string]domain.JobTemplate{
			"python": {
				Image:   "python:3.12",
				WorkDir: "src",
				Shell:   "bash",
				Env: map[string]string{
					"PYTHONDONTWRITEBYTECODE": "1",
					"CI":                      "true",
				},
			},
		},
		Workflow: domain.WorkflowDef{
			Jobs: []domain.JobDef{
				{
					Name:     "test",
					Template: "python",
					Steps:    []domain.StepDef{{Run: "pytest"}},
				},
			},
		},
	}

	resolved := ResolveJob(spec, &spec.Workflow.Jobs[0])

	if resolved.Image != "python:3.12" {
		t.Errorf("expected image python:3.12, got %s", resolved.Image)
	}
	if resolved.WorkDir != "src" {
		t.Errorf("expected workdir src, got %s", resolved.WorkDir)
	}
	if resolved.Shell != "bash" {
		t.Errorf("expected shell bash, got %s", resolved.Shell)
	}
	if resolved.Env["PYTHONDONTWRITEBYTECODE"] != "1" {
		t.Error("expected env inherited from template")
	}
}

func TestResolveJob_OverridesWin(t *testing.T) {
	spec := &domain.PipelineSpec{
		Templates: map[string]domain.JobTemplate{
			"python": {
				Image: "python:3.12",
				Env: map[string]string{
					"CI":          "true",
					"PYTEST_OPTS": "-q",
				},
			},
		},
		Workflow: domain.WorkflowDef{
			Jobs: []domain.JobDef{
				{
					Name:     "test-py311",
					Template: "python",
					Image:    "python:3.11",
					Env: map[string]string{
						"PYTEST_OPTS": "-ra -v",
						"EXTRA":       "yes",
					},
					Steps: []domain.StepDef{{Run: "pytest"}},
				},
			},
		},
	}

	resolved := ResolveJob(spec, &spec.Workflow.Jobs[0])

	// Скаляр job побеждает
	if resolved.Image != "python:3.11" {
		t.Errorf("expected image python:3.11, got %s", resolved.Image)
	}

	// Env сливается по ключам: переопределение побеждает, остальное наследуется
	if resolved.Env["PYTEST_OPTS"] != "-ra -v" {
		t.Errorf("expected job env to win, got %s", resolved.Env["PYTEST_OPTS"])
	}
	if resolved.Env["CI"] != "true" {
		t.Error("expected CI inherited from template")
	}
	if resolved.Env["EXTRA"] != "yes" {
		t.Error("expected job-only env to survive")
	}
}

func TestResolveJob_DefaultTemplate(t *testing.T) {
	spec := &domain.PipelineSpec{
		Templates: map[string]domain.JobTemplate{
			"base": {Image: "ubuntu:24.04"},
		},
		Defaults: &domain.JobDefaults{
			Template:   "base",
			TimeoutSec: 1800,
		},
		Workflow: domain.WorkflowDef{
			Jobs: []domain.JobDef{
				{Name: "lint", Steps: []domain.StepDef{{Run: "make lint"}}},
			},
		},
	}

	resolved := ResolveJob(spec, &spec.Workflow.Jobs[0])

	if resolved.Image != "ubuntu:24.04" {
		t.Errorf("expected default template applied, got image %s", resolved.Image)
	}
	if resolved.TimeoutSec != 1800 {
		t.Errorf("expected default timeout 1800, got %d", resolved.TimeoutSec)
	}
}

func TestResolveJob_TimeoutOverride(t *testing.T) {
	spec := &domain.PipelineSpec{
		Defaults: &domain.JobDefaults{TimeoutSec: 1800},
		Workflow: domain.WorkflowDef{
			Jobs: []domain.JobDef{
				{Name: "slow", TimeoutSec: 7200, Steps: []domain.StepDef{{Run: "make all"}}},
			},
		},
	}

	resolved := ResolveJob(spec, &spec.Workflow.Jobs[0])
	if resolved.TimeoutSec != 7200 {
		t.Errorf("expected job timeout 7200, got %d", resolved.TimeoutSec)
	}
}

func TestResolveJob_NoTemplate(t *testing.T) {
	spec := &domain.PipelineSpec{
		Workflow: domain.WorkflowDef{
			Jobs: []domain.JobDef{
				{
					Name:  "plain",
					Image: "alpine",
					Env:   map[string]string{"A": "1"},
					Steps: []domain.StepDef{{Run: "echo ok"}},
				},
			},
		},
	}

	resolved := ResolveJob(spec, &spec.Workflow.Jobs[0])

	if resolved.Image != "alpine" {
		t.Errorf("expected image alpine, got %s", resolved.Image)
	}
	if resolved.Env["A"] != "1" {
		t.Error("expected env preserved")
	}
}

func TestResolveJob_DoesNotMutateOriginal(t *testing.T) {
	spec := &domain.PipelineSpec{
		Templates: map[string]domain.JobTemplate{
			"base": {Env: map[string]string{"FROM_TMPL": "1"}},
		},
		Workflow: domain.WorkflowDef{
			Jobs: []domain.JobDef{
				{
					Name:     "test",
					Template: "base",
					Env:      map[string]string{"FROM_JOB": "1"},
					Steps:    []domain.StepDef{{Run: "true"}},
				},
			},
		},
	}

	original := &spec.Workflow.Jobs[0]
	_ = ResolveJob(spec, original)

	if _, ok := original.Env["FROM_TMPL"]; ok {
		t.Error("original job env must not be mutated")
	}
	if len(original.Env) != 1 {
		t.Errorf("original job env must have 1 key, got %d", len(original.Env))
	}
}

func TestResolveJobs_All(t *testing.T) {
	spec := &domain.PipelineSpec{
		Templates: map[string]domain.JobTemplate{
			"base": {Image: "ubuntu"},
		},
		Defaults: &domain.JobDefaults{Template: "base"},
		Workflow: domain.WorkflowDef{
			Jobs: []domain.JobDef{
				{Name: "a", Steps: []domain.StepDef{{Run: "true"}}},
				{Name: "b", Steps: []domain.StepDef{{Run: "true"}}},
			},
		},
	}

	resolved := ResolveJobs(spec)

	if len(resolved) != 2 {
		t.Fatalf("expected 2 resolved jobs, got %d", len(resolved))
	}
	for _, name := range []string{"a", "b"} {
		job, ok := resolved[name]
		if !ok {
			t.Fatalf("job %s not resolved", name)
		}
		if job.Image != "ubuntu" {
			t.Errorf("job %s: expected image ubuntu, got %s", name, job.Image)
		}
	}
}

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name     string
		base     map[string]string
		override map[string]string
		want     map[string]string
	}{
		{
			name:     "override wins",
			base:     map[string]string{"A": "1", "B": "2"},
			override: map[string]string{"B": "3", "C": "4"},
			want:     map[string]string{"A": "1", "B": "3", "C": "4"},
		},
		{
			name:     "nil base",
			base:     nil,
			override: map[string]string{"A": "1"},
			want:     map[string]string{"A": "1"},
		},
		{
			name:     "nil override",
			base:     map[string]string{"A": "1"},
			override: nil,
			want:     map[string]string{"A": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeEnv(tt.base, tt.override)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d keys, got %d", len(tt.want), len(got))
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("key %s: expected %s, got %s", k, v, got[k])
				}
			}
		})
	}
}
