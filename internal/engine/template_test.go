package engine

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
)

func testContext() *Context {
	return &Context{
		Build: BuildContext{
			ID:     "b1",
			Number: 42,
			Branch: "main",
			Commit: "abcdef1234567890",
		},
		Pipeline: PipelineContext{
			Name:    "ibis",
			RepoURL: "https://github.com/example/ibis.git",
		},
		Env: map[string]string{
			"RELEASE_CHANNEL": "stable",
		},
	}
}

func TestRender(t *testing.T) {
	ctx := testContext()

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{
			name: "plain string untouched",
			tmpl: "pytest --junitxml=junit.xml",
			want: "pytest --junitxml=junit.xml",
		},
		{
			name: "build branch",
			tmpl: "docs/{{ .Build.Branch }}",
			want: "docs/main",
		},
		{
			name: "env lookup",
			tmpl: "{{ .Env.RELEASE_CHANNEL }}",
			want: "stable",
		},
		{
			name: "shortSHA",
			tmpl: "{{ .Pipeline.Name }}-{{ shortSHA .Build.Commit }}.tar.gz",
			want: "ibis-abcdef1.tar.gz",
		},
		{
			name: "default with empty value",
			tmpl: `{{ default "latest" .Env.TAG }}`,
			want: "latest",
		},
		{
			name: "coalesce",
			tmpl: `{{ coalesce .Env.TAG .Build.Branch "fallback" }}`,
			want: "main",
		},
		{
			name: "upper",
			tmpl: "{{ upper .Build.Branch }}",
			want: "MAIN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{ .Build.Branch", testContext())
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}
}

func TestRender_UnknownFunction(t *testing.T) {
	_, err := Render("{{ bogus .Build.Branch }}", testContext())
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}
}

func TestRenderEnv(t *testing.T) {
	ctx := testContext()

	env := map[string]string{
		"BRANCH": "{{ .Build.Branch }}",
		"STATIC": "unchanged",
	}

	rendered, err := RenderEnv(env, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rendered["BRANCH"] != "main" {
		t.Errorf("expected main, got %s", rendered["BRANCH"])
	}
	if rendered["STATIC"] != "unchanged" {
		t.Errorf("expected unchanged, got %s", rendered["STATIC"])
	}

	// Оригинал не модифицируется
	if env["BRANCH"] != "{{ .Build.Branch }}" {
		t.Error("original env must not be mutated")
	}
}

func TestRenderJob(t *testing.T) {
	ctx := testContext()

	job := &domain.JobDef{
		Name: "docs",
		Env: map[string]string{
			"TARGET": "docs/{{ .Build.Branch }}",
		},
		Steps: []domain.StepDef{
			{Type: "checkout"},
			{Run: "make docs BRANCH={{ .Build.Branch }}"},
		},
		Artifacts: []string{
			"dist/{{ .Pipeline.Name }}-{{ shortSHA .Build.Commit }}.tar.gz",
		},
		TestReports: []string{"junit.xml"},
	}

	rendered, err := RenderJob(job, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rendered.Env["TARGET"] != "docs/main" {
		t.Errorf("expected docs/main, got %s", rendered.Env["TARGET"])
	}
	if rendered.Steps[1].Run != "make docs BRANCH=main" {
		t.Errorf("unexpected rendered command: %s", rendered.Steps[1].Run)
	}
	if rendered.Artifacts[0] != "dist/ibis-abcdef1.tar.gz" {
		t.Errorf("unexpected rendered artifact glob: %s", rendered.Artifacts[0])
	}
	if rendered.TestReports[0] != "junit.xml" {
		t.Errorf("plain glob must be untouched, got %s", rendered.TestReports[0])
	}

	// Оригинал не модифицируется
	if job.Steps[1].Run != "make docs BRANCH={{ .Build.Branch }}" {
		t.Error("original job must not be mutated")
	}
}

func TestNewContext(t *testing.T) {
	pipeline := &domain.Pipeline{
		ID:      uuid.New(),
		Name:    "ibis",
		RepoURL: "https://github.com/example/ibis.git",
	}
	build := &domain.Build{
		ID:     uuid.New(),
		Number: 7,
		Branch: "release-1.4",
		Commit: "deadbeef",
		Env:    map[string]string{"K": "v"},
	}

	ctx := NewContext(pipeline, build)

	if ctx.Build.Number != 7 {
		t.Errorf("expected build number 7, got %d", ctx.Build.Number)
	}
	if ctx.Build.Branch != "release-1.4" {
		t.Errorf("expected branch release-1.4, got %s", ctx.Build.Branch)
	}
	if ctx.Pipeline.Name != "ibis" {
		t.Errorf("expected pipeline ibis, got %s", ctx.Pipeline.Name)
	}
	if ctx.Env["K"] != "v" {
		t.Error("expected build env in context")
	}

	builtin := ctx.BuiltinEnv()
	if builtin["CONVEYOR_BRANCH"] != "release-1.4" {
		t.Errorf("expected CONVEYOR_BRANCH release-1.4, got %s", builtin["CONVEYOR_BRANCH"])
	}
	if builtin["CONVEYOR_BUILD_NUM"] != "7" {
		t.Errorf("expected CONVEYOR_BUILD_NUM 7, got %s", builtin["CONVEYOR_BUILD_NUM"])
	}
	if builtin["CONVEYOR_PIPELINE"] != "ibis" {
		t.Errorf("expected CONVEYOR_PIPELINE ibis, got %s", builtin["CONVEYOR_PIPELINE"])
	}
}
