package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
)

func testJob() *domain.Job {
	return &domain.Job{
		ID:        uuid.New(),
		BuildID:   uuid.New(),
		Name:      "test",
		CreatedAt: time.Now(),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestStore_Collect(t *testing.T) {
	workspace := t.TempDir()
	store := NewStore(t.TempDir())

	writeFile(t, filepath.Join(workspace, "junit.xml"), "<testsuite/>")
	writeFile(t, filepath.Join(workspace, "coverage.xml"), "<coverage/>")
	writeFile(t, filepath.Join(workspace, "src", "main.py"), "print()")

	job := testJob()

	collected, err := store.Collect(workspace, job, []string{"*.xml"}, domain.ArtifactKindTestReport)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(collected) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(collected))
	}

	for _, a := range collected {
		if a.Kind != domain.ArtifactKindTestReport {
			t.Errorf("expected kind test-report, got %s", a.Kind)
		}
		if a.BuildID != job.BuildID || a.JobID != job.ID {
			t.Error("artifact must reference job and build")
		}
		if a.SizeBytes == 0 {
			t.Error("expected non-zero size")
		}
		if _, err := os.Stat(a.StoredPath); err != nil {
			t.Errorf("stored file missing: %v", err)
		}
	}
}

func TestStore_Collect_RecursiveGlob(t *testing.T) {
	workspace := t.TempDir()
	store := NewStore(t.TempDir())

	writeFile(t, filepath.Join(workspace, "docs", "build", "index.html"), "<html/>")
	writeFile(t, filepath.Join(workspace, "docs", "build", "api", "ref.html"), "<html/>")
	writeFile(t, filepath.Join(workspace, "docs", "conf.py"), "# config")

	job := testJob()

	collected, err := store.Collect(workspace, job, []string{"docs/build/**"}, domain.ArtifactKindFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(collected) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(collected))
	}

	paths := make(map[string]bool)
	for _, a := range collected {
		paths[a.Path] = true
	}
	if !paths["docs/build/index.html"] || !paths["docs/build/api/ref.html"] {
		t.Errorf("unexpected artifact paths: %v", paths)
	}
}

func TestStore_Collect_RecursiveGlobDeepNesting(t *testing.T) {
	workspace := t.TempDir()
	store := NewStore(t.TempDir())

	writeFile(t, filepath.Join(workspace, "reports", "junit.xml"), "<testsuite/>")
	writeFile(t, filepath.Join(workspace, "reports", "unit", "junit.xml"), "<testsuite/>")
	writeFile(t, filepath.Join(workspace, "reports", "integration", "py39", "junit.xml"), "<testsuite/>")
	writeFile(t, filepath.Join(workspace, "reports", "integration", "py39", "notes.txt"), "n/a")

	collected, err := store.Collect(workspace, testJob(), []string{"reports/**/junit.xml"}, domain.ArtifactKindTestReport)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	paths := make(map[string]bool)
	for _, a := range collected {
		paths[a.Path] = true
	}

	// "**" покрывает любое количество промежуточных директорий
	for _, want := range []string{
		"reports/junit.xml",
		"reports/unit/junit.xml",
		"reports/integration/py39/junit.xml",
	} {
		if !paths[want] {
			t.Errorf("expected %s to be collected, got %v", want, paths)
		}
	}
	if len(collected) != 3 {
		t.Errorf("expected 3 artifacts, got %d", len(collected))
	}
}

func TestMatchTail(t *testing.T) {
	tests := []struct {
		suffix string
		rel    string
		want   bool
	}{
		{"junit.xml", "junit.xml", true},
		{"junit.xml", "a/b/junit.xml", true},
		{"sub/junit.xml", "a/b/sub/junit.xml", true},
		{"sub/junit.xml", "a/b/junit.xml", false},
		{"*.xml", "a/report.xml", true},
		{"*.xml", "a/report.txt", false},
	}

	for _, tt := range tests {
		got, err := matchTail(tt.suffix, tt.rel)
		if err != nil {
			t.Fatalf("matchTail(%q, %q): %v", tt.suffix, tt.rel, err)
		}
		if got != tt.want {
			t.Errorf("matchTail(%q, %q) = %v, want %v", tt.suffix, tt.rel, got, tt.want)
		}
	}
}

func TestStore_Collect_NoMatches(t *testing.T) {
	workspace := t.TempDir()
	store := NewStore(t.TempDir())

	// Несовпавшая маска — не ошибка
	collected, err := store.Collect(workspace, testJob(), []string{"dist/*.tar.gz"}, domain.ArtifactKindFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collected) != 0 {
		t.Errorf("expected no artifacts, got %d", len(collected))
	}
}

func TestStore_Collect_Dedupe(t *testing.T) {
	workspace := t.TempDir()
	store := NewStore(t.TempDir())

	writeFile(t, filepath.Join(workspace, "junit.xml"), "<testsuite/>")

	// Пересекающиеся маски не дублируют артефакт
	collected, err := store.Collect(workspace, testJob(), []string{"*.xml", "junit.xml"}, domain.ArtifactKindTestReport)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collected) != 1 {
		t.Errorf("expected 1 artifact, got %d", len(collected))
	}
}

func TestStore_SaveLog(t *testing.T) {
	store := NewStore(t.TempDir())
	job := testJob()

	content := []byte("step 1: ok\nstep 2: failed\n")
	artifact, err := store.SaveLog(job, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if artifact.Kind != domain.ArtifactKindLog {
		t.Errorf("expected kind log, got %s", artifact.Kind)
	}
	if artifact.SizeBytes != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), artifact.SizeBytes)
	}

	stored, err := os.ReadFile(artifact.StoredPath)
	if err != nil {
		t.Fatalf("read stored log: %v", err)
	}
	if string(stored) != string(content) {
		t.Error("stored log content mismatch")
	}
}
