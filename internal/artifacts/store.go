package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
)

// Store — файловое хранилище артефактов.
//
// Содержимое складывается в дерево:
//
//	{root}/{build_id}/{job_name}/{relative_path}
//
// Метаданные (domain.Artifact) сохраняет вызывающий через ArtifactRepo.
type Store struct {
	root string
}

// NewStore создаёт хранилище с корнем root.
// Директория создаётся при первой записи.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// RootFromEnv возвращает корень хранилища из ARTIFACTS_DIR.
func RootFromEnv() string {
	if dir := os.Getenv("ARTIFACTS_DIR"); dir != "" {
		return dir
	}
	return "/var/lib/conveyor/artifacts"
}

// Collect находит в workspace файлы по glob-маскам и копирует их
// в хранилище. Возвращает метаданные сохранённых файлов.
//
// Маски интерпретируются относительно workspace. Несовпавшая маска —
// не ошибка: у упавшего job может не быть части артефактов,
// а отчёты тестов собираются независимо от итога шагов.
func (s *Store) Collect(workspace string, job *domain.Job, patterns []string, kind domain.ArtifactKind) ([]domain.Artifact, error) {
	var collected []domain.Artifact

	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := expandGlob(workspace, pattern)
		if err != nil {
			return collected, fmt.Errorf("glob %s: %w", pattern, err)
		}

		for _, match := range matches {
			if seen[match] {
				continue
			}
			seen[match] = true

			artifact, err := s.save(workspace, match, job, kind)
			if err != nil {
				return collected, err
			}
			collected = append(collected, *artifact)
		}
	}

	return collected, nil
}

// SaveLog сохраняет полный лог job и возвращает метаданные.
func (s *Store) SaveLog(job *domain.Job, content []byte) (*domain.Artifact, error) {
	storedPath := filepath.Join(s.buildDir(job), "job.log")

	if err := os.MkdirAll(filepath.Dir(storedPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir log dir: %w", err)
	}
	if err := os.WriteFile(storedPath, content, 0o644); err != nil {
		return nil, fmt.Errorf("write log: %w", err)
	}

	return &domain.Artifact{
		ID:         uuid.New(),
		BuildID:    job.BuildID,
		JobID:      job.ID,
		Kind:       domain.ArtifactKindLog,
		Path:       "job.log",
		StoredPath: storedPath,
		SizeBytes:  int64(len(content)),
		CreatedAt:  time.Now(),
	}, nil
}

// Open открывает сохранённый артефакт на чтение.
func (s *Store) Open(artifact *domain.Artifact) (io.ReadCloser, error) {
	f, err := os.Open(artifact.StoredPath)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

// save копирует один файл workspace в хранилище.
func (s *Store) save(workspace, path string, job *domain.Job, kind domain.ArtifactKind) (*domain.Artifact, error) {
	rel, err := filepath.Rel(workspace, path)
	if err != nil {
		return nil, fmt.Errorf("rel path: %w", err)
	}

	storedPath := filepath.Join(s.buildDir(job), rel)

	if err := os.MkdirAll(filepath.Dir(storedPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir artifact dir: %w", err)
	}

	size, err := copyFile(path, storedPath)
	if err != nil {
		return nil, err
	}

	return &domain.Artifact{
		ID:         uuid.New(),
		BuildID:    job.BuildID,
		JobID:      job.ID,
		Kind:       kind,
		Path:       filepath.ToSlash(rel),
		StoredPath: storedPath,
		SizeBytes:  size,
		CreatedAt:  time.Now(),
	}, nil
}

// buildDir возвращает директорию хранилища для job.
func (s *Store) buildDir(job *domain.Job) string {
	return filepath.Join(s.root, job.BuildID.String(), job.Name)
}

// expandGlob раскрывает glob-маску относительно workspace.
// Поддерживает "**" для рекурсивного обхода поддиректорий.
// Возвращает только обычные файлы.
func expandGlob(workspace, pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return expandRecursive(workspace, pattern)
	}

	matches, err := filepath.Glob(filepath.Join(workspace, pattern))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}

// expandRecursive обрабатывает маски с "**": обходит дерево workspace
// и сопоставляет хвост маски с относительным путём файла.
func expandRecursive(workspace, pattern string) ([]string, error) {
	// prefix/**/suffix: все файлы под prefix, чей путь совпадает с suffix
	prefix, suffix, _ := strings.Cut(pattern, "**")
	prefix = strings.TrimSuffix(prefix, "/")
	suffix = strings.TrimPrefix(suffix, "/")

	rootDir := filepath.Join(workspace, filepath.FromSlash(prefix))

	var files []string
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Несуществующий prefix — просто нет совпадений
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		if suffix == "" {
			files = append(files, path)
			return nil
		}

		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}

		matched, err := matchTail(suffix, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if matched {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// matchTail сопоставляет хвост маски (после "**") с относительным путём
// файла посегментно: "**" покрывает любое количество промежуточных
// директорий, поэтому "reports/**/junit.xml" находит и
// "reports/a/b/junit.xml".
func matchTail(suffix, rel string) (bool, error) {
	want := strings.Split(suffix, "/")
	have := strings.Split(rel, "/")
	if len(have) < len(want) {
		return false, nil
	}

	have = have[len(have)-len(want):]
	for i := range want {
		ok, err := filepath.Match(want[i], have[i])
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

// copyFile копирует файл и возвращает количество скопированных байт.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	size, err := io.Copy(out, in)
	if err != nil {
		return 0, fmt.Errorf("copy: %w", err)
	}
	return size, nil
}
