package domain

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactKind — назначение артефакта.
type ArtifactKind string

const (
	// ArtifactKindFile — обычный файл, объявленный в artifacts.
	ArtifactKindFile ArtifactKind = "file"

	// ArtifactKindTestReport — отчёт тестов, объявленный в test_reports.
	ArtifactKindTestReport ArtifactKind = "test-report"

	// ArtifactKindLog — полный лог выполнения job.
	ArtifactKindLog ArtifactKind = "log"
)

// Artifact — файл, сохранённый после выполнения job.
//
// Agent собирает файлы по glob-маскам из JobDef.Artifacts и
// JobDef.TestReports после выполнения шагов (независимо от итога job)
// и складывает их в artifact store. Artifact — метаданные в БД,
// содержимое лежит в файловом хранилище по StoredPath.
type Artifact struct {
	// ID — уникальный идентификатор артефакта.
	ID uuid.UUID `json:"id"`

	// BuildID — ссылка на build.
	BuildID uuid.UUID `json:"build_id"`

	// JobID — ссылка на job, который произвёл артефакт.
	JobID uuid.UUID `json:"job_id"`

	// Kind — назначение: file, test-report, log.
	Kind ArtifactKind `json:"kind"`

	// Path — путь файла относительно workspace job.
	Path string `json:"path"`

	// StoredPath — путь файла в artifact store.
	StoredPath string `json:"stored_path"`

	// SizeBytes — размер файла.
	SizeBytes int64 `json:"size_bytes"`

	// CreatedAt — время сохранения.
	CreatedAt time.Time `json:"created_at"`
}
