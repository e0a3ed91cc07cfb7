// Package artifacts реализует файловое хранилище артефактов builds.
//
// Agent собирает файлы по glob-маскам из workspace после выполнения
// шагов job и складывает их сюда. Store хранит только содержимое,
// метаданные артефактов живут в БД (repo.ArtifactRepo).
package artifacts
