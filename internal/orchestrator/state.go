package orchestrator

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/domain"
	"github.com/akorzh/Conveyor/internal/engine"
)

// BuildState — состояние выполнения одного build в памяти.
//
// BuildState создаётся когда Orchestrator начинает обработку build
// и удаляется когда build завершается (SUCCEEDED/FAILED/CANCELLED).
//
// Содержит:
//   - Кэш данных из БД (Pipeline, Build, PipelineVersion)
//   - Построенный DAG
//   - Разрешённые определения jobs (шаблон слит, плейсхолдеры отрендерены)
//   - Отслеживание статуса каждого job по имени
type BuildState struct {
	// Pipeline — pipeline, которому принадлежит build.
	Pipeline *domain.Pipeline

	// Build — данные build из БД.
	Build *domain.Build

	// Version — ревизия конфигурации с PipelineSpec.
	Version *domain.PipelineVersion

	// DAG — граф зависимостей jobs.
	DAG *engine.DAG

	// resolved — готовые к выполнению определения jobs:
	// шаблон применён, env build слит, плейсхолдеры подставлены.
	resolved map[string]*domain.JobDef

	// succeeded — успешно завершённые jobs (jobName → true).
	succeeded map[string]bool

	// active — jobs в очереди или в процессе выполнения.
	active map[string]bool

	// failed — упавшие jobs.
	failed map[string]bool

	// skipped — jobs, пропущенные из-за упавших requires.
	skipped map[string]bool

	// jobs — созданные записи jobs (jobName → Job).
	jobs map[string]*domain.Job

	mu sync.RWMutex
}

// NewBuildState создаёт новый BuildState.
func NewBuildState(pipeline *domain.Pipeline, build *domain.Build, version *domain.PipelineVersion) *BuildState {
	return &BuildState{
		Pipeline:  pipeline,
		Build:     build,
		Version:   version,
		succeeded: make(map[string]bool),
		active:    make(map[string]bool),
		failed:    make(map[string]bool),
		skipped:   make(map[string]bool),
		jobs:      make(map[string]*domain.Job),
	}
}

// Initialize инициализирует BuildState: валидирует spec, строит DAG
// и разрешает определения всех jobs workflow.
func (s *BuildState) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec := &s.Version.Spec

	// 1. Валидация конфигурации
	if err := engine.Validate(spec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	// 2. Построение DAG
	dag, err := engine.BuildDAG(spec)
	if err != nil {
		return fmt.Errorf("build DAG: %w", err)
	}
	s.DAG = dag

	// 3. Разрешение jobs: шаблон → плейсхолдеры → env build
	ctx := engine.NewContext(s.Pipeline, s.Build)
	s.resolved = make(map[string]*domain.JobDef, dag.Size())

	for name, def := range engine.ResolveJobs(spec) {
		rendered, err := engine.RenderJob(def, ctx)
		if err != nil {
			return fmt.Errorf("%w: render job %s: %v", ErrInvalidSpec, name, err)
		}
		// Env build перекрывает env job: параметры ручного запуска
		// и переменные расписания сильнее конфигурации.
		rendered.Env = engine.MergeEnv(rendered.Env, s.Build.Env)
		s.resolved[name] = rendered
	}

	return nil
}

// JobDef возвращает разрешённое определение job по имени.
func (s *BuildState) JobDef(name string) *domain.JobDef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.resolved[name]
}

// GetReadyJobs возвращает jobs, готовые к выполнению.
// Job готов, если все его requires завершены успешно и сам он ещё не стартовал.
func (s *BuildState) GetReadyJobs() []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.DAG.GetReadyNodes(s.succeeded, s.active, s.blockedLocked())
}

// MarkJobQueued помечает job как отправленный в очередь.
func (s *BuildState) MarkJobQueued(name string, job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active[name] = true
	s.jobs[name] = job
}

// MarkJobSucceeded помечает job как успешно завершённый.
func (s *BuildState) MarkJobSucceeded(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, name)
	s.succeeded[name] = true
}

// MarkJobFailed помечает job как упавший.
func (s *BuildState) MarkJobFailed(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, name)
	s.failed[name] = true
}

// MarkJobSkipped помечает job как пропущенный.
func (s *BuildState) MarkJobSkipped(name string, job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, name)
	s.skipped[name] = true
	if job != nil {
		s.jobs[name] = job
	}
}

// CollectNewlyBlocked возвращает jobs, которые уже никогда не запустятся:
// хотя бы один из их requires упал или был пропущен.
//
// Вычисляется до неподвижной точки: пропуск job может заблокировать
// его собственных dependents. Возвращённые jobs вызывающий помечает
// SKIPPED через MarkJobSkipped.
func (s *BuildState) CollectNewlyBlocked() []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocked := s.blockedLocked()

	var result []*engine.Node
	for {
		newly := s.DAG.GetBlockedNodes(s.succeeded, s.active, blocked)
		if len(newly) == 0 {
			return result
		}
		for _, node := range newly {
			blocked[node.Name] = true
			result = append(result, node)
		}
	}
}

// IsJobActive проверяет, выполняется ли job.
func (s *BuildState) IsJobActive(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.active[name]
}

// IsJobFinished проверяет, завершён ли job (в любом финальном статусе).
func (s *BuildState) IsJobFinished(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.succeeded[name] || s.failed[name] || s.skipped[name]
}

// GetJob возвращает запись job по имени.
func (s *BuildState) GetJob(name string) *domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.jobs[name]
}

// IsComplete проверяет, все ли jobs завершены (в любом финальном статусе).
func (s *BuildState) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	finished := make(map[string]bool, len(s.succeeded)+len(s.failed)+len(s.skipped))
	for name := range s.succeeded {
		finished[name] = true
	}
	for name := range s.failed {
		finished[name] = true
	}
	for name := range s.skipped {
		finished[name] = true
	}
	return s.DAG.IsComplete(finished)
}

// HasFailed проверяет, есть ли упавшие jobs.
func (s *BuildState) HasFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.failed) > 0
}

// GetFailedJobs возвращает список упавших jobs.
func (s *BuildState) GetFailedJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.failed))
	for name := range s.failed {
		names = append(names, name)
	}
	return names
}

// BuildID возвращает ID build.
func (s *BuildState) BuildID() uuid.UUID {
	return s.Build.ID
}

// PipelineID возвращает ID pipeline.
func (s *BuildState) PipelineID() uuid.UUID {
	return s.Build.PipelineID
}

// Stats возвращает статистику выполнения.
func (s *BuildState) Stats() BuildStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.DAG.Size()
	return BuildStats{
		TotalJobs:     total,
		SucceededJobs: len(s.succeeded),
		ActiveJobs:    len(s.active),
		FailedJobs:    len(s.failed),
		SkippedJobs:   len(s.skipped),
		PendingJobs:   total - len(s.succeeded) - len(s.active) - len(s.failed) - len(s.skipped),
	}
}

// BuildStats — статистика выполнения build.
type BuildStats struct {
	TotalJobs     int
	SucceededJobs int
	ActiveJobs    int
	FailedJobs    int
	SkippedJobs   int
	PendingJobs   int
}

// RestoreFromJobs восстанавливает состояние из списка jobs (после рестарта).
func (s *BuildState) RestoreFromJobs(jobs []domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range jobs {
		job := &jobs[i]
		s.jobs[job.Name] = job

		switch job.Status {
		case domain.JobStatusSucceeded:
			s.succeeded[job.Name] = true

		case domain.JobStatusFailed:
			s.failed[job.Name] = true

		case domain.JobStatusSkipped:
			s.skipped[job.Name] = true

		case domain.JobStatusQueued, domain.JobStatusRunning:
			s.active[job.Name] = true
		}
	}
}

// blockedLocked собирает failed и skipped в одну карту.
// Вызывается под мьютексом.
func (s *BuildState) blockedLocked() map[string]bool {
	blocked := make(map[string]bool, len(s.failed)+len(s.skipped))
	for name := range s.failed {
		blocked[name] = true
	}
	for name := range s.skipped {
		blocked[name] = true
	}
	return blocked
}
