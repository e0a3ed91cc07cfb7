package agent

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/akorzh/Conveyor/internal/artifacts"
	"github.com/akorzh/Conveyor/internal/domain"
	"github.com/akorzh/Conveyor/internal/mq"
	"github.com/akorzh/Conveyor/internal/repo"
)

// artifactWriter — часть repo.ArtifactRepo, которой пользуется агент.
type artifactWriter interface {
	CreateBatch(ctx context.Context, artifacts []domain.Artifact) error
}

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 1
)

// Agent выполняет отдельные jobs.
//
// Agent — stateless компонент системы, который:
//   - Получает jobs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет queued jobs в БД (polling fallback)
//   - Выполняет шаги job строго последовательно; первый ненулевой
//     код выхода проваливает job, оставшиеся шаги помечаются SKIPPED
//   - Собирает артефакты и отчёты тестов из workspace
//   - Отправляет результат обратно в очередь jobs.completed
//
// Agents масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди. Prefetch 1: агент берёт
// следующий job только закончив текущий.
type Agent struct {
	// Repositories
	jobRepo      *repo.JobRepo
	buildRepo    *repo.BuildRepo
	pipelineRepo *repo.PipelineRepo
	artifactRepo artifactWriter

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Artifact store
	store *artifacts.Store

	// Executor registry
	registry *Registry

	// Consumer
	consumer *mq.Consumer

	// Configuration
	workRoot       string
	pollInterval   time.Duration
	batchSize      int
	keepWorkspaces bool

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Agent.
type Config struct {
	// Repositories
	JobRepo      *repo.JobRepo
	BuildRepo    *repo.BuildRepo
	PipelineRepo *repo.PipelineRepo
	ArtifactRepo *repo.ArtifactRepo

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Artifact store
	Store *artifacts.Store

	// Executor registry (опционально; если nil — используется NewRegistry())
	Registry *Registry

	// WorkRoot — корень для workspaces jobs (default: $WORK_DIR или /tmp/conveyor).
	WorkRoot string

	// KeepWorkspaces — не удалять workspace после job (отладка).
	// Также включается переменной KEEP_WORKSPACES=1.
	KeepWorkspaces bool

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество jobs за один poll (default: 50)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Agent.
func New(cfg Config) *Agent {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	workRoot := cfg.WorkRoot
	if workRoot == "" {
		workRoot = os.Getenv("WORK_DIR")
	}
	if workRoot == "" {
		workRoot = "/tmp/conveyor"
	}

	keep := cfg.KeepWorkspaces || os.Getenv("KEEP_WORKSPACES") == "1"

	return &Agent{
		jobRepo:        cfg.JobRepo,
		buildRepo:      cfg.BuildRepo,
		pipelineRepo:   cfg.PipelineRepo,
		artifactRepo:   cfg.ArtifactRepo,
		publisher:      cfg.Publisher,
		conn:           cfg.Conn,
		store:          cfg.Store,
		registry:       registry,
		workRoot:       workRoot,
		keepWorkspaces: keep,
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		logger:         logger,
	}
}

// Start запускает Agent.
//
// Запускает:
//   - Consumer для jobs.ready
//   - Polling горутину для fallback
func (a *Agent) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel

	a.logger.Info("starting agent",
		"work_root", a.workRoot,
		"poll_interval", a.pollInterval,
		"batch_size", a.batchSize,
	)

	// Consumer поднимаем только при живом соединении с брокером.
	// Без соединения агент работает в polling-only режиме.
	if a.conn != nil {
		a.consumer = mq.NewConsumer(a.conn, a.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueJobsReady),
			Handler:  a.handleJobReady,
			Prefetch: defaultPrefetch,
		})

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("job consumer error", "error", err)
			}
		}()
	} else {
		a.logger.Warn("no broker connection, agent runs in polling-only mode")
	}

	// Запускаем polling
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pollLoop(ctx)
	}()

	a.logger.Info("agent started")
	return nil
}

// Stop останавливает Agent.
func (a *Agent) Stop() {
	a.stoppedMu.Lock()
	a.stopped = true
	a.stoppedMu.Unlock()

	a.logger.Info("stopping agent...")

	if a.cancelFunc != nil {
		a.cancelFunc()
	}

	if a.consumer != nil {
		a.consumer.Stop()
	}

	// Ждём завершения горутин
	a.wg.Wait()

	a.logger.Info("agent stopped")
}

// IsStopped проверяет, остановлен ли Agent.
func (a *Agent) IsStopped() bool {
	a.stoppedMu.RLock()
	defer a.stoppedMu.RUnlock()
	return a.stopped
}

// pollLoop — цикл polling для fallback.
func (a *Agent) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем jobs, созданные пока были выключены)
	a.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (a *Agent) poll(ctx context.Context) {
	jobs, err := a.jobRepo.ListQueued(ctx, a.batchSize)
	if err != nil {
		a.logger.Error("failed to list queued jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	a.logger.Debug("poll found queued jobs", "count", len(jobs))

	for i := range jobs {
		job := &jobs[i]

		if err := a.processJob(ctx, job.ID); err != nil {
			a.logger.Error("failed to process job from poll",
				"job_id", job.ID,
				"error", err,
			)
		}
	}
}
