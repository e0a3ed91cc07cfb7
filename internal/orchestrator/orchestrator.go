package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akorzh/Conveyor/internal/mq"
	"github.com/akorzh/Conveyor/internal/repo"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// Orchestrator управляет выполнением builds.
//
// Orchestrator — центральный компонент системы, который:
//   - Получает новые builds из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending builds в БД (polling fallback)
//   - Строит DAG workflow для каждого build
//   - Создаёт jobs и отправляет готовые агентам
//   - Отслеживает завершение jobs, пропускает dependents упавших
//   - Финализирует builds (SUCCEEDED/FAILED)
type Orchestrator struct {
	// Repositories
	buildRepo    *repo.BuildRepo
	jobRepo      *repo.JobRepo
	pipelineRepo *repo.PipelineRepo

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Active builds — builds в процессе выполнения (buildID → state)
	activeBuilds map[uuid.UUID]*BuildState
	mu           sync.RWMutex

	// Consumers
	buildConsumer *mq.Consumer
	jobConsumer   *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Repositories
	BuildRepo    *repo.BuildRepo
	JobRepo      *repo.JobRepo
	PipelineRepo *repo.PipelineRepo

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество builds за один poll (default: 100)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
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

	return &Orchestrator{
		buildRepo:    cfg.BuildRepo,
		jobRepo:      cfg.JobRepo,
		pipelineRepo: cfg.PipelineRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		activeBuilds: make(map[uuid.UUID]*BuildState),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для builds.pending
//   - Consumer для jobs.completed
//   - Polling горутину для fallback
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
	)

	// Consumers поднимаем только при живом соединении с брокером.
	// Без соединения orchestrator работает в polling-only режиме.
	if o.conn != nil {
		o.buildConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueBuildsPending),
			Handler:  o.handleBuildPending,
			Prefetch: 10,
		})

		o.jobConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueJobsCompleted),
			Handler:  o.handleJobCompleted,
			Prefetch: 10,
		})

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.buildConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("build consumer error", "error", err)
			}
		}()

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.jobConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("job consumer error", "error", err)
			}
		}()
	} else {
		o.logger.Warn("no broker connection, orchestrator runs in polling-only mode")
	}

	// Запускаем polling
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	// Останавливаем consumers
	if o.buildConsumer != nil {
		o.buildConsumer.Stop()
	}
	if o.jobConsumer != nil {
		o.jobConsumer.Stop()
	}

	// Ждём завершения горутин
	o.wg.Wait()

	o.logger.Info("orchestrator stopped",
		"active_builds", len(o.activeBuilds),
	)
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем builds, созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling: подхватывает pending builds
// и сверяет активные builds с БД (на случай потерянных событий
// jobs.completed — агент мог не дотянуться до брокера).
func (o *Orchestrator) poll(ctx context.Context) {
	builds, err := o.buildRepo.ListPending(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list pending builds", "error", err)
		return
	}

	if len(builds) > 0 {
		o.logger.Debug("poll found pending builds", "count", len(builds))
	}

	for i := range builds {
		build := &builds[i]

		// Проверяем, не обрабатывается ли уже
		if o.isBuildActive(build.ID) {
			continue
		}

		if err := o.processBuild(ctx, build.ID); err != nil {
			o.logger.Error("failed to process build from poll",
				"build_id", build.ID,
				"error", err,
			)
		}
	}

	o.reconcileActiveBuilds(ctx)
}

// isBuildActive проверяет, находится ли build в обработке.
func (o *Orchestrator) isBuildActive(buildID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.activeBuilds[buildID]
	return exists
}

// getActiveBuild возвращает активный BuildState.
func (o *Orchestrator) getActiveBuild(buildID uuid.UUID) *BuildState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.activeBuilds[buildID]
}

// addActiveBuild добавляет build в активные.
func (o *Orchestrator) addActiveBuild(state *BuildState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeBuilds[state.BuildID()]; exists {
		return ErrBuildAlreadyActive
	}

	o.activeBuilds[state.BuildID()] = state
	return nil
}

// removeActiveBuild удаляет build из активных.
func (o *Orchestrator) removeActiveBuild(buildID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeBuilds, buildID)
}

// listActiveBuilds возвращает снимок активных states.
func (o *Orchestrator) listActiveBuilds() []*BuildState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	states := make([]*BuildState, 0, len(o.activeBuilds))
	for _, state := range o.activeBuilds {
		states = append(states, state)
	}
	return states
}

// ActiveBuildsCount возвращает количество активных builds.
func (o *Orchestrator) ActiveBuildsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeBuilds)
}

// GetActiveBuildStats возвращает статистику по активному build.
func (o *Orchestrator) GetActiveBuildStats(buildID uuid.UUID) (BuildStats, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, exists := o.activeBuilds[buildID]
	if !exists {
		return BuildStats{}, false
	}

	return state.Stats(), true
}
