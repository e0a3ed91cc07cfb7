// Package agent выполняет отдельные jobs.
//
// # Обзор
//
// Agent — stateless компонент системы Conveyor, который выполняет
// отдельные jobs, созданные Orchestrator'ом. Agent отвечает за:
//
//   - Получение jobs из очереди RabbitMQ (event-driven)
//   - Периодическую проверку queued jobs в БД (polling fallback)
//   - Выполнение шагов job строго последовательно
//   - Сбор артефактов и отчётов тестов из workspace
//   - Отправку результата обратно в очередь jobs.completed
//
// Agents масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди jobs.ready с prefetch 1.
//
// # Ключевые компоненты
//
// ## Agent
//
// Основная структура, управляющая жизненным циклом.
// Создаётся через New(cfg Config) и запускается методом Start(ctx).
//
//	a := agent.New(agent.Config{
//	    JobRepo:      jobRepo,
//	    BuildRepo:    buildRepo,
//	    PipelineRepo: pipelineRepo,
//	    ArtifactRepo: artifactRepo,
//	    Publisher:    publisher,
//	    Conn:         mqConn,
//	    Store:        store,
//	    Logger:       logger,
//	})
//
//	if err := a.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Stop()
//
// ## StepExecutor
//
// Интерфейс для выполнения конкретного типа шага:
//
//	type StepExecutor interface {
//	    Execute(ctx context.Context, step *domain.StepDef, sc *StepContext) (*ExecutionResult, error)
//	}
//
// Реализации:
//   - RunExecutor — shell-команды (`sh -c`, env-наложение, combined output)
//   - CheckoutExecutor — git clone/checkout репозитория pipeline
//
// ## Registry
//
// Реестр executor'ов по типу шага. NewRegistry() создаёт реестр
// с предустановленными executor'ами (run, checkout).
//
// # Обработка job
//
//  1. Получение job (из очереди или polling)
//  2. Загрузка job из БД, проверка статуса QUEUED
//  3. Перевод в RUNNING
//  4. Создание workspace, выполнение шагов по порядку
//  5. Первый ненулевой код выхода проваливает job,
//     оставшиеся шаги помечаются SKIPPED
//  6. Сбор артефактов и отчётов тестов (независимо от итога шагов)
//  7. Успех → MarkSucceeded, publish JobCompleted(SUCCEEDED)
//  8. Ошибка → MarkFailed, publish JobCompleted(FAILED)
//
// Повторного выполнения шагов нет: упавшая команда не перезапускается,
// итог job определяется первым провалом. Перезапуск — это новый build.
//
// # Ошибки
//
// Пакет различает два уровня ошибок:
//   - Инфраструктурные (error от Execute) — процесс не запустился, таймаут
//   - Ненулевой код выхода (ExecutionResult.ExitCode) — команда отработала и упала
//
// Оба уровня проваливают job; различие только в тексте ошибки.
package agent
