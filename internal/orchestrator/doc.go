// Package orchestrator управляет выполнением builds.
//
// Orchestrator отвечает за:
//   - Получение новых builds из очереди RabbitMQ
//   - Валидацию конфигурации и построение DAG workflow
//   - Разрешение jobs (шаблоны, env build, плейсхолдеры)
//   - Отправку готовых jobs агентам
//   - Отслеживание завершения jobs
//   - Пропуск jobs, чьи requires упали (SKIPPED); независимые
//     ветки workflow при этом продолжают выполняться
//   - Финализацию build (SUCCEEDED/FAILED)
//
// Orchestrator — это "мозг" системы, который координирует выполнение.
package orchestrator
