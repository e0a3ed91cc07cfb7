// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, publisher, store, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - pipeline_handler.go — обработчики для /pipelines и ревизий конфигурации
//   - build_handler.go    — обработчики для /builds
//   - artifact_handler.go — обработчики для /artifacts и логов jobs
//   - schedule_handler.go — обработчики для /schedules
//
// API предоставляет REST endpoints для управления pipelines, builds,
// schedules и выгрузки артефактов. Конфигурация pipeline загружается
// как YAML (POST /pipelines/{id}/config) и валидируется до сохранения.
package api
