// Package engine содержит движок конфигураций pipeline.
//
// Включает:
//   - parser.go   — парсинг и валидация PipelineSpec из YAML
//   - merge.go    — резолвинг шаблонов jobs (template + переопределения)
//   - dag.go      — построение и обход DAG jobs по requires
//   - template.go — рендеринг Go templates ({{ .Build.Branch }})
//
// Engine отвечает за понимание структуры workflow и определение
// порядка выполнения jobs на основе их зависимостей.
package engine
