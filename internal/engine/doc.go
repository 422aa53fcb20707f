// Package engine содержит модель выполнения pipeline.
//
// Включает:
//   - parser.go    — парсинг PipelineSpec из YAML и валидация
//   - graph.go     — построение и обход графа jobs (DAG со stage-барьерами)
//   - trigger.go   — оценка правил триггеров (упорядоченный список предикатов)
//   - variables.go — послойное разрешение переменных
//
// Engine отвечает за понимание структуры pipeline: порядок stages,
// зависимости jobs и решения о запуске. Само выполнение — в пакетах
// executor и orchestrator.
package engine
