// Package orchestrator выполняет pipeline от начала до конца.
//
// Orchestrator строит граф jobs, проходит stage'и строго по порядку
// (stage-барьер: следующий stage не начинается, пока не завершатся
// все jobs текущего) и диспетчеризует готовые jobs в ограниченный
// пул. Trigger-правила вычисляются в момент готовности job; job с
// неудовлетворёнными зависимостями переходит в SKIPPED.
//
// Жёсткая ошибка (FAILED без allow_failure) останавливает
// диспетчеризацию: выполняющиеся jobs досчитываются, остальные
// переходят в SKIPPED, run завершается с ABORTED.
package orchestrator
