// Package executor выполняет jobs в изолированном окружении.
//
// Включает:
//   - executor.go — интерфейс Executor и реестр по типу job
//   - script.go   — последовательное выполнение shell-команд с
//     таймаутом и убийством дерева процессов
//   - sink.go     — потокобезопасный буфер combined stdout/stderr
//
// Ошибки выполнения возвращаются вызывающей стороне и фиксируются
// на записи job — retry здесь нет, политика ошибок целиком задаётся
// флагом allow_failure правила триггера.
package executor
