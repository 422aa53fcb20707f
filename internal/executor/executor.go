package executor

import (
	"context"
	"fmt"
	"io"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// Executor — интерфейс для выполнения конкретного типа job.
//
// Реализации: ScriptExecutor (здесь), BuildExecutor и TestExecutor
// (пакет collab).
//
// env содержит полностью разрешённые переменные job; sink принимает
// combined stdout/stderr по мере выполнения. Wall-clock таймаут job
// передаётся через deadline ctx; на его истечении executor убивает
// дерево процессов и возвращает ErrExecutionTimeout.
type Executor interface {
	Execute(ctx context.Context, job *domain.JobDef, env []string, sink io.Writer) (*Result, error)
}

// Result — результат выполнения job.
type Result struct {
	// ExitCode — exit code последней выполненной команды.
	ExitCode int

	// TimedOut — true, если выполнение прервано по таймауту.
	TimedOut bool
}

// Registry — реестр executor'ов по типу job.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry создаёт реестр с ScriptExecutor'ом по умолчанию.
//
// Executor'ы для build и test регистрирует вызывающая сторона —
// им нужны сконфигурированные внешние инструменты.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register(domain.JobTypeScript, NewScriptExecutor())
	return r
}

// Register добавляет executor для типа job.
func (r *Registry) Register(jobType string, executor Executor) {
	r.executors[jobType] = executor
}

// Get возвращает executor для типа job.
// Пустой тип трактуется как script.
func (r *Registry) Get(jobType string) (Executor, error) {
	if jobType == "" {
		jobType = domain.JobTypeScript
	}
	executor, ok := r.executors[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	return executor, nil
}
