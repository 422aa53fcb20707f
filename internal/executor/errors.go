package executor

import (
	"errors"
	"fmt"
)

// Ошибки выполнения jobs.
var (
	// ErrExecutionFailed — команда завершилась с ненулевым exit code.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrExecutionTimeout — job превысил wall-clock таймаут.
	// Дерево процессов job убито.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrUnknownJobType — нет executor'а для данного типа job.
	ErrUnknownJobType = errors.New("unknown job type")
)

// StepError — ошибка конкретного шага script.
//
// Выполнение останавливается на первом ненулевом exit code;
// StepError фиксирует, какой именно шаг упал.
type StepError struct {
	Step     int    // номер шага (с 1)
	Command  string // команда шага
	ExitCode int    // exit code (-1, если процесс убит)
	Err      error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): exit code %d", e.Step, e.Command, e.ExitCode)
}

// Unwrap возвращает базовую ошибку.
func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError создаёт новую ошибку шага.
func NewStepError(step int, command string, exitCode int, err error) *StepError {
	return &StepError{Step: step, Command: command, ExitCode: exitCode, Err: err}
}
