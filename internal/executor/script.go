package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// ScriptExecutor выполняет последовательность shell-команд job.
//
// Каждый job получает свежий изолированный рабочий каталог,
// удаляемый по завершении. Команды выполняются строго
// последовательно; первая с ненулевым exit code останавливает job.
type ScriptExecutor struct {
	// Shell — интерпретатор команд.
	Shell string
}

// NewScriptExecutor создаёт ScriptExecutor с /bin/sh.
func NewScriptExecutor() *ScriptExecutor {
	return &ScriptExecutor{Shell: "/bin/sh"}
}

// Execute выполняет script job.
//
// Wall-clock таймаут приходит через deadline ctx: на его истечении
// текущий шаг убивается вместе со всем деревом процессов, job
// получает ErrExecutionTimeout.
func (e *ScriptExecutor) Execute(ctx context.Context, job *domain.JobDef, env []string, sink io.Writer) (*Result, error) {
	workdir, err := os.MkdirTemp("", "bakehouse-"+job.Name+"-")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	for i, line := range job.Script {
		cmd := exec.Command(e.Shell, "-c", line)
		cmd.Dir = workdir
		cmd.Env = env
		cmd.Stdout = sink
		cmd.Stderr = sink

		code, err := RunCommand(ctx, cmd)

		if errors.Is(err, context.DeadlineExceeded) {
			return &Result{ExitCode: code, TimedOut: true},
				NewStepError(i+1, line, code, ErrExecutionTimeout)
		}
		if err != nil {
			return &Result{ExitCode: code},
				NewStepError(i+1, line, code, fmt.Errorf("%w: %v", ErrExecutionFailed, err))
		}
		if code != 0 {
			return &Result{ExitCode: code},
				NewStepError(i+1, line, code, ErrExecutionFailed)
		}
	}

	return &Result{}, nil
}
