package executor

import (
	"context"
	"errors"
	"os/exec"
	"syscall"
)

// RunCommand запускает подготовленный exec.Cmd и ждёт его завершения,
// уважая ctx.
//
// Команда получает собственную process group: при отмене или
// истечении ctx убивается всё дерево процессов, включая потомков.
// Возвращает exit code процесса; -1, если процесс был убит.
func RunCommand(ctx context.Context, cmd *exec.Cmd) (int, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return -1, err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return -1, ctx.Err()

	case err := <-done:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		if err != nil {
			return -1, err
		}
		return 0, nil
	}
}
