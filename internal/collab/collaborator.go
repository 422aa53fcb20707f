package collab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/shaiso/Bakehouse/internal/executor"
)

// Collaborator — внешний инструмент, вызываемый на границе
// определённого интерфейса и не реализуемый движком.
//
// Единственная способность — запуск с аргументами: exit code
// возвращается явно, combined stdout/stderr уходит в sink.
// Для тестов любой бинарник подменяем fake-реализацией.
type Collaborator interface {
	// Name возвращает имя инструмента (для логов и отчётов).
	Name() string

	// Run запускает инструмент и возвращает его exit code.
	Run(ctx context.Context, args []string, sink io.Writer) (int, error)
}

// process — Collaborator, вызывающий внешний бинарник.
type process struct {
	bin  string
	path string
}

// NewProcess создаёт Collaborator для бинарника bin.
// Возвращает ErrUnavailable, если бинарник не найден в PATH
// или не исполняем.
func NewProcess(bin string) (Collaborator, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, bin, err)
	}
	return &process{bin: bin, path: path}, nil
}

// Name возвращает имя бинарника.
func (p *process) Name() string {
	return p.bin
}

// Run запускает бинарник и ждёт завершения, уважая ctx.
func (p *process) Run(ctx context.Context, args []string, sink io.Writer) (int, error) {
	cmd := exec.Command(p.path, args...)
	cmd.Stdout = sink
	cmd.Stderr = sink

	code, err := executor.RunCommand(ctx, cmd)
	if errors.Is(err, exec.ErrNotFound) {
		// Бинарник исчез между LookPath и запуском.
		return code, fmt.Errorf("%w: %s", ErrUnavailable, p.bin)
	}
	return code, err
}
