package collab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"mvdan.cc/sh/v3/shell"

	"github.com/shaiso/Bakehouse/internal/domain"
	"github.com/shaiso/Bakehouse/internal/executor"
)

// ImageBuilder — обёртка над внешним инструментом сборки образов.
//
// Инструмент вызывается с путём к файлу переменных и набором
// key=value переопределений; успех — exit code 0. Собранный
// артефакт идентифицируется тегом семейства (target job'а).
type ImageBuilder struct {
	collab    Collaborator
	varsFile  string
	overrides map[string]string
	extraArgs []string
	logger    *slog.Logger
}

// BuilderConfig — конфигурация ImageBuilder.
type BuilderConfig struct {
	// Bin — бинарник сборщика (default: "packer").
	Bin string

	// VarsFile — путь к файлу переменных сборки.
	VarsFile string

	// Overrides — key=value переопределения переменных
	// (project id, версия, credentials path).
	Overrides map[string]string

	// ExtraArgs — дополнительные аргументы одной строкой,
	// разбивается по правилам shell.
	ExtraArgs string

	// Logger
	Logger *slog.Logger
}

// NewImageBuilder создаёт ImageBuilder.
// Возвращает ErrUnavailable, если бинарник сборщика не найден.
func NewImageBuilder(cfg BuilderConfig) (*ImageBuilder, error) {
	bin := cfg.Bin
	if bin == "" {
		bin = "packer"
	}

	collab, err := NewProcess(bin)
	if err != nil {
		return nil, err
	}

	extraArgs, err := shell.Fields(cfg.ExtraArgs, nil)
	if err != nil {
		return nil, fmt.Errorf("parse builder extra args: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ImageBuilder{
		collab:    collab,
		varsFile:  cfg.VarsFile,
		overrides: cfg.Overrides,
		extraArgs: extraArgs,
		logger:    logger,
	}, nil
}

// Build собирает образ семейства family и возвращает exit code сборщика.
func (b *ImageBuilder) Build(ctx context.Context, family string, sink io.Writer) (int, error) {
	args := []string{"build"}
	if b.varsFile != "" {
		args = append(args, "-var-file", b.varsFile)
	}

	// Сортируем ключи, чтобы командная строка была детерминированной.
	keys := make([]string, 0, len(b.overrides))
	for k := range b.overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-var", k+"="+b.overrides[k])
	}

	args = append(args, "-var", "family="+family)
	args = append(args, b.extraArgs...)

	b.logger.Info("building image",
		"builder", b.collab.Name(),
		"family", family,
	)

	return b.collab.Run(ctx, args, sink)
}

// BuildExecutor — executor для jobs типа "build".
type BuildExecutor struct {
	builder *ImageBuilder
}

// NewBuildExecutor создаёт BuildExecutor.
func NewBuildExecutor(builder *ImageBuilder) *BuildExecutor {
	return &BuildExecutor{builder: builder}
}

// Execute собирает образ job.Target.
func (e *BuildExecutor) Execute(ctx context.Context, job *domain.JobDef, _ []string, sink io.Writer) (*executor.Result, error) {
	code, err := e.builder.Build(ctx, job.Target, sink)

	if errors.Is(err, context.DeadlineExceeded) {
		return &executor.Result{ExitCode: code, TimedOut: true}, executor.ErrExecutionTimeout
	}
	if err != nil {
		return &executor.Result{ExitCode: code}, err
	}
	if code != 0 {
		return &executor.Result{ExitCode: code},
			fmt.Errorf("%w: image build exited with code %d", executor.ErrExecutionFailed, code)
	}
	return &executor.Result{}, nil
}
