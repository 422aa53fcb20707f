package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/shaiso/Bakehouse/internal/domain"
	"github.com/shaiso/Bakehouse/internal/executor"
)

// ClusterTester — обёртка над внешним инструментом проверки образов.
//
// Инструмент поднимает временный кластер из собранного образа,
// гоняет тесты и пишет структурированный отчёт. Успех — exit code 0.
type ClusterTester struct {
	collab       Collaborator
	project      string
	imageProject string
	version      string
	prefix       string
	extraArgs    []string
	logger       *slog.Logger
}

// TesterConfig — конфигурация ClusterTester.
type TesterConfig struct {
	// Bin — бинарник test runner'а (default: "cluster-test").
	Bin string

	// Project — project id, где создаётся тестовый кластер.
	Project string

	// ImageProject — project id, где опубликованы образы.
	ImageProject string

	// Version — version string pipeline (точки заменяются дефисами
	// в имени семейства образа).
	Version string

	// Prefix — фиксированный префикс имён кластеров и семейств.
	Prefix string

	// ExtraArgs — дополнительные аргументы одной строкой.
	ExtraArgs string

	// Logger
	Logger *slog.Logger
}

// TestReport — структурированный отчёт test runner'а.
type TestReport struct {
	// Total — количество выполненных тестов.
	Total int `json:"total"`

	// Passed — успешные тесты.
	Passed int `json:"passed"`

	// Failed — упавшие тесты.
	Failed int `json:"failed"`

	// Failures — сообщения упавших тестов.
	Failures []string `json:"failures,omitempty"`
}

// NewClusterTester создаёт ClusterTester.
// Возвращает ErrUnavailable, если бинарник не найден.
func NewClusterTester(cfg TesterConfig) (*ClusterTester, error) {
	bin := cfg.Bin
	if bin == "" {
		bin = "cluster-test"
	}

	collab, err := NewProcess(bin)
	if err != nil {
		return nil, err
	}

	extraArgs, err := shell.Fields(cfg.ExtraArgs, nil)
	if err != nil {
		return nil, fmt.Errorf("parse tester extra args: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ClusterTester{
		collab:       collab,
		project:      cfg.Project,
		imageProject: cfg.ImageProject,
		version:      cfg.Version,
		prefix:       cfg.Prefix,
		extraArgs:    extraArgs,
		logger:       logger,
	}, nil
}

// Test проверяет образ семейства family на временном кластере.
// Возвращает exit code инструмента и отчёт (nil, если отчёт не записан).
func (t *ClusterTester) Test(ctx context.Context, family string, sink io.Writer) (int, *TestReport, error) {
	cluster := ClusterName(t.prefix)
	image := ImageFamily(t.prefix, t.version, family)

	reportDir, err := os.MkdirTemp("", "bakehouse-report-")
	if err != nil {
		return -1, nil, fmt.Errorf("create report dir: %w", err)
	}
	defer os.RemoveAll(reportDir)
	reportFile := filepath.Join(reportDir, "report.json")

	args := []string{
		"--project-id", t.project,
		"--cluster-name", cluster,
		"--image-project", t.imageProject,
		"--image-family", image,
		"--report-file", reportFile,
	}
	args = append(args, t.extraArgs...)

	t.logger.Info("testing image",
		"tester", t.collab.Name(),
		"cluster", cluster,
		"image_family", image,
	)

	code, err := t.collab.Run(ctx, args, sink)
	if err != nil {
		return code, nil, err
	}

	report, rerr := readReport(reportFile)
	if rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		return code, nil, rerr
	}
	return code, report, nil
}

// readReport читает отчёт теста из файла.
func readReport(path string) (*TestReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var report TestReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadReport, err)
	}
	return &report, nil
}

// ClusterName генерирует имя временного кластера:
// фиксированный префикс плюс два случайных символа [a-z].
func ClusterName(prefix string) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	suffix := []byte{
		letters[rand.IntN(len(letters))],
		letters[rand.IntN(len(letters))],
	}
	return prefix + string(suffix)
}

// ImageFamily составляет имя семейства образа:
// <prefix>-slurm-<version-with-dashes>-<family>.
func ImageFamily(prefix, version, family string) string {
	return fmt.Sprintf("%s-slurm-%s-%s", prefix, strings.ReplaceAll(version, ".", "-"), family)
}

// TestExecutor — executor для jobs типа "test".
type TestExecutor struct {
	tester *ClusterTester
}

// NewTestExecutor создаёт TestExecutor.
func NewTestExecutor(tester *ClusterTester) *TestExecutor {
	return &TestExecutor{tester: tester}
}

// Execute проверяет образ job.Target.
func (e *TestExecutor) Execute(ctx context.Context, job *domain.JobDef, _ []string, sink io.Writer) (*executor.Result, error) {
	code, report, err := e.tester.Test(ctx, job.Target, sink)

	if errors.Is(err, context.DeadlineExceeded) {
		return &executor.Result{ExitCode: code, TimedOut: true}, executor.ErrExecutionTimeout
	}
	if err != nil {
		return &executor.Result{ExitCode: code}, err
	}

	if report != nil && report.Failed > 0 {
		fmt.Fprintf(sink, "test report: %d/%d failed\n", report.Failed, report.Total)
	}

	if code != 0 {
		return &executor.Result{ExitCode: code},
			fmt.Errorf("%w: cluster test exited with code %d", executor.ErrExecutionFailed, code)
	}
	return &executor.Result{}, nil
}
