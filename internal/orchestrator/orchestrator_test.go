package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Bakehouse/internal/domain"
	"github.com/shaiso/Bakehouse/internal/executor"
)

// fakeExecutor имитирует выполнение jobs без запуска процессов.
type fakeExecutor struct {
	mu        sync.Mutex
	order     []string
	active    int
	maxActive int

	fail  map[string]bool
	delay map[string]time.Duration
	hang  map[string]bool
	defs  map[string]domain.JobDef
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		fail:  make(map[string]bool),
		delay: make(map[string]time.Duration),
		hang:  make(map[string]bool),
		defs:  make(map[string]domain.JobDef),
	}
}

func (f *fakeExecutor) Execute(ctx context.Context, job *domain.JobDef, _ []string, sink io.Writer) (*executor.Result, error) {
	f.mu.Lock()
	f.order = append(f.order, job.Name)
	f.defs[job.Name] = *job
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.hang[job.Name] {
		<-ctx.Done()
		return &executor.Result{ExitCode: -1, TimedOut: true},
			executor.NewStepError(0, "sleep", -1, executor.ErrExecutionTimeout)
	}
	if d := f.delay[job.Name]; d > 0 {
		time.Sleep(d)
	}

	fmt.Fprintf(sink, "job %s output\n", job.Name)

	if f.fail[job.Name] {
		return &executor.Result{ExitCode: 1},
			executor.NewStepError(0, "false", 1, executor.ErrExecutionFailed)
	}
	return &executor.Result{ExitCode: 0}, nil
}

func (f *fakeExecutor) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func newTestOrchestrator(fake *fakeExecutor, workers int) *Orchestrator {
	registry := executor.NewRegistry()
	registry.Register(domain.JobTypeScript, fake)
	return New(Config{Registry: registry, Workers: workers})
}

func jobStatus(t *testing.T, report *Report, name string) domain.JobStatus {
	t.Helper()
	for _, res := range report.Jobs {
		if res.Job == name {
			return res.Status
		}
	}
	t.Fatalf("job %q not in report", name)
	return ""
}

func TestExecuteCompletesLinearPipeline(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build", "test"},
		Jobs: []domain.JobDef{
			{Name: "build-image", Stage: "build", Script: []string{"true"}},
			{Name: "test-image", Stage: "test", Script: []string{"true"}, Needs: []domain.Need{{Job: "build-image"}}},
		},
	}

	fake := newFakeExecutor()
	report, err := newTestOrchestrator(fake, 2).Execute(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if report.Run.Status != domain.RunStatusCompleted {
		t.Errorf("run status = %s, want %s", report.Run.Status, domain.RunStatusCompleted)
	}
	if got := jobStatus(t, report, "build-image"); got != domain.JobStatusSucceeded {
		t.Errorf("build-image = %s, want %s", got, domain.JobStatusSucceeded)
	}
	if got := jobStatus(t, report, "test-image"); got != domain.JobStatusSucceeded {
		t.Errorf("test-image = %s, want %s", got, domain.JobStatusSucceeded)
	}
	if report.FirstFailure != nil {
		t.Errorf("unexpected first failure: %+v", report.FirstFailure)
	}
}

func TestExecuteHardFailureAbortsRun(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build", "test"},
		Jobs: []domain.JobDef{
			{Name: "build-image", Stage: "build", Script: []string{"false"}},
			{Name: "test-image", Stage: "test", Script: []string{"true"}, Needs: []domain.Need{{Job: "build-image"}}},
		},
	}

	fake := newFakeExecutor()
	fake.fail["build-image"] = true

	report, err := newTestOrchestrator(fake, 2).Execute(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if report.Run.Status != domain.RunStatusAborted {
		t.Fatalf("run status = %s, want %s", report.Run.Status, domain.RunStatusAborted)
	}
	if got := jobStatus(t, report, "build-image"); got != domain.JobStatusFailed {
		t.Errorf("build-image = %s, want %s", got, domain.JobStatusFailed)
	}
	if got := jobStatus(t, report, "test-image"); got != domain.JobStatusSkipped {
		t.Errorf("test-image = %s, want %s", got, domain.JobStatusSkipped)
	}
	if report.FirstFailure == nil || report.FirstFailure.Job != "build-image" {
		t.Errorf("first failure = %+v, want build-image", report.FirstFailure)
	}
	for _, name := range fake.executed() {
		if name == "test-image" {
			t.Error("test-image executed after hard failure")
		}
	}
}

func TestExecuteAllowFailureDoesNotAbort(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build", "test"},
		Jobs: []domain.JobDef{
			{
				Name:   "lint",
				Stage:  "build",
				Script: []string{"false"},
				Rule:   &domain.TriggerRule{When: domain.TriggerAlways, AllowFailure: true},
			},
			{Name: "test-image", Stage: "test", Script: []string{"true"}, Needs: []domain.Need{{Job: "lint"}}},
		},
	}

	fake := newFakeExecutor()
	fake.fail["lint"] = true

	report, err := newTestOrchestrator(fake, 2).Execute(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if report.Run.Status != domain.RunStatusCompleted {
		t.Fatalf("run status = %s, want %s", report.Run.Status, domain.RunStatusCompleted)
	}
	if got := jobStatus(t, report, "lint"); got != domain.JobStatusFailed {
		t.Errorf("lint = %s, want %s", got, domain.JobStatusFailed)
	}
	if got := jobStatus(t, report, "test-image"); got != domain.JobStatusSucceeded {
		t.Errorf("test-image = %s, want %s", got, domain.JobStatusSucceeded)
	}
	if report.FirstFailure != nil {
		t.Errorf("unexpected first failure: %+v", report.FirstFailure)
	}
}

func TestExecuteStageBarrier(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build", "test"},
		Jobs: []domain.JobDef{
			{Name: "build-a", Stage: "build", Script: []string{"true"}},
			{Name: "build-b", Stage: "build", Script: []string{"true"}},
			{Name: "test-a", Stage: "test", Script: []string{"true"}},
		},
	}

	fake := newFakeExecutor()
	fake.delay["build-a"] = 20 * time.Millisecond
	fake.delay["build-b"] = 20 * time.Millisecond

	report, err := newTestOrchestrator(fake, 4).Execute(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if report.Run.Status != domain.RunStatusCompleted {
		t.Fatalf("run status = %s, want %s", report.Run.Status, domain.RunStatusCompleted)
	}

	order := fake.executed()
	if len(order) != 3 {
		t.Fatalf("executed %d jobs, want 3: %v", len(order), order)
	}
	if order[2] != "test-a" {
		t.Errorf("test stage started before build stage finished: %v", order)
	}
}

func TestExecuteTriggerSkipCascades(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build", "test"},
		Jobs: []domain.JobDef{
			{
				Name:   "build-image",
				Stage:  "build",
				Script: []string{"true"},
				Rule:   &domain.TriggerRule{When: domain.TriggerOnPathChange, Changes: []string{"ansible/**"}},
			},
			{Name: "test-image", Stage: "test", Script: []string{"true"}, Needs: []domain.Need{{Job: "build-image"}}},
		},
	}

	meta := &domain.RunMeta{
		Source:       domain.SourcePush,
		ChangedPaths: []string{"docs/README.md"},
	}

	fake := newFakeExecutor()
	report, err := newTestOrchestrator(fake, 2).Execute(context.Background(), spec, meta)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if report.Run.Status != domain.RunStatusCompleted {
		t.Fatalf("run status = %s, want %s", report.Run.Status, domain.RunStatusCompleted)
	}
	if got := jobStatus(t, report, "build-image"); got != domain.JobStatusSkipped {
		t.Errorf("build-image = %s, want %s", got, domain.JobStatusSkipped)
	}
	if got := jobStatus(t, report, "test-image"); got != domain.JobStatusSkipped {
		t.Errorf("test-image = %s, want %s", got, domain.JobStatusSkipped)
	}
	if executed := fake.executed(); len(executed) != 0 {
		t.Errorf("executed jobs %v, want none", executed)
	}
}

func TestExecuteAdvisoryNeedRunsAfterSkip(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build", "test"},
		Jobs: []domain.JobDef{
			{
				Name:   "build-extra",
				Stage:  "build",
				Script: []string{"true"},
				Rule:   &domain.TriggerRule{When: domain.TriggerOnPathChange, Changes: []string{"extra/**"}},
			},
			{
				Name:   "test-image",
				Stage:  "test",
				Script: []string{"true"},
				Needs:  []domain.Need{{Job: "build-extra", Optional: true}},
			},
		},
	}

	meta := &domain.RunMeta{Source: domain.SourcePush, ChangedPaths: []string{"main.tf"}}

	fake := newFakeExecutor()
	report, err := newTestOrchestrator(fake, 2).Execute(context.Background(), spec, meta)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if got := jobStatus(t, report, "build-extra"); got != domain.JobStatusSkipped {
		t.Errorf("build-extra = %s, want %s", got, domain.JobStatusSkipped)
	}
	if got := jobStatus(t, report, "test-image"); got != domain.JobStatusSucceeded {
		t.Errorf("test-image = %s, want %s", got, domain.JobStatusSucceeded)
	}
}

func TestExecuteAdvisoryNeedSameStage(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build"},
		Jobs: []domain.JobDef{
			{
				Name:   "lint",
				Stage:  "build",
				Script: []string{"true"},
				Rule:   &domain.TriggerRule{When: domain.TriggerOnPathChange, Changes: []string{"ansible/**"}},
			},
			{
				Name:   "package",
				Stage:  "build",
				Script: []string{"true"},
				Needs:  []domain.Need{{Job: "lint", Optional: true}},
			},
		},
	}

	meta := &domain.RunMeta{Source: domain.SourcePush, ChangedPaths: []string{"docs/README.md"}}

	fake := newFakeExecutor()
	report, err := newTestOrchestrator(fake, 2).Execute(context.Background(), spec, meta)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if report.Run.Status != domain.RunStatusCompleted {
		t.Fatalf("run status = %s, want %s", report.Run.Status, domain.RunStatusCompleted)
	}
	if got := jobStatus(t, report, "lint"); got != domain.JobStatusSkipped {
		t.Errorf("lint = %s, want %s", got, domain.JobStatusSkipped)
	}
	// Skip зависимости в том же stage открывает зависимый job:
	// он диспетчеризуется, а не пропускается вместе с run.
	if got := jobStatus(t, report, "package"); got != domain.JobStatusSucceeded {
		t.Errorf("package = %s, want %s", got, domain.JobStatusSucceeded)
	}
	if executed := fake.executed(); len(executed) != 1 || executed[0] != "package" {
		t.Errorf("executed jobs %v, want [package]", executed)
	}
}

func TestExecuteSameStageNeedChain(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build"},
		Jobs: []domain.JobDef{
			{Name: "prepare", Stage: "build", Script: []string{"true"}},
			{Name: "build-image", Stage: "build", Script: []string{"true"}, Needs: []domain.Need{{Job: "prepare"}}},
			{Name: "checksum", Stage: "build", Script: []string{"true"}, Needs: []domain.Need{{Job: "build-image"}}},
		},
	}

	fake := newFakeExecutor()
	report, err := newTestOrchestrator(fake, 4).Execute(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if report.Run.Status != domain.RunStatusCompleted {
		t.Fatalf("run status = %s, want %s", report.Run.Status, domain.RunStatusCompleted)
	}

	order := fake.executed()
	want := []string{"prepare", "build-image", "checksum"}
	if len(order) != len(want) {
		t.Fatalf("executed %v, want %v", order, want)
	}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("execution order %v, want %v", order, want)
		}
	}
}

func TestExecuteTimeoutMarksFailureKind(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build"},
		Jobs: []domain.JobDef{
			{Name: "slow", Stage: "build", Script: []string{"sleep 600"}, TimeoutSec: 1},
		},
	}

	fake := newFakeExecutor()
	fake.hang["slow"] = true

	report, err := newTestOrchestrator(fake, 1).Execute(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if report.Run.Status != domain.RunStatusAborted {
		t.Fatalf("run status = %s, want %s", report.Run.Status, domain.RunStatusAborted)
	}
	for _, res := range report.Jobs {
		if res.Job != "slow" {
			continue
		}
		if res.Status != domain.JobStatusFailed {
			t.Errorf("slow = %s, want %s", res.Status, domain.JobStatusFailed)
		}
		if res.FailureKind != domain.FailureTimeout {
			t.Errorf("failure kind = %s, want %s", res.FailureKind, domain.FailureTimeout)
		}
	}
}

func TestExecuteAllowedTimeoutContinues(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build", "test"},
		Jobs: []domain.JobDef{
			{
				Name:       "slow",
				Stage:      "build",
				Script:     []string{"sleep 600"},
				TimeoutSec: 1,
				Rule:       &domain.TriggerRule{When: domain.TriggerAlways, AllowFailure: true},
			},
			{Name: "test-image", Stage: "test", Script: []string{"true"}, Needs: []domain.Need{{Job: "slow"}}},
		},
	}

	fake := newFakeExecutor()
	fake.hang["slow"] = true

	report, err := newTestOrchestrator(fake, 2).Execute(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if report.Run.Status != domain.RunStatusCompleted {
		t.Fatalf("run status = %s, want %s", report.Run.Status, domain.RunStatusCompleted)
	}
	for _, res := range report.Jobs {
		if res.Job != "slow" {
			continue
		}
		if res.Status != domain.JobStatusFailed || res.FailureKind != domain.FailureTimeout {
			t.Errorf("slow = %s/%s, want %s/%s",
				res.Status, res.FailureKind, domain.JobStatusFailed, domain.FailureTimeout)
		}
	}
	if got := jobStatus(t, report, "test-image"); got != domain.JobStatusSucceeded {
		t.Errorf("test-image = %s, want %s", got, domain.JobStatusSucceeded)
	}
	if report.FirstFailure != nil {
		t.Errorf("unexpected first failure: %+v", report.FirstFailure)
	}
}

func TestExecuteResolvesScriptVariables(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:      "nightly",
		Stages:    []string{"build"},
		Variables: map[string]string{"FAMILY": "controller", "VERSION": "24.05"},
		Jobs: []domain.JobDef{
			{
				Name:      "build-image",
				Stage:     "build",
				Target:    "${FAMILY}",
				Script:    []string{"packer build -var version=$VERSION"},
				Variables: map[string]string{"VERSION": "24.05.4"},
			},
		},
	}

	fake := newFakeExecutor()
	if _, err := newTestOrchestrator(fake, 1).Execute(context.Background(), spec, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	def, ok := fake.defs["build-image"]
	if !ok {
		t.Fatal("build-image not executed")
	}
	if def.Target != "controller" {
		t.Errorf("Target = %q, want controller", def.Target)
	}
	// Переменные job переопределяют переменные pipeline.
	if def.Script[0] != "packer build -var version=24.05.4" {
		t.Errorf("Script[0] = %q", def.Script[0])
	}
}

func TestExecuteBoundsWorkerPool(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build"},
		Jobs: []domain.JobDef{
			{Name: "build-a", Stage: "build", Script: []string{"true"}},
			{Name: "build-b", Stage: "build", Script: []string{"true"}},
			{Name: "build-c", Stage: "build", Script: []string{"true"}},
		},
	}

	fake := newFakeExecutor()
	for _, name := range []string{"build-a", "build-b", "build-c"} {
		fake.delay[name] = 20 * time.Millisecond
	}

	if _, err := newTestOrchestrator(fake, 1).Execute(context.Background(), spec, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if fake.maxActive > 1 {
		t.Errorf("max concurrent executions = %d, want 1", fake.maxActive)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build"},
		Jobs: []domain.JobDef{
			{Name: "build-image", Stage: "build", Script: []string{"true"}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := newFakeExecutor()
	report, err := newTestOrchestrator(fake, 1).Execute(ctx, spec, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if report.Run.Status != domain.RunStatusAborted {
		t.Errorf("run status = %s, want %s", report.Run.Status, domain.RunStatusAborted)
	}
	if got := jobStatus(t, report, "build-image"); got != domain.JobStatusSkipped {
		t.Errorf("build-image = %s, want %s", got, domain.JobStatusSkipped)
	}
}

func TestExecuteInvalidGraph(t *testing.T) {
	spec := &domain.PipelineSpec{
		Name:   "nightly",
		Stages: []string{"build"},
		Jobs: []domain.JobDef{
			{Name: "a", Stage: "build", Script: []string{"true"}, Needs: []domain.Need{{Job: "b"}}},
			{Name: "b", Stage: "build", Script: []string{"true"}, Needs: []domain.Need{{Job: "a"}}},
		},
	}

	fake := newFakeExecutor()
	if _, err := newTestOrchestrator(fake, 1).Execute(context.Background(), spec, nil); err == nil {
		t.Fatal("Execute() = nil error, want graph error")
	}
	if executed := fake.executed(); len(executed) != 0 {
		t.Errorf("executed jobs %v, want none before validation", executed)
	}
}
