package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Bakehouse/internal/domain"
)

func scriptJob(lines ...string) *domain.JobDef {
	return &domain.JobDef{Name: "job", Stage: "build", Script: lines}
}

func TestExecuteSuccess(t *testing.T) {
	sink := NewBuffer()
	res, err := NewScriptExecutor().Execute(context.Background(),
		scriptJob("echo first", "echo second"), nil, sink)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}

	out := sink.String()
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Errorf("output = %q, want both steps", out)
	}
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	sink := NewBuffer()
	res, err := NewScriptExecutor().Execute(context.Background(),
		scriptJob("echo before", "exit 3", "echo after"), nil, sink)

	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("Execute() error = %v, want ErrExecutionFailed", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != 2 {
		t.Errorf("StepError = %v, want step 2", err)
	}

	if strings.Contains(sink.String(), "after") {
		t.Error("steps after failure were executed")
	}
}

func TestExecuteTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := NewScriptExecutor().Execute(ctx,
		scriptJob("sleep 30"), nil, NewBuffer())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("Execute() error = %v, want ErrExecutionTimeout", err)
	}
	if !res.TimedOut {
		t.Error("Result.TimedOut = false, want true")
	}
	if elapsed > 5*time.Second {
		t.Errorf("timeout took %s, process group not killed", elapsed)
	}
}

func TestExecutePassesEnvironment(t *testing.T) {
	sink := NewBuffer()
	_, err := NewScriptExecutor().Execute(context.Background(),
		scriptJob("echo family=$FAMILY"), []string{"FAMILY=controller"}, sink)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(sink.String(), "family=controller") {
		t.Errorf("output = %q, want expanded variable", sink.String())
	}
}

func TestExecuteFreshWorkdir(t *testing.T) {
	sink := NewBuffer()
	_, err := NewScriptExecutor().Execute(context.Background(),
		scriptJob("touch marker", "ls marker"), nil, sink)
	if err != nil {
		t.Fatalf("steps share one workdir, got error: %v", err)
	}

	// Второй job не видит файлов первого.
	res, err := NewScriptExecutor().Execute(context.Background(),
		scriptJob("ls marker"), nil, NewBuffer())
	if err == nil || res.ExitCode == 0 {
		t.Error("workdir leaked between jobs")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	// Пустой тип — script по умолчанию.
	exec, err := r.Get("")
	if err != nil {
		t.Fatalf("Get(\"\") error: %v", err)
	}
	if _, ok := exec.(*ScriptExecutor); !ok {
		t.Errorf("Get(\"\") = %T, want *ScriptExecutor", exec)
	}

	if _, err := r.Get("container"); !errors.Is(err, ErrUnknownJobType) {
		t.Errorf("Get(container) error = %v, want ErrUnknownJobType", err)
	}
}

func TestBufferTail(t *testing.T) {
	b := NewBuffer()
	for _, line := range []string{"one", "two", "three", "four"} {
		b.Write([]byte(line + "\n"))
	}

	tail := b.Tail(2)
	if !strings.Contains(tail, "three") || !strings.Contains(tail, "four") {
		t.Errorf("Tail(2) = %q, want last two lines", tail)
	}
	if strings.Contains(tail, "one") {
		t.Errorf("Tail(2) = %q, contains dropped line", tail)
	}
}

func TestBufferCapsSize(t *testing.T) {
	b := NewBuffer()
	chunk := strings.Repeat("x", 64*1024)
	for i := 0; i < 32; i++ {
		if _, err := b.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	if !b.Truncated() {
		t.Error("Truncated() = false after writing 2MiB")
	}
	if len(b.String()) > 1<<20 {
		t.Errorf("buffer size = %d, want <= 1MiB", len(b.String()))
	}
}
