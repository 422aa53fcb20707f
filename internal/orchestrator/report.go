package orchestrator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// Report — итог выполнения run: статус, результаты всех jobs
// в порядке stages и первая жёсткая ошибка.
type Report struct {
	// Run — завершённый run.
	Run *domain.Run

	// Jobs — терминальные результаты jobs в порядке stages.
	Jobs []domain.JobResult

	// FirstFailure — первая жёсткая ошибка (nil, если run завершился
	// с COMPLETED).
	FirstFailure *domain.JobResult

	// Stats — статистика выполнения.
	Stats RunStats
}

// NewReport собирает отчёт из завершённого RunState.
func NewReport(run *domain.Run, state *RunState) *Report {
	return &Report{
		Run:          run,
		Jobs:         state.Results(),
		FirstFailure: state.FirstFailure(),
		Stats:        state.Stats(),
	}
}

// Aborted возвращает true, если run прерван жёсткой ошибкой
// или отменой.
func (r *Report) Aborted() bool {
	return r.Run.Status == domain.RunStatusAborted
}

// Render печатает текстовую сводку run: статус каждого job,
// для упавших — вид ошибки и хвост вывода.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "run %s pipeline=%s status=%s duration=%s\n",
		r.Run.ID, r.Run.Pipeline, r.Run.Status, r.Run.Duration().Round(fmtPrecision))

	for _, job := range r.Jobs {
		fmt.Fprintf(w, "  [%-9s] %s (stage %s%s)\n",
			job.Status, job.Job, job.Stage, jobSuffix(&job))

		if job.Status == domain.JobStatusFailed {
			fmt.Fprintf(w, "      %s: %s\n", job.FailureKind, job.Error)
			for _, line := range tailLines(job.LogTail) {
				fmt.Fprintf(w, "      | %s\n", line)
			}
		}
	}

	fmt.Fprintf(w, "jobs: %d succeeded, %d failed, %d skipped\n",
		r.Stats.Succeeded, r.Stats.Failed, r.Stats.Skipped)

	if r.FirstFailure != nil {
		fmt.Fprintf(w, "first failure: %s (%s)\n", r.FirstFailure.Job, r.FirstFailure.FailureKind)
	}
}

const fmtPrecision = 100 * time.Millisecond

// reportTailLines — сколько строк лога упавшего job попадает
// в текстовую сводку.
const reportTailLines = 10

func jobSuffix(job *domain.JobResult) string {
	var parts []string
	if d := job.Duration(); d > 0 {
		parts = append(parts, d.Round(fmtPrecision).String())
	}
	if job.Status == domain.JobStatusFailed && job.Allowed {
		parts = append(parts, "allowed")
	}
	if len(parts) == 0 {
		return ""
	}
	return ", " + strings.Join(parts, ", ")
}

func tailLines(tail string) []string {
	if tail == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(tail, "\n"), "\n")
	if len(lines) > reportTailLines {
		lines = lines[len(lines)-reportTailLines:]
	}
	return lines
}
