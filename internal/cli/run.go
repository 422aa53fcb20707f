package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Bakehouse/internal/domain"
	"github.com/shaiso/Bakehouse/internal/orchestrator"
)

// runMetaFlags — флаги, описывающие метаданные запуска.
type runMetaFlags struct {
	source   string
	changed  []string
	jobs     []string
	schedule string
}

// Register вешает флаги на команду.
func (f *runMetaFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.source, "source", string(domain.SourceManual),
		"Run source (push, schedule, manual)")
	cmd.Flags().StringSliceVar(&f.changed, "changed", nil,
		"Changed file paths since the last run (repeatable)")
	cmd.Flags().StringSliceVar(&f.jobs, "job", nil,
		"Explicitly requested jobs (repeatable)")
	cmd.Flags().StringVar(&f.schedule, "schedule", "",
		"Cron expression of the originating schedule")
}

// Build собирает RunMeta из флагов.
func (f *runMetaFlags) Build() (*domain.RunMeta, error) {
	source := domain.RunSource(f.source)
	switch source {
	case domain.SourcePush, domain.SourceSchedule, domain.SourceManual:
	default:
		return nil, fmt.Errorf("unknown run source %q", f.source)
	}

	meta := &domain.RunMeta{
		Source:       source,
		ChangedPaths: f.changed,
		ScheduleExpr: f.schedule,
	}
	if len(f.jobs) > 0 {
		meta.ManualJobs = make(map[string]bool, len(f.jobs))
		for _, job := range f.jobs {
			meta.ManualJobs[job] = true
		}
	}
	return meta, nil
}

// NewRunCmd создаёт команду выполнения pipeline.
func NewRunCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var metaFlags runMetaFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			out := outputFn()

			spec, err := loadPipeline(app.Config.PipelineFile)
			if err != nil {
				return NewExitError(ExitValidation, err)
			}

			meta, err := metaFlags.Build()
			if err != nil {
				return NewExitError(ExitValidation, err)
			}

			report, err := app.Orchestrator().Execute(cmd.Context(), spec, meta)
			if err != nil {
				return NewExitError(ExitValidation, err)
			}

			if out.jsonMode {
				out.JSON(report)
			} else {
				report.Render(out.Writer())
			}

			if report.Aborted() {
				return NewExitError(exitCodeFor(spec, report),
					fmt.Errorf("run aborted: %s", report.Run.Error))
			}
			return nil
		},
	}

	metaFlags.Register(cmd)

	return cmd
}

// exitCodeFor выбирает код выхода по типу первого упавшего job.
func exitCodeFor(spec *domain.PipelineSpec, report *orchestrator.Report) int {
	fail := report.FirstFailure
	if fail == nil {
		return ExitFailure
	}

	for i := range spec.Jobs {
		if spec.Jobs[i].Name != fail.Job {
			continue
		}
		switch spec.Jobs[i].Type {
		case domain.JobTypeBuild:
			return ExitBuild
		case domain.JobTypeTest:
			return ExitTest
		}
	}
	return ExitFailure
}
