package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/Bakehouse/internal/domain"
	"github.com/shaiso/Bakehouse/internal/engine"
)

// NewValidateCmd создаёт команду проверки описания pipeline.
func NewValidateCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline definition",
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

			graph, err := engine.BuildGraph(spec)
			if err != nil {
				return NewExitError(ExitValidation, err)
			}

			out.Success(fmt.Sprintf("Pipeline %q is valid", spec.Name))
			out.Print(
				[]string{"PIPELINE", "STAGES", "JOBS", "SCHEDULES"},
				[][]string{{
					spec.Name,
					strconv.Itoa(graph.StageCount()),
					strconv.Itoa(graph.Size()),
					strconv.Itoa(len(spec.Schedules)),
				}},
				spec,
			)
			return nil
		},
	}
}

// loadPipeline читает и валидирует описание pipeline.
func loadPipeline(path string) (*domain.PipelineSpec, error) {
	spec, err := engine.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := engine.Validate(spec); err != nil {
		return nil, err
	}
	return spec, nil
}
