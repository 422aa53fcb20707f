package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/Bakehouse/internal/domain"
	"github.com/shaiso/Bakehouse/internal/engine"
)

// planRow — решение по одному job в выводе плана.
type planRow struct {
	Job      string          `json:"job"`
	Stage    string          `json:"stage"`
	Type     string          `json:"type"`
	Decision engine.Decision `json:"decision"`
}

// NewPlanCmd создаёт команду предпросмотра run'а: какие jobs
// запустятся при данных метаданных, без выполнения.
func NewPlanCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var metaFlags runMetaFlags

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which jobs would run without executing them",
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

			meta, err := metaFlags.Build()
			if err != nil {
				return NewExitError(ExitValidation, err)
			}

			evaluator := engine.NewEvaluator()
			var plan []planRow
			for _, node := range graph.Order {
				def := node.Def
				plan = append(plan, planRow{
					Job:      def.Name,
					Stage:    def.Stage,
					Type:     jobTypeLabel(def.Type),
					Decision: evaluator.Evaluate(def.Name, def.EffectiveRule(), meta),
				})
			}

			headers := []string{"JOB", "STAGE", "TYPE", "DECISION"}
			rows := make([][]string, len(plan))
			for i, p := range plan {
				rows[i] = []string{p.Job, p.Stage, p.Type, string(p.Decision)}
			}

			out.Print(headers, rows, plan)
			return nil
		},
	}

	metaFlags.Register(cmd)

	return cmd
}

func jobTypeLabel(jobType string) string {
	if jobType == "" {
		return domain.JobTypeScript
	}
	return jobType
}
