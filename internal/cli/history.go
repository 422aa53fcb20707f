package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// NewRunsCmd создаёт группу команд истории runs.
// Требует настроенного хранилища (DB_URL).
func NewRunsCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse run history",
	}

	cmd.AddCommand(
		newRunsListCmd(appFn, outputFn),
		newRunsShowCmd(appFn, outputFn),
		newRunsLogCmd(appFn, outputFn),
	)

	return cmd
}

func newRunsListCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			out := outputFn()

			if app.Store == nil {
				return fmt.Errorf("run history requires DB_URL")
			}

			runs, err := app.Store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "PIPELINE", "SOURCE", "STATUS", "ERROR", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.ID.String(),
					r.Pipeline,
					string(r.Source),
					string(r.Status),
					r.Error,
					r.CreatedAt.Format(time.RFC3339),
				}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")

	return cmd
}

func newRunsShowCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show run details and job results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			out := outputFn()

			if app.Store == nil {
				return fmt.Errorf("run history requires DB_URL")
			}

			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			run, err := app.Store.GetRun(cmd.Context(), runID)
			if err != nil {
				return err
			}
			results, err := app.Store.ListJobResults(cmd.Context(), runID)
			if err != nil {
				return err
			}

			headers := []string{"JOB", "STAGE", "STATUS", "EXIT", "KIND", "ERROR"}
			rows := make([][]string, len(results))
			for i, res := range results {
				rows[i] = []string{
					res.Job,
					res.Stage,
					string(res.Status),
					fmt.Sprintf("%d", res.ExitCode),
					string(res.FailureKind),
					res.Error,
				}
			}

			out.Success(fmt.Sprintf("Run %s pipeline=%s status=%s", run.ID, run.Pipeline, run.Status))
			out.Print(headers, rows, struct {
				Run  *domain.Run        `json:"run"`
				Jobs []domain.JobResult `json:"jobs"`
			}{run, results})
			return nil
		},
	}
}

func newRunsLogCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "log RUN_ID JOB",
		Short: "Print the full log of one job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			out := outputFn()

			if app.Store == nil {
				return fmt.Errorf("run history requires DB_URL")
			}

			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			log, err := app.Store.GetJobLog(cmd.Context(), runID, args[1])
			if err != nil {
				return err
			}

			fmt.Fprint(out.Writer(), log)
			return nil
		},
	}
}
