package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewBuildCmd создаёт команду прямой сборки образа, минуя pipeline.
func NewBuildCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "build FAMILY",
		Short: "Build a single image family",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			out := outputFn()

			builder, err := app.Builder()
			if err != nil {
				return NewExitError(ExitBuild, err)
			}

			code, err := builder.Build(cmd.Context(), args[0], out.Writer())
			if err != nil {
				return NewExitError(ExitBuild, err)
			}
			if code != 0 {
				return NewExitError(ExitBuild,
					fmt.Errorf("image build exited with code %d", code))
			}

			out.Success(fmt.Sprintf("Image family %q built", args[0]))
			return nil
		},
	}
}

// NewTestCmd создаёт команду прямого прогона кластерных тестов
// для уже собранного семейства образов.
func NewTestCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "test FAMILY",
		Short: "Run cluster tests against an image family",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			out := outputFn()

			tester, err := app.Tester()
			if err != nil {
				return NewExitError(ExitTest, err)
			}

			code, result, err := tester.Test(cmd.Context(), args[0], out.Writer())
			if err != nil {
				return NewExitError(ExitTest, err)
			}

			if result != nil {
				out.Print(
					[]string{"TOTAL", "PASSED", "FAILED", "FAILURES"},
					[][]string{{
						strconv.Itoa(result.Total),
						strconv.Itoa(result.Passed),
						strconv.Itoa(result.Failed),
						strings.Join(result.Failures, "; "),
					}},
					result,
				)
			}

			if code != 0 || (result != nil && result.Failed > 0) {
				return NewExitError(ExitTest,
					fmt.Errorf("cluster tests failed for family %q", args[0]))
			}

			out.Success(fmt.Sprintf("Cluster tests passed for family %q", args[0]))
			return nil
		},
	}
}
