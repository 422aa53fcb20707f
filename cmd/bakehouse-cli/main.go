// Bakehouse CLI — оркестратор сборки и тестирования образов.
//
// Использование:
//
//	bakehouse [--pipeline FILE] [--json] <command> [flags]
//
// Команды:
//
//	validate  Проверка описания pipeline
//	plan      Предпросмотр решений триггеров
//	run       Выполнение pipeline
//	build     Прямая сборка семейства образов
//	test      Прямой прогон кластерных тестов
//	runs      История runs
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Bakehouse/internal/cli"
	"github.com/shaiso/Bakehouse/internal/config"
	"github.com/shaiso/Bakehouse/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := telemetry.SetupLogger("bakehouse-cli")

	var pipelineFile string
	var jsonOutput bool
	var credentials string
	var project string
	var imageVersion string

	rootCmd := &cobra.Command{
		Use:           "bakehouse",
		Short:         "Bakehouse — image build and test orchestrator",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&pipelineFile, "pipeline", "", "Pipeline definition file (default: $PIPELINE_FILE)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&credentials, "credentials", "", "Credentials file (default: $CREDENTIALS_FILE)")
	rootCmd.PersistentFlags().StringVar(&project, "project", "", "Project id (default: $PROJECT_ID)")
	rootCmd.PersistentFlags().StringVar(&imageVersion, "image-version", "", "Version string for image families (default: $IMAGE_VERSION)")

	appFn := func(ctx context.Context) (*cli.App, error) {
		cfg := config.Load()
		if pipelineFile != "" {
			cfg.PipelineFile = pipelineFile
		}
		if credentials != "" {
			cfg.CredentialsFile = credentials
		}
		if project != "" {
			cfg.ProjectID = project
		}
		if imageVersion != "" {
			cfg.Version = imageVersion
		}
		if err := cfg.Validate(); err != nil {
			return nil, cli.NewExitError(cli.ExitValidation, err)
		}
		return cli.NewApp(ctx, cfg, logger)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewValidateCmd(appFn, outputFn),
		cli.NewPlanCmd(appFn, outputFn),
		cli.NewRunCmd(appFn, outputFn),
		cli.NewBuildCmd(appFn, outputFn),
		cli.NewTestCmd(appFn, outputFn),
		cli.NewRunsCmd(appFn, outputFn),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(cli.ExitFailure)
	}
}
