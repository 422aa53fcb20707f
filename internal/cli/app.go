package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shaiso/Bakehouse/internal/collab"
	"github.com/shaiso/Bakehouse/internal/config"
	"github.com/shaiso/Bakehouse/internal/domain"
	"github.com/shaiso/Bakehouse/internal/executor"
	"github.com/shaiso/Bakehouse/internal/mq"
	"github.com/shaiso/Bakehouse/internal/orchestrator"
	"github.com/shaiso/Bakehouse/internal/store"
)

// AppFunc отдаёт команде собранное приложение.
type AppFunc func(ctx context.Context) (*App, error)

// OutputFunc отдаёт команде форматтер вывода.
type OutputFunc func() *Output

// App — построенные зависимости run-команд: registry executors,
// опциональные хранилище и publisher событий.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *executor.Registry

	// Store — nil, если DB_URL не задан.
	Store *store.RunStore

	// Events — nil, если RABBITMQ_URL не задан.
	Events *mq.Publisher

	closers []func()
}

// NewApp собирает зависимости из конфигурации.
//
// Недоступный collaborator не блокирует старт: зависящие от него
// jobs упадут с ошибкой вида collaborator_unavailable в момент
// выполнения.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: executor.NewRegistry(),
	}

	app.registerBuilder()
	app.registerTester()

	if cfg.DatabaseURL != "" {
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		if err := store.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		app.Store = store.NewRunStore(pool)
		app.closers = append(app.closers, pool.Close)
	}

	if cfg.AMQPURL != "" {
		conn, err := mq.NewConnection(cfg.AMQPURL, logger)
		if err != nil {
			return nil, fmt.Errorf("connect mq: %w", err)
		}
		if err := mq.SetupTopology(conn); err != nil {
			conn.Close()
			return nil, err
		}
		app.Events = mq.NewPublisher(conn, logger)
		app.closers = append(app.closers, func() { conn.Close() })
	}

	return app, nil
}

// Close освобождает ресурсы приложения.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Orchestrator создаёт orchestrator с зависимостями приложения.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	ocfg := orchestrator.Config{
		Registry:   a.Registry,
		Workers:    a.Config.Workers,
		JobTimeout: a.Config.JobTimeout,
		Variables:  a.Config.Variables(),
		Logger:     a.Logger,
	}
	if a.Store != nil {
		ocfg.Store = a.Store
	}
	if a.Events != nil {
		ocfg.Events = a.Events
	}
	return orchestrator.New(ocfg)
}

// Builder создаёт ImageBuilder из конфигурации.
func (a *App) Builder() (*collab.ImageBuilder, error) {
	return collab.NewImageBuilder(collab.BuilderConfig{
		Bin:       a.Config.BuilderBin,
		VarsFile:  a.Config.BuilderVarsFile,
		Overrides: a.builderOverrides(),
		ExtraArgs: a.Config.BuilderExtraArgs,
		Logger:    a.Logger,
	})
}

// Tester создаёт ClusterTester из конфигурации.
func (a *App) Tester() (*collab.ClusterTester, error) {
	return collab.NewClusterTester(collab.TesterConfig{
		Bin:          a.Config.TesterBin,
		Project:      a.Config.ProjectID,
		ImageProject: a.Config.ImageProject,
		Version:      a.Config.Version,
		Prefix:       a.Config.ClusterPrefix,
		ExtraArgs:    a.Config.TesterExtraArgs,
		Logger:       a.Logger,
	})
}

func (a *App) registerBuilder() {
	builder, err := a.Builder()
	if err != nil {
		a.Logger.Warn("image builder unavailable", "error", err)
		a.Registry.Register(domain.JobTypeBuild, &unavailableExecutor{err: err})
		return
	}
	a.Registry.Register(domain.JobTypeBuild, collab.NewBuildExecutor(builder))
}

func (a *App) registerTester() {
	tester, err := a.Tester()
	if err != nil {
		a.Logger.Warn("cluster tester unavailable", "error", err)
		a.Registry.Register(domain.JobTypeTest, &unavailableExecutor{err: err})
		return
	}
	a.Registry.Register(domain.JobTypeTest, collab.NewTestExecutor(tester))
}

// builderOverrides — переопределения переменных сборки из конфигурации.
func (a *App) builderOverrides() map[string]string {
	overrides := make(map[string]string)
	if a.Config.ProjectID != "" {
		overrides["project_id"] = a.Config.ProjectID
	}
	if a.Config.Version != "" {
		overrides["version"] = a.Config.Version
	}
	if a.Config.CredentialsFile != "" {
		overrides["credentials_file"] = a.Config.CredentialsFile
	}
	return overrides
}

// unavailableExecutor проваливает job с исходной ошибкой
// недоступного collaborator'а.
type unavailableExecutor struct {
	err error
}

func (e *unavailableExecutor) Execute(context.Context, *domain.JobDef, []string, io.Writer) (*executor.Result, error) {
	return nil, e.err
}
