// Bakehouse Scheduler — демон, запускающий runs по расписаниям
// pipeline.
//
// Scheduler:
//   - Читает описание pipeline и регистрирует его расписания
//   - В момент срабатывания выполняет run с source=schedule
//   - Отдаёт /healthz и /metrics по HTTP
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Bakehouse/internal/cli"
	"github.com/shaiso/Bakehouse/internal/config"
	"github.com/shaiso/Bakehouse/internal/domain"
	"github.com/shaiso/Bakehouse/internal/engine"
	"github.com/shaiso/Bakehouse/internal/orchestrator"
	"github.com/shaiso/Bakehouse/internal/scheduler"
	"github.com/shaiso/Bakehouse/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger("bakehouse-scheduler")
	logger.Info("starting bakehouse-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build dependencies", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	spec, err := engine.ParseFile(cfg.PipelineFile)
	if err == nil {
		err = engine.Validate(spec)
	}
	if err != nil {
		logger.Error("invalid pipeline definition", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	orch := orchestratorWithMetrics(app, metrics)

	sched, err := scheduler.New(scheduler.Config{
		Schedules: spec.Schedules,
		Logger:    logger,
		Trigger: func(ctx context.Context, s domain.Schedule) error {
			meta := &domain.RunMeta{
				Source:       domain.SourceSchedule,
				ScheduleExpr: s.Expr,
			}
			report, err := orch.Execute(ctx, spec, meta)
			if err != nil {
				return err
			}
			if report.Aborted() {
				logger.Warn("scheduled run aborted",
					"schedule", s.Name,
					"run_id", report.Run.ID,
					"error", report.Run.Error)
			}
			return nil
		},
	})
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := sched.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if app.Store != nil {
		mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
			runs, err := app.Store.ListRuns(r.Context(), 50)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(runs)
		})
	}

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	logger.Info("listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}
}

// orchestratorWithMetrics пересобирает orchestrator приложения
// с подключёнными метриками.
func orchestratorWithMetrics(app *cli.App, metrics *telemetry.Metrics) *orchestrator.Orchestrator {
	ocfg := orchestrator.Config{
		Registry:   app.Registry,
		Workers:    app.Config.Workers,
		JobTimeout: app.Config.JobTimeout,
		Variables:  app.Config.Variables(),
		Logger:     app.Logger,
		Metrics:    metrics,
	}
	if app.Store != nil {
		ocfg.Store = app.Store
	}
	if app.Events != nil {
		ocfg.Events = app.Events
	}
	return orchestrator.New(ocfg)
}
