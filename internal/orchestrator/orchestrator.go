package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Bakehouse/internal/collab"
	"github.com/shaiso/Bakehouse/internal/domain"
	"github.com/shaiso/Bakehouse/internal/engine"
	"github.com/shaiso/Bakehouse/internal/executor"
	"github.com/shaiso/Bakehouse/internal/telemetry"
)

const (
	// defaultWorkers — размер пула выполнения по умолчанию.
	defaultWorkers = 4

	// defaultJobTimeout — таймаут job по умолчанию, если ни job,
	// ни pipeline его не задали.
	defaultJobTimeout = 30 * time.Minute

	// logTailLines — сколько последних строк вывода попадает в отчёт.
	logTailLines = 40
)

// Store — внешнее хранилище истории runs. nil отключает сохранение:
// оркестрация полностью работает в памяти, наружу уходят только
// логи и результаты.
type Store interface {
	SaveRun(ctx context.Context, run *domain.Run) error
	SaveJobResult(ctx context.Context, runID uuid.UUID, res *domain.JobResult, log string) error
}

// EventPublisher — публикация событий жизненного цикла run.
// nil отключает публикацию.
type EventPublisher interface {
	PublishRunStarted(ctx context.Context, run *domain.Run) error
	PublishJobFinished(ctx context.Context, run *domain.Run, res *domain.JobResult) error
	PublishRunFinished(ctx context.Context, run *domain.Run) error
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Registry — реестр executors по типам jobs. Обязателен.
	Registry *executor.Registry

	// Evaluator — вычислитель trigger-правил. nil = NewEvaluator().
	Evaluator *engine.Evaluator

	// Workers — максимум одновременно выполняющихся jobs.
	// 0 = defaultWorkers.
	Workers int

	// JobTimeout — таймаут job по умолчанию. 0 = defaultJobTimeout.
	JobTimeout time.Duration

	// Variables — глобальный слой переменных (поверх него ложатся
	// переменные pipeline и job).
	Variables map[string]string

	// Logger — логгер. nil = slog.Default().
	Logger *slog.Logger

	// Store — хранилище истории runs. nil = не сохранять.
	Store Store

	// Events — публикация событий. nil = не публиковать.
	Events EventPublisher

	// Metrics — метрики. nil = не собирать.
	Metrics *telemetry.Metrics
}

// Orchestrator выполняет pipeline: строит граф jobs, проходит stages
// по порядку и диспетчеризует готовые jobs в ограниченный пул.
//
// Семантика ошибок:
// - job с разрешённой ошибкой (allow_failure) не влияет на run;
// - первая жёсткая ошибка останавливает диспетчеризацию новых jobs,
//   уже выполняющиеся досчитываются, остальные переходят в SKIPPED,
//   run завершается с ABORTED.
//
// Orchestrator — единственный писатель переходов фаз run; статусы
// jobs пишутся через RunState под мьютексом.
type Orchestrator struct {
	registry   *executor.Registry
	evaluator  *engine.Evaluator
	workers    int
	jobTimeout time.Duration
	variables  map[string]string
	logger     *slog.Logger
	store      Store
	events     EventPublisher
	metrics    *telemetry.Metrics
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Evaluator == nil {
		cfg.Evaluator = engine.NewEvaluator()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		registry:   cfg.Registry,
		evaluator:  cfg.Evaluator,
		workers:    cfg.Workers,
		jobTimeout: cfg.JobTimeout,
		variables:  cfg.Variables,
		logger:     cfg.Logger,
		store:      cfg.Store,
		events:     cfg.Events,
		metrics:    cfg.Metrics,
	}
}

// jobDone — результат выполнения одного job вместе с полным логом.
type jobDone struct {
	res *domain.JobResult
	log string
}

// Execute выполняет pipeline от начала до конца и возвращает отчёт.
//
// Ошибка возвращается только если run не удалось начать (невалидный
// граф); ошибки jobs фиксируются в отчёте, run при этом завершается
// с COMPLETED или ABORTED.
func (o *Orchestrator) Execute(ctx context.Context, spec *domain.PipelineSpec, meta *domain.RunMeta) (*Report, error) {
	graph, err := engine.BuildGraph(spec)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = &domain.RunMeta{Source: domain.SourceManual}
	}

	run := domain.NewRun(spec.Name, meta.Source)
	state := NewRunState(run, graph)
	logger := telemetry.WithRunID(o.logger, run.ID.String())

	run.MarkRunning()
	logger.Info("run started",
		"pipeline", spec.Name,
		"source", meta.Source,
		"jobs", graph.Size(),
		"stages", graph.StageCount())
	o.saveRun(ctx, run, logger)
	o.publishRunStarted(ctx, run, logger)

	for i := 0; i < graph.StageCount(); i++ {
		state.EnterStage(i)
		logger.Info("stage started", "stage", graph.Stages[i], "jobs", len(graph.StageJobs(i)))

		o.runStage(ctx, state, i, spec, meta, logger)

		if state.HasHardFailure() || ctx.Err() != nil {
			break
		}
	}

	// Не дошедшие до диспетчеризации jobs (включая downstream-stages
	// после жёсткой ошибки) переходят в SKIPPED.
	for _, name := range state.PendingAll() {
		if res := state.MarkSkipped(name); res != nil {
			o.finishJob(ctx, state, jobDone{res: res}, logger)
		}
	}

	switch {
	case state.HasHardFailure():
		fail := state.FirstFailure()
		run.MarkAborted(fail.Job + ": " + fail.Error)
	case ctx.Err() != nil:
		run.MarkAborted("run cancelled: " + ctx.Err().Error())
	default:
		run.MarkCompleted()
	}
	state.Finish(run.Status == domain.RunStatusAborted)

	logger.Info("run finished",
		"status", run.Status,
		"duration", run.Duration(),
		"stats", state.Stats())
	o.metrics.ObserveRun(string(run.Status))
	o.saveRun(ctx, run, logger)
	o.publishRunFinished(ctx, run, logger)

	return NewReport(run, state), nil
}

// runStage доводит stage i до терминального состояния: диспетчеризует
// готовые jobs в пул и собирает результаты. Возвращается, когда все
// jobs stage терминальны либо выполняющиеся досчитались после
// жёсткой ошибки.
func (o *Orchestrator) runStage(ctx context.Context, state *RunState, idx int, spec *domain.PipelineSpec, meta *domain.RunMeta, logger *slog.Logger) {
	done := make(chan jobDone, len(state.Graph.StageJobs(idx)))
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	inflight := 0

	for {
		if state.HasHardFailure() || ctx.Err() != nil {
			// Новые jobs не диспетчеризуются; ожидающие jobs
			// этого stage сразу переходят в SKIPPED.
			for _, name := range state.PendingInStage(idx) {
				if res := state.MarkSkipped(name); res != nil {
					o.finishJob(ctx, state, jobDone{res: res}, logger)
				}
			}
		} else {
			skipped := false
			for _, node := range state.ReadyInStage(idx) {
				if o.dispatch(ctx, state, node, spec, meta, sem, done, &wg, &inflight, logger) {
					skipped = true
				}
			}
			// Синхронный skip делает job терминальным и может открыть
			// его зависимых в этом же stage: ready-set пересчитывается.
			if skipped {
				continue
			}
		}

		if inflight == 0 {
			break
		}

		d := <-done
		inflight--
		o.finishJob(ctx, state, d, logger)
	}

	wg.Wait()
}

// dispatch решает судьбу готового job: SKIPPED по trigger-правилу или
// неудовлетворённым зависимостям, иначе — запуск в пуле.
// Возвращает true, если job пропущен синхронно.
func (o *Orchestrator) dispatch(ctx context.Context, state *RunState, node *engine.Node, spec *domain.PipelineSpec, meta *domain.RunMeta, sem chan struct{}, done chan jobDone, wg *sync.WaitGroup, inflight *int, logger *slog.Logger) bool {
	name := node.Def.Name

	if !state.NeedsSatisfied(node) {
		logger.Info("job skipped: needs not satisfied", "job", name)
		if res := state.MarkSkipped(name); res != nil {
			o.finishJob(ctx, state, jobDone{res: res}, logger)
		}
		return true
	}

	decision := o.evaluator.Evaluate(name, node.Def.EffectiveRule(), meta)
	if decision == engine.DecisionSkip {
		logger.Info("job skipped: trigger rule", "job", name)
		if res := state.MarkSkipped(name); res != nil {
			o.finishJob(ctx, state, jobDone{res: res}, logger)
		}
		return true
	}

	state.MarkRunning(name)
	*inflight++
	wg.Add(1)

	allowed := decision == engine.DecisionRunAllowFailure
	go func() {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()
		done <- o.executeJob(ctx, node.Def, spec, allowed, logger)
	}()
	return false
}

// executeJob выполняет один job через его executor и превращает
// результат в JobResult. Ошибки выполнения не возвращаются выше —
// только фиксируются в результате.
func (o *Orchestrator) executeJob(ctx context.Context, def *domain.JobDef, spec *domain.PipelineSpec, allowed bool, logger *slog.Logger) jobDone {
	log := telemetry.WithJob(logger, def.Name, def.Stage)

	started := time.Now()
	res := &domain.JobResult{
		Job:       def.Name,
		Stage:     def.Stage,
		Allowed:   allowed,
		StartedAt: &started,
	}

	exec, err := o.registry.Get(def.Type)
	if err != nil {
		finished := time.Now()
		res.FinishedAt = &finished
		res.Status = domain.JobStatusFailed
		res.FailureKind = domain.FailureExecution
		res.Error = err.Error()
		return jobDone{res: res}
	}

	// Переменные разрешаются один раз: в окружение процесса
	// и в ссылки ${VAR} внутри script и target.
	vars := engine.MergeVariables(o.variables, spec.Variables, def.Variables)
	env := append(os.Environ(), engine.Environ(vars)...)
	job := engine.ExpandJob(def, vars)

	jctx, cancel := context.WithTimeout(ctx, o.timeoutFor(def, spec))
	defer cancel()

	log.Info("job started", "type", def.Type, "allow_failure", allowed)

	sink := executor.NewBuffer()
	result, execErr := exec.Execute(jctx, job, env, sink)

	finished := time.Now()
	res.FinishedAt = &finished
	res.LogTail = sink.Tail(logTailLines)
	if result != nil {
		res.ExitCode = result.ExitCode
	}

	if execErr == nil {
		res.Status = domain.JobStatusSucceeded
		log.Info("job succeeded", "duration", res.Duration())
	} else {
		res.Status = domain.JobStatusFailed
		res.FailureKind = classifyFailure(execErr)
		res.Error = execErr.Error()
		log.Warn("job failed",
			"kind", res.FailureKind,
			"exit_code", res.ExitCode,
			"allowed", allowed,
			"error", execErr)
	}

	return jobDone{res: res, log: sink.String()}
}

// timeoutFor возвращает таймаут job: собственный, затем default
// pipeline, затем общий default.
func (o *Orchestrator) timeoutFor(def *domain.JobDef, spec *domain.PipelineSpec) time.Duration {
	if def.TimeoutSec > 0 {
		return time.Duration(def.TimeoutSec) * time.Second
	}
	if spec.Defaults != nil && spec.Defaults.TimeoutSec > 0 {
		return time.Duration(spec.Defaults.TimeoutSec) * time.Second
	}
	return o.jobTimeout
}

// classifyFailure определяет вид ошибки по цепочке wrapped errors.
func classifyFailure(err error) domain.FailureKind {
	switch {
	case errors.Is(err, executor.ErrExecutionTimeout):
		return domain.FailureTimeout
	case errors.Is(err, collab.ErrUnavailable):
		return domain.FailureCollaborator
	default:
		return domain.FailureExecution
	}
}

// finishJob фиксирует терминальный результат job: статус, метрики,
// сохранение и событие.
func (o *Orchestrator) finishJob(ctx context.Context, state *RunState, d jobDone, logger *slog.Logger) {
	state.MarkFinished(d.res)
	o.metrics.ObserveJob(string(d.res.Status), d.res.Stage, d.res.Duration())

	if o.store != nil {
		if err := o.store.SaveJobResult(ctx, state.Run.ID, d.res, d.log); err != nil {
			logger.Warn("failed to save job result", "job", d.res.Job, "error", err)
		}
	}
	if o.events != nil {
		if err := o.events.PublishJobFinished(ctx, state.Run, d.res); err != nil {
			logger.Warn("failed to publish job event", "job", d.res.Job, "error", err)
		}
	}
}

func (o *Orchestrator) saveRun(ctx context.Context, run *domain.Run, logger *slog.Logger) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveRun(ctx, run); err != nil {
		logger.Warn("failed to save run", "error", err)
	}
}

func (o *Orchestrator) publishRunStarted(ctx context.Context, run *domain.Run, logger *slog.Logger) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishRunStarted(ctx, run); err != nil {
		logger.Warn("failed to publish run event", "error", err)
	}
}

func (o *Orchestrator) publishRunFinished(ctx context.Context, run *domain.Run, logger *slog.Logger) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishRunFinished(ctx, run); err != nil {
		logger.Warn("failed to publish run event", "error", err)
	}
}
