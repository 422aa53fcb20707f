package orchestrator

import (
	"sync"

	"github.com/shaiso/Bakehouse/internal/domain"
	"github.com/shaiso/Bakehouse/internal/engine"
)

// Phase — фаза конечного автомата run.
type Phase string

const (
	// PhaseNotStarted — run создан, выполнение не начато.
	PhaseNotStarted Phase = "NOT_STARTED"

	// PhaseStageRunning — выполняется stage с индексом StageIndex.
	PhaseStageRunning Phase = "STAGE_RUNNING"

	// PhaseCompleted — все stages завершились без неразрешённых ошибок.
	PhaseCompleted Phase = "COMPLETED"

	// PhaseAborted — run прерван.
	PhaseAborted Phase = "ABORTED"
)

// RunState — состояние выполнения одного run в памяти.
//
// Таблица статусов — единственный разделяемый ресурс между
// параллельными executions: каждый job пишет только собственный
// статус (через Mark*-методы под мьютексом), продвижение stage
// сериализует Orchestrator. Терминальный статус присваивается
// ровно один раз — повторные Mark* игнорируются.
type RunState struct {
	// Run — запись run.
	Run *domain.Run

	// Graph — граф jobs, построенный при старте run.
	Graph *engine.Graph

	mu         sync.RWMutex
	phase      Phase
	stageIndex int
	status     map[string]domain.JobStatus
	results    map[string]*domain.JobResult
	firstErr   *domain.JobResult
}

// NewRunState создаёт RunState со всеми jobs в статусе PENDING.
func NewRunState(run *domain.Run, graph *engine.Graph) *RunState {
	status := make(map[string]domain.JobStatus, graph.Size())
	for name := range graph.Nodes {
		status[name] = domain.JobStatusPending
	}

	return &RunState{
		Run:     run,
		Graph:   graph,
		phase:   PhaseNotStarted,
		status:  status,
		results: make(map[string]*domain.JobResult, graph.Size()),
	}
}

// Phase возвращает текущую фазу run.
func (s *RunState) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// StageIndex возвращает индекс текущего stage.
func (s *RunState) StageIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stageIndex
}

// EnterStage переводит автомат в фазу StageRunning(i).
func (s *RunState) EnterStage(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseStageRunning
	s.stageIndex = i
}

// Finish переводит автомат в терминальную фазу.
func (s *RunState) Finish(aborted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if aborted {
		s.phase = PhaseAborted
	} else {
		s.phase = PhaseCompleted
	}
}

// Status возвращает статус job.
func (s *RunState) Status(name string) domain.JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status[name]
}

// MarkRunning помечает job как выполняющийся.
func (s *RunState) MarkRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[name].IsTerminal() {
		return
	}
	s.status[name] = domain.JobStatusRunning
}

// MarkFinished фиксирует терминальный результат job.
// Первая жёсткая ошибка запоминается для итогового отчёта.
func (s *RunState) MarkFinished(res *domain.JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status[res.Job].IsTerminal() {
		return
	}

	s.status[res.Job] = res.Status
	s.results[res.Job] = res

	if res.HardFailed() && s.firstErr == nil {
		s.firstErr = res
	}
}

// MarkSkipped переводит job в SKIPPED и возвращает его результат.
// Возвращает nil, если job уже терминален.
func (s *RunState) MarkSkipped(name string) *domain.JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status[name].IsTerminal() {
		return nil
	}

	node := s.Graph.Node(name)
	res := &domain.JobResult{
		Job:    name,
		Stage:  node.Def.Stage,
		Status: domain.JobStatusSkipped,
	}
	s.status[name] = domain.JobStatusSkipped
	s.results[name] = res
	return res
}

// ReadyInStage возвращает jobs stage i, готовые к диспетчеризации:
// все зависимости терминальны, сам job ещё PENDING.
func (s *RunState) ReadyInStage(i int) []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terminal := make(map[string]bool, len(s.status))
	active := make(map[string]bool)
	for name, st := range s.status {
		if st.IsTerminal() {
			terminal[name] = true
		}
		if st == domain.JobStatusRunning {
			active[name] = true
		}
	}

	var ready []*engine.Node
	for _, node := range s.Graph.Ready(terminal, active) {
		if node.StageIndex == i {
			ready = append(ready, node)
		}
	}
	return ready
}

// NeedsSatisfied проверяет, удовлетворены ли зависимости job.
//
// Обычная зависимость удовлетворена upstream'ом в SUCCEEDED или в
// FAILED с разрешённой ошибкой. Advisory-зависимость удовлетворена
// любым терминальным статусом. Вызывается только когда все
// зависимости уже терминальны.
func (s *RunState) NeedsSatisfied(node *engine.Node) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range node.Needs {
		if e.Optional {
			continue
		}

		name := e.Node.Def.Name
		switch s.status[name] {
		case domain.JobStatusSucceeded:
			// ok
		case domain.JobStatusFailed:
			if res := s.results[name]; res == nil || !res.Allowed {
				return false
			}
		default:
			// SKIPPED (и не должно случиться: PENDING/RUNNING)
			return false
		}
	}
	return true
}

// StageTerminal проверяет, все ли jobs stage i терминальны.
func (s *RunState) StageTerminal(i int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, node := range s.Graph.StageJobs(i) {
		if !s.status[node.Def.Name].IsTerminal() {
			return false
		}
	}
	return true
}

// HasHardFailure проверяет, есть ли неразрешённая ошибка.
func (s *RunState) HasHardFailure() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstErr != nil
}

// FirstFailure возвращает первую жёсткую ошибку run (или nil).
func (s *RunState) FirstFailure() *domain.JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstErr
}

// PendingInStage возвращает имена нетерминальных и не выполняющихся
// jobs stage i.
func (s *RunState) PendingInStage(i int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []string
	for _, node := range s.Graph.StageJobs(i) {
		name := node.Def.Name
		if s.status[name] == domain.JobStatusPending {
			pending = append(pending, name)
		}
	}
	return pending
}

// PendingAll возвращает имена всех jobs, оставшихся в PENDING.
// Используется при abort: не запущенные jobs переходят в SKIPPED.
func (s *RunState) PendingAll() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []string
	for _, node := range s.Graph.Order {
		if s.status[node.Def.Name] == domain.JobStatusPending {
			pending = append(pending, node.Def.Name)
		}
	}
	return pending
}

// Results возвращает результаты всех терминальных jobs
// в порядке stages.
func (s *RunState) Results() []domain.JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.JobResult, 0, len(s.results))
	for _, node := range s.Graph.Order {
		if res, ok := s.results[node.Def.Name]; ok {
			results = append(results, *res)
		}
	}
	return results
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{Total: s.Graph.Size()}
	for _, st := range s.status {
		switch st {
		case domain.JobStatusSucceeded:
			stats.Succeeded++
		case domain.JobStatusFailed:
			stats.Failed++
		case domain.JobStatusSkipped:
			stats.Skipped++
		case domain.JobStatusRunning:
			stats.Running++
		default:
			stats.Pending++
		}
	}
	return stats
}

// RunStats — статистика выполнения run.
type RunStats struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Running   int
	Pending   int
}
