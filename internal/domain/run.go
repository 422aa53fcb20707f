package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — экземпляр выполнения pipeline.
//
// Run создаётся когда:
// - Пользователь запускает pipeline через CLI
// - Scheduler создаёт run по расписанию
//
// Граф jobs строится один раз при старте run и отбрасывается при
// его завершении; между runs сохраняются только логи и артефакты
// во внешнем хранилище.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Pipeline — имя pipeline, который выполняется.
	Pipeline string `json:"pipeline"`

	// Source — источник запуска.
	Source RunSource `json:"source"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (COMPLETED или ABORTED).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — идентификатор и сообщение первой жёсткой ошибки,
	// если run завершился с ABORTED.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт новый run в статусе PENDING.
func NewRun(pipeline string, source RunSource) *Run {
	return &Run{
		ID:        uuid.New(),
		Pipeline:  pipeline,
		Source:    source,
		Status:    RunStatusPending,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkCompleted переводит run в статус COMPLETED.
func (r *Run) MarkCompleted() {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.FinishedAt = &now
}

// MarkAborted переводит run в статус ABORTED с ошибкой.
func (r *Run) MarkAborted(err string) {
	now := time.Now()
	r.Status = RunStatusAborted
	r.FinishedAt = &now
	r.Error = err
}

// JobResult — итог выполнения одного job внутри run.
//
// Ошибки job фиксируются здесь и не распространяются выше
// Orchestrator'а; run-уровневая агрегация берёт из результатов
// первую жёсткую ошибку.
type JobResult struct {
	// Job — имя job.
	Job string `json:"job"`

	// Stage — stage, к которому принадлежит job.
	Stage string `json:"stage"`

	// Status — терминальный статус job.
	Status JobStatus `json:"status"`

	// Allowed — true, если ошибка job разрешена allow_failure.
	Allowed bool `json:"allowed,omitempty"`

	// ExitCode — exit code последней выполненной команды.
	ExitCode int `json:"exit_code,omitempty"`

	// FailureKind — вид ошибки (для Status == FAILED).
	FailureKind FailureKind `json:"failure_kind,omitempty"`

	// Error — сообщение об ошибке.
	Error string `json:"error,omitempty"`

	// LogTail — хвост combined stdout/stderr для отчёта.
	LogTail string `json:"log_tail,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность выполнения job.
func (r *JobResult) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// HardFailed возвращает true, если job упал и его ошибка не разрешена.
func (r *JobResult) HardFailed() bool {
	return r.Status == JobStatusFailed && !r.Allowed
}
