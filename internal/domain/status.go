package domain

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	        ↘ SKIPPED (триггер решил не запускать, либо run прерван)
type JobStatus string

const (
	// JobStatusPending — job создан, но ещё не диспетчеризован.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusSkipped — job не будет выполнен (решение триггера или abort).
	JobStatusSkipped JobStatus = "SKIPPED"

	// JobStatusRunning — job выполняется executor'ом.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusSucceeded — job успешно завершён.
	JobStatusSucceeded JobStatus = "SUCCEEDED"

	// JobStatusFailed — job завершился с ошибкой.
	JobStatusFailed JobStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
// Терминальный статус присваивается ровно один раз.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusSkipped:
		return true
	default:
		return false
	}
}

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ ABORTED (жёсткая ошибка или отмена)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusCompleted — все stages завершились без неразрешённых ошибок.
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusAborted — run прерван из-за жёсткой ошибки или отмены.
	RunStatusAborted RunStatus = "ABORTED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusAborted:
		return true
	default:
		return false
	}
}

// FailureKind — вид ошибки, зафиксированной на job.
//
// Используется в итоговом отчёте: для каждого упавшего job
// показывается вид ошибки вместе с хвостом вывода.
type FailureKind string

const (
	// FailureExecution — команда завершилась с ненулевым exit code.
	FailureExecution FailureKind = "execution"

	// FailureTimeout — превышен wall-clock таймаут job.
	// Обрабатывается как разновидность execution ошибки.
	FailureTimeout FailureKind = "timeout"

	// FailureCollaborator — внешний инструмент отсутствует или не исполняем.
	// Фатально только для этого job.
	FailureCollaborator FailureKind = "collaborator_unavailable"
)
