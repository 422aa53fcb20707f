package engine

import "errors"

// Ошибки графа jobs. Фатальны: обнаруживаются до запуска
// какого-либо job.
var (
	// ErrCyclicDependency — обнаружен цикл среди needs-рёбер.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrUnknownDependency — job ссылается на несуществующий job.
	// Проверяются и advisory-зависимости.
	ErrUnknownDependency = errors.New("job needs unknown job")

	// ErrSelfDependency — job зависит от самого себя.
	ErrSelfDependency = errors.New("job needs itself")

	// ErrUnknownStage — job ссылается на stage, которого нет в списке stages.
	ErrUnknownStage = errors.New("job references unknown stage")

	// ErrStageOrder — need ссылается на job из более позднего stage.
	// Такой граф никогда не продвинется через stage-барьер.
	ErrStageOrder = errors.New("need references job in a later stage")
)

// Ошибки валидации спецификации pipeline.
var (
	// ErrNoStages — pipeline не содержит stages.
	ErrNoStages = errors.New("pipeline has no stages")

	// ErrNoJobs — pipeline не содержит jobs.
	ErrNoJobs = errors.New("pipeline has no jobs")

	// ErrEmptyJobName — job не имеет имени.
	ErrEmptyJobName = errors.New("job has empty name")

	// ErrDuplicateJob — несколько jobs с одинаковым именем.
	ErrDuplicateJob = errors.New("duplicate job name")

	// ErrDuplicateStage — несколько stages с одинаковым именем.
	ErrDuplicateStage = errors.New("duplicate stage name")

	// ErrUnknownJobType — неизвестный тип job.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrEmptyScript — script job без команд.
	ErrEmptyScript = errors.New("job has no script")

	// ErrMissingTarget — build/test job без target.
	ErrMissingTarget = errors.New("job has no target")

	// ErrScriptSyntax — shell-синтаксис команды некорректен.
	ErrScriptSyntax = errors.New("script syntax error")
)

// Ошибки правил триггеров. Фатальны при загрузке pipeline.
var (
	// ErrUnknownTriggerKind — неизвестный вид правила.
	ErrUnknownTriggerKind = errors.New("unknown trigger kind")

	// ErrNoChangePatterns — правило on_path_change без glob-шаблонов.
	ErrNoChangePatterns = errors.New("on_path_change rule has no patterns")

	// ErrBadChangePattern — некорректный glob-шаблон.
	ErrBadChangePattern = errors.New("malformed path pattern")

	// ErrBadScheduleExpr — некорректное cron-выражение.
	ErrBadScheduleExpr = errors.New("malformed schedule expression")
)

// GraphError — ошибка структуры графа с контекстом.
type GraphError struct {
	Job     string // имя job, где обнаружена проблема (пусто для цикла)
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *GraphError) Error() string {
	if e.Job != "" {
		return "job " + e.Job + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// NewGraphError создаёт новую ошибку графа.
func NewGraphError(job, message string, err error) *GraphError {
	return &GraphError{Job: job, Message: message, Err: err}
}

// TriggerError — ошибка правила триггера с контекстом.
type TriggerError struct {
	Job     string // имя job, чьё правило некорректно
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *TriggerError) Error() string {
	if e.Job != "" {
		return "job " + e.Job + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *TriggerError) Unwrap() error {
	return e.Err
}

// NewTriggerError создаёт новую ошибку правила триггера.
func NewTriggerError(job, message string, err error) *TriggerError {
	return &TriggerError{Job: job, Message: message, Err: err}
}

// ValidationError — ошибка валидации спецификации с контекстом.
type ValidationError struct {
	Job     string // имя job, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Job != "" {
		return "job " + e.Job + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(job, field, message string, err error) *ValidationError {
	return &ValidationError{Job: job, Field: field, Message: message, Err: err}
}
