package domain

// TriggerKind — вид правила триггера.
type TriggerKind string

const (
	// TriggerAlways — job запускается при любом run.
	TriggerAlways TriggerKind = "always"

	// TriggerOnSchedule — job запускается только в scheduled runs.
	TriggerOnSchedule TriggerKind = "on_schedule"

	// TriggerOnPathChange — job запускается, если change-set run'а
	// содержит файл, подходящий под один из glob-шаблонов.
	TriggerOnPathChange TriggerKind = "on_path_change"

	// TriggerManual — job запускается только по явному запросу.
	TriggerManual TriggerKind = "manual"
)

// TriggerRule — правило, решающее запускать ли job в данном run.
//
// Правило — tagged variant: поле When выбирает вид, остальные поля
// дополняют его. Каждое правило несёт собственный флаг allow_failure.
type TriggerRule struct {
	// When — вид правила.
	When TriggerKind `yaml:"when"`

	// Changes — glob-шаблоны путей (для when: on_path_change).
	Changes []string `yaml:"changes,omitempty"`

	// Schedule — cron-выражение расписания (для when: on_schedule).
	// Пустое значение означает "любой scheduled run"; непустое —
	// только runs, порождённые этим расписанием.
	Schedule string `yaml:"schedule,omitempty"`

	// AllowFailure — ошибка job фиксируется, но не валит run
	// и не блокирует downstream jobs.
	AllowFailure bool `yaml:"allow_failure,omitempty"`
}

// RunSource — источник запуска run.
type RunSource string

const (
	// SourcePush — run запущен изменением в репозитории.
	SourcePush RunSource = "push"

	// SourceSchedule — run создан scheduler'ом по расписанию.
	SourceSchedule RunSource = "schedule"

	// SourceManual — run запущен пользователем вручную.
	SourceManual RunSource = "manual"
)

// RunMeta — метаданные запуска, входные данные для оценки триггеров.
//
// RunMeta неизменяем после старта run: одна и та же тройка
// (rule, change-set, source) всегда даёт одно и то же решение.
type RunMeta struct {
	// Source — источник запуска.
	Source RunSource

	// ChangedPaths — файлы, изменённые с прошлого run (change-set).
	ChangedPaths []string

	// ManualJobs — jobs, явно запрошенные пользователем.
	// Явный запрос имеет высший приоритет при оценке правил.
	ManualJobs map[string]bool

	// ScheduleExpr — cron-выражение расписания, породившего run.
	// Пусто для push/manual runs.
	ScheduleExpr string
}
