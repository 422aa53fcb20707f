package domain

import "gopkg.in/yaml.v3"

// PipelineSpec — статическое определение pipeline.
//
// Это "программа" для Bakehouse — описание stages, jobs и их
// зависимостей. Загружается один раз из YAML-файла при старте run
// и не изменяется до его завершения.
type PipelineSpec struct {
	// Name — имя pipeline (например, "fleet-images").
	Name string `yaml:"name"`

	// Stages — упорядоченный список stage-барьеров.
	// Все jobs stage N должны достичь терминального статуса
	// до старта любого job из stage N+1.
	Stages []string `yaml:"stages"`

	// Variables — глобальные переменные pipeline.
	// Переопределяются переменными конкретного job.
	Variables map[string]string `yaml:"variables,omitempty"`

	// Defaults — настройки по умолчанию для всех jobs.
	Defaults *JobDefaults `yaml:"defaults,omitempty"`

	// Schedules — расписания автоматического запуска pipeline.
	// Обрабатываются scheduler-демоном, не влияют на разовые runs.
	Schedules []Schedule `yaml:"schedules,omitempty"`

	// Jobs — список jobs для выполнения.
	Jobs []JobDef `yaml:"jobs"`
}

// JobDefaults — настройки по умолчанию для jobs.
type JobDefaults struct {
	// TimeoutSec — wall-clock таймаут выполнения в секундах.
	TimeoutSec int `yaml:"timeout_sec,omitempty"`
}

// Типы jobs. Тип определяет executor, который выполнит job.
const (
	// JobTypeScript — последовательность shell-команд (по умолчанию).
	JobTypeScript = "script"

	// JobTypeBuild — сборка образа через внешний image builder.
	JobTypeBuild = "build"

	// JobTypeTest — проверка образа через внешний cluster-test runner.
	JobTypeTest = "test"
)

// JobDef — определение job в pipeline.
type JobDef struct {
	// Name — уникальное имя job в рамках pipeline.
	// Используется в needs и в итоговом отчёте.
	Name string `yaml:"name"`

	// Stage — имя stage, к которому принадлежит job.
	// Должно присутствовать в PipelineSpec.Stages.
	Stage string `yaml:"stage"`

	// Type — тип job: "script", "build", "test".
	// Пустое значение трактуется как "script".
	Type string `yaml:"type,omitempty"`

	// Target — имя build/test цели (семейство образа).
	// Обязателен для type "build" и "test".
	Target string `yaml:"target,omitempty"`

	// Script — упорядоченный список shell-команд.
	// Выполняются последовательно, остановка на первой ошибке.
	Script []string `yaml:"script,omitempty"`

	// Needs — jobs, от которых зависит этот job.
	// Job диспетчеризуется только когда все зависимости терминальны.
	Needs []Need `yaml:"needs,omitempty"`

	// Rule — правило триггера, решающее запускать ли job.
	// Nil трактуется как {when: always}.
	Rule *TriggerRule `yaml:"rule,omitempty"`

	// TimeoutSec — таймаут для этого job.
	// Переопределяет defaults.timeout_sec.
	TimeoutSec int `yaml:"timeout_sec,omitempty"`

	// Variables — переменные job. Переопределяют глобальные.
	Variables map[string]string `yaml:"variables,omitempty"`
}

// EffectiveRule возвращает правило триггера job,
// подставляя {when: always} когда правило не задано.
func (j *JobDef) EffectiveRule() TriggerRule {
	if j.Rule == nil {
		return TriggerRule{When: TriggerAlways}
	}
	return *j.Rule
}

// Need — зависимость job от другого job.
//
// Обычная зависимость удовлетворена, когда upstream job успешен
// (или его ошибка разрешена allow_failure). Advisory-зависимость
// (Optional) удовлетворена любым терминальным статусом upstream —
// её провал не блокирует выполнение.
type Need struct {
	// Job — имя upstream job.
	Job string

	// Optional — true для advisory-зависимости.
	Optional bool
}

// UnmarshalYAML поддерживает две формы записи:
//
//	needs: [build-image]
//	needs: [{job: build-image, optional: true}]
func (n *Need) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&n.Job)
	}

	var raw struct {
		Job      string `yaml:"job"`
		Optional bool   `yaml:"optional"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	n.Job = raw.Job
	n.Optional = raw.Optional
	return nil
}

// Schedule — расписание автоматического запуска pipeline.
type Schedule struct {
	// Name — имя расписания (например, "nightly").
	Name string `yaml:"name"`

	// Expr — cron-выражение (5 полей, стандартный формат).
	Expr string `yaml:"cron"`

	// Disabled — выключенные расписания scheduler пропускает.
	Disabled bool `yaml:"disabled,omitempty"`
}
