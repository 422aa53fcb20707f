package engine

import (
	"fmt"
	"path"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// Decision — решение триггера по одному job.
type Decision string

const (
	// DecisionRun — job запускается.
	DecisionRun Decision = "RUN"

	// DecisionSkip — job не запускается, переходит в SKIPPED.
	DecisionSkip Decision = "SKIP"

	// DecisionRunAllowFailure — job запускается, его провал
	// фиксируется, но не валит run.
	DecisionRunAllowFailure Decision = "RUN_ALLOW_FAILURE"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// predicate — одно правило оценки в упорядоченном списке.
//
// Возвращает (решение, true) если правило применимо к данной
// комбинации (rule, meta), иначе (_, false) и очередь переходит
// к следующему правилу.
type predicate func(job string, rule domain.TriggerRule, meta *domain.RunMeta) (Decision, bool)

// Evaluator решает, должен ли job выполняться в данном run.
//
// Оценка — чистая функция без побочных эффектов: одна и та же
// тройка (rule, change-set, source) всегда даёт одно решение.
//
// Порядок оценки фиксирован и проверяем: явный ручной запрос,
// затем совпадение по изменённым путям, затем совпадение по
// расписанию; выигрывает первое применимое правило.
type Evaluator struct {
	predicates []predicate
}

// NewEvaluator создаёт Evaluator со стандартным порядком правил.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		predicates: []predicate{
			manualOverride,
			pathChangeMatch,
			scheduleMatch,
			manualDefault,
			alwaysRun,
		},
	}
}

// Evaluate возвращает решение для job с правилом rule в run с метаданными meta.
func (e *Evaluator) Evaluate(job string, rule domain.TriggerRule, meta *domain.RunMeta) Decision {
	for _, p := range e.predicates {
		if decision, ok := p(job, rule, meta); ok {
			return withAllowFailure(decision, rule.AllowFailure)
		}
	}
	// Недостижимо для правил, прошедших ValidateRule.
	return DecisionSkip
}

// withAllowFailure поднимает RUN до RUN_ALLOW_FAILURE, если правило
// разрешает провал.
func withAllowFailure(d Decision, allow bool) Decision {
	if d == DecisionRun && allow {
		return DecisionRunAllowFailure
	}
	return d
}

// manualOverride — явный запрос пользователя имеет высший приоритет
// и запускает job независимо от вида правила.
func manualOverride(job string, _ domain.TriggerRule, meta *domain.RunMeta) (Decision, bool) {
	if meta.ManualJobs[job] {
		return DecisionRun, true
	}
	return DecisionSkip, false
}

// pathChangeMatch — правило on_path_change: job запускается, если
// change-set содержит путь, подходящий под один из шаблонов.
func pathChangeMatch(_ string, rule domain.TriggerRule, meta *domain.RunMeta) (Decision, bool) {
	if rule.When != domain.TriggerOnPathChange {
		return DecisionSkip, false
	}

	for _, changed := range meta.ChangedPaths {
		for _, pattern := range rule.Changes {
			if matchPath(pattern, changed) {
				return DecisionRun, true
			}
		}
	}
	return DecisionSkip, true
}

// scheduleMatch — правило on_schedule: job запускается только в
// scheduled runs. Непустое rule.Schedule ограничивает job runs,
// порождённых именно этим расписанием.
func scheduleMatch(_ string, rule domain.TriggerRule, meta *domain.RunMeta) (Decision, bool) {
	if rule.When != domain.TriggerOnSchedule {
		return DecisionSkip, false
	}

	if meta.Source != domain.SourceSchedule {
		return DecisionSkip, true
	}
	if rule.Schedule != "" && rule.Schedule != meta.ScheduleExpr {
		return DecisionSkip, true
	}
	return DecisionRun, true
}

// manualDefault — правило manual без явного запроса: job не запускается.
func manualDefault(_ string, rule domain.TriggerRule, _ *domain.RunMeta) (Decision, bool) {
	if rule.When != domain.TriggerManual {
		return DecisionSkip, false
	}
	return DecisionSkip, true
}

// alwaysRun — правило always (и отсутствующее правило): job запускается.
func alwaysRun(_ string, rule domain.TriggerRule, _ *domain.RunMeta) (Decision, bool) {
	if rule.When != domain.TriggerAlways && rule.When != "" {
		return DecisionSkip, false
	}
	return DecisionRun, true
}

// matchPath сопоставляет путь с glob-шаблоном.
//
// Шаблон вида "dir/**" дополнительно трактуется как префикс каталога,
// покрывающий любую глубину вложенности.
func matchPath(pattern, p string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	ok, err := path.Match(pattern, p)
	return err == nil && ok
}

// ValidateRule проверяет правило триггера при загрузке pipeline.
// Некорректное правило фатально: run не стартует.
func ValidateRule(job string, rule domain.TriggerRule) error {
	switch rule.When {
	case domain.TriggerAlways, domain.TriggerManual, "":
		return nil

	case domain.TriggerOnPathChange:
		if len(rule.Changes) == 0 {
			return NewTriggerError(job, "on_path_change rule has no patterns", ErrNoChangePatterns)
		}
		for _, pattern := range rule.Changes {
			if _, err := path.Match(strings.TrimSuffix(pattern, "/**"), ""); err != nil {
				return NewTriggerError(job,
					fmt.Sprintf("malformed path pattern %q", pattern), ErrBadChangePattern)
			}
		}
		return nil

	case domain.TriggerOnSchedule:
		if rule.Schedule != "" {
			if _, err := cronParser.Parse(rule.Schedule); err != nil {
				return NewTriggerError(job,
					fmt.Sprintf("malformed schedule expression %q: %v", rule.Schedule, err),
					ErrBadScheduleExpr)
			}
		}
		return nil

	default:
		return NewTriggerError(job,
			fmt.Sprintf("unknown trigger kind %q", rule.When), ErrUnknownTriggerKind)
	}
}
