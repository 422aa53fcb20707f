package engine

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/syntax"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// Допустимые типы jobs.
var validJobTypes = map[string]bool{
	"":                   true, // по умолчанию script
	domain.JobTypeScript: true,
	domain.JobTypeBuild:  true,
	domain.JobTypeTest:   true,
}

// ParseFile читает и парсит PipelineSpec из YAML-файла.
func ParseFile(path string) (*domain.PipelineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	return Parse(data)
}

// Parse парсит PipelineSpec из YAML и выполняет полную валидацию.
func Parse(data []byte) (*domain.PipelineSpec, error) {
	var spec domain.PipelineSpec

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse pipeline yaml: %w", err)
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}

	return &spec, nil
}

// Validate выполняет полную валидацию PipelineSpec.
//
// Проверяет:
// - Наличие stages и jobs
// - Уникальность имён stages и jobs
// - Корректность типов jobs и наличие script/target
// - Shell-синтаксис команд (mvdan.cc/sh)
// - Валидность правил триггеров и расписаний
//
// Структура графа (циклы, неизвестные зависимости) проверяется
// отдельно в BuildGraph.
func Validate(spec *domain.PipelineSpec) error {
	if spec == nil || len(spec.Stages) == 0 {
		return ErrNoStages
	}
	if len(spec.Jobs) == 0 {
		return ErrNoJobs
	}

	stages := make(map[string]bool, len(spec.Stages))
	for _, stage := range spec.Stages {
		if stages[stage] {
			return NewValidationError("", "stages",
				fmt.Sprintf("duplicate stage: %s", stage), ErrDuplicateStage)
		}
		stages[stage] = true
	}

	names := make(map[string]bool, len(spec.Jobs))
	for i := range spec.Jobs {
		job := &spec.Jobs[i]

		if err := validateJob(job, names); err != nil {
			return err
		}
	}

	for _, sched := range spec.Schedules {
		if err := validateSchedule(&sched); err != nil {
			return err
		}
	}

	return nil
}

// validateJob валидирует один job.
// names — уже встреченные имена jobs (для проверки уникальности).
func validateJob(job *domain.JobDef, names map[string]bool) error {
	if job.Name == "" {
		return NewValidationError("", "name", "job has empty name", ErrEmptyJobName)
	}
	if names[job.Name] {
		return NewValidationError(job.Name, "name",
			fmt.Sprintf("duplicate job name: %s", job.Name), ErrDuplicateJob)
	}
	names[job.Name] = true

	if !validJobTypes[job.Type] {
		return NewValidationError(job.Name, "type",
			fmt.Sprintf("unknown job type: %s", job.Type), ErrUnknownJobType)
	}

	switch job.Type {
	case domain.JobTypeBuild, domain.JobTypeTest:
		if job.Target == "" {
			return NewValidationError(job.Name, "target",
				fmt.Sprintf("%s job requires a target", job.Type), ErrMissingTarget)
		}

	default: // script
		if len(job.Script) == 0 {
			return NewValidationError(job.Name, "script", "job has no script", ErrEmptyScript)
		}
		for i, line := range job.Script {
			if err := checkShellSyntax(line); err != nil {
				return NewValidationError(job.Name, "script",
					fmt.Sprintf("script step %d: %v", i+1, err), ErrScriptSyntax)
			}
		}
	}

	for _, need := range job.Needs {
		if need.Job == "" {
			return NewValidationError(job.Name, "needs",
				"need has empty job name", ErrUnknownDependency)
		}
	}

	return ValidateRule(job.Name, job.EffectiveRule())
}

// validateSchedule валидирует расписание pipeline.
func validateSchedule(sched *domain.Schedule) error {
	if sched.Name == "" {
		return NewValidationError("", "schedules", "schedule has empty name", ErrBadScheduleExpr)
	}
	if _, err := cronParser.Parse(sched.Expr); err != nil {
		return NewTriggerError("",
			fmt.Sprintf("schedule %s: malformed cron expression %q: %v", sched.Name, sched.Expr, err),
			ErrBadScheduleExpr)
	}
	return nil
}

// checkShellSyntax проверяет, что строка — синтаксически корректный
// shell-фрагмент.
func checkShellSyntax(line string) error {
	_, err := syntax.NewParser().Parse(strings.NewReader(line), "script")
	return err
}
