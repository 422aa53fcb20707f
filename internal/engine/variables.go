package engine

import (
	"os"
	"sort"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// MergeVariables выполняет послойное разрешение переменных:
// более поздние слои переопределяют более ранние.
//
// Разрешение детерминировано и выполняется один раз до диспетчеризации
// job; результат не переоценивается по ходу run.
func MergeVariables(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

// Expand подставляет ссылки $VAR и ${VAR} значениями из vars.
// Неизвестные имена заменяются пустой строкой — ссылки на
// окружение процесса намеренно не разрешаются.
func Expand(s string, vars map[string]string) string {
	return os.Expand(s, func(name string) string {
		return vars[name]
	})
}

// ExpandJob возвращает копию определения job с разрешёнными
// ссылками $VAR в script и target. Исходное определение
// не изменяется.
func ExpandJob(def *domain.JobDef, vars map[string]string) *domain.JobDef {
	job := *def
	job.Target = Expand(def.Target, vars)

	if len(def.Script) > 0 {
		job.Script = make([]string, len(def.Script))
		for i, line := range def.Script {
			job.Script[i] = Expand(line, vars)
		}
	}

	return &job
}

// Environ преобразует vars в отсортированный список "KEY=VALUE"
// для передачи в окружение процесса job.
func Environ(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}
