package engine

import (
	"fmt"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// Node — узел в графе jobs.
type Node struct {
	// Def — определение job из PipelineSpec.
	Def *domain.JobDef

	// StageIndex — индекс stage job'а в PipelineSpec.Stages.
	StageIndex int

	// Needs — рёбра к узлам, от которых зависит этот узел.
	Needs []Edge

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int
}

// Name возвращает имя job.
func (n *Node) Name() string {
	return n.Def.Name
}

// Edge — ребро зависимости.
type Edge struct {
	// Node — upstream узел.
	Node *Node

	// Optional — true для advisory-зависимости:
	// провал upstream не блокирует выполнение.
	Optional bool
}

// Graph — направленный ациклический граф jobs pipeline.
//
// Строится один раз из статического определения при старте run.
// Stage-порядок тотален: byStage[i] содержит jobs i-го stage.
type Graph struct {
	// Nodes — все узлы графа (имя job → Node).
	Nodes map[string]*Node

	// Stages — упорядоченный список имён stages.
	Stages []string

	// Order — топологически отсортированный список узлов.
	Order []*Node

	byStage [][]*Node
}

// BuildGraph строит граф из PipelineSpec.
//
// Возвращает GraphError при неизвестном stage, неизвестной или
// самоссылающейся зависимости, need на более поздний stage и при
// обнаружении цикла. Любая из этих ошибок фатальна — ни один job
// не будет запущен.
func BuildGraph(spec *domain.PipelineSpec) (*Graph, error) {
	g := &Graph{
		Nodes:   make(map[string]*Node, len(spec.Jobs)),
		Stages:  spec.Stages,
		byStage: make([][]*Node, len(spec.Stages)),
	}

	stageIndex := make(map[string]int, len(spec.Stages))
	for i, name := range spec.Stages {
		stageIndex[name] = i
	}

	// Первый проход: создаём узлы
	for i := range spec.Jobs {
		def := &spec.Jobs[i]

		idx, ok := stageIndex[def.Stage]
		if !ok {
			return nil, NewGraphError(def.Name,
				fmt.Sprintf("unknown stage %q", def.Stage), ErrUnknownStage)
		}

		node := &Node{Def: def, StageIndex: idx}
		g.Nodes[def.Name] = node
		g.byStage[idx] = append(g.byStage[idx], node)
	}

	// Второй проход: связываем узлы по needs
	for i := range spec.Jobs {
		def := &spec.Jobs[i]
		if err := g.linkNeeds(g.Nodes[def.Name]); err != nil {
			return nil, err
		}
	}

	// Проверяем на циклы и строим топологический порядок
	order, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

// linkNeeds связывает узел с его зависимостями.
func (g *Graph) linkNeeds(node *Node) error {
	for _, need := range node.Def.Needs {
		if need.Job == node.Def.Name {
			return NewGraphError(node.Def.Name,
				"job needs itself", ErrSelfDependency)
		}

		dep, ok := g.Nodes[need.Job]
		if !ok {
			return NewGraphError(node.Def.Name,
				fmt.Sprintf("needs unknown job %q", need.Job), ErrUnknownDependency)
		}

		// Need на более поздний stage никогда не разрешится:
		// stage-барьер не пустит зависимый job вперёд upstream'а.
		if dep.StageIndex > node.StageIndex {
			return NewGraphError(node.Def.Name,
				fmt.Sprintf("needs job %q from later stage %q", need.Job, dep.Def.Stage),
				ErrStageOrder)
		}

		g.addEdge(dep, node, need.Optional)
	}
	return nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты игнорируются, чтобы не завышать InDegree.
func (g *Graph) addEdge(from, to *Node, optional bool) {
	for _, e := range to.Needs {
		if e.Node == from {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.Needs = append(to.Needs, Edge{Node: from, Optional: optional})
	to.InDegree++
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (g *Graph) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	var queue []*Node

	// Обходим по stage-порядку, чтобы сортировка была детерминированной.
	for _, stage := range g.byStage {
		for _, node := range stage {
			inDegree[node.Def.Name] = node.InDegree
			if node.InDegree == 0 {
				queue = append(queue, node)
			}
		}
	}

	order := make([]*Node, 0, len(g.Nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dep := range node.Dependents {
			inDegree[dep.Def.Name]--
			if inDegree[dep.Def.Name] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, NewGraphError("", "needs edges form a cycle", ErrCyclicDependency)
	}

	return order, nil
}

// Node возвращает узел по имени job.
func (g *Graph) Node(name string) *Node {
	return g.Nodes[name]
}

// Size возвращает количество узлов в графе.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// StageCount возвращает количество stages.
func (g *Graph) StageCount() int {
	return len(g.Stages)
}

// StageJobs возвращает jobs i-го stage (запрос принадлежности stage).
func (g *Graph) StageJobs(i int) []*Node {
	if i < 0 || i >= len(g.byStage) {
		return nil
	}
	return g.byStage[i]
}

// Ready возвращает узлы, готовые к диспетчеризации.
//
// Узел готов, если:
// - Все его зависимости терминальны (в terminal)
// - Сам узел ещё не терминален и не выполняется (не в terminal и не в active)
//
// Удовлетворённость зависимостей (успех vs провал) граф не оценивает —
// это политика Orchestrator'а.
func (g *Graph) Ready(terminal, active map[string]bool) []*Node {
	var ready []*Node

	for _, node := range g.Order {
		name := node.Def.Name
		if terminal[name] || active[name] {
			continue
		}

		depsTerminal := true
		for _, e := range node.Needs {
			if !terminal[e.Node.Def.Name] {
				depsTerminal = false
				break
			}
		}

		if depsTerminal {
			ready = append(ready, node)
		}
	}

	return ready
}
