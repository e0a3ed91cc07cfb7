package engine

import (
	"fmt"

	"github.com/akorzh/Conveyor/internal/domain"
)

// Node — узел в DAG workflow.
type Node struct {
	// Job — определение job из WorkflowDef.
	Job *domain.JobDef

	// Name — имя job (совпадает с Job.Name).
	Name string

	// InDegree — количество входящих рёбер (requires).
	InDegree int

	// Requires — узлы, от которых зависит этот узел.
	Requires []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф jobs workflow.
//
// Workflow без requires вырождается в плоский параллельный fan-out:
// все узлы корневые.
type DAG struct {
	// Nodes — все узлы графа (jobName → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (точки входа).
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildDAG строит DAG из PipelineSpec.
// Возвращает ErrCyclicRequirement, если requires образуют цикл.
func BuildDAG(spec *domain.PipelineSpec) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node),
		RootNodes: make([]*Node, 0),
	}

	jobs := spec.Workflow.Jobs

	// Первый проход: создаём все узлы
	for i := range jobs {
		job := &jobs[i]
		dag.Nodes[job.Name] = &Node{
			Job:        job,
			Name:       job.Name,
			Requires:   make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
	}

	// Второй проход: связываем узлы по requires
	for i := range jobs {
		job := &jobs[i]
		node := dag.Nodes[job.Name]

		for _, req := range job.Requires {
			reqNode, exists := dag.Nodes[req]
			if !exists {
				return nil, NewValidationError(job.Name, "requires",
					fmt.Sprintf("requires unknown job: %s", req), ErrMissingRequirement)
			}
			dag.addEdge(reqNode, node)
		}
	}

	// Находим корневые узлы
	dag.findRootNodes()

	// Проверяем на циклы и строим топологический порядок
	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты рёбер игнорируются, чтобы не задваивать InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, req := range to.Requires {
		if req.Name == from.Name {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.Requires = append(to.Requires, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.Nodes {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(d.Nodes))
	for name, node := range d.Nodes {
		inDegree[name] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.Name]--
			if inDegree[dependent.Name] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicRequirement
	}

	return order, nil
}

// GetReadyNodes возвращает jobs, готовые к выполнению.
//
// Узел готов, если:
// - Все его requires завершены успешно (в succeeded)
// - Сам узел ещё не стартовал (не в succeeded, active и blocked)
//
// succeeded — jobName → true для успешно завершённых jobs.
// active — jobName → true для jobs в очереди или в процессе.
// blocked — jobName → true для упавших и пропущенных jobs.
func (d *DAG) GetReadyNodes(succeeded, active, blocked map[string]bool) []*Node {
	ready := make([]*Node, 0)

	for _, node := range d.Nodes {
		if succeeded[node.Name] || active[node.Name] || blocked[node.Name] {
			continue
		}

		allReqsSucceeded := true
		for _, req := range node.Requires {
			if !succeeded[req.Name] {
				allReqsSucceeded = false
				break
			}
		}

		if allReqsSucceeded {
			ready = append(ready, node)
		}
	}

	return ready
}

// GetBlockedNodes возвращает jobs, которые уже никогда не запустятся:
// хотя бы один из их requires находится в blocked (упал или пропущен).
// Такие jobs помечаются SKIPPED.
//
// Вызывается после каждого обновления blocked до достижения
// неподвижной точки (возвращённые узлы добавляются в blocked вызывающим).
func (d *DAG) GetBlockedNodes(succeeded, active, blocked map[string]bool) []*Node {
	newlyBlocked := make([]*Node, 0)

	for _, node := range d.Nodes {
		if succeeded[node.Name] || active[node.Name] || blocked[node.Name] {
			continue
		}

		for _, req := range node.Requires {
			if blocked[req.Name] {
				newlyBlocked = append(newlyBlocked, node)
				break
			}
		}
	}

	return newlyBlocked
}

// GetNode возвращает узел по имени job.
func (d *DAG) GetNode(name string) *Node {
	return d.Nodes[name]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// IsComplete проверяет, все ли узлы завершены (в любом финальном статусе).
func (d *DAG) IsComplete(finished map[string]bool) bool {
	for _, node := range d.Nodes {
		if !finished[node.Name] {
			return false
		}
	}
	return true
}
