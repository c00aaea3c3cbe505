// Package synth assembles the task graph of one pipeline from its config
// and the ingestion strategy selected for it.
//
// Every pipeline has the same shape:
//
//	movement ──all_success──▶ on_success_organize
//	    └─────one_failed────▶ on_failure_organize
//
// Only the movement task body and the organizing logic differ per variant.
package synth

import (
	"fmt"
	"slices"
	"time"

	"github.com/leapstack-labs/dagforge/internal/dag"
	"github.com/leapstack-labs/dagforge/internal/ingestion"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

// pythonOperatorImport brings the organizing tasks' operator into scope.
const pythonOperatorImport = "from airflow.operators.python import PythonOperator"

// Task is a node of the synthesized graph.
type Task struct {
	core.TaskSpec
	TriggerRule core.TriggerRule
	// Var is the Python variable the task is bound to.
	Var string
}

// Edge groups the downstream tasks of one upstream task.
type Edge struct {
	From string
	To   []string
}

// Spec is the typed representation of one pipeline definition.
// It is built per config and consumed by the emitter.
type Spec struct {
	PipelineID       string
	IngestionType    core.IngestionType
	ScheduleInterval string
	StartDate        time.Time
	Catchup          bool
	DefaultArgs      map[string]any
	Tags             []string

	Graph      *dag.Graph[*Task]
	Movement   string
	Organizing core.OrganizingLogic
}

// Synthesize builds the Spec for cfg. The strategy must handle
// cfg.IngestionType.
func Synthesize(cfg *core.PipelineConfig, strategy ingestion.Strategy) (*Spec, error) {
	if strategy.Type() != cfg.IngestionType {
		return nil, fmt.Errorf("strategy %s cannot build %s pipeline %s", strategy.Type(), cfg.IngestionType, cfg.PipelineID)
	}

	start, err := cfg.ParsedStartDate()
	if err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}

	movement, err := strategy.BuildMovementTask(cfg)
	if err != nil {
		return nil, fmt.Errorf("building movement task: %w", err)
	}

	g := dag.NewGraph[*Task]()
	tasks := []*Task{
		{TaskSpec: movement, TriggerRule: core.AllSuccess, Var: movement.ID},
		organizeTask(core.SuccessTaskID, core.SuccessCallable, core.AllSuccess, "success"),
		organizeTask(core.FailureTaskID, core.FailureCallable, core.OneFailed, "failure"),
	}
	for _, task := range tasks {
		if err := g.AddNode(task.ID, task); err != nil {
			return nil, err
		}
	}
	if err := g.AddEdge(movement.ID, core.SuccessTaskID); err != nil {
		return nil, err
	}
	if err := g.AddEdge(movement.ID, core.FailureTaskID); err != nil {
		return nil, err
	}

	defaultArgs := cfg.DefaultArgs
	if defaultArgs == nil {
		defaultArgs = map[string]any{}
	}

	return &Spec{
		PipelineID:       cfg.PipelineID,
		IngestionType:    cfg.IngestionType,
		ScheduleInterval: cfg.ScheduleInterval,
		StartDate:        start,
		Catchup:          cfg.CatchupEnabled(),
		DefaultArgs:      defaultArgs,
		Tags:             []string{core.AutoGeneratedTag},
		Graph:            g,
		Movement:         movement.ID,
		Organizing:       strategy.BuildOrganizingLogic(cfg),
	}, nil
}

func organizeTask(id, callable string, rule core.TriggerRule, varName string) *Task {
	return &Task{
		TaskSpec: core.TaskSpec{
			ID:       id,
			Operator: "PythonOperator",
			Import:   pythonOperatorImport,
			Args:     []core.Arg{{Name: "python_callable", Value: core.Ref(callable)}},
		},
		TriggerRule: rule,
		Var:         varName,
	}
}

// Tasks returns the tasks in dependency order. It fails when Graph has been
// changed to contain a cycle.
func (s *Spec) Tasks() ([]*Task, error) {
	nodes, err := s.Graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", s.PipelineID, err)
	}
	tasks := make([]*Task, len(nodes))
	for i, n := range nodes {
		tasks[i] = n.Data
	}
	return tasks, nil
}

// Task returns the task with the given id.
func (s *Spec) Task(id string) (*Task, bool) {
	n, ok := s.Graph.Node(id)
	if !ok {
		return nil, false
	}
	return n.Data, true
}

// Edges groups downstream task variables by upstream task, in task order.
func (s *Spec) Edges() ([]Edge, error) {
	tasks, err := s.Tasks()
	if err != nil {
		return nil, err
	}
	var edges []Edge
	for _, task := range tasks {
		children := s.Graph.Children(task.ID)
		if len(children) == 0 {
			continue
		}
		e := Edge{From: task.Var}
		for _, id := range children {
			child, _ := s.Task(id)
			e.To = append(e.To, child.Var)
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// Upstream returns the ids of the tasks id depends on.
func (s *Spec) Upstream(id string) []string {
	return s.Graph.Parents(id)
}

// Imports returns every import statement the pipeline needs, deduplicated
// and sorted.
func (s *Spec) Imports() ([]string, error) {
	tasks, err := s.Tasks()
	if err != nil {
		return nil, err
	}
	set := map[string]bool{
		"from airflow import DAG":       true,
		"from datetime import datetime": true,
	}
	for _, task := range tasks {
		if task.Import != "" {
			set[task.Import] = true
		}
	}
	for _, imp := range s.Organizing.Imports {
		set[imp] = true
	}

	imports := make([]string, 0, len(set))
	for imp := range set {
		imports = append(imports, imp)
	}
	slices.Sort(imports)
	return imports, nil
}

// Fires reports whether task id runs given the terminal state of each of
// its upstream tasks.
func (s *Spec) Fires(id string, upstream map[string]core.TaskState) (bool, error) {
	task, ok := s.Task(id)
	if !ok {
		return false, fmt.Errorf("unknown task %q", id)
	}
	parents := s.Upstream(id)
	states := make([]core.TaskState, 0, len(parents))
	for _, p := range parents {
		st, ok := upstream[p]
		if !ok {
			return false, fmt.Errorf("no state for upstream task %q of %q", p, id)
		}
		states = append(states, st)
	}
	return task.TriggerRule.Fires(states), nil
}
