package core

// Ref is a reference to a Python name in the generated module
// (for example a callable passed as python_callable). It renders
// unquoted, unlike a plain string.
type Ref string

// Arg is one keyword argument of an operator call.
type Arg struct {
	Name  string
	Value any
}

// Dict is a mapping that renders in insertion order. Plain Go maps
// render with sorted keys.
type Dict []Arg

// Get returns the value stored under key.
func (d Dict) Get(key string) (any, bool) {
	for _, a := range d {
		if a.Name == key {
			return a.Value, true
		}
	}
	return nil, false
}

// TaskSpec describes one operator instantiation in a pipeline.
type TaskSpec struct {
	// ID is the task_id and the Python variable the task is bound to.
	ID string
	// Operator is the operator class name.
	Operator string
	// Import is the statement that brings Operator into scope.
	Import string
	// Args are rendered in order after task_id.
	Args []Arg
}

// Arg returns the value of the named argument.
func (t *TaskSpec) Arg(name string) (any, bool) {
	return Dict(t.Args).Get(name)
}

// TaskState is the terminal state of an upstream task.
type TaskState string

// Task states considered by trigger rules.
const (
	TaskSuccess  TaskState = "success"
	TaskFailed   TaskState = "failed"
	TaskSkipped  TaskState = "skipped"
	TaskUpstream TaskState = "upstream_failed"
)

// TriggerRule is the condition under which a task becomes eligible.
type TriggerRule string

// Supported trigger rules.
const (
	// AllSuccess runs only when every upstream task succeeded.
	AllSuccess TriggerRule = "all_success"
	// OneFailed runs as soon as any upstream task failed.
	OneFailed TriggerRule = "one_failed"
)

// Fires reports whether a task with this rule runs given its upstream states.
func (r TriggerRule) Fires(upstream []TaskState) bool {
	switch r {
	case OneFailed:
		for _, s := range upstream {
			if s == TaskFailed || s == TaskUpstream {
				return true
			}
		}
		return false
	default:
		for _, s := range upstream {
			if s != TaskSuccess {
				return false
			}
		}
		return true
	}
}

// OrganizingKind selects what the post-run organizing callables do.
type OrganizingKind string

// Organizing kinds.
const (
	// OrganizeRelocate moves source objects after the run.
	OrganizeRelocate OrganizingKind = "relocate"
	// OrganizeLog only reports the outcome.
	OrganizeLog OrganizingKind = "log"
)

// OrganizingLogic is the post-run behavior embedded in the artifact.
// It runs inside the orchestrator, never inside the generator.
type OrganizingLogic struct {
	Kind OrganizingKind

	// Relocate fields.
	Bucket        string
	InboundPrefix string
	ArchivePrefix string
	FailedPrefix  string
	FileSuffix    string

	// Log fields.
	SuccessMessage string
	FailureMessage string

	// Imports needed by the organizing callables.
	Imports []string
}

// Callables used by the organizing tasks.
const (
	SuccessCallable = "on_success"
	FailureCallable = "on_failure"
)

// Task ids for the organizing tasks.
const (
	SuccessTaskID = "on_success_organize"
	FailureTaskID = "on_failure_organize"
)

// AutoGeneratedTag marks every emitted pipeline.
const AutoGeneratedTag = "auto-generated"
