package emit

import (
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/starlark"

	starctx "github.com/leapstack-labs/dagforge/internal/starlark"
	"github.com/leapstack-labs/dagforge/internal/synth"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

var importPattern = regexp.MustCompile(`^(from [A-Za-z_][A-Za-z0-9_.]* )?import [A-Za-z_][A-Za-z0-9_.]*( as [A-Za-z_][A-Za-z0-9_]*)?(, [A-Za-z_][A-Za-z0-9_.]*( as [A-Za-z_][A-Za-z0-9_]*)?)*$`)

// buildGlobals exposes spec to the template as:
//
//	header      pipeline and ingestion labels for the module comment
//	pipeline    id, schedule_interval, start_date, catchup, default_args, tags
//	organizing  kind plus the relocate or log fields
//	callables   success and failure callable names
//	imports     import statements
//	tasks       var, operator, id, args, trigger_rule
//	edges       src and dst task variables
func buildGlobals(spec *synth.Spec) (starlark.StringDict, error) {
	header, err := headerGlobal(spec)
	if err != nil {
		return nil, err
	}
	pipeline, err := pipelineGlobal(spec)
	if err != nil {
		return nil, err
	}
	stmts, err := spec.Imports()
	if err != nil {
		return nil, err
	}
	imports, err := importsGlobal(stmts)
	if err != nil {
		return nil, err
	}
	specTasks, err := spec.Tasks()
	if err != nil {
		return nil, err
	}
	tasks, err := tasksGlobal(specTasks)
	if err != nil {
		return nil, err
	}
	specEdges, err := spec.Edges()
	if err != nil {
		return nil, err
	}

	edges := make([]starlark.Value, 0, len(specEdges))
	for _, e := range specEdges {
		dst := make([]starlark.Value, len(e.To))
		for i, to := range e.To {
			dst[i] = starlark.String(to)
		}
		edges = append(edges, starctx.Struct("edge", starlark.StringDict{
			"src": starlark.String(e.From),
			"dst": starlark.NewList(dst),
		}))
	}

	org := spec.Organizing
	return starlark.StringDict{
		"header":   header,
		"pipeline": pipeline,
		"organizing": starctx.Struct("organizing", starlark.StringDict{
			"kind":            starlark.String(org.Kind),
			"bucket":          starlark.String(org.Bucket),
			"inbound_prefix":  starlark.String(org.InboundPrefix),
			"archive_prefix":  starlark.String(org.ArchivePrefix),
			"failed_prefix":   starlark.String(org.FailedPrefix),
			"file_suffix":     starlark.String(org.FileSuffix),
			"success_message": starlark.String(org.SuccessMessage),
			"failure_message": starlark.String(org.FailureMessage),
		}),
		"callables": starctx.Struct("callables", starlark.StringDict{
			"success": starctx.Ident(core.SuccessCallable),
			"failure": starctx.Ident(core.FailureCallable),
		}),
		"imports": imports,
		"tasks":   tasks,
		"edges":   starlark.NewList(edges),
	}, nil
}

func headerGlobal(spec *synth.Spec) (starlark.Value, error) {
	for _, s := range []string{spec.PipelineID, string(spec.IngestionType)} {
		if strings.ContainsAny(s, "\r\n") {
			return nil, fmt.Errorf("header value %q spans lines", s)
		}
	}
	return starctx.Struct("header", starlark.StringDict{
		"pipeline":  starctx.Code(spec.PipelineID),
		"ingestion": starctx.Code(spec.IngestionType),
	}), nil
}

func pipelineGlobal(spec *synth.Spec) (starlark.Value, error) {
	defaultArgs, err := starctx.GoToStarlark(spec.DefaultArgs)
	if err != nil {
		return nil, fmt.Errorf("default_args: %w", err)
	}
	tags, err := starctx.GoToStarlark(spec.Tags)
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	start, err := starctx.GoToStarlark(spec.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}

	return starctx.Struct("pipeline", starlark.StringDict{
		"id":                starlark.String(spec.PipelineID),
		"ingestion_type":    starlark.String(spec.IngestionType),
		"schedule_interval": starlark.String(spec.ScheduleInterval),
		"start_date":        start,
		"catchup":           starlark.Bool(spec.Catchup),
		"default_args":      defaultArgs,
		"tags":              tags,
	}), nil
}

func importsGlobal(imports []string) (starlark.Value, error) {
	out := make([]starlark.Value, len(imports))
	for i, stmt := range imports {
		if !importPattern.MatchString(stmt) {
			return nil, fmt.Errorf("%q is not an import statement", stmt)
		}
		out[i] = starctx.Code(stmt)
	}
	return starlark.NewList(out), nil
}

func tasksGlobal(tasks []*synth.Task) (starlark.Value, error) {
	out := make([]starlark.Value, 0, len(tasks))
	for _, task := range tasks {
		v, err := taskGlobal(task)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", task.ID, err)
		}
		out = append(out, v)
	}
	return starlark.NewList(out), nil
}

func taskGlobal(task *synth.Task) (starlark.Value, error) {
	varName, err := starctx.NewIdent(task.Var)
	if err != nil {
		return nil, err
	}
	operator, err := starctx.NewIdent(task.Operator)
	if err != nil {
		return nil, err
	}

	args := make([]starlark.Value, 0, len(task.Args))
	for _, a := range task.Args {
		name, err := starctx.NewIdent(a.Name)
		if err != nil {
			return nil, err
		}
		value, err := starctx.GoToStarlark(a.Value)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", a.Name, err)
		}
		args = append(args, starctx.Struct("arg", starlark.StringDict{
			"name":  name,
			"value": value,
		}))
	}

	rule := task.TriggerRule
	if rule == "" {
		rule = core.AllSuccess
	}

	return starctx.Struct("task", starlark.StringDict{
		"var":          varName,
		"operator":     operator,
		"id":           starlark.String(task.ID),
		"args":         starlark.NewList(args),
		"trigger_rule": starlark.String(rule),
	}), nil
}
