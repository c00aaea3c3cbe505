// Package emit renders synthesized pipelines into Airflow Python modules
// and writes them to the output directory.
package emit

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	starctx "github.com/leapstack-labs/dagforge/internal/starlark"
	"github.com/leapstack-labs/dagforge/internal/synth"
	"github.com/leapstack-labs/dagforge/internal/template"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

// ArtifactExt is the extension of every emitted module.
const ArtifactExt = ".py"

const templateName = "airflow_dag.py.tmpl"

//go:embed templates/airflow_dag.py.tmpl
var moduleTemplate string

var parseTemplate = sync.OnceValues(func() (*template.Template, error) {
	return template.ParseString(moduleTemplate, templateName)
})

// Status describes what Emit did with an artifact.
type Status string

// Emit outcomes.
const (
	StatusGenerated Status = "generated"
	StatusUnchanged Status = "unchanged"
)

// Result describes one emitted artifact.
type Result struct {
	PipelineID string
	Path       string
	Status     Status
	Checksum   string
	Size       int
}

// Config holds emitter configuration.
type Config struct {
	// OutputDir receives one <pipeline_id>.py per pipeline.
	OutputDir string
	// Pool is shared between concurrent renders (optional).
	Pool *starctx.ThreadPool
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Emitter renders and writes pipeline modules.
type Emitter struct {
	outputDir string
	pool      *starctx.ThreadPool
	logger    *slog.Logger
}

// New creates an emitter writing into cfg.OutputDir.
func New(cfg Config) *Emitter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool := cfg.Pool
	if pool == nil {
		pool = starctx.NewThreadPool(0)
	}
	return &Emitter{outputDir: cfg.OutputDir, pool: pool, logger: logger}
}

// OutputDir returns the directory artifacts are written to.
func (e *Emitter) OutputDir() string {
	return e.outputDir
}

// ArtifactPath returns where the module for pipelineID is written.
func (e *Emitter) ArtifactPath(pipelineID string) string {
	return filepath.Join(e.outputDir, pipelineID+ArtifactExt)
}

// Render produces the module source for spec. The output depends only on
// spec, so rendering the same spec twice yields identical bytes.
func (e *Emitter) Render(spec *synth.Spec) ([]byte, error) {
	out, err := e.render(spec)
	if err != nil {
		return nil, &core.EmitError{PipelineID: spec.PipelineID, Op: "render", Err: err}
	}
	return out, nil
}

func (e *Emitter) render(spec *synth.Spec) ([]byte, error) {
	tmpl, err := parseTemplate()
	if err != nil {
		return nil, fmt.Errorf("parsing module template: %w", err)
	}

	globals, err := buildGlobals(spec)
	if err != nil {
		return nil, err
	}
	ctx, err := starctx.NewExecutionContext(globals, starctx.WithThreadPool(e.pool))
	if err != nil {
		return nil, err
	}

	out, err := template.Render(tmpl, ctx, template.WithEscaper(PythonLiteral))
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Plan renders spec and reports what Emit would do, without writing.
func (e *Emitter) Plan(spec *synth.Spec) (Result, error) {
	return e.emit(spec, false)
}

// Emit renders spec and writes <output_dir>/<pipeline_id>.py. An artifact
// whose content would not change is left alone and reported as unchanged.
// Other files in the output directory are never touched.
func (e *Emitter) Emit(spec *synth.Spec) (Result, error) {
	return e.emit(spec, true)
}

func (e *Emitter) emit(spec *synth.Spec, write bool) (Result, error) {
	content, err := e.Render(spec)
	if err != nil {
		return Result{}, err
	}

	path := e.ArtifactPath(spec.PipelineID)
	res := Result{
		PipelineID: spec.PipelineID,
		Path:       path,
		Status:     StatusGenerated,
		Checksum:   Checksum(content),
		Size:       len(content),
	}

	existing, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(existing, content):
		res.Status = StatusUnchanged
		e.logger.Debug("artifact unchanged", "pipeline_id", spec.PipelineID, "path", path)
		return res, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return Result{}, &core.EmitError{PipelineID: spec.PipelineID, Path: path, Op: "read", Err: err}
	}

	if !write {
		return res, nil
	}

	if err := writeAtomic(path, content); err != nil {
		return Result{}, &core.EmitError{PipelineID: spec.PipelineID, Path: path, Op: "write", Err: err}
	}
	e.logger.Debug("artifact written", "pipeline_id", spec.PipelineID, "path", path, "checksum", res.Checksum)
	return res, nil
}

// writeAtomic writes content next to path and renames it into place so a
// reader never sees a partial module.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Checksum returns a short content hash of an artifact.
func Checksum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:8])
}
