package ui

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/dagforge/internal/engine"
	"github.com/leapstack-labs/dagforge/internal/loader"
	"github.com/leapstack-labs/dagforge/internal/state"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

const (
	sessionName        = "dagforge-preview"
	sessionPipelineKey = "pipeline"
	runsLimit          = 50
)

// pipelineView is one config record as listed by the preview.
type pipelineView struct {
	PipelineID    string `json:"pipeline_id,omitempty"`
	IngestionType string `json:"ingestion_type,omitempty"`
	Source        string `json:"source"`
	Valid         bool   `json:"valid"`
	Error         string `json:"error,omitempty"`
	Artifact      string `json:"artifact,omitempty"`
}

type graphView struct {
	PipelineID string     `json:"pipeline_id"`
	Levels     [][]string `json:"levels"`
	Edges      []edgeView `json:"edges"`
	Tasks      []taskView `json:"tasks"`
}

type edgeView struct {
	From string   `json:"from"`
	To   []string `json:"to"`
}

type taskView struct {
	ID          string `json:"id"`
	Operator    string `json:"operator"`
	TriggerRule string `json:"trigger_rule"`
}

type runDetail struct {
	Run       *state.Run        `json:"run"`
	Artifacts []*state.Artifact `json:"artifacts"`
}

func (s *Server) routes(r chi.Router) {
	r.Get("/", s.indexPage)
	r.Get("/updates", s.updates)

	r.Route("/api", func(r chi.Router) {
		r.Get("/pipelines", s.listPipelines)
		r.Get("/pipelines/{id}/module", s.pipelineModule)
		r.Get("/pipelines/{id}/graph", s.pipelineGraph)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
	})
}

func (s *Server) pipelines() ([]pipelineView, error) {
	records, err := s.engine.LoadAll(s.opts.ConfigsDir)
	if err != nil {
		return nil, err
	}
	views := make([]pipelineView, 0, len(records))
	for _, rec := range records {
		views = append(views, s.pipelineView(rec))
	}
	return views, nil
}

func (s *Server) pipelineView(rec loader.Record) pipelineView {
	v := pipelineView{Source: rec.Path, Valid: rec.Err == nil}
	if rec.Config != nil {
		v.PipelineID = rec.Config.PipelineID
		v.IngestionType = string(rec.Config.IngestionType)
	}
	if rec.Err != nil {
		v.Error = rec.Err.Error()
		var cfgErr *core.ConfigError
		if v.PipelineID == "" && errors.As(rec.Err, &cfgErr) {
			v.PipelineID = cfgErr.PipelineID
		}
		return v
	}
	v.Artifact = s.emitter.ArtifactPath(v.PipelineID)
	return v
}

func (s *Server) listPipelines(w http.ResponseWriter, _ *http.Request) {
	views, err := s.pipelines()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, views)
}

// render synthesizes and renders the module for id.
func (s *Server) render(id string) ([]byte, error) {
	spec, _, err := s.engine.Synthesize(s.opts.ConfigsDir, id)
	if err != nil {
		return nil, err
	}
	return s.emitter.Render(spec)
}

func (s *Server) pipelineModule(w http.ResponseWriter, r *http.Request) {
	content, err := s.render(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/x-python; charset=utf-8")
	_, _ = w.Write(content)
}

func (s *Server) pipelineGraph(w http.ResponseWriter, r *http.Request) {
	spec, _, err := s.engine.Synthesize(s.opts.ConfigsDir, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	levels, err := spec.Graph.ExecutionLevels()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	tasks, err := spec.Tasks()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	edges, err := spec.Edges()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	view := graphView{PipelineID: spec.PipelineID, Levels: levels, Edges: []edgeView{}}
	for _, e := range edges {
		view.Edges = append(view.Edges, edgeView{From: e.From, To: e.To})
	}
	for _, task := range tasks {
		view.Tasks = append(view.Tasks, taskView{
			ID:          task.ID,
			Operator:    task.Operator,
			TriggerRule: string(task.TriggerRule),
		})
	}
	writeJSON(w, view)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "generation history is disabled", http.StatusNotFound)
		return
	}
	runs, err := s.store.ListRuns(r.Context(), runsLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*state.Run{}
	}
	writeJSON(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "generation history is disabled", http.StatusNotFound)
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	artifacts, err := s.store.ListArtifacts(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if artifacts == nil {
		artifacts = []*state.Artifact{}
	}
	writeJSON(w, runDetail{Run: run, Artifacts: artifacts})
}

// indexPage lists the pipelines and shows the selected module. The
// selection comes from ?pipeline= and is remembered in the session.
func (s *Server) indexPage(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		// An undecodable cookie yields a fresh session.
		s.logger.Debug("discarding preview session", "error", err)
	}

	selected := r.URL.Query().Get("pipeline")
	if selected != "" {
		session.Values[sessionPipelineKey] = selected
		if err := session.Save(r, w); err != nil {
			s.logger.Warn("failed to save preview session", "error", err)
		}
	} else if v, ok := session.Values[sessionPipelineKey].(string); ok {
		selected = v
	}

	views, err := s.pipelines()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := pageData{Pipelines: views, Selected: selected}
	if selected != "" {
		content, err := s.render(selected)
		if err != nil {
			data.RenderError = err.Error()
		} else {
			data.Module = string(content)
		}
	}
	if ev, ok := s.notifier.Last(); ok {
		data.Status = &ev
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage(data).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// updates is the long-lived SSE stream patching the status line after
// every watch regeneration.
func (s *Server) updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	events := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(events)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := sse.PatchElementTempl(statusLine(&ev)); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var cfgErr *core.ConfigError
	switch {
	case errors.Is(err, engine.ErrPipelineNotFound), errors.Is(err, state.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &cfgErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
