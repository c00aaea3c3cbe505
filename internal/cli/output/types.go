package output

// JSON payloads written in ModeJSON. Field names are stable for scripts.

// GenerateOutput is the result of a generate batch.
type GenerateOutput struct {
	RunID      string           `json:"run_id,omitempty"`
	DryRun     bool             `json:"dry_run"`
	DurationMS int64            `json:"duration_ms"`
	Results    []GenerateResult `json:"results"`
	Summary    GenerateSummary  `json:"summary"`
}

// GenerateResult is the outcome of one config record.
type GenerateResult struct {
	Source        string `json:"source"`
	PipelineID    string `json:"pipeline_id,omitempty"`
	IngestionType string `json:"ingestion_type,omitempty"`
	Status        string `json:"status"`
	Artifact      string `json:"artifact,omitempty"`
	Checksum      string `json:"checksum,omitempty"`
	Error         string `json:"error,omitempty"`
}

// GenerateSummary tallies a batch.
type GenerateSummary struct {
	Generated int `json:"generated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ValidateOutput is the result of validating every record.
type ValidateOutput struct {
	Records []ValidateRecord `json:"records"`
	Valid   int              `json:"valid"`
	Invalid int              `json:"invalid"`
}

// ValidateRecord is the validation outcome of one record.
type ValidateRecord struct {
	Source        string   `json:"source"`
	PipelineID    string   `json:"pipeline_id,omitempty"`
	IngestionType string   `json:"ingestion_type,omitempty"`
	Valid         bool     `json:"valid"`
	Fields        []string `json:"fields,omitempty"`
	Ignored       []string `json:"ignored,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// ListOutput lists the valid pipelines.
type ListOutput struct {
	Pipelines []PipelineInfo `json:"pipelines"`
	Total     int            `json:"total"`
}

// PipelineInfo describes one pipeline.
type PipelineInfo struct {
	PipelineID       string         `json:"pipeline_id"`
	IngestionType    string         `json:"ingestion_type"`
	ScheduleInterval string         `json:"schedule_interval"`
	StartDate        string         `json:"start_date"`
	Source           string         `json:"source"`
	Artifact         string         `json:"artifact"`
	LastGenerated    *LastGenerated `json:"last_generated,omitempty"`
}

// LastGenerated is the newest successful history entry of a pipeline.
type LastGenerated struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Checksum   string `json:"checksum"`
	RecordedAt string `json:"recorded_at"`
}

// GraphOutput describes the task graph of one pipeline.
type GraphOutput struct {
	PipelineID string      `json:"pipeline_id"`
	Tasks      []GraphTask `json:"tasks"`
	Levels     [][]string  `json:"levels"`
	Edges      []GraphEdge `json:"edges"`
}

// GraphTask is one task node.
type GraphTask struct {
	ID          string   `json:"id"`
	Operator    string   `json:"operator"`
	TriggerRule string   `json:"trigger_rule"`
	Upstream    []string `json:"upstream"`
}

// GraphEdge is one dependency.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RenderOutput is a rendered module.
type RenderOutput struct {
	PipelineID string `json:"pipeline_id"`
	Path       string `json:"path"`
	Checksum   string `json:"checksum"`
	Source     string `json:"source"`
}

// DatagenOutput describes generated synthetic data.
type DatagenOutput struct {
	PipelineID string   `json:"pipeline_id"`
	Rows       int      `json:"rows"`
	Columns    []string `json:"columns"`
	Location   string   `json:"location"`
}

// OrganizeOutput lists relocated objects.
type OrganizeOutput struct {
	PipelineID string      `json:"pipeline_id"`
	Outcome    string      `json:"outcome"`
	Kind       string      `json:"kind"`
	Message    string      `json:"message,omitempty"`
	Moves      []MovedFile `json:"moves"`
}

// MovedFile is one relocated object.
type MovedFile struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HistoryRun is one generation run.
type HistoryRun struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	ConfigsDir  string          `json:"configs_dir"`
	OutputDir   string          `json:"output_dir"`
	StartedAt   string          `json:"started_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
	Summary     GenerateSummary `json:"summary"`
	Error       string          `json:"error,omitempty"`
}

// HistoryOutput lists runs, or one run with its artifacts.
type HistoryOutput struct {
	Runs      []HistoryRun      `json:"runs"`
	Artifacts []HistoryArtifact `json:"artifacts,omitempty"`
}

// HistoryArtifact is one recorded record outcome.
type HistoryArtifact struct {
	Source        string `json:"source"`
	PipelineID    string `json:"pipeline_id,omitempty"`
	IngestionType string `json:"ingestion_type,omitempty"`
	Status        string `json:"status"`
	Path          string `json:"path,omitempty"`
	Checksum      string `json:"checksum,omitempty"`
	Error         string `json:"error,omitempty"`
}
