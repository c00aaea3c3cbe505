// Package ingestion holds the ingestion-mode strategies. Each strategy owns
// one pipeline-shape variant: the data-movement task and the organizing
// logic that runs after it. Strategies register themselves in init() and
// are selected once, when a config is validated.
package ingestion

import (
	"sort"
	"sync"

	"github.com/leapstack-labs/dagforge/pkg/core"
)

// Strategy builds the variant-specific parts of a pipeline.
type Strategy interface {
	// Type returns the ingestion_type this strategy handles.
	Type() core.IngestionType

	// Validate checks the field group this variant requires.
	Validate(cfg *core.PipelineConfig) error

	// BuildMovementTask returns the task that loads or transforms data.
	BuildMovementTask(cfg *core.PipelineConfig) (core.TaskSpec, error)

	// BuildOrganizingLogic returns the post-run behavior of the artifact.
	BuildOrganizingLogic(cfg *core.PipelineConfig) core.OrganizingLogic
}

var (
	registryMu sync.RWMutex
	registry   = make(map[core.IngestionType]Strategy)
)

// Register adds a strategy to the registry, replacing any previous one
// for the same type.
func Register(s Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Type()] = s
}

// Get retrieves a strategy by ingestion type.
func Get(t core.IngestionType) (Strategy, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[t]
	return s, ok
}

// Lookup is Get with an UnknownIngestionTypeError on a miss.
func Lookup(t core.IngestionType) (Strategy, error) {
	s, ok := Get(t)
	if !ok {
		return nil, &core.UnknownIngestionTypeError{Type: string(t), Available: List()}
	}
	return s, nil
}

// IsRegistered checks if an ingestion type has a strategy.
func IsRegistered(t core.IngestionType) bool {
	_, ok := Get(t)
	return ok
}

// List returns all registered ingestion types (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for t := range registry {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// IgnoredFields returns the keys set on cfg that belong to the other
// variant's field group. They are not an error, only dead weight.
func IgnoredFields(cfg *core.PipelineConfig) []string {
	var fields []string
	switch cfg.IngestionType {
	case core.IngestionFileToBQ:
		if cfg.CustomSQL != "" {
			fields = append(fields, "custom_sql")
		}
		if cfg.FinalTable != "" {
			fields = append(fields, "final_table")
		}
		if cfg.Location != "" {
			fields = append(fields, "location")
		}
	case core.IngestionBQToBQ:
		if len(cfg.SourceURIs) > 0 {
			fields = append(fields, "source_uris")
		}
		if cfg.StagingTable != "" {
			fields = append(fields, "staging_table")
		}
		if len(cfg.Schema) > 0 {
			fields = append(fields, "schema")
		}
		if cfg.Autodetect != nil {
			fields = append(fields, "autodetect")
		}
	}
	return fields
}
