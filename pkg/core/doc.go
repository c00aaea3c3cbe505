// Package core defines the shared language of dagforge.
//
// This package contains:
//   - Configuration records (PipelineConfig, SchemaField)
//   - Pipeline building blocks (TaskSpec, TriggerRule, OrganizingLogic)
//   - The error taxonomy (ConfigError, EmitError, ValidationError)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
