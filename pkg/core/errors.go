package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicatePipelineID marks a record whose pipeline_id was already
// claimed by an earlier record in the same batch.
var ErrDuplicatePipelineID = errors.New("duplicate pipeline_id")

// ValidationError is a single field-level problem in a config record.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Missing reports a required field that is absent.
func Missing(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "is required"}
}

// Invalid reports a field whose value cannot be used.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func joinValidation(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// ConfigError is a malformed or incomplete configuration record.
// It is raised before any artifact is written for that record.
type ConfigError struct {
	Source     string // file the record came from
	PipelineID string // may be empty when parsing failed
	Err        error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("invalid config")
	if e.Source != "" {
		fmt.Fprintf(&b, " %s", e.Source)
	}
	if e.PipelineID != "" {
		fmt.Fprintf(&b, " (pipeline %s)", e.PipelineID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(strings.ReplaceAll(e.Err.Error(), "\n", "; "))
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Fields returns the names of every field flagged by a ValidationError.
func (e *ConfigError) Fields() []string {
	var fields []string
	var walk func(err error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if ve, ok := err.(*ValidationError); ok {
			fields = append(fields, ve.Field)
			return
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		walk(errors.Unwrap(err))
	}
	walk(e.Err)
	return fields
}

// UnknownIngestionTypeError is returned when no strategy handles a type.
type UnknownIngestionTypeError struct {
	Type      string
	Available []string
}

func (e *UnknownIngestionTypeError) Error() string {
	return fmt.Sprintf("unknown ingestion_type %q (available: %s)", e.Type, strings.Join(e.Available, ", "))
}

// EmitError is a failure to render or write a pipeline artifact.
type EmitError struct {
	PipelineID string
	Path       string
	Op         string // "render", "read" or "write"
	Err        error
}

func (e *EmitError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s pipeline %s to %s: %v", e.Op, e.PipelineID, e.Path, e.Err)
	}
	return fmt.Sprintf("%s pipeline %s: %v", e.Op, e.PipelineID, e.Err)
}

func (e *EmitError) Unwrap() error {
	return e.Err
}
