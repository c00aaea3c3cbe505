package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/ingestion"
	"github.com/leapstack-labs/dagforge/internal/loader"
	"github.com/leapstack-labs/dagforge/pkg/core"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config records without generating",
		Long: `Parse and validate every config record in the configs directory.

Each record is checked against the fields its ingestion_type requires.
Nothing is written. The command exits non-zero when any record is invalid.`,
		Example: `  # Validate all records
  dagforge validate

  # Validate records in another directory, as JSON
  dagforge validate --configs-dir ./pipelines -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd)
		},
	}

	return cmd
}

func runValidate(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	records, err := cmdCtx.Engine.LoadAll(cmdCtx.Cfg.ConfigsDir)
	if err != nil {
		return fmt.Errorf("failed to load config records: %w", err)
	}

	out := output.ValidateOutput{Records: make([]output.ValidateRecord, 0, len(records))}
	for _, rec := range records {
		item := validateRecord(rec)
		if item.Valid {
			out.Valid++
		} else {
			out.Invalid++
		}
		out.Records = append(out.Records, item)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(out); err != nil {
			return err
		}
	case output.ModeMarkdown:
		validateMarkdown(r, out)
	default:
		validateText(r, out)
	}

	if out.Invalid > 0 {
		return fmt.Errorf("%d of %d config records are invalid", out.Invalid, len(records))
	}
	return nil
}

func validateRecord(rec loader.Record) output.ValidateRecord {
	item := output.ValidateRecord{Source: rec.Path, Valid: rec.Err == nil}
	if rec.Config != nil {
		item.PipelineID = rec.Config.PipelineID
		item.IngestionType = string(rec.Config.IngestionType)
		if rec.Err == nil {
			item.Ignored = ingestion.IgnoredFields(rec.Config)
		}
	}
	if rec.Err != nil {
		item.Error = rec.Err.Error()
		var cfgErr *core.ConfigError
		if errors.As(rec.Err, &cfgErr) {
			if item.PipelineID == "" {
				item.PipelineID = cfgErr.PipelineID
			}
			item.Fields = cfgErr.Fields()
		}
	}
	return item
}

func validateLabel(item output.ValidateRecord) string {
	if item.PipelineID != "" {
		return item.PipelineID + " (" + filepath.Base(item.Source) + ")"
	}
	return filepath.Base(item.Source)
}

func validateText(r *output.Renderer, out output.ValidateOutput) {
	r.Header(1, fmt.Sprintf("Config records (%d total)", len(out.Records)))
	for _, item := range out.Records {
		if item.Valid {
			detail := ""
			if len(item.Ignored) > 0 {
				detail = "ignored: " + strings.Join(item.Ignored, ", ")
			}
			r.StatusLine(validateLabel(item), "success", detail)
			continue
		}
		r.StatusLine(validateLabel(item), "failed", item.Error)
	}
	r.Println("")
	if out.Invalid == 0 {
		r.Success(fmt.Sprintf("All %d config records are valid", out.Valid))
		return
	}
	r.Error(fmt.Sprintf("%d valid, %d invalid", out.Valid, out.Invalid))
}

func validateMarkdown(r *output.Renderer, out output.ValidateOutput) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Config records (%d total)", len(out.Records))))
	r.Println("")
	for _, item := range out.Records {
		r.Println(output.FormatHeader(2, validateLabel(item)))
		r.Println(output.FormatKeyValue("File", item.Source))
		if item.IngestionType != "" {
			r.Println(output.FormatKeyValue("Ingestion", item.IngestionType))
		}
		if item.Valid {
			r.Println(output.FormatKeyValue("Status", "valid"))
		} else {
			r.Println(output.FormatKeyValue("Status", "invalid"))
			r.Println(output.FormatKeyValue("Error", item.Error))
		}
		if len(item.Fields) > 0 {
			r.Println(output.FormatKeyValue("Fields", strings.Join(item.Fields, ", ")))
		}
		if len(item.Ignored) > 0 {
			r.Println(output.FormatKeyValue("Ignored", strings.Join(item.Ignored, ", ")))
		}
		r.Println("")
	}
	r.Println(output.FormatKeyValue("Valid", fmt.Sprint(out.Valid)))
	r.Println(output.FormatKeyValue("Invalid", fmt.Sprint(out.Invalid)))
}
