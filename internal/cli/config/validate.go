package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/leapstack-labs/dagforge/internal/cli/output"
)

// Validate checks the loaded values.
func (c *Config) Validate() error {
	var errs []error
	if c.ConfigsDir == "" {
		errs = append(errs, errors.New("configs_dir is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if c.Generate.Parallel < 1 {
		errs = append(errs, fmt.Errorf("generate.parallel must be at least 1, got %d", c.Generate.Parallel))
	}
	if c.Generate.Debounce < 0 {
		errs = append(errs, fmt.Errorf("generate.debounce must not be negative, got %s", c.Generate.Debounce))
	}
	if c.Datagen.Rows < 0 {
		errs = append(errs, fmt.Errorf("datagen.rows must not be negative, got %d", c.Datagen.Rows))
	}
	if c.Serve.Port < 1 || c.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve.port must be between 1 and 65535, got %d", c.Serve.Port))
	}
	if !output.ValidMode(c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output must be one of %v, got %q", output.Modes, c.OutputFormat))
	}
	return errors.Join(errs...)
}

// ValidateDirectories checks that the configs directory exists.
func (c *Config) ValidateDirectories() error {
	info, err := os.Stat(c.ConfigsDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("configs directory does not exist: %s\nHint: run 'dagforge init' or use --configs-dir to specify a different path", c.ConfigsDir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("configs path is not a directory: %s", c.ConfigsDir)
	}
	return nil
}
