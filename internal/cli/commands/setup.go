package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dagforge/internal/cli/config"
	"github.com/leapstack-labs/dagforge/internal/cli/output"
	"github.com/leapstack-labs/dagforge/internal/engine"
	"github.com/leapstack-labs/dagforge/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Store    *state.SQLiteStore
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an engine and renderer.
// With withState set, the history store at Cfg.StatePath is opened and
// handed to the engine. Returns the context and a cleanup function that
// must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command, withState bool) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	var store *state.SQLiteStore
	if withState && cmdCtx.Cfg.StatePath != "" {
		var err error
		store, err = openStore(cmdCtx.Cfg.StatePath, cmdCtx.Logger)
		if err != nil {
			return nil, nil, err
		}
	}

	engCfg := engine.Config{Logger: cmdCtx.Logger}
	if store != nil {
		engCfg.Store = store
	}
	cmdCtx.Engine = engine.New(engCfg)
	cmdCtx.Store = store

	cleanup := func() {
		if store != nil {
			_ = store.Close()
		}
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't read config records.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

func openStore(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open state database %s: %w", path, err)
	}
	return store, nil
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	parallel, err := strconv.Atoi(os.Getenv(config.EnvPrefix + "GENERATE__PARALLEL"))
	if err != nil || parallel < 1 {
		parallel = config.DefaultParallel
	}

	return &config.Config{
		ConfigsDir:   getEnvOrDefault(config.EnvPrefix+"CONFIGS_DIR", config.DefaultConfigsDir),
		OutputDir:    getEnvOrDefault(config.EnvPrefix+"OUTPUT_DIR", config.DefaultOutputDir),
		StatePath:    getEnvOrDefault(config.EnvPrefix+"STATE_PATH", config.DefaultStateFile),
		Verbose:      os.Getenv(config.EnvPrefix+"VERBOSE") == "true",
		OutputFormat: getEnvOrDefault(config.EnvPrefix+"OUTPUT", config.DefaultOutput),
		Generate: config.GenerateConfig{
			Parallel: parallel,
			Debounce: config.DefaultDebounce,
		},
		Datagen: config.DatagenConfig{
			Rows:       config.DefaultRows,
			BucketRoot: getEnvOrDefault(config.EnvPrefix+"DATAGEN__BUCKET_ROOT", config.DefaultBucketRoot),
		},
		Serve: config.ServeConfig{Port: config.DefaultPort, Watch: true},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
