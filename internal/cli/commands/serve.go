package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dagforge/internal/engine"
	"github.com/leapstack-labs/dagforge/internal/ui"
)

// sessionSecretEnv keeps preview sessions valid across restarts when set.
const sessionSecretEnv = "DAGFORGE_SESSION_SECRET"

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Watch   bool
	NoState bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Preview generated pipelines in the browser",
		Long: `Start a local web server listing every config record with its rendered
pipeline module, task graph and generation history.

With watch enabled (the default) the pipelines are generated on start and
regenerated whenever a config record changes; open pages update live.`,
		Example: `  # Preview on the default port
  dagforge serve

  # Preview on port 9000 without regenerating
  dagforge serve --port 9000 --watch=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().Int("port", 0, "Port to listen on")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", true, "Regenerate when config records change")
	cmd.Flags().BoolVar(&opts.NoState, "no-state", false, "Do not record or serve generation history")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, !opts.NoState)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	watch := cfg.Serve.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	secret := os.Getenv(sessionSecretEnv)
	if secret == "" {
		secret = uuid.NewString()
	}

	srvCfg := ui.Config{
		Engine: cmdCtx.Engine,
		Options: engine.Options{
			ConfigsDir: cfg.ConfigsDir,
			OutputDir:  cfg.OutputDir,
			FailFast:   cfg.Generate.FailFast,
			Parallel:   cfg.Generate.Parallel,
			Debounce:   cfg.Generate.Debounce,
		},
		Addr:          fmt.Sprintf("127.0.0.1:%d", cfg.Serve.Port),
		Watch:         watch,
		SessionSecret: secret,
		Logger:        cmdCtx.Logger,
	}
	if cmdCtx.Store != nil {
		srvCfg.Store = cmdCtx.Store
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx.Renderer.Muted(fmt.Sprintf("Previewing %s at http://%s (Ctrl+C to stop)", cfg.ConfigsDir, srvCfg.Addr))
	return ui.NewServer(srvCfg).Serve(ctx)
}
