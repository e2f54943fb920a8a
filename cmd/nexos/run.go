package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/nexos/internal/app"
	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/constants"
	"github.com/aatumaykin/nexos/internal/logger"
)

var (
	runConfigPath string
	runDebug      bool
)

// runCmd starts the orchestration core and blocks until SIGINT/SIGTERM.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Nexos orchestration core",
	Long: `Start the coordinator, evaluator, translator and worker pool, then
serve tasks until interrupted. Shutdown drains the queue and releases all
sandbox containers.`,
	RunE: runHandler,
}

func runHandler(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime(runConfigPath, runDebug)
	if err != nil {
		return err
	}

	log.Info("starting nexos",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "llm_provider", Value: cfg.LLM.Provider},
		logger.Field{Key: "max_workers", Value: cfg.Workers.MaxWorkers})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, log)
	if err := a.Run(ctx); err != nil {
		log.Error("nexos exited with error", err)
		return err
	}

	log.Info("nexos stopped")
	return nil
}

// loadRuntime resolves configuration and builds the logger. A missing
// config file falls back to defaults so `nexos run` works out of the box.
func loadRuntime(path string, debug bool) (*config.Config, *logger.Logger, error) {
	var cfg *config.Config

	resolved := path
	if resolved == "" {
		resolved = constants.DefaultConfigPath
	}

	if _, err := os.Stat(resolved); err == nil {
		cfg, err = config.Load(resolved)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	} else if path != "" {
		// An explicitly named file must exist.
		return nil, nil, fmt.Errorf("config file not found: %s", path)
	} else {
		cfg = config.Default()
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", e)
		}
		return nil, nil, fmt.Errorf("configuration validation failed with %d errors", len(errs))
	}

	if debug {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetDefault(log)

	return cfg, log, nil
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	runCmd.Flags().BoolVarP(&runDebug, "debug", "d", false, "Enable debug logging")
}
