package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/nexos/internal/app"
	"github.com/aatumaykin/nexos/internal/constants"
	"github.com/aatumaykin/nexos/internal/logger"
)

var (
	submitConfigPath string
	submitPriority   int
	submitSession    string
)

// submitCmd runs a single task through an ephemeral instance: start, submit,
// print the result, shut down.
var submitCmd = &cobra.Command{
	Use:   "submit <command...>",
	Short: "Submit one task and print its result",
	Long: `Spin up the orchestration core, submit the given natural-language
command, wait for its result and shut down again. Useful for scripting and
for trying out routing decisions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: submitHandler,
}

func submitHandler(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime(submitConfigPath, false)
	if err != nil {
		return err
	}

	a := app.New(cfg, log)
	if err := a.Initialize(cmd.Context()); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := a.Start(cmd.Context()); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Shutdown()

	command := strings.Join(args, " ")
	res, err := a.Coordinator().Submit(cmd.Context(), command, submitPriority, submitSession)
	if err != nil {
		return err
	}

	log.Info("task finished",
		logger.Field{Key: "task_id", Value: res.TaskID},
		logger.Field{Key: "state", Value: res.State},
		logger.Field{Key: "route", Value: res.Route},
		logger.Field{Key: "attempts", Value: res.Attempts},
		logger.Field{Key: "duration", Value: res.Duration})

	if res.Err != nil {
		return res.Err
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Output)
	return nil
}

func init() {
	submitCmd.Flags().StringVarP(&submitConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	submitCmd.Flags().IntVarP(&submitPriority, "priority", "p", constants.DefaultPriority, "Task priority, 1 (lowest) to 10 (highest)")
	submitCmd.Flags().StringVarP(&submitSession, "session", "s", constants.DefaultSessionID, "Session id for rate limiting and history")
}
