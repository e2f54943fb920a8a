package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/constants"
)

// configCmd groups configuration subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Validate and inspect Nexos configuration.`,
}

// configValidateCmd checks a configuration file for errors.
var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate a configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := constants.DefaultConfigPath
		if len(args) > 0 {
			configPath = args[0]
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if errs := cfg.Validate(); len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "  - %v\n", e)
			}
			return fmt.Errorf("configuration validation failed with %d errors", len(errs))
		}

		fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
		return nil
	},
}

// configShowCmd dumps the effective configuration with secrets masked.
var configShowCmd = &cobra.Command{
	Use:   "show [config-file]",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg *config.Config

		if len(args) > 0 {
			loaded, err := config.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = loaded
		} else if _, err := os.Stat(constants.DefaultConfigPath); err == nil {
			cfg, err = config.Load(constants.DefaultConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
		} else {
			cfg = config.Default()
		}

		masked := cfg.MaskedCopy()
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(masked)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
