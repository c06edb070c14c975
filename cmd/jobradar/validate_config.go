package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/sources"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Check the config file and every enabled source's parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Validation failed: %v\n", err)
			return err
		}

		registry := sources.NewRegistry()
		var errs []error
		enabled := cfg.EnabledSources()
		for _, src := range enabled {
			if _, err := registry.Build(src, nil, nil, 0, nil); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Validation failed:\n%v\n", err)
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Validation passed: %s (%d sources, %d enabled)\n",
			cfg.Path(), len(cfg.Sources), len(enabled))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}
