package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/observability"
	"github.com/jonathan/job-radar/internal/pipeline"
	"github.com/jonathan/job-radar/internal/sources"
)

var sourcesTypes bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources, or the supported adapter types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := sources.NewRegistry()
		if sourcesTypes {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(registry.Types(), "\n"))
			return err
		}

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintSources(sourceStatuses(cfg, registry.Types()))
		return nil
	},
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesTypes, "types", false, "List the adapter types this build supports")
	rootCmd.AddCommand(sourcesCmd)
}

// sourceStatuses describes configured sources. A type the registry does not
// know is reported in place of the circuit state.
func sourceStatuses(cfg *config.Config, known []string) []pipeline.SourceStatus {
	out := make([]pipeline.SourceStatus, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		typ := s.Type
		if !slices.Contains(known, typ) {
			typ += " (unknown)"
		}
		out = append(out, pipeline.SourceStatus{Name: s.Name, Type: typ, Enabled: s.IsEnabled()})
	}
	return out
}
