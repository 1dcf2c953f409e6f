// Package cmd wires the CLI commands of the detection pipeline.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deeptracer/deeptracer-go/cmd/export"
	"github.com/deeptracer/deeptracer-go/cmd/serve"
	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/logging"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deeptracer",
		Short: "DeepTracer detection pipeline",
		Long:  "Classifies submitted media, tracks reverse-search results and aggregates the detection history.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		export.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if settings.Debug {
			logging.SetLevel(slog.LevelDebug)
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags configures global flags shared by all subcommands.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		logging.Error("failed to bind global flags", "error", err)
	}
}
