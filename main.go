package main

import (
	"log/slog"
	"os"

	"github.com/deeptracer/deeptracer-go/cmd"
	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		logging.Error("error loading configuration", "error", err)
		os.Exit(1)
	}

	if settings.Main.Log.Enabled {
		fileLogger, closeLogger, err := logging.NewFileLogger(
			settings.Main.Log.Path, settings.Main.Name, slog.LevelInfo,
			&logging.FileLoggerOptions{
				MaxSizeMB:  settings.Main.Log.MaxSize,
				MaxBackups: settings.Main.Log.MaxBackups,
				MaxAgeDays: settings.Main.Log.MaxAge,
			})
		if err != nil {
			logging.Error("error opening log file", "error", err)
			os.Exit(1)
		}
		defer func() { _ = closeLogger() }()
		slog.SetDefault(fileLogger)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}
