// Package conf loads and validates the application configuration. Settings
// come from a config.yaml discovered on standard paths, overridable through
// DEEPTRACER_* environment variables.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/deeptracer/deeptracer-go/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig holds file logging settings for a service.
type LogConfig struct {
	Enabled    bool   // true to write a rotated log file
	Path       string // log file path
	MaxSize    int    // megabytes before rotation
	MaxBackups int    // rotated files to keep
	MaxAge     int    // days to keep rotated files
}

// MainSettings contains application-wide settings.
type MainSettings struct {
	Name string    // instance name, included in structured logs
	Log  LogConfig // main log file settings
}

// ClassifierSettings configures the external classification service.
type ClassifierSettings struct {
	Endpoint string // upload endpoint, e.g. http://localhost:5000/upload
	Timeout  int    // request timeout in seconds
	Platform string // origin label stamped on records created from submissions
}

// FeedSettings configures the historical detection feed.
type FeedSettings struct {
	Endpoint string // feed endpoint, e.g. http://localhost:5001/api/predictions
	Timeout  int    // request timeout in seconds
}

// DashboardSettings configures the aggregation views.
type DashboardSettings struct {
	PageSize int // records per table page
}

// SQLiteSettings configures detection log persistence.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// OutputSettings groups persistence targets.
type OutputSettings struct {
	SQLite SQLiteSettings
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Host string
	Port string
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool

	Main       MainSettings
	Classifier ClassifierSettings
	Feed       FeedSettings
	Dashboard  DashboardSettings
	Output     OutputSettings
	WebServer  WebServerSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("deeptracer")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// GetDefaultConfigPaths returns the configuration search paths for the
// current platform: the executable directory first, then the user config
// directory, then the system-wide directory.
func GetDefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-executable-path").
			Build()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	return []string{
		filepath.Dir(exePath),
		filepath.Join(homeDir, ".config", "deeptracer-go"),
		"/etc/deeptracer-go",
	}, nil
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings, loading them on first use.
func Setting() *Settings {
	if GetSettings() == nil {
		if _, err := Load(); err != nil {
			log.Fatalf("Error loading settings: %v", err)
		}
	}
	return GetSettings()
}
