package conf

import (
	"net/url"

	"github.com/deeptracer/deeptracer-go/internal/errors"
)

// ValidateSettings checks the loaded configuration for values the rest of the
// application depends on being sane.
func ValidateSettings(settings *Settings) error {
	if err := validateEndpoint("classifier.endpoint", settings.Classifier.Endpoint); err != nil {
		return err
	}
	if err := validateEndpoint("feed.endpoint", settings.Feed.Endpoint); err != nil {
		return err
	}

	if settings.Classifier.Timeout <= 0 {
		return validationError("classifier.timeout must be positive")
	}
	if settings.Feed.Timeout <= 0 {
		return validationError("feed.timeout must be positive")
	}
	if settings.Dashboard.PageSize <= 0 {
		return validationError("dashboard.pagesize must be positive")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return validationError("output.sqlite.path required when sqlite output is enabled")
	}
	if settings.WebServer.Port == "" {
		return validationError("webserver.port must be set")
	}

	return nil
}

func validateEndpoint(key, endpoint string) error {
	if endpoint == "" {
		return validationError(key + " must be set")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Newf("%s is not a valid URL: %q", key, endpoint).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validationError(msg string) error {
	return errors.Newf("%s", msg).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Build()
}
