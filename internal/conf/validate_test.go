package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		Classifier: ClassifierSettings{
			Endpoint: "http://localhost:5000/upload",
			Timeout:  60,
			Platform: "instagram",
		},
		Feed: FeedSettings{
			Endpoint: "http://localhost:5001/api/predictions",
			Timeout:  30,
		},
		Dashboard: DashboardSettings{PageSize: 10},
		Output: OutputSettings{
			SQLite: SQLiteSettings{Enabled: true, Path: "detections.db"},
		},
		WebServer: WebServerSettings{Host: "0.0.0.0", Port: "8080"},
	}
}

func TestValidateSettings(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"empty_classifier_endpoint", func(s *Settings) { s.Classifier.Endpoint = "" }},
		{"relative_classifier_endpoint", func(s *Settings) { s.Classifier.Endpoint = "localhost:5000" }},
		{"empty_feed_endpoint", func(s *Settings) { s.Feed.Endpoint = "" }},
		{"zero_classifier_timeout", func(s *Settings) { s.Classifier.Timeout = 0 }},
		{"zero_page_size", func(s *Settings) { s.Dashboard.PageSize = 0 }},
		{"sqlite_enabled_without_path", func(s *Settings) { s.Output.SQLite.Path = "" }},
		{"empty_port", func(s *Settings) { s.WebServer.Port = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			assert.Error(t, ValidateSettings(s))
		})
	}
}
