package conf

import "github.com/spf13/viper"

// setDefaultConfig sets viper defaults for every configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "DeepTracer-Go")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "deeptracer.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 28)

	viper.SetDefault("classifier.endpoint", "http://localhost:5000/upload")
	viper.SetDefault("classifier.timeout", 60)
	viper.SetDefault("classifier.platform", "instagram")

	viper.SetDefault("feed.endpoint", "http://localhost:5001/api/predictions")
	viper.SetDefault("feed.timeout", 30)

	viper.SetDefault("dashboard.pagesize", 10)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "detections.db")

	viper.SetDefault("webserver.host", "0.0.0.0")
	viper.SetDefault("webserver.port", "8080")
}
