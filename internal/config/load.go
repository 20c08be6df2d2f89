package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory; env-only setups
	// are fine, so a missing file is not an error.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with the ANIMEGEN_ prefix override file
	// values, e.g. ANIMEGEN_DATABASE_URL, ANIMEGEN_IMAGE_API_TOKEN.
	v.SetEnvPrefix("ANIMEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for optional settings. Binding a
// default also makes the key visible to AutomaticEnv.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.url", "")
	v.SetDefault("auth.api_token", "")
	v.SetDefault("image_api.url", "")
	v.SetDefault("image_api.token", "")
	v.SetDefault("video_api.url", "")
	v.SetDefault("video_api.token", "")
	v.SetDefault("gateway.user_id", "")
	v.SetDefault("gateway.app_bundle", "")
	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("reconciler.interval", 15*time.Second)
	v.SetDefault("reconciler.max_concurrent_polls", 16)
}
