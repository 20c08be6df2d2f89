package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth"       validate:"required"`
	ImageAPI   ProviderConfig   `mapstructure:"image_api"  validate:"required"`
	VideoAPI   ProviderConfig   `mapstructure:"video_api"  validate:"required"`
	Gateway    GatewayConfig    `mapstructure:"gateway"    validate:"required"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains the inbound API authentication settings. Every
// API route requires this token in the ACCESS-TOKEN header.
type AuthConfig struct {
	APIToken string `mapstructure:"api_token" validate:"required,min=16"`
}

// ProviderConfig describes one outbound generation provider endpoint.
type ProviderConfig struct {
	URL   string `mapstructure:"url"   validate:"required,url"`
	Token string `mapstructure:"token" validate:"required"`
}

// GatewayConfig holds the fixed identity sent to providers on behalf of
// this service. Injected configuration rather than hidden globals.
type GatewayConfig struct {
	UserID    string `mapstructure:"user_id"    validate:"required"`
	AppBundle string `mapstructure:"app_bundle" validate:"required"`
}

// WorkerConfig tunes the background submission workers.
type WorkerConfig struct {
	Count     int `mapstructure:"count"      validate:"gte=0"`
	QueueSize int `mapstructure:"queue_size" validate:"gte=0"`
}

// ReconcilerConfig tunes the periodic status reconciliation sweep.
type ReconcilerConfig struct {
	Interval           time.Duration `mapstructure:"interval"`
	MaxConcurrentPolls int           `mapstructure:"max_concurrent_polls" validate:"gte=0"`
}
