// Package config defines the application configuration structure and
// loading logic. Configuration comes from environment variables with
// the ANIMEGEN_ prefix, optionally layered over a yaml config file.
package config
