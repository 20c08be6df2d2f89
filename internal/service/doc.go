// Package service contains the application services that orchestrate
// the generation workflow across the store, the providers, and the
// background runner.
package service
