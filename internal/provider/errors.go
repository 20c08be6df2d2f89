package provider

import "errors"

// Common errors returned by provider implementations
var (
	// ErrSubmissionRejected is returned when the provider refuses a
	// submission (bad input, quota, auth). Fatal for that submission
	// attempt; submissions are not retried automatically.
	ErrSubmissionRejected = errors.New("provider rejected submission")

	// ErrUnexpectedStatus is returned when a status poll comes back
	// with a non-success HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected provider status response")

	// ErrInvalidResponse is returned when a provider response cannot be
	// decoded.
	ErrInvalidResponse = errors.New("invalid provider response")

	// ErrInvalidConfig is returned when a provider client configuration
	// is invalid.
	ErrInvalidConfig = errors.New("invalid provider configuration")
)
