package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// NoResponseText is returned by a provider client when the upstream answered
// successfully but produced no text.
const NoResponseText = "Sorry, I couldn't generate a response."

// ErrMissingAPIKey is wrapped by every ConfigurationError.
var ErrMissingAPIKey = errors.New("api key is not configured")

// ConfigurationError reports that the provider a request was routed to has no
// API key. It is returned before any network call is attempted.
type ConfigurationError struct {
	Provider string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, ErrMissingAPIKey)
}

func (e *ConfigurationError) Unwrap() error { return ErrMissingAPIKey }

// ProviderError reports a failed upstream call: a non-OK HTTP status, a
// transport failure, or a response the client could not use.
type ProviderError struct {
	Provider   string
	StatusCode int
	Status     string
	Err        error
}

// NewProviderError builds a ProviderError, deriving Status from the code when
// the upstream did not supply one.
func NewProviderError(provider string, statusCode int, status string, err error) *ProviderError {
	if status == "" && statusCode > 0 {
		status = http.StatusText(statusCode)
	}
	return &ProviderError{Provider: provider, StatusCode: statusCode, Status: status, Err: err}
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Err != nil:
		return fmt.Sprintf("%s API error: %d %s: %v", e.Provider, e.StatusCode, e.Status, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s API error: %d %s", e.Provider, e.StatusCode, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s API error", e.Provider)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }
