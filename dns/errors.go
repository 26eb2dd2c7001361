package dns

import (
	"errors"
	"fmt"
)

var (
	// ErrZoneNotFound means no zone in the account matched any suffix of the domain.
	ErrZoneNotFound = errors.New("dns zone not found")

	// ErrAuth means the provider rejected the API token.
	ErrAuth = errors.New("dns api authentication rejected")

	// ErrMissingToken means the provider was selected but its token
	// environment variable is unset.
	ErrMissingToken = errors.New("dns api token missing")
)

// APIError is any other non-2xx provider response.
type APIError struct {
	Provider   ProviderType
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api: %s: status %d: %s", e.Provider, e.Operation, e.StatusCode, e.Body)
}

// statusErr maps a non-2xx response to the error taxonomy.
func statusErr(provider ProviderType, operation string, status int, body string) error {
	if status == 401 || status == 403 {
		return fmt.Errorf("%s api: %s: %w", provider, operation, ErrAuth)
	}
	return &APIError{Provider: provider, Operation: operation, StatusCode: status, Body: body}
}
