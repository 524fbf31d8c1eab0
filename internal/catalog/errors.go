package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegrity means the service rejected the client's integrity
	// attestation. Callers refresh the attestation once and retry once
	// before treating it as fatal.
	ErrIntegrity = errors.New("catalog: integrity check rejected")

	// ErrAuthorization means the credential is missing, expired, or invalid.
	// Surfaced so the caller can prompt re-authentication.
	ErrAuthorization = errors.New("catalog: authorization error")

	// ErrNotFound means the referenced content no longer exists. Fatal,
	// never retried.
	ErrNotFound = errors.New("catalog: data not found")
)

// APIError is a malformed or unexpected response body from the service
type APIError struct {
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog: unexpected api response: %s", e.Body)
}

// NetworkError is a transient transport failure, including timeouts.
// Retried with bounded backoff by the download pipeline.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("catalog: network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an error is transient and worth retrying
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
