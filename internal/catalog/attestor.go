package catalog

import "context"

// Attestor supplies the client-integrity proof some catalog calls require.
// Headers returns the attestation headers for a request; Refresh obtains a
// fresh attestation after the service rejected the current one.
type Attestor interface {
	Headers(ctx context.Context) (map[string]string, error)
	Refresh(ctx context.Context) error
}

// TokenSource supplies the account credential for authenticated calls.
// An empty token means the call is sent anonymously.
type TokenSource interface {
	OAuthToken() string
}
