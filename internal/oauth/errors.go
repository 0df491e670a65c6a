package oauth

import (
	"errors"
	"fmt"
)

var (
	ErrNoRefreshToken      = errors.New("oauth: no refresh token available")
	ErrUnsupportedProvider = errors.New("oauth: unsupported provider for refresh")
	ErrNoActiveToken       = errors.New("oauth: no active token found")
)

// ProviderHTTPError carries the upstream status and body of a failed
// provider call. Callers log it and degrade to "no token available";
// it never propagates past the manager boundary.
type ProviderHTTPError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderHTTPError) Error() string {
	return fmt.Sprintf("oauth: %s returned status %d: %s", e.Provider, e.Status, e.Body)
}
