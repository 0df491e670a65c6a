package oauth

import "context"

const (
	ProviderSpotify = "spotify"
	ProviderGoogle  = "google"
)

// TokenResponse is what a provider's token endpoint hands back on a
// successful refresh. RefreshToken is empty when the provider did not
// rotate it; ExpiresIn of zero means the token does not expire.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Provider is the per-provider refresh/revoke strategy. The manager
// dispatches through a provider-keyed map; unknown providers fail
// loudly rather than silently.
type Provider interface {
	Name() string
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Revoke(ctx context.Context, accessToken string) error
	SupportsRevoke() bool
}
