package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// GoogleProvider refreshes against the Google OAuth token endpoint.
// Google never returns a new refresh token on refresh, and token
// revocation is not wired for it, so Revoke is a no-op.
type GoogleProvider struct {
	config     GoogleConfig
	httpClient *http.Client
}

func NewGoogleProvider(config GoogleConfig) *GoogleProvider {
	if config.TokenURL == "" {
		config.TokenURL = "https://oauth2.googleapis.com/token"
	}
	return &GoogleProvider{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoogleProvider) Name() string { return ProviderGoogle }

func (g *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", g.config.ClientID)
	data.Set("client_secret", g.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderHTTPError{Provider: ProviderGoogle, Status: resp.StatusCode, Body: string(body)}
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, err
	}
	tokenResp.RefreshToken = ""
	return &tokenResp, nil
}

func (g *GoogleProvider) Revoke(ctx context.Context, accessToken string) error {
	return nil
}

func (g *GoogleProvider) SupportsRevoke() bool { return false }
