package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	RevokeURL    string
}

// SpotifyProvider refreshes against the Spotify accounts service.
// Spotify may rotate the refresh token on refresh; when the response
// omits it the stored one stays valid.
type SpotifyProvider struct {
	config     SpotifyConfig
	httpClient *http.Client
}

func NewSpotifyProvider(config SpotifyConfig) *SpotifyProvider {
	if config.TokenURL == "" {
		config.TokenURL = "https://accounts.spotify.com/api/token"
	}
	if config.RevokeURL == "" {
		config.RevokeURL = "https://accounts.spotify.com/api/token/revoke"
	}
	return &SpotifyProvider{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SpotifyProvider) Name() string { return ProviderSpotify }

func (s *SpotifyProvider) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+s.basicAuth())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderHTTPError{Provider: ProviderSpotify, Status: resp.StatusCode, Body: string(body)}
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

func (s *SpotifyProvider) Revoke(ctx context.Context, accessToken string) error {
	data := url.Values{}
	data.Set("token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.RevokeURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+s.basicAuth())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &ProviderHTTPError{Provider: ProviderSpotify, Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (s *SpotifyProvider) SupportsRevoke() bool { return true }

func (s *SpotifyProvider) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(s.config.ClientID + ":" + s.config.ClientSecret))
}
