package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/logging"
	"github.com/stagehand/backline/internal/models"
)

// RefreshWindow is how long before expiry a token is proactively
// refreshed. Needing refresh and being expired are distinct predicates.
const RefreshWindow = 5 * time.Minute

// Credentials is the raw token material reported by a provider at
// login-callback time. ExpiresIn of zero means non-expiring.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// ProviderProfile is the provider's user snapshot, stored verbatim.
type ProviderProfile struct {
	ProviderUserID string `json:"provider_user_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Avatar         string `json:"avatar"`
	Nickname       string `json:"nickname"`
}

type Manager struct {
	DB        *gorm.DB
	Cipher    *TokenCipher
	Providers map[string]Provider
}

// NeedsRefresh reports whether the token is inside the proactive
// refresh window. Tokens without an expiry never need refresh.
func NeedsRefresh(t *models.OAuthToken) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !time.Now().Before(t.ExpiresAt.Add(-RefreshWindow))
}

// IsExpired reports whether the token is past its expiry. Tokens
// without an expiry never expire.
func IsExpired(t *models.OAuthToken) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*t.ExpiresAt)
}

// StoreCredentials upserts the unique (tokenable, provider) row. Token
// material is encrypted before it is persisted; calling twice for the
// same pair replaces the row in place.
func (m *Manager) StoreCredentials(ctx context.Context, owner actor.Ref, provider string, creds Credentials, profile ProviderProfile, scopes []string) (*models.OAuthToken, error) {
	l := logging.FromContext(ctx).With("svc", "oauth.store", "provider", provider, "actor", owner.String())

	access, err := m.Cipher.Encrypt(creds.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh := ""
	if creds.RefreshToken != "" {
		if refresh, err = m.Cipher.Encrypt(creds.RefreshToken); err != nil {
			return nil, err
		}
	}

	var expiresAt *time.Time
	if creds.ExpiresIn > 0 {
		t := time.Now().UTC().Add(time.Duration(creds.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}

	token := models.OAuthToken{
		TokenableGuard: string(owner.Guard),
		TokenableID:    owner.ID,
		Provider:       provider,
		ProviderUserID: profile.ProviderUserID,
		AccessToken:    access,
		RefreshToken:   refresh,
		ExpiresAt:      expiresAt,
		ProviderData:   string(data),
		IsActive:       true,
	}
	token.SetScopes(scopes)

	err = m.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tokenable_guard"}, {Name: "tokenable_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_user_id", "access_token", "refresh_token",
			"expires_at", "scopes", "provider_data", "is_active", "updated_at",
		}),
	}).Create(&token).Error
	if err != nil {
		l.Error("oauth_store_failed", "error", err)
		return nil, err
	}

	l.Info("oauth_credentials_stored", "token_id", token.ID)
	return &token, nil
}

// ActiveToken returns the active row for the (owner, provider) pair.
func (m *Manager) ActiveToken(ctx context.Context, owner actor.Ref, provider string) (*models.OAuthToken, error) {
	var token models.OAuthToken
	err := m.DB.WithContext(ctx).
		Where("tokenable_guard = ? AND tokenable_id = ? AND provider = ? AND is_active = ?",
			string(owner.Guard), owner.ID, provider, true).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveToken
		}
		return nil, err
	}
	return &token, nil
}

// GetValidAccessToken returns the decrypted access token for the
// (owner, provider) pair. Tokens inside the refresh window are
// refreshed synchronously first; any provider failure degrades to
// ErrNoActiveToken rather than propagating.
func (m *Manager) GetValidAccessToken(ctx context.Context, owner actor.Ref, provider string) (string, error) {
	l := logging.FromContext(ctx).With("svc", "oauth.get", "provider", provider, "actor", owner.String())

	token, err := m.ActiveToken(ctx, owner, provider)
	if err != nil {
		if errors.Is(err, ErrNoActiveToken) {
			l.Info("oauth_token_not_found")
		}
		return "", err
	}

	if NeedsRefresh(token) {
		if err := m.RefreshToken(ctx, token); err != nil {
			l.Warn("oauth_refresh_failed", "error", err)
			return "", ErrNoActiveToken
		}
	}

	return m.Cipher.Decrypt(token.AccessToken)
}

// RefreshToken exchanges the stored refresh token for fresh material
// and overwrites the row. A rotated refresh token replaces the stored
// one; when the provider omits it the old one is retained.
func (m *Manager) RefreshToken(ctx context.Context, token *models.OAuthToken) error {
	if token.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	provider, ok := m.Providers[token.Provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedProvider, token.Provider)
	}

	refresh, err := m.Cipher.Decrypt(token.RefreshToken)
	if err != nil {
		return err
	}

	resp, err := provider.Refresh(ctx, refresh)
	if err != nil {
		return err
	}

	access, err := m.Cipher.Encrypt(resp.AccessToken)
	if err != nil {
		return err
	}
	token.AccessToken = access

	if resp.RefreshToken != "" {
		rotated, err := m.Cipher.Encrypt(resp.RefreshToken)
		if err != nil {
			return err
		}
		token.RefreshToken = rotated
	}

	if resp.ExpiresIn > 0 {
		t := time.Now().UTC().Add(time.Duration(resp.ExpiresIn) * time.Second)
		token.ExpiresAt = &t
	} else {
		token.ExpiresAt = nil
	}

	return m.DB.WithContext(ctx).Save(token).Error
}

// RevokeToken deactivates the row locally and then best-effort revokes
// upstream. Local deactivation always wins: a failed remote call is
// logged, not returned.
func (m *Manager) RevokeToken(ctx context.Context, token *models.OAuthToken) error {
	l := logging.FromContext(ctx).With("svc", "oauth.revoke", "provider", token.Provider, "token_id", token.ID)

	token.IsActive = false
	if err := m.DB.WithContext(ctx).Model(token).Update("is_active", false).Error; err != nil {
		return err
	}

	provider, ok := m.Providers[token.Provider]
	if !ok || !provider.SupportsRevoke() {
		l.Info("oauth_token_revoked", "remote", false)
		return nil
	}

	access, err := m.Cipher.Decrypt(token.AccessToken)
	if err != nil {
		l.Warn("oauth_remote_revoke_skipped", "error", err)
		return nil
	}
	if err := provider.Revoke(ctx, access); err != nil {
		l.Warn("oauth_remote_revoke_failed", "error", err)
		return nil
	}

	l.Info("oauth_token_revoked", "remote", true)
	return nil
}

// CleanupExpiredTokens bulk-deactivates every token past its expiry.
// Rows are kept; only is_active flips. Returns the number processed.
// Safe to run concurrently with live traffic: it only touches rows
// already past the threshold.
func (m *Manager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	res := m.DB.WithContext(ctx).
		Model(&models.OAuthToken{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, time.Now().UTC()).
		Update("is_active", false)
	if res.Error != nil {
		return 0, res.Error
	}

	logging.FromContext(ctx).Info("oauth_expired_tokens_cleaned", "svc", "oauth.cleanup", "count", res.RowsAffected)
	return res.RowsAffected, nil
}
