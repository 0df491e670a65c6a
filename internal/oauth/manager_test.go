package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newManager(t *testing.T, providers map[string]Provider) *Manager {
	cipher, err := NewTokenCipher(testKey)
	require.NoError(t, err)
	return &Manager{DB: initTestDB(t), Cipher: cipher, Providers: providers}
}

var owner = actor.Ref{Guard: actor.GuardUser, ID: 1}

func TestNeedsRefresh(t *testing.T) {
	t.Parallel()

	at := func(d time.Duration) *time.Time {
		ts := time.Now().Add(d)
		return &ts
	}

	require.False(t, NeedsRefresh(&models.OAuthToken{ExpiresAt: nil}))
	require.False(t, NeedsRefresh(&models.OAuthToken{ExpiresAt: at(time.Hour)}))
	// Inside the five minute window counts as needing refresh.
	require.True(t, NeedsRefresh(&models.OAuthToken{ExpiresAt: at(4 * time.Minute)}))
	require.True(t, NeedsRefresh(&models.OAuthToken{ExpiresAt: at(-time.Minute)}))

	require.False(t, IsExpired(&models.OAuthToken{ExpiresAt: nil}))
	require.False(t, IsExpired(&models.OAuthToken{ExpiresAt: at(4 * time.Minute)}))
	require.True(t, IsExpired(&models.OAuthToken{ExpiresAt: at(-time.Minute)}))
}

func TestStoreCredentialsUpserts(t *testing.T) {
	t.Parallel()
	m := newManager(t, nil)
	ctx := context.Background()

	first, err := m.StoreCredentials(ctx, owner, ProviderSpotify,
		Credentials{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: 3600},
		ProviderProfile{ProviderUserID: "sp-1", Name: "First"},
		[]string{"user-read-email"})
	require.NoError(t, err)
	require.NotEqual(t, "access-1", first.AccessToken)
	require.NotNil(t, first.ExpiresAt)
	require.Equal(t, []string{"user-read-email"}, first.ScopeList())

	_, err = m.StoreCredentials(ctx, owner, ProviderSpotify,
		Credentials{AccessToken: "access-2"},
		ProviderProfile{ProviderUserID: "sp-1", Name: "Second"}, nil)
	require.NoError(t, err)

	var tokens []models.OAuthToken
	require.NoError(t, m.DB.Find(&tokens).Error)
	require.Len(t, tokens, 1)

	access, err := m.Cipher.Decrypt(tokens[0].AccessToken)
	require.NoError(t, err)
	require.Equal(t, "access-2", access)
	require.Nil(t, tokens[0].ExpiresAt)
	require.True(t, tokens[0].IsActive)

	var profile ProviderProfile
	require.NoError(t, json.Unmarshal([]byte(tokens[0].ProviderData), &profile))
	require.Equal(t, "Second", profile.Name)
}

func TestStoreCredentialsSeparatesProviders(t *testing.T) {
	t.Parallel()
	m := newManager(t, nil)
	ctx := context.Background()

	_, err := m.StoreCredentials(ctx, owner, ProviderSpotify, Credentials{AccessToken: "a"}, ProviderProfile{}, nil)
	require.NoError(t, err)
	_, err = m.StoreCredentials(ctx, owner, ProviderGoogle, Credentials{AccessToken: "b"}, ProviderProfile{}, nil)
	require.NoError(t, err)

	var count int64
	require.NoError(t, m.DB.Model(&models.OAuthToken{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestGetValidAccessToken(t *testing.T) {
	t.Parallel()
	m := newManager(t, nil)
	ctx := context.Background()

	_, err := m.GetValidAccessToken(ctx, owner, ProviderSpotify)
	require.ErrorIs(t, err, ErrNoActiveToken)

	_, err = m.StoreCredentials(ctx, owner, ProviderSpotify,
		Credentials{AccessToken: "live-token", ExpiresIn: 3600}, ProviderProfile{}, nil)
	require.NoError(t, err)

	access, err := m.GetValidAccessToken(ctx, owner, ProviderSpotify)
	require.NoError(t, err)
	require.Equal(t, "live-token", access)
}

func TestGetValidAccessTokenRefreshesExpiring(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.FormValue("grant_type"))
		require.Equal(t, "old-refresh", r.FormValue("refresh_token"))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-access",
			"refresh_token": "rotated-refresh",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	spotify := NewSpotifyProvider(SpotifyConfig{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL})
	m := newManager(t, map[string]Provider{ProviderSpotify: spotify})
	ctx := context.Background()

	// Expires inside the refresh window.
	_, err := m.StoreCredentials(ctx, owner, ProviderSpotify,
		Credentials{AccessToken: "stale-access", RefreshToken: "old-refresh", ExpiresIn: 60},
		ProviderProfile{}, nil)
	require.NoError(t, err)

	access, err := m.GetValidAccessToken(ctx, owner, ProviderSpotify)
	require.NoError(t, err)
	require.Equal(t, "fresh-access", access)

	// The rotated refresh token replaced the stored one.
	var token models.OAuthToken
	require.NoError(t, m.DB.First(&token).Error)
	refresh, err := m.Cipher.Decrypt(token.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "rotated-refresh", refresh)
	require.True(t, token.ExpiresAt.After(time.Now().Add(30*time.Minute)))
}

func TestGetValidAccessTokenDegradesOnRefreshFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	spotify := NewSpotifyProvider(SpotifyConfig{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL})
	m := newManager(t, map[string]Provider{ProviderSpotify: spotify})
	ctx := context.Background()

	_, err := m.StoreCredentials(ctx, owner, ProviderSpotify,
		Credentials{AccessToken: "stale", RefreshToken: "bad", ExpiresIn: 60},
		ProviderProfile{}, nil)
	require.NoError(t, err)

	_, err = m.GetValidAccessToken(ctx, owner, ProviderSpotify)
	require.ErrorIs(t, err, ErrNoActiveToken)
}

func TestRefreshTokenRequiresRefreshMaterial(t *testing.T) {
	t.Parallel()
	m := newManager(t, nil)
	ctx := context.Background()

	token, err := m.StoreCredentials(ctx, owner, ProviderSpotify,
		Credentials{AccessToken: "only-access"}, ProviderProfile{}, nil)
	require.NoError(t, err)

	require.ErrorIs(t, m.RefreshToken(ctx, token), ErrNoRefreshToken)
}

func TestRefreshTokenUnknownProvider(t *testing.T) {
	t.Parallel()
	m := newManager(t, nil)
	ctx := context.Background()

	token, err := m.StoreCredentials(ctx, owner, "myspace",
		Credentials{AccessToken: "a", RefreshToken: "r"}, ProviderProfile{}, nil)
	require.NoError(t, err)

	require.ErrorIs(t, m.RefreshToken(ctx, token), ErrUnsupportedProvider)
}

func TestGoogleRefreshRetainsStoredRefreshToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client-id", r.FormValue("client_id"))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-google-access",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	google := NewGoogleProvider(GoogleConfig{ClientID: "client-id", ClientSecret: "s", TokenURL: srv.URL})
	m := newManager(t, map[string]Provider{ProviderGoogle: google})
	ctx := context.Background()

	token, err := m.StoreCredentials(ctx, owner, ProviderGoogle,
		Credentials{AccessToken: "old", RefreshToken: "keep-me", ExpiresIn: 3600},
		ProviderProfile{}, nil)
	require.NoError(t, err)

	require.NoError(t, m.RefreshToken(ctx, token))

	refresh, err := m.Cipher.Decrypt(token.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "keep-me", refresh)

	access, err := m.Cipher.Decrypt(token.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "new-google-access", access)
}

func TestRevokeTokenLocalFirst(t *testing.T) {
	t.Parallel()

	// Remote revoke fails; local deactivation must still succeed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	spotify := NewSpotifyProvider(SpotifyConfig{ClientID: "id", ClientSecret: "s", TokenURL: srv.URL, RevokeURL: srv.URL})
	m := newManager(t, map[string]Provider{ProviderSpotify: spotify})
	ctx := context.Background()

	token, err := m.StoreCredentials(ctx, owner, ProviderSpotify,
		Credentials{AccessToken: "a", RefreshToken: "r"}, ProviderProfile{}, nil)
	require.NoError(t, err)

	require.NoError(t, m.RevokeToken(ctx, token))

	var stored models.OAuthToken
	require.NoError(t, m.DB.First(&stored, token.ID).Error)
	require.False(t, stored.IsActive)

	_, err = m.GetValidAccessToken(ctx, owner, ProviderSpotify)
	require.ErrorIs(t, err, ErrNoActiveToken)
}

func TestCleanupExpiredTokens(t *testing.T) {
	t.Parallel()
	m := newManager(t, nil)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	rows := []models.OAuthToken{
		{TokenableGuard: "user", TokenableID: 1, Provider: "spotify", ExpiresAt: &past, IsActive: true},
		{TokenableGuard: "user", TokenableID: 2, Provider: "spotify", ExpiresAt: &past, IsActive: true},
		{TokenableGuard: "user", TokenableID: 3, Provider: "spotify", ExpiresAt: &future, IsActive: true},
		{TokenableGuard: "user", TokenableID: 4, Provider: "spotify", IsActive: true},
	}
	for i := range rows {
		require.NoError(t, m.DB.Create(&rows[i]).Error)
	}

	count, err := m.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	var active int64
	require.NoError(t, m.DB.Model(&models.OAuthToken{}).Where("is_active = ?", true).Count(&active).Error)
	require.EqualValues(t, 2, active)

	// Rows are deactivated, never deleted.
	var total int64
	require.NoError(t, m.DB.Model(&models.OAuthToken{}).Count(&total).Error)
	require.EqualValues(t, 4, total)

	// Second run is a no-op.
	count, err = m.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}
