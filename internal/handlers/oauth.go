package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stagehand/backline/internal/logging"
	"github.com/stagehand/backline/internal/oauth"
)

// OAuthHandler links provider accounts to the authenticated actor. The
// provider-side authorization dance happens on the frontend; this layer
// receives the resulting token material.
type OAuthHandler struct {
	Manager  *oauth.Manager
	ErrorURL string
}

type oauthCallbackRequest struct {
	AccessToken    string   `json:"access_token"`
	RefreshToken   string   `json:"refresh_token"`
	ExpiresIn      int      `json:"expires_in"`
	ProviderUserID string   `json:"provider_user_id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Avatar         string   `json:"avatar"`
	Nickname       string   `json:"nickname"`
	Scopes         []string `json:"scopes"`
}

// Callback stores provider credentials for the current actor. A storage
// failure redirects to the login-error state instead of surfacing a raw
// error to the browser.
func (h *OAuthHandler) Callback(c echo.Context) error {
	p := principalFrom(c)
	provider := c.Param("provider")

	var req oauthCallbackRequest
	if err := c.Bind(&req); err != nil || req.AccessToken == "" {
		return errorResponse(c, http.StatusBadRequest, "access_token is required")
	}

	ctx := c.Request().Context()
	_, err := h.Manager.StoreCredentials(ctx, p.Ref, provider, oauth.Credentials{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresIn:    req.ExpiresIn,
	}, oauth.ProviderProfile{
		ProviderUserID: req.ProviderUserID,
		Name:           req.Name,
		Email:          req.Email,
		Avatar:         req.Avatar,
		Nickname:       req.Nickname,
	}, req.Scopes)
	if err != nil {
		logging.FromContext(ctx).Error("oauth_callback_failed", "provider", provider, "error", err)
		if h.ErrorURL != "" {
			return c.Redirect(http.StatusFound, h.ErrorURL)
		}
		return errorResponse(c, http.StatusBadGateway, "could not store provider credentials")
	}

	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "account connected"})
}

// AccessToken hands out a currently valid access token for the actor's
// linked provider account, refreshing first when needed.
func (h *OAuthHandler) AccessToken(c echo.Context) error {
	p := principalFrom(c)
	provider := c.Param("provider")

	token, err := h.Manager.GetValidAccessToken(c.Request().Context(), p.Ref, provider)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"access_token": token})
}

// Disconnect revokes the actor's link to the provider. The row is
// deactivated locally even when the provider-side revoke fails.
func (h *OAuthHandler) Disconnect(c echo.Context) error {
	p := principalFrom(c)
	provider := c.Param("provider")

	ctx := c.Request().Context()
	token, err := h.Manager.ActiveToken(ctx, p.Ref, provider)
	if err != nil {
		return mapError(c, err)
	}
	if err := h.Manager.RevokeToken(ctx, token); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, Response{Status: "ok", Message: "account disconnected"})
}
