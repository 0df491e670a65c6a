package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/policy"
)

const principalKey = "principal"

// AuthMiddleware resolves a bearer token into a principal with its
// permission set preloaded. Token issuance lives elsewhere; this only
// consumes already-issued tokens.
type AuthMiddleware struct {
	JWTSecret []byte
	Resolver  *policy.Resolver
}

func (m *AuthMiddleware) RequireActor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			return errorResponse(c, http.StatusUnauthorized, "missing bearer token")
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signature method: %v", t.Header["alg"])
			}
			return m.JWTSecret, nil
		})
		if err != nil || !token.Valid {
			return errorResponse(c, http.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return errorResponse(c, http.StatusUnauthorized, "invalid token")
		}
		sub, ok := claims["sub"].(float64)
		if !ok {
			return errorResponse(c, http.StatusUnauthorized, "invalid token")
		}
		guard, ok := claims["guard"].(string)
		if !ok {
			return errorResponse(c, http.StatusUnauthorized, "invalid token")
		}

		ref := actor.Ref{Guard: actor.Guard(guard), ID: uint(sub)}
		if ref.IsZero() {
			return errorResponse(c, http.StatusUnauthorized, "invalid token")
		}

		principal, err := m.Resolver.Resolve(c.Request().Context(), ref)
		if err != nil {
			return errorResponse(c, http.StatusInternalServerError, "cannot resolve actor")
		}

		c.Set(principalKey, principal)
		return next(c)
	}
}

func principalFrom(c echo.Context) policy.Principal {
	if p, ok := c.Get(principalKey).(policy.Principal); ok {
		return p
	}
	return policy.Principal{}
}
