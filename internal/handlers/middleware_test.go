package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/stagehand/backline/internal/actor"
	"github.com/stagehand/backline/internal/models"
	"github.com/stagehand/backline/internal/policy"
)

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return raw
}

func TestRequireActor(t *testing.T) {
	secret := []byte("test-secret")
	db := initTestDB(t)

	perm := models.Permission{Name: "users.viewAny", GuardName: "admin"}
	require.NoError(t, db.Create(&perm).Error)
	require.NoError(t, db.Create(&models.ActorPermission{ActorGuard: "admin", ActorID: 5, PermissionID: perm.ID}).Error)

	mw := &AuthMiddleware{JWTSecret: secret, Resolver: &policy.Resolver{DB: db}}

	var seen policy.Principal
	next := func(c echo.Context) error {
		seen = principalFrom(c)
		return c.NoContent(http.StatusOK)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, jwt.MapClaims{"sub": float64(5), "guard": "admin"}))
	rec := httptest.NewRecorder()

	require.NoError(t, mw.RequireActor(next)(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, actor.Ref{Guard: actor.GuardAdmin, ID: 5}, seen.Ref)
	require.True(t, seen.Can("users.viewAny"))
}

func TestRequireActorRejections(t *testing.T) {
	secret := []byte("test-secret")
	mw := &AuthMiddleware{JWTSecret: secret, Resolver: &policy.Resolver{DB: initTestDB(t)}}
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e := echo.New()

	run := func(authorization string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		require.NoError(t, mw.RequireActor(next)(e.NewContext(req, rec)))
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, run(""))
	require.Equal(t, http.StatusUnauthorized, run("Bearer garbage"))

	wrongKey := signToken(t, []byte("other-secret"), jwt.MapClaims{"sub": float64(1), "guard": "user"})
	require.Equal(t, http.StatusUnauthorized, run("Bearer "+wrongKey))

	badGuard := signToken(t, secret, jwt.MapClaims{"sub": float64(1), "guard": "robot"})
	require.Equal(t, http.StatusUnauthorized, run("Bearer "+badGuard))

	noSub := signToken(t, secret, jwt.MapClaims{"guard": "user"})
	require.Equal(t, http.StatusUnauthorized, run("Bearer "+noSub))
}
