package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stagehand/backline/internal/handlers"
)

type Deps struct {
	DB            *gorm.DB
	Auth          *handlers.AuthMiddleware
	UserHandler   *handlers.UserHandler
	AdminHandler  *handlers.AdminHandler
	ArtistHandler *handlers.ArtistHandler
	OAuthHandler  *handlers.OAuthHandler
	UploadHandler *handlers.UploadHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1", d.Auth.RequireActor)

	users := v1.Group("/users")
	users.GET("", d.UserHandler.List)
	users.POST("", d.UserHandler.Create)
	users.GET("/:id", d.UserHandler.Get)
	users.PATCH("/:id", d.UserHandler.Update)
	users.DELETE("/:id", d.UserHandler.Delete)
	users.POST("/:id/restore", d.UserHandler.Restore)
	users.DELETE("/:id/force", d.UserHandler.ForceDelete)
	users.POST("/:id/photo", d.UserHandler.AddPhoto)
	users.DELETE("/:id/photo", d.UserHandler.RemovePhoto)
	users.POST("/:id/password-reset", d.UserHandler.SendPasswordReset)

	admins := v1.Group("/admins")
	admins.GET("", d.AdminHandler.List)
	admins.POST("", d.AdminHandler.Create)
	admins.GET("/:id", d.AdminHandler.Get)
	admins.PATCH("/:id", d.AdminHandler.Update)
	admins.DELETE("/:id", d.AdminHandler.Delete)
	admins.POST("/:id/restore", d.AdminHandler.Restore)
	admins.DELETE("/:id/force", d.AdminHandler.ForceDelete)
	admins.POST("/:id/photo", d.AdminHandler.AddPhoto)
	admins.DELETE("/:id/photo", d.AdminHandler.RemovePhoto)
	admins.POST("/:id/password-reset", d.AdminHandler.SendPasswordReset)

	artists := v1.Group("/artists")
	artists.GET("", d.ArtistHandler.List)
	artists.GET("/search", d.ArtistHandler.Search)
	artists.POST("", d.ArtistHandler.Create)
	artists.GET("/:id", d.ArtistHandler.Get)
	artists.PATCH("/:id", d.ArtistHandler.Update)
	artists.DELETE("/:id", d.ArtistHandler.Delete)
	artists.POST("/:id/restore", d.ArtistHandler.Restore)
	artists.DELETE("/:id/force", d.ArtistHandler.ForceDelete)
	artists.POST("/:id/photo", d.ArtistHandler.AddPhoto)
	artists.DELETE("/:id/photo", d.ArtistHandler.RemovePhoto)

	oauth := v1.Group("/oauth")
	oauth.POST("/:provider/callback", d.OAuthHandler.Callback)
	oauth.GET("/:provider/token", d.OAuthHandler.AccessToken)
	oauth.DELETE("/:provider", d.OAuthHandler.Disconnect)

	v1.POST("/uploads", d.UploadHandler.Upload)
}
