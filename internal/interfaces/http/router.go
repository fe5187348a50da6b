package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Middleware struct {
	Auth          echo.MiddlewareFunc
	XRay          echo.MiddlewareFunc
	RequestLogger echo.MiddlewareFunc
}

func newEcho(m Middleware) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if m.XRay != nil {
		e.Use(m.XRay)
	}
	if m.RequestLogger != nil {
		e.Use(m.RequestLogger)
	}
	return e
}

// NewMainRouter mounts every route. Only /api is behind the auth middleware.
func NewMainRouter(userApps *UserAppsHandler, admin *AdminHandler, marketplace *MarketplaceHandler, m Middleware) *echo.Echo {
	e := newEcho(m)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(stdhttp.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	if m.Auth != nil {
		api.Use(m.Auth)
	}
	api.Any("/user-apps", userApps.Update)
	api.GET("/admin/permissions", admin.Permissions)
	api.GET("/apps", marketplace.Apps)
	api.GET("/users/:user_id/apps", marketplace.UserApps)
	return e
}
