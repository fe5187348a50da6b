package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"app-access/internal/ports"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderAPIKey    = "X-Api-Key"
)

// AuthMiddleware establishes the caller identity. In none and api_key modes
// the identity is taken from the X-User-Id and X-User-Email headers set by a
// trusted upstream; api_key additionally requires a matching X-Api-Key.
func AuthMiddleware(mode ports.AuthMode, apiKey string, cognito echo.MiddlewareFunc) (echo.MiddlewareFunc, error) {
	switch mode {
	case ports.AuthModeNone:
	case ports.AuthModeAPIKey:
		if apiKey == "" {
			return nil, errors.New("API_KEY is required when AUTH_MODE=api_key")
		}
	case ports.AuthModeCognito:
		if cognito == nil {
			return nil, errors.New("cognito middleware is required when AUTH_MODE=cognito")
		}
	default:
		return nil, errors.New("invalid auth mode")
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch mode {
			case ports.AuthModeNone:
				return next(withHeaderIdentity(c))
			case ports.AuthModeAPIKey:
				got := c.Request().Header.Get(HeaderAPIKey)
				if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
				}
				return next(withHeaderIdentity(c))
			case ports.AuthModeCognito:
				return cognito(next)(c)
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "invalid auth mode")
			}
		}
	}, nil
}

func withHeaderIdentity(c echo.Context) echo.Context {
	id := ports.Identity{
		UserID: strings.TrimSpace(c.Request().Header.Get(HeaderUserID)),
		Email:  strings.TrimSpace(c.Request().Header.Get(HeaderUserEmail)),
	}
	if id.IsZero() {
		return c
	}
	return SetIdentity(c, id)
}

// SetIdentity records id on both the echo context and the request context.
func SetIdentity(c echo.Context, id ports.Identity) echo.Context {
	c.Set("user_id", id.UserID)
	c.Set("user_email", id.Email)
	c.SetRequest(c.Request().WithContext(ports.WithIdentity(c.Request().Context(), id)))
	return c
}
