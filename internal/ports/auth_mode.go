package ports

import (
	"errors"
	"strings"
)

// AuthMode selects how a request's caller identity is established.
type AuthMode string

const (
	AuthModeNone    AuthMode = "none"
	AuthModeAPIKey  AuthMode = "api_key"
	AuthModeCognito AuthMode = "cognito"
)

// ParseAuthMode accepts the AUTH_MODE values case-insensitively. Empty means none.
func ParseAuthMode(value string) (AuthMode, error) {
	mode := AuthMode(strings.ToLower(strings.TrimSpace(value)))
	switch mode {
	case "":
		return AuthModeNone, nil
	case AuthModeNone, AuthModeAPIKey, AuthModeCognito:
		return mode, nil
	default:
		return "", errors.New("invalid auth mode")
	}
}
