package config

import (
	"maps"
	"net/url"
	"strings"
)

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Server.Admin.TokenHash != "" {
		sanitized.Server.Admin.TokenHash = maskSecret(sanitized.Server.Admin.TokenHash)
	}

	if len(cfg.Auth.Users) > 0 {
		sanitized.Auth.Users = maps.Clone(cfg.Auth.Users)
		for name := range sanitized.Auth.Users {
			sanitized.Auth.Users[name] = "****"
		}
	}

	if u, err := url.Parse(cfg.Auth.BridgeURL); err == nil && u.User != nil {
		u.User = url.User(u.User.Username())
		sanitized.Auth.BridgeURL = u.String()
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
