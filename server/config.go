// ABOUTME: Replay server configuration loaded from KICKSIGHT_* environment variables.
// ABOUTME: Enforces security constraint: remote access requires auth token.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	ErrRemoteWithoutToken = errors.New(
		"KICKSIGHT_ALLOW_REMOTE is true but KICKSIGHT_AUTH_TOKEN is not set; refusing to start without authentication",
	)
	ErrNonLoopbackBind = errors.New(
		"KICKSIGHT_BIND is a non-loopback address but KICKSIGHT_ALLOW_REMOTE is not true; set KICKSIGHT_ALLOW_REMOTE=true and KICKSIGHT_AUTH_TOKEN to allow remote access",
	)
)

// Config holds replay server configuration loaded from environment variables.
type Config struct {
	Bind        string // Socket address (KICKSIGHT_BIND, default: 127.0.0.1:8899)
	AllowRemote bool   // Allow non-loopback connections (KICKSIGHT_ALLOW_REMOTE, default: false)
	AuthToken   string // Bearer token for API auth (KICKSIGHT_AUTH_TOKEN, optional)
	ScenarioDir string // Directory of YAML replay scenarios (KICKSIGHT_SCENARIOS, optional)
}

// ConfigFromEnv loads configuration from KICKSIGHT_* environment variables
// with sensible defaults.
func ConfigFromEnv() (*Config, error) {
	bind := envOrDefault("KICKSIGHT_BIND", "127.0.0.1:8899")

	allowRemote := false
	if v := os.Getenv("KICKSIGHT_ALLOW_REMOTE"); v == "true" || v == "1" || v == "yes" {
		allowRemote = true
	}

	authToken := nonEmptyEnv("KICKSIGHT_AUTH_TOKEN")
	scenarioDir := nonEmptyEnv("KICKSIGHT_SCENARIOS")

	// Security: remote access requires auth token
	if allowRemote && authToken == "" {
		return nil, ErrRemoteWithoutToken
	}

	// Security: refuse non-loopback binds unless explicitly opting into remote
	// access. Checks both IP literals and hostnames; only 127.0.0.0/8, ::1,
	// and "localhost" are considered safe.
	if !allowRemote {
		if host, _, err := net.SplitHostPort(bind); err == nil && host != "" {
			ip := net.ParseIP(host)
			switch {
			case ip != nil && ip.IsLoopback():
				// Safe: 127.x.x.x or ::1
			case ip != nil:
				return nil, fmt.Errorf("%w: KICKSIGHT_BIND=%s", ErrNonLoopbackBind, bind)
			case host == "localhost":
				// Safe: conventional loopback hostname
			default:
				return nil, fmt.Errorf("%w: KICKSIGHT_BIND=%s", ErrNonLoopbackBind, bind)
			}
		}
	}

	return &Config{
		Bind:        bind,
		AllowRemote: allowRemote,
		AuthToken:   authToken,
		ScenarioDir: scenarioDir,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func nonEmptyEnv(key string) string {
	return os.Getenv(key)
}
