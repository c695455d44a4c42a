// Package authguard validates caller credentials against the trust
// registry before any other pipeline stage runs.
package authguard

import (
	"context"
	"crypto/subtle"

	"github.com/assistdeck/gateway/internal/errors"
	"github.com/assistdeck/gateway/internal/logging"
	"github.com/assistdeck/gateway/internal/trust"
)

// Credential is a caller's presented identity material.
type Credential struct {
	// Token is the secret the caller presents: either the internal
	// service credential or the gateway's shared source key.
	Token string

	// SourceName is the caller's registered source name.
	SourceName string
}

// Config configures the auth guard.
type Config struct {
	// TestingMode disables authentication entirely. The bypass is
	// logged on every request so it can never pass silently.
	TestingMode bool

	// ServiceCredential is the internal service-to-service credential.
	ServiceCredential string

	// SharedSecret is the gateway's shared source key; valid only
	// together with a registered source name.
	SharedSecret string
}

// Guard authenticates callers.
type Guard struct {
	cfg      Config
	registry *trust.Registry
	logger   *logging.Logger
}

// New creates an auth guard.
func New(cfg Config, registry *trust.Registry, logger *logging.Logger) *Guard {
	return &Guard{cfg: cfg, registry: registry, logger: logger}
}

// Authenticate returns nil when the credential is accepted and an
// Unauthorized error otherwise. Nothing downstream of the guard runs, and
// no rate-limit counter moves, for a rejected credential.
func (g *Guard) Authenticate(ctx context.Context, cred Credential) error {
	if g.cfg.TestingMode {
		g.logger.LogSecurityEvent(ctx, "auth_bypass_testing_mode", map[string]interface{}{
			"source": cred.SourceName,
		})
		return nil
	}

	if cred.Token == "" {
		return errors.Unauthorized("missing credential")
	}

	if g.cfg.ServiceCredential != "" && secureEqual(cred.Token, g.cfg.ServiceCredential) {
		return nil
	}

	if g.cfg.SharedSecret != "" && secureEqual(cred.Token, g.cfg.SharedSecret) {
		if g.registry.IsTrusted(cred.SourceName) {
			return nil
		}
		g.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"source": cred.SourceName,
		}).Warn("source key valid but source not registered")
	}

	return errors.Unauthorized("caller not recognized")
}

// secureEqual compares two secrets in constant time.
func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
