// Package trust holds the static allowlist of recognized caller
// identities and the tiered rate-limit table. It is built once at startup
// and read-only during request handling.
package trust

import "strings"

// Tier is a named rate-limit class.
type Tier string

const (
	// TierUser is the default tier for end-user callers.
	TierUser Tier = "user"

	// TierTrustedService is the tier for pre-registered platform services.
	TierTrustedService Tier = "trusted-service"

	// TierAutonomous is the tier for autonomous agents and monitors,
	// which poll at machine rates.
	TierAutonomous Tier = "autonomous"
)

// Default requests-per-minute ceilings per tier.
const (
	DefaultUserLimit           = 100
	DefaultTrustedServiceLimit = 500
	DefaultAutonomousLimit     = 1000
)

// Source is a caller identity registered in the trust registry.
type Source struct {
	// Name is the caller's source name presented on every request.
	Name string `yaml:"name"`

	// CredentialKind describes how the source authenticates
	// (e.g. "shared-secret", "service-credential").
	CredentialKind string `yaml:"credential_kind"`

	// Tier is the registered rate-limit tier. Empty means TierUser.
	Tier Tier `yaml:"tier"`
}

// Registry is the immutable allowlist of trusted sources plus the
// per-tier limit table.
type Registry struct {
	sources map[string]Source
	limits  map[Tier]int
}

// NewRegistry builds a registry from the given sources. Limit overrides
// replace the defaults for the tiers they name.
func NewRegistry(sources []Source, limitOverrides map[Tier]int) *Registry {
	r := &Registry{
		sources: make(map[string]Source, len(sources)),
		limits: map[Tier]int{
			TierUser:           DefaultUserLimit,
			TierTrustedService: DefaultTrustedServiceLimit,
			TierAutonomous:     DefaultAutonomousLimit,
		},
	}
	for _, s := range sources {
		if s.Tier == "" {
			s.Tier = TierUser
		}
		r.sources[s.Name] = s
	}
	for tier, limit := range limitOverrides {
		if limit > 0 {
			r.limits[tier] = limit
		}
	}
	return r
}

// Lookup returns the registered source by name.
func (r *Registry) Lookup(name string) (Source, bool) {
	s, ok := r.sources[name]
	return s, ok
}

// IsTrusted reports whether the source name is registered.
func (r *Registry) IsTrusted(name string) bool {
	_, ok := r.sources[name]
	return ok
}

// TierFor resolves the rate-limit tier for a source name. Registered
// sources use their registered tier; names following the autonomous-agent
// naming convention (containing "autonomous" or "monitor") classify as
// TierAutonomous even when unregistered. Everything else is TierUser.
func (r *Registry) TierFor(name string) Tier {
	if isAutonomousName(name) {
		return TierAutonomous
	}
	if s, ok := r.sources[name]; ok {
		return s.Tier
	}
	return TierUser
}

// LimitFor returns the requests-per-minute ceiling for a tier.
func (r *Registry) LimitFor(tier Tier) int {
	if limit, ok := r.limits[tier]; ok {
		return limit
	}
	return r.limits[TierUser]
}

// Len returns the number of registered sources.
func (r *Registry) Len() int { return len(r.sources) }

func isAutonomousName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "autonomous") || strings.Contains(lower, "monitor")
}
