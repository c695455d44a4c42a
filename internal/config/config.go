// Package config loads the gateway's process-wide configuration. The
// Config is built once at startup and immutable afterwards; changing it
// requires a restart, which keeps request handling free of config
// synchronization.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/assistdeck/gateway/internal/rules"
	"github.com/assistdeck/gateway/internal/trust"
)

// Config is the immutable gateway configuration.
type Config struct {
	// ListenAddr is the HTTP front's bind address.
	ListenAddr string

	// TestingMode disables auth, rate limiting and schema protection.
	TestingMode bool

	// SharedSecret is the gateway's internal source key.
	SharedSecret string

	// ServiceCredential is the internal service-to-service credential.
	ServiceCredential string

	// RedisAddr selects the Redis counter store when non-empty;
	// otherwise the in-memory store is used.
	RedisAddr string

	// Supabase connection for the audit store and registry loading.
	SupabaseURL        string
	SupabaseServiceKey string

	// SchemaManagerURL is the schema-management collaborator endpoint
	// (validator + fixer). Empty disables delegated validation.
	SchemaManagerURL string

	// DownstreamTimeout bounds each routed handler invocation.
	DownstreamTimeout time.Duration

	// LogLevel and LogFormat configure the logger.
	LogLevel  string
	LogFormat string

	// TierLimits overrides the default requests-per-minute ceilings.
	TierLimits map[trust.Tier]int

	// TrustedSources is the startup trust registry.
	TrustedSources []trust.Source

	// ExtraRules extends the built-in destructive-operation table.
	ExtraRules []rules.Spec

	// Targets maps downstream handler names to their function URLs.
	Targets map[string]string
}

// fileConfig is the YAML file layout. The file supplies the registry,
// tier overrides, rule extensions and target URLs; secrets stay in the
// environment.
type fileConfig struct {
	TierLimits     map[string]int    `yaml:"tier_limits"`
	TrustedSources []trust.Source    `yaml:"trusted_sources"`
	ExtraRules     []rules.Spec      `yaml:"extra_rules"`
	Targets        map[string]string `yaml:"targets"`
}

// Load builds the configuration from the environment plus the optional
// YAML file named by GATEWAY_CONFIG_FILE.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:         getEnv("GATEWAY_LISTEN_ADDR", ":8080"),
		TestingMode:        getEnvBool("TESTING_MODE", false),
		SharedSecret:       os.Getenv("GATEWAY_SHARED_SECRET"),
		ServiceCredential:  os.Getenv("SERVICE_CREDENTIAL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		SchemaManagerURL:   os.Getenv("SCHEMA_MANAGER_URL"),
		DownstreamTimeout:  getEnvDuration("DOWNSTREAM_TIMEOUT", 30*time.Second),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		TierLimits:         make(map[trust.Tier]int),
		Targets:            make(map[string]string),
	}

	if path := os.Getenv("GATEWAY_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if !cfg.TestingMode && cfg.SharedSecret == "" && cfg.ServiceCredential == "" {
		return nil, fmt.Errorf("GATEWAY_SHARED_SECRET or SERVICE_CREDENTIAL is required outside testing mode")
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	for tier, limit := range fc.TierLimits {
		c.TierLimits[trust.Tier(tier)] = limit
	}
	c.TrustedSources = append(c.TrustedSources, fc.TrustedSources...)
	c.ExtraRules = append(c.ExtraRules, fc.ExtraRules...)
	for target, u := range fc.Targets {
		c.Targets[target] = u
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
