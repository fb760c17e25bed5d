package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/8b-is/feedgate/internal/core"
	"github.com/8b-is/feedgate/internal/credential"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	AuditMemory = "memory"
	AuditFile   = "file"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Agents    []core.Agent    `yaml:"agents"`
	Admins    []core.Admin    `yaml:"admins"`
	Audit     AuditConfig     `yaml:"audit"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// TrustProxyHeaders makes the client address come from X-Forwarded-For / X-Real-IP.
	// Only enable this behind a proxy that sets them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

type AuthConfig struct {
	// SigningKey is the HMAC key for session tokens.
	// If empty, a random key is generated at startup and tokens do not survive restarts.
	SigningKey string `yaml:"signing_key"`

	TokenLifetime time.Duration `yaml:"token_lifetime"`

	// AdminRateLimit is the per-minute ceiling applied to admin sessions.
	AdminRateLimit int `yaml:"admin_rate_limit"`
}

type RateLimitConfig struct {
	// DefaultRequests and DefaultWindow apply to anonymous routes and to
	// tokens whose subject is no longer registered.
	DefaultRequests int           `yaml:"default_requests"`
	DefaultWindow   time.Duration `yaml:"default_window"`

	// AuthRequests is the per-window ceiling of the token exchange and login routes.
	AuthRequests int `yaml:"auth_requests"`

	// JanitorInterval controls how often expired local windows and token records
	// are dropped. 0 means the default of one minute; a negative value disables the
	// schedule and leaves the janitor tasks trigger-only.
	JanitorInterval time.Duration `yaml:"janitor_interval"`

	Store StoreConfig `yaml:"store"`
}

// StoreConfig selects the counter store. Backend specific options are kept in Config.
type StoreConfig struct {
	Type    string        `yaml:"type"` // "memory" or "redis"
	Timeout time.Duration `yaml:"timeout"`

	// RecheckInterval > 0 periodically checks a failed store and switches back to it.
	RecheckInterval time.Duration `yaml:"recheck_interval"`

	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the .env file (if any), expands ${VAR} references in the configuration file
// at the given path and parses it.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment references in data and decodes it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Auth.TokenLifetime == 0 {
		c.Auth.TokenLifetime = 24 * time.Hour
	}
	if c.Auth.AdminRateLimit == 0 {
		c.Auth.AdminRateLimit = 1000
	}
	if c.RateLimit.DefaultRequests == 0 {
		c.RateLimit.DefaultRequests = 60
	}
	if c.RateLimit.DefaultWindow == 0 {
		c.RateLimit.DefaultWindow = time.Minute
	}
	if c.RateLimit.AuthRequests == 0 {
		c.RateLimit.AuthRequests = 10
	}
	if c.RateLimit.JanitorInterval == 0 {
		c.RateLimit.JanitorInterval = time.Minute
	}
	if c.RateLimit.Store.Type == "" {
		c.RateLimit.Store.Type = StoreMemory
	}
	if c.RateLimit.Store.Timeout == 0 {
		c.RateLimit.Store.Timeout = 500 * time.Millisecond
	}
	if c.Audit.Type == "" {
		c.Audit.Type = AuditMemory
	}
	for i := range c.Agents {
		if c.Agents[i].RateLimit == 0 {
			c.Agents[i].RateLimit = c.RateLimit.DefaultRequests
		}
	}
}

func (c *Config) Validate() error {
	if c.Auth.TokenLifetime < 0 {
		return fmt.Errorf("auth.token_lifetime must be positive, got %s", c.Auth.TokenLifetime)
	}
	if c.Auth.AdminRateLimit < 0 {
		return fmt.Errorf("auth.admin_rate_limit must be positive, got %d", c.Auth.AdminRateLimit)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("validating rate_limit: %w", err)
	}

	agentIDs := make(map[string]struct{}, len(c.Agents))
	for idx, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent at index %d has empty id", idx)
		}
		if _, dup := agentIDs[a.ID]; dup {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		agentIDs[a.ID] = struct{}{}

		if a.RateLimit < 0 {
			return fmt.Errorf("agent %q has negative rate_limit %d", a.ID, a.RateLimit)
		}
		for _, p := range a.Permissions {
			if p == "" {
				return fmt.Errorf("agent %q has an empty permission", a.ID)
			}
		}
	}

	usernames := make(map[string]struct{}, len(c.Admins))
	for idx, adm := range c.Admins {
		if adm.Username == "" {
			return fmt.Errorf("admin at index %d has empty username", idx)
		}
		if _, dup := usernames[adm.Username]; dup {
			return fmt.Errorf("duplicate admin username %q", adm.Username)
		}
		usernames[adm.Username] = struct{}{}

		if !credential.ValidPasswordHash(adm.PasswordHash) {
			return fmt.Errorf("admin %q has an invalid password_hash (want sha256 hex or bcrypt)", adm.Username)
		}
	}

	if c.Audit.Enabled {
		switch c.Audit.Type {
		case AuditMemory:
		case AuditFile:
			if c.Audit.Path == "" {
				return fmt.Errorf("audit.path is required for file auditor")
			}
		default:
			return fmt.Errorf("unknown audit type %q", c.Audit.Type)
		}
	}

	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.DefaultRequests < 0 {
		return fmt.Errorf("default_requests must be positive, got %d", r.DefaultRequests)
	}
	if r.DefaultWindow < time.Second {
		return fmt.Errorf("default_window must be at least 1s, got %s", r.DefaultWindow)
	}
	if r.AuthRequests < 0 {
		return fmt.Errorf("auth_requests must be positive, got %d", r.AuthRequests)
	}

	switch r.Store.Type {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown store type %q", r.Store.Type)
	}
	if r.Store.Timeout < 0 {
		return fmt.Errorf("store.timeout must not be negative, got %s", r.Store.Timeout)
	}
	if r.Store.RecheckInterval < 0 {
		return fmt.Errorf("store.recheck_interval must not be negative, got %s", r.Store.RecheckInterval)
	}
	return nil
}

// GenerateMissingSecrets assigns a random secret to every agent without one
// and returns the ids of those agents.
func (c *Config) GenerateMissingSecrets() ([]string, error) {
	var ids []string
	for i := range c.Agents {
		if c.Agents[i].Secret != "" {
			continue
		}
		secret, err := credential.GenerateSecret()
		if err != nil {
			return nil, fmt.Errorf("generating secret for agent %q: %w", c.Agents[i].ID, err)
		}
		c.Agents[i].Secret = secret
		ids = append(ids, c.Agents[i].ID)
	}
	return ids, nil
}
