package hubauth

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/entitlement"
	"github.com/wellbuilt/hubauth/passcode"
	"github.com/wellbuilt/hubauth/session"
	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration. Start from DefaultConfig and
// override what you need, or load it from YAML with LoadConfig.
type Config struct {
	Directory    DirectoryConfig    `yaml:"directory"`
	Session      SessionConfig      `yaml:"session"`
	Entitlement  EntitlementConfig  `yaml:"entitlement"`
	Registration RegistrationConfig `yaml:"registration"`
	Audit        AuditConfig        `yaml:"audit"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Logging      LoggingConfig      `yaml:"logging"`
}

/*
====================================
DIRECTORY CONFIG
====================================
*/

// DirectoryConfig points at the driver tree and the company document store.
type DirectoryConfig struct {
	// DatabaseURL is the root of the driver tree, for example
	// https://example-rtdb.firebaseio.com.
	DatabaseURL string `yaml:"database_url"`
	// DocumentsURL is the root of the company documents, ending in
	// /documents.
	DocumentsURL string `yaml:"documents_url"`
	// APIKey is sent as ?auth= on driver tree requests.
	APIKey string `yaml:"api_key"`
	// DocumentsAPIKey is sent as ?key= on document requests.
	DocumentsAPIKey string        `yaml:"documents_api_key"`
	Timeout         time.Duration `yaml:"timeout"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the secure session store.
type SessionConfig struct {
	// ReadTimeout bounds each key read during startup hydration.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// Dir holds the file-backed store when no other KV is supplied.
	// Empty means ~/.wellbuilt/secure.
	Dir string `yaml:"dir"`
	// RedisPrefix and DeviceID name the redis hash when a redis client is
	// supplied to the builder.
	RedisPrefix string `yaml:"redis_prefix"`
	DeviceID    string `yaml:"device_id"`
}

/*
====================================
ENTITLEMENT CONFIG
====================================
*/

// EntitlementConfig controls company config caching.
type EntitlementConfig struct {
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	CachePrefix        string        `yaml:"cache_prefix"`
	RequiredAppsPrefix string        `yaml:"required_apps_prefix"`
	// CacheNamespace prefixes every key in a redis-backed cache.
	CacheNamespace string `yaml:"cache_namespace"`
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig holds input rules and the approval poll interval.
type RegistrationConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	MinDisplayName    int           `yaml:"min_display_name"`
	PasscodeMinLength int           `yaml:"min_length"`
	PasscodeMaxLength int           `yaml:"max_length"`
}

/*
====================================
AUDIT / METRICS / LOGGING
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
	// Events limits auditing to these event types; empty audits all.
	Events []string `yaml:"events"`
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// LoggingConfig selects the log format used by logger.Setup.
type LoggingConfig struct {
	Dev bool `yaml:"dev"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. Directory URLs have no
// default and must be set.
func DefaultConfig() Config {
	return Config{
		Directory: DirectoryConfig{
			Timeout: directory.DefaultTimeout,
		},
		Session: SessionConfig{
			ReadTimeout: session.DefaultReadTimeout,
			RedisPrefix: "hubauth",
		},
		Entitlement: EntitlementConfig{
			CacheTTL:           entitlement.DefaultCacheTTL,
			CachePrefix:        entitlement.DefaultConfigPrefix,
			RequiredAppsPrefix: entitlement.DefaultRequiredAppsPrefix,
			CacheNamespace:     "hubauth:cache",
		},
		Registration: RegistrationConfig{
			PollInterval:      5 * time.Second,
			MinDisplayName:    2,
			PasscodeMinLength: passcode.DefaultMinLength,
			PasscodeMaxLength: passcode.DefaultMaxLength,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// LoadConfig decodes YAML from r over DefaultConfig and validates the
// result. Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML config from path.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	// Directory
	if err := validURL(c.Directory.DatabaseURL); err != nil {
		return fmt.Errorf("directory database_url: %w", err)
	}
	if err := validURL(c.Directory.DocumentsURL); err != nil {
		return fmt.Errorf("directory documents_url: %w", err)
	}
	if c.Directory.Timeout <= 0 {
		return errors.New("directory timeout must be > 0")
	}

	// Session
	if c.Session.ReadTimeout <= 0 {
		return errors.New("session read_timeout must be > 0")
	}

	// Entitlement
	if c.Entitlement.CacheTTL <= 0 {
		return errors.New("entitlement cache_ttl must be > 0")
	}
	if c.Entitlement.CachePrefix == "" || c.Entitlement.RequiredAppsPrefix == "" {
		return errors.New("entitlement cache prefixes must be set")
	}
	if c.Entitlement.CachePrefix == c.Entitlement.RequiredAppsPrefix {
		return errors.New("entitlement cache prefixes must differ")
	}

	// Registration
	if c.Registration.PollInterval <= 0 {
		return errors.New("registration poll_interval must be > 0")
	}
	if c.Registration.MinDisplayName < 1 {
		return errors.New("registration min_display_name must be >= 1")
	}
	if c.Registration.PasscodeMinLength < 1 {
		return errors.New("registration min_length must be >= 1")
	}
	if c.Registration.PasscodeMaxLength < c.Registration.PasscodeMinLength {
		return errors.New("registration max_length must be >= min_length")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer_size must be > 0 when audit is enabled")
	}
	for _, ev := range c.Audit.Events {
		if !knownAuditEvent(ev) {
			return fmt.Errorf("audit events: unknown event type %q", ev)
		}
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("metrics latency histograms require metrics to be enabled")
	}

	return nil
}

// clone copies c, including its slices.
func (c Config) clone() Config {
	out := c
	if c.Audit.Events != nil {
		out.Audit.Events = append([]string(nil), c.Audit.Events...)
	}
	return out
}

func validURL(raw string) error {
	if raw == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func (c Config) passcodePolicy() passcode.Policy {
	return passcode.Policy{
		MinLength: c.Registration.PasscodeMinLength,
		MaxLength: c.Registration.PasscodeMaxLength,
	}
}
