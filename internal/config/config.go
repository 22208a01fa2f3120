// Package config loads and validates inspectbot configuration from
// environment variables, in the same style as its sibling services:
// string helpers with defaults, a Validate() that joins all violations,
// and mutable runtime-tunable fields guarded by an RWMutex.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"
)

// Config holds all inspectbot configuration. Mutable fields (RequestTTL,
// RequestDelay) are protected by an RWMutex and must be accessed via
// getter/setter methods at runtime, since bot goroutines read them while
// an operational API may write them.
type Config struct {
	// Accounts bootstrap
	AccountsFile string // path to YAML file listing bot credentials

	// HTTP
	ListenAddr string

	// Logging
	LogJSON bool

	// Metrics
	MetricsEnabled  bool
	MetricsTextfile string // optional node_exporter textfile collector path

	// Storage (proxy bot->name assignment persistence)
	DBPath string

	// Login / GC reconnection
	MaxLoginRetries        int
	LoginRetryDelay        time.Duration
	MaxGcReconnectAttempts int
	GcReconnectDelay       time.Duration

	// Scheduled refresh
	RefreshInterval time.Duration
	RefreshJitter   time.Duration
	GcInactivityMax time.Duration

	// Health monitor
	HealthCheckInterval time.Duration
	HealthCheckSchedule string // optional cron expression, validated but not executed (see Validate)

	// Proxy control plane
	ClashAPIURL           string
	ClashSecret           string
	ProxyPort             int
	ProxySwitchCooldown   time.Duration
	ProxyAssignmentMode   string // "daemon" or "round_robin"
	ProxyNames            string // comma-separated names for round_robin mode

	// Startup barrier
	InitializationTimeout time.Duration

	// mu protects the mutable runtime-tunable fields below.
	mu           sync.RWMutex
	requestTTL   time.Duration // inspect reply deadline
	requestDelay time.Duration // post-reply busy cooldown
}

// NewTestConfig creates a Config with sensible defaults for testing.
// Use the setter methods to override specific values.
func NewTestConfig() *Config {
	return &Config{
		MaxLoginRetries:        5,
		LoginRetryDelay:        5 * time.Second,
		MaxGcReconnectAttempts: 10,
		GcReconnectDelay:       10 * time.Second,
		RefreshInterval:        30 * time.Minute,
		RefreshJitter:          4 * time.Minute,
		GcInactivityMax:        10 * time.Minute,
		HealthCheckInterval:    60 * time.Second,
		ProxySwitchCooldown:    5 * time.Second,
		ProxyAssignmentMode:    "round_robin",
		InitializationTimeout:  5 * time.Minute,
		ListenAddr:             ":8080",
		requestTTL:             5 * time.Second,
		requestDelay:           500 * time.Millisecond,
	}
}

// Load reads all configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		AccountsFile:           envStr("INSPECTBOT_ACCOUNTS_FILE", "accounts.yaml"),
		ListenAddr:             envStr("INSPECTBOT_LISTEN_ADDR", ":8080"),
		LogJSON:                envBool("INSPECTBOT_LOG_JSON", true),
		MetricsEnabled:         envBool("INSPECTBOT_METRICS", false),
		MetricsTextfile:        envStr("INSPECTBOT_METRICS_TEXTFILE", ""),
		DBPath:                 envStr("INSPECTBOT_DB_PATH", "/data/inspectbot.db"),
		MaxLoginRetries:        envInt("INSPECTBOT_MAX_LOGIN_RETRIES", 5),
		LoginRetryDelay:        envDuration("INSPECTBOT_LOGIN_RETRY_DELAY", 5*time.Second),
		MaxGcReconnectAttempts: envInt("INSPECTBOT_MAX_GC_RECONNECT_ATTEMPTS", 10),
		GcReconnectDelay:       envDuration("INSPECTBOT_GC_RECONNECT_DELAY", 10*time.Second),
		RefreshInterval:        envDuration("INSPECTBOT_REFRESH_INTERVAL", 30*time.Minute),
		RefreshJitter:          envDuration("INSPECTBOT_REFRESH_JITTER", 4*time.Minute),
		GcInactivityMax:        envDuration("INSPECTBOT_GC_INACTIVITY_MAX", 10*time.Minute),
		HealthCheckInterval:    envDuration("INSPECTBOT_HEALTH_CHECK_INTERVAL", 60*time.Second),
		HealthCheckSchedule:    envStr("INSPECTBOT_HEALTH_CHECK_SCHEDULE", ""),
		ClashAPIURL:            envStr("INSPECTBOT_CLASH_API_URL", ""),
		ClashSecret:            envStr("INSPECTBOT_CLASH_SECRET", ""),
		ProxyPort:              envInt("INSPECTBOT_PROXY_PORT", 0),
		ProxySwitchCooldown:    envDuration("INSPECTBOT_PROXY_SWITCH_COOLDOWN", 5*time.Second),
		ProxyAssignmentMode:    envStr("INSPECTBOT_PROXY_ASSIGNMENT_MODE", "round_robin"),
		ProxyNames:             envStr("INSPECTBOT_PROXY_NAMES", ""),
		InitializationTimeout:  envDuration("INSPECTBOT_INITIALIZATION_TIMEOUT", 5*time.Minute),
		requestTTL:             envDuration("INSPECTBOT_REQUEST_TTL", 5*time.Second),
		requestDelay:           envDuration("INSPECTBOT_REQUEST_DELAY", 500*time.Millisecond),
	}
}

// Validate checks configuration for invalid values.
func (c *Config) Validate() error {
	c.mu.RLock()
	ttl := c.requestTTL
	delay := c.requestDelay
	c.mu.RUnlock()

	var errs []error
	if c.MaxLoginRetries < 0 {
		errs = append(errs, fmt.Errorf("INSPECTBOT_MAX_LOGIN_RETRIES must be >= 0, got %d", c.MaxLoginRetries))
	}
	if c.LoginRetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("INSPECTBOT_LOGIN_RETRY_DELAY must be > 0, got %s", c.LoginRetryDelay))
	}
	if c.MaxGcReconnectAttempts < 0 {
		errs = append(errs, fmt.Errorf("INSPECTBOT_MAX_GC_RECONNECT_ATTEMPTS must be >= 0, got %d", c.MaxGcReconnectAttempts))
	}
	if c.GcReconnectDelay <= 0 {
		errs = append(errs, fmt.Errorf("INSPECTBOT_GC_RECONNECT_DELAY must be > 0, got %s", c.GcReconnectDelay))
	}
	if ttl <= 0 {
		errs = append(errs, fmt.Errorf("INSPECTBOT_REQUEST_TTL must be > 0, got %s", ttl))
	}
	if delay < 0 {
		errs = append(errs, fmt.Errorf("INSPECTBOT_REQUEST_DELAY must be >= 0, got %s", delay))
	}
	switch c.ProxyAssignmentMode {
	case "daemon", "round_robin":
		// valid
	default:
		errs = append(errs, fmt.Errorf("INSPECTBOT_PROXY_ASSIGNMENT_MODE must be daemon or round_robin, got %q", c.ProxyAssignmentMode))
	}
	if c.ProxyAssignmentMode == "daemon" && c.ClashAPIURL == "" {
		errs = append(errs, fmt.Errorf("INSPECTBOT_CLASH_API_URL is required when INSPECTBOT_PROXY_ASSIGNMENT_MODE=daemon"))
	}
	if c.HealthCheckSchedule != "" {
		parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.HealthCheckSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid INSPECTBOT_HEALTH_CHECK_SCHEDULE: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Values returns all configuration as a string map for display.
func (c *Config) Values() map[string]string {
	c.mu.RLock()
	ttl := c.requestTTL
	delay := c.requestDelay
	c.mu.RUnlock()

	return map[string]string{
		"INSPECTBOT_ACCOUNTS_FILE":                c.AccountsFile,
		"INSPECTBOT_LISTEN_ADDR":                  c.ListenAddr,
		"INSPECTBOT_LOG_JSON":                     fmt.Sprintf("%t", c.LogJSON),
		"INSPECTBOT_METRICS":                       fmt.Sprintf("%t", c.MetricsEnabled),
		"INSPECTBOT_DB_PATH":                       c.DBPath,
		"INSPECTBOT_MAX_LOGIN_RETRIES":             fmt.Sprintf("%d", c.MaxLoginRetries),
		"INSPECTBOT_LOGIN_RETRY_DELAY":             c.LoginRetryDelay.String(),
		"INSPECTBOT_MAX_GC_RECONNECT_ATTEMPTS":     fmt.Sprintf("%d", c.MaxGcReconnectAttempts),
		"INSPECTBOT_GC_RECONNECT_DELAY":            c.GcReconnectDelay.String(),
		"INSPECTBOT_REFRESH_INTERVAL":              c.RefreshInterval.String(),
		"INSPECTBOT_REFRESH_JITTER":                c.RefreshJitter.String(),
		"INSPECTBOT_GC_INACTIVITY_MAX":             c.GcInactivityMax.String(),
		"INSPECTBOT_HEALTH_CHECK_INTERVAL":         c.HealthCheckInterval.String(),
		"INSPECTBOT_HEALTH_CHECK_SCHEDULE":         c.HealthCheckSchedule,
		"INSPECTBOT_CLASH_API_URL":                 c.ClashAPIURL,
		"INSPECTBOT_PROXY_PORT":                    fmt.Sprintf("%d", c.ProxyPort),
		"INSPECTBOT_PROXY_SWITCH_COOLDOWN":         c.ProxySwitchCooldown.String(),
		"INSPECTBOT_PROXY_ASSIGNMENT_MODE":         c.ProxyAssignmentMode,
		"INSPECTBOT_INITIALIZATION_TIMEOUT":        c.InitializationTimeout.String(),
		"INSPECTBOT_REQUEST_TTL":                   ttl.String(),
		"INSPECTBOT_REQUEST_DELAY":                 delay.String(),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// RequestTTL returns the current inspect reply deadline (thread-safe).
func (c *Config) RequestTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requestTTL
}

// SetRequestTTL updates the inspect reply deadline at runtime (thread-safe).
func (c *Config) SetRequestTTL(d time.Duration) {
	c.mu.Lock()
	c.requestTTL = d
	c.mu.Unlock()
}

// RequestDelay returns the current post-reply busy cooldown (thread-safe).
func (c *Config) RequestDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requestDelay
}

// SetRequestDelay updates the post-reply busy cooldown at runtime (thread-safe).
func (c *Config) SetRequestDelay(d time.Duration) {
	c.mu.Lock()
	c.requestDelay = d
	c.mu.Unlock()
}

// HTTPProxyPort returns the local HTTP proxy port for a given base port.
func HTTPProxyPort(base int) int { return base }

// SocksProxyPort returns the local SOCKS proxy port for a given base port.
func SocksProxyPort(base int) int { return base + 1 }
