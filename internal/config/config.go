// Package config loads and validates link unfurler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/link-unfurler/internal/unfurl"
)

// DefaultFallbackUserAgent is sent to hosts that reject bot identities.
const DefaultFallbackUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Blocklist BlocklistConfig `mapstructure:"blocklist"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int      `mapstructure:"port"`
	AllowedOrigins        []string `mapstructure:"allowed_origins"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
}

// FetchConfig bounds every outbound fetch.
type FetchConfig struct {
	TimeoutSeconds       float64  `mapstructure:"timeout_seconds"`
	MaxBytes             int64    `mapstructure:"max_bytes"`
	UserAgent            string   `mapstructure:"user_agent"`
	FallbackUserAgent    string   `mapstructure:"fallback_user_agent"`
	AcceptedContentTypes []string `mapstructure:"accepted_content_types"`
	MaxConnections       int      `mapstructure:"max_connections"`
	MaxRedirects         int      `mapstructure:"max_redirects"`
}

// BlocklistConfig locates the hostnames that get the fallback user agent.
type BlocklistConfig struct {
	Path    string   `mapstructure:"path"`
	Entries []string `mapstructure:"entries"`
	Watch   bool     `mapstructure:"watch"`
}

// PreviewConfig toggles optional result fields.
type PreviewConfig struct {
	CaptureArticle bool `mapstructure:"capture_article"`
}

// RateLimitConfig sets per-host admission. Zero RPS disables it.
type RateLimitConfig struct {
	PerHostRPS float64 `mapstructure:"per_host_rps"`
	Burst      int     `mapstructure:"burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("UNFURL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("fetch.timeout_seconds", 12.0)
	v.SetDefault("fetch.max_bytes", 3_145_728)
	v.SetDefault("fetch.user_agent", "URLPreviewerBot/1.0")
	v.SetDefault("fetch.fallback_user_agent", DefaultFallbackUserAgent)
	v.SetDefault("fetch.accepted_content_types", []string{"text/html", "application/xhtml+xml"})
	v.SetDefault("fetch.max_connections", 10)
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("blocklist.path", "")
	v.SetDefault("blocklist.entries", []string{})
	v.SetDefault("blocklist.watch", false)
	v.SetDefault("preview.capture_article", false)
	v.SetDefault("ratelimit.per_host_rps", 0.0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("fetch.max_bytes must be > 0")
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return fmt.Errorf("fetch.user_agent must be set")
	}
	if len(c.Fetch.AcceptedContentTypes) == 0 {
		return fmt.Errorf("fetch.accepted_content_types must not be empty")
	}
	if c.Fetch.MaxConnections <= 0 {
		return fmt.Errorf("fetch.max_connections must be > 0")
	}
	if c.Fetch.MaxRedirects <= 0 {
		return fmt.Errorf("fetch.max_redirects must be > 0")
	}
	if c.Blocklist.Watch && c.Blocklist.Path == "" {
		return fmt.Errorf("blocklist.path must be set when blocklist.watch is enabled")
	}
	if c.RateLimit.PerHostRPS < 0 {
		return fmt.Errorf("ratelimit.per_host_rps must be >= 0")
	}
	return nil
}

// FetchTimeout converts fetch.timeout_seconds into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds * float64(time.Second))
}

// RequestTimeout bounds a whole API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// TransferPolicy builds the per-request policy from config and a blocklist snapshot.
func (c Config) TransferPolicy(blocked []string) unfurl.TransferPolicy {
	return unfurl.TransferPolicy{
		Timeout:              c.FetchTimeout(),
		MaxBytes:             c.Fetch.MaxBytes,
		AcceptedContentTypes: append([]string(nil), c.Fetch.AcceptedContentTypes...),
		UserAgentPrimary:     c.Fetch.UserAgent,
		UserAgentFallback:    c.Fetch.FallbackUserAgent,
		BlockedHostnames:     blocked,
		MaxRedirects:         c.Fetch.MaxRedirects,
	}
}
