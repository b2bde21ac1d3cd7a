package config

import (
	"fmt"
	"time"
)

// DefaultScope is the OAuth scope required for Business Profile management.
const DefaultScope = "https://www.googleapis.com/auth/business.manage"

// Config represents the complete application configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Business BusinessConfig `yaml:"business"`
	Places   PlacesConfig   `yaml:"places"`
	Audit    AuditConfig    `yaml:"audit"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"` // "1.2" or "1.3"
}

// APIConfig contains API-related configuration.
type APIConfig struct {
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AuthConfig contains inbound API-key authentication configuration.
// This guards the gateway itself; upstream calls are authenticated with
// the caller's OAuth token bundle instead.
type AuthConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIKeys    []string `yaml:"api_keys"`
	HeaderName string   `yaml:"header_name"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// OAuthConfig contains the Google OAuth client configuration.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// BusinessConfig contains Business Profile defaults injected into
// forwarded calls.
type BusinessConfig struct {
	// AccountID is the personal account that owns created location groups.
	AccountID string `yaml:"account_id"`
	// LocationGroupID is the default parent for location create/list calls
	// when the request does not name a group.
	LocationGroupID string `yaml:"location_group_id"`
	RegionCode      string `yaml:"region_code"`
	LanguageCode    string `yaml:"language_code"`
	// VerificationPhone is the default SMS number for verification requests.
	VerificationPhone string `yaml:"verification_phone"`
}

// PlacesConfig contains Places text-search configuration.
type PlacesConfig struct {
	APIKey string `yaml:"api_key"`
	// Endpoint overrides the text-search URL, mainly for tests.
	Endpoint string `yaml:"endpoint"`
}

// AuditConfig contains audit trail configuration.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	// RetentionDays controls how long audit records are kept. 0 disables cleanup.
	RetentionDays int `yaml:"retention_days"`
}

// TelegramConfig contains Telegram alert configuration.
type TelegramConfig struct {
	Enabled           bool   `yaml:"enabled"`
	BotToken          string `yaml:"bot_token"`
	ChatID            int64  `yaml:"chat_id"`
	MessagesPerMinute int    `yaml:"messages_per_minute"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if err := c.OAuth.Validate(); err != nil {
		return fmt.Errorf("oauth: %w", err)
	}

	if err := c.Business.Validate(); err != nil {
		return fmt.Errorf("business: %w", err)
	}

	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	if err := c.Telegram.Validate(); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("host is required")
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535")
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.TLS.Enabled {
		if s.TLS.CertFile == "" {
			return fmt.Errorf("tls cert_file is required when TLS is enabled")
		}
		if s.TLS.KeyFile == "" {
			return fmt.Errorf("tls key_file is required when TLS is enabled")
		}
		if s.TLS.MinVersion != "" && s.TLS.MinVersion != "1.2" && s.TLS.MinVersion != "1.3" {
			return fmt.Errorf("tls min_version must be either \"1.2\" or \"1.3\"")
		}
		if s.TLS.MinVersion == "" {
			s.TLS.MinVersion = "1.3"
		}
	}
	return nil
}

// Validate validates API configuration.
func (a *APIConfig) Validate() error {
	if a.Auth.Enabled && len(a.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth: api_keys is required when auth is enabled")
	}
	if a.RateLimit.RequestsPerMinute <= 0 {
		a.RateLimit.RequestsPerMinute = 1000
	}
	if a.RateLimit.RequestsPerMinute > 100000 {
		a.RateLimit.RequestsPerMinute = 100000
	}
	if a.RateLimit.Burst <= 0 {
		a.RateLimit.Burst = 100
	}
	if a.RateLimit.Burst > 10000 {
		a.RateLimit.Burst = 10000
	}
	return nil
}

// Validate validates OAuth client configuration.
func (o *OAuthConfig) Validate() error {
	if o.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if o.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if o.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}
	if len(o.Scopes) == 0 {
		o.Scopes = []string{DefaultScope}
	}
	return nil
}

// Validate validates Business Profile defaults.
func (b *BusinessConfig) Validate() error {
	if b.RegionCode == "" {
		b.RegionCode = "US"
	}
	if b.LanguageCode == "" {
		b.LanguageCode = "en"
	}
	return nil
}

// Validate validates audit configuration.
func (a *AuditConfig) Validate() error {
	if !a.Enabled {
		return nil
	}
	if a.DBPath == "" {
		a.DBPath = "./data/audit.db"
	}
	if a.RetentionDays < 0 {
		return fmt.Errorf("retention_days cannot be negative")
	}
	if a.RetentionDays == 0 {
		a.RetentionDays = 30
	}
	return nil
}

// Validate validates Telegram configuration.
func (t *TelegramConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.BotToken == "" {
		return fmt.Errorf("bot_token is required when telegram is enabled")
	}
	if t.ChatID == 0 {
		return fmt.Errorf("chat_id is required when telegram is enabled")
	}
	if t.MessagesPerMinute <= 0 {
		t.MessagesPerMinute = 20
	}
	return nil
}
