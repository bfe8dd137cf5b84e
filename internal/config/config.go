// Package config loads pauthd settings from a config file, PAUTH_
// environment variables and defaults through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Plugin types understood by the setup package.
const (
	PluginPrincipalFolder = "principal_folder"
	PluginGroupFolder     = "group_folder"
	PluginHTTPBasic       = "http_basic"
	PluginFTP             = "ftp"
	PluginSession         = "session"
	PluginBearer          = "bearer"
	PluginJWT             = "jwt"
)

var knownPluginTypes = map[string]bool{
	PluginPrincipalFolder: true,
	PluginGroupFolder:     true,
	PluginHTTPBasic:       true,
	PluginFTP:             true,
	PluginSession:         true,
	PluginBearer:          true,
	PluginJWT:             true,
}

// EnvPrefix is prepended to every environment variable Load consults.
const EnvPrefix = "PAUTH"

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN). sqlite file DSNs and postgres URLs
	// are both accepted.
	DatabaseURL string `mapstructure:"database_url"`

	// Server bind address (host:port)
	ServerAddr string `mapstructure:"server_addr"`

	// Maximum database connection pool size
	MaxDBConnections int `mapstructure:"max_db_connections"`

	// Enable debug logging
	Debug bool `mapstructure:"debug"`

	// Log encoding: "json" or "console"
	LogFormat string `mapstructure:"log_format"`

	// Honour X-Forwarded-* headers set by a reverse proxy
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`

	// Origins allowed by the CORS middleware
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Hash and block keys for session cookies
	SessionSecret string `mapstructure:"session_secret"`

	// HMAC key, issuer and lifetime of bearer tokens
	TokenSecret string        `mapstructure:"token_secret"`
	TokenIssuer string        `mapstructure:"token_issuer"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`

	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`

	// Static permission grants evaluated by the authorizer
	Grants []Grant `mapstructure:"grants"`
}

// ObservabilityConfig controls OpenTelemetry export.
type ObservabilityConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
}

// AuthConfig describes the root authentication scope.
type AuthConfig struct {
	// Prefix of every principal id issued by the scope
	Prefix string `mapstructure:"prefix"`

	// Plugin names, in the order the scope consults them
	CredentialsPlugins   []string `mapstructure:"credentials_plugins"`
	AuthenticatorPlugins []string `mapstructure:"authenticator_plugins"`

	// Ids of the implicit groups; empty disables them
	EveryoneGroup      string `mapstructure:"everyone_group"`
	AuthenticatedGroup string `mapstructure:"authenticated_group"`

	Plugins []PluginConfig `mapstructure:"plugins"`
}

// PluginConfig declares one plugin instance. Options are decoded by the setup
// package into the plugin's typed options.
type PluginConfig struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`

	// Global plugins are registered in the registry instead of being
	// contained in the scope.
	Global  bool           `mapstructure:"global"`
	Options map[string]any `mapstructure:"options"`
}

// Grant allows Subject (a principal or group id) to perform Action on Object.
type Grant struct {
	Subject string `mapstructure:"subject"`
	Object  string `mapstructure:"object"`
	Action  string `mapstructure:"action"`
}

// scalarKeys are bound to environment variables explicitly. AutomaticEnv alone
// does not surface nested keys through Unmarshal.
var scalarKeys = []string{
	"database_url",
	"server_addr",
	"max_db_connections",
	"debug",
	"log_format",
	"trust_proxy_headers",
	"cors_origins",
	"session_secret",
	"token_secret",
	"token_issuer",
	"token_ttl",
	"observability.otlp_endpoint",
	"observability.otlp_insecure",
	"observability.service_name",
	"observability.service_version",
	"observability.environment",
	"auth.prefix",
	"auth.credentials_plugins",
	"auth.authenticator_plugins",
	"auth.everyone_group",
	"auth.authenticated_group",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "file:pauth.db?cache=shared")
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "json")
	v.SetDefault("trust_proxy_headers", false)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("token_issuer", "pauthd")
	v.SetDefault("token_ttl", time.Hour)
	v.SetDefault("observability.service_name", "pauthd")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("auth.prefix", "")
	v.SetDefault("auth.everyone_group", "")
	v.SetDefault("auth.authenticated_group", "")
}

// Load reads configuration from the global viper instance: a config file if
// one was set, PAUTH_ prefixed environment variables and defaults, in
// decreasing precedence from environment to defaults.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for _, key := range scalarKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Comma separated lists arrive from the environment as one string.
	cfg.Auth.CredentialsPlugins = splitList(cfg.Auth.CredentialsPlugins)
	cfg.Auth.AuthenticatorPlugins = splitList(cfg.Auth.AuthenticatorPlugins)
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required")
	}
	if c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}

	seen := make(map[string]bool, len(c.Auth.Plugins))
	for _, p := range c.Auth.Plugins {
		if p.Name == "" {
			return fmt.Errorf("auth.plugins: plugin of type %q has no name", p.Type)
		}
		if seen[p.Name] {
			return fmt.Errorf("auth.plugins: duplicate plugin name %q", p.Name)
		}
		seen[p.Name] = true

		if !knownPluginTypes[p.Type] {
			return fmt.Errorf("auth.plugins: plugin %q has unknown type %q", p.Name, p.Type)
		}
		switch p.Type {
		case PluginSession:
			if c.SessionSecret == "" {
				return fmt.Errorf("session_secret is required by session plugin %q", p.Name)
			}
		case PluginJWT:
			if c.TokenSecret == "" {
				return fmt.Errorf("token_secret is required by jwt plugin %q", p.Name)
			}
		}
	}

	for i, g := range c.Grants {
		if g.Subject == "" || g.Object == "" || g.Action == "" {
			return fmt.Errorf("grants[%d]: subject, object and action are required", i)
		}
	}
	return nil
}

// Plugin returns the configuration of the plugin named name.
func (c *Config) Plugin(name string) (PluginConfig, bool) {
	for _, p := range c.Auth.Plugins {
		if p.Name == name {
			return p, true
		}
	}
	return PluginConfig{}, false
}
