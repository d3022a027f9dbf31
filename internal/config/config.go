// Package config loads runtime settings from an optional config file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every runtime setting of the portfolio backend.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Google   GoogleConfig   `mapstructure:"google"`
	Media    MediaConfig    `mapstructure:"media"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port              int    `mapstructure:"port"`
	AllowedOrigins    string `mapstructure:"allowed_origins"`
	SessionSecret     string `mapstructure:"session_secret"`
	PostLoginRedirect string `mapstructure:"post_login_redirect"`
}

// Origins splits AllowedOrigins on commas and whitespace.
func (s ServerConfig) Origins() []string {
	return splitList(s.AllowedOrigins)
}

// DatabaseConfig represents configuration for the metadata database.
// Driver selects which of the other fields are relevant.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "postgres" or "sqlite"
	URL    string `mapstructure:"url"`    // only used for driver=postgres
	Path   string `mapstructure:"path"`   // only used for driver=sqlite
}

// GoogleConfig holds the OAuth client and token file settings.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	Scopes       string `mapstructure:"scopes"`
	TokenFile    string `mapstructure:"token_file"`
}

// ScopeList splits Scopes on whitespace and commas.
func (g GoogleConfig) ScopeList() []string {
	return splitList(g.Scopes)
}

// MediaConfig selects where imported files are stored.
type MediaConfig struct {
	Driver      string   `mapstructure:"driver"` // "local" or "s3"
	Root        string   `mapstructure:"root"`
	URLPrefix   string   `mapstructure:"url_prefix"`
	JPEGQuality int      `mapstructure:"jpeg_quality"`
	S3          S3Config `mapstructure:"s3"`
}

// S3Config is only used for media driver=s3.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

const defaultScopes = "https://www.googleapis.com/auth/photospicker.mediaitems.readonly " +
	"https://www.googleapis.com/auth/photoslibrary.readonly"

var defaults = map[string]any{
	"server.port":                8080,
	"server.allowed_origins":     "http://localhost:5173",
	"server.post_login_redirect": "/picker",
	"database.path":              "./portfolio.db",
	"google.redirect_url":        "http://localhost:8080/auth/google/callback",
	"google.scopes":              defaultScopes,
	"google.token_file":          "./token.json",
	"media.driver":               "local",
	"media.root":                 "./media",
	"media.url_prefix":           "/media",
	"media.jpeg_quality":         90,
	"log.level":                  "info",
	"log.format":                 "json",
}

// envBindings maps config keys to the environment variables the deployment already uses.
var envBindings = map[string]string{
	"server.port":                "PORT",
	"server.allowed_origins":     "CORS_ALLOWED_ORIGINS",
	"server.session_secret":      "SESSION_SECRET",
	"server.post_login_redirect": "POST_LOGIN_REDIRECT",
	"database.driver":            "DATABASE_DRIVER",
	"database.url":               "DATABASE_URL",
	"database.path":              "SQLITE_PATH",
	"google.client_id":           "GOOGLE_CLIENT_ID",
	"google.client_secret":       "GOOGLE_CLIENT_SECRET",
	"google.redirect_url":        "GOOGLE_REDIRECT_URI",
	"google.scopes":              "GOOGLE_SCOPES",
	"google.token_file":          "TOKEN_JSON",
	"media.driver":               "MEDIA_DRIVER",
	"media.root":                 "MEDIA_ROOT",
	"media.url_prefix":           "MEDIA_URL_PREFIX",
	"media.jpeg_quality":         "MEDIA_JPEG_QUALITY",
	"media.s3.bucket":            "S3_BUCKET",
	"media.s3.region":            "S3_REGION",
	"media.s3.prefix":            "S3_PREFIX",
	"media.s3.endpoint":          "S3_ENDPOINT",
	"media.s3.public_base_url":   "S3_PUBLIC_BASE_URL",
	"media.s3.access_key_id":     "S3_ACCESS_KEY_ID",
	"media.s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
	"log.level":                  "LOG_LEVEL",
	"log.format":                 "LOG_FORMAT",
}

// Load reads configPath (if non-empty) and overlays the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// DATABASE_URL alone is enough to select PostgreSQL.
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
		if cfg.Database.URL != "" {
			cfg.Database.Driver = "postgres"
		}
	}
	return &cfg, nil
}

// Validate reports settings that would prevent the server from starting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url (DATABASE_URL) required for postgres"))
		}
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path (SQLITE_PATH) required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver: %q", c.Database.Driver))
	}

	switch c.Media.Driver {
	case "local":
		if c.Media.Root == "" {
			errs = append(errs, errors.New("media.root (MEDIA_ROOT) required for local media"))
		}
	case "s3":
		if c.Media.S3.Bucket == "" {
			errs = append(errs, errors.New("media.s3.bucket (S3_BUCKET) required for s3 media"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown media driver: %q", c.Media.Driver))
	}
	if !strings.HasPrefix(c.Media.URLPrefix, "/") {
		errs = append(errs, fmt.Errorf("media.url_prefix must start with /: %q", c.Media.URLPrefix))
	}
	if c.Media.JPEGQuality < 1 || c.Media.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("media.jpeg_quality out of range: %d", c.Media.JPEGQuality))
	}

	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required"))
	}
	if c.Server.SessionSecret == "" {
		errs = append(errs, errors.New("server.session_secret (SESSION_SECRET) is required"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
