package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// Config holds the application configuration.
type Config struct {
	Env      string         `koanf:"env"`
	LogLevel string         `koanf:"log_level"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port        int      `koanf:"port"`
	CORSOrigins []string `koanf:"cors_origins"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// SessionConfig configures the signed session cookie.
type SessionConfig struct {
	Secret string        `koanf:"secret"`
	MaxAge time.Duration `koanf:"max_age"`
	Secure bool          `koanf:"secure"`
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"env":             "env",
	"log-level":       "log_level",
	"port":            "server.port",
	"cors-origins":    "server.cors_origins",
	"db-driver":       "database.driver",
	"db-dsn":          "database.dsn",
	"session-secret":  "session.secret",
	"session-max-age": "session.max_age",
	"secure-cookies":  "session.secure",
}

// Defaults loads configuration from environment variables or sets defaults.
func Defaults() (Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PORT: %w", err)
	}
	maxAge, err := time.ParseDuration(getEnv("SESSION_MAX_AGE", "168h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SESSION_MAX_AGE: %w", err)
	}
	secure, err := strconv.ParseBool(getEnv("SESSION_SECURE", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SESSION_SECURE: %w", err)
	}

	return Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:        port,
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", "sqlite"),
			DSN:    getEnv("DATABASE_DSN", "./teambuilder.db"),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", ""),
			MaxAge: maxAge,
			Secure: secure,
		},
	}, nil
}

// RegisterFlags adds the configuration flags to fs, defaulting to the
// environment-derived values in def.
func RegisterFlags(fs *pflag.FlagSet, def Config) {
	fs.String("config", "", "path to a YAML configuration file")
	fs.String("env", def.Env, "environment (development or production)")
	fs.String("log-level", def.LogLevel, "log level (debug, info, warn, error)")
	fs.Int("port", def.Server.Port, "HTTP listen port")
	fs.StringSlice("cors-origins", def.Server.CORSOrigins, "allowed CORS origins")
	fs.String("db-driver", def.Database.Driver, "database driver (sqlite or postgres)")
	fs.String("db-dsn", def.Database.DSN, "database data source name")
	fs.String("session-secret", def.Session.Secret, "secret used to sign session cookies")
	fs.Duration("session-max-age", def.Session.MaxAge, "session cookie lifetime")
	fs.Bool("secure-cookies", def.Session.Secure, "mark session cookies Secure")
}

// Load resolves the configuration. Precedence is flags, then the YAML file
// named by --config, then environment variables, then built-in defaults.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	flags := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
	if err := k.Load(flags, nil); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if cfg.Session.Secret == "" && !cfg.IsProduction() {
		cfg.Session.Secret = rand.Text()
		log.Warn().Msg("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session secret must be set in %s", c.Env)
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("session max age must be positive")
	}
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
