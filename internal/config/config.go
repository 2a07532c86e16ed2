package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	BackendCouchDB  = "couchdb"
	BackendPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Media     MediaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            string        `env:"PORT" env-default:"8080"`
	Host            string        `env:"HOST" env-default:"0.0.0.0"`
	Env             string        `env:"ENV" env-default:"development"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// DatabaseConfig selects the storage backend once at startup. Only the settings of
// the selected backend are required.
type DatabaseConfig struct {
	Backend string `env:"DB_BACKEND" env-default:"couchdb"`

	CouchHost     string `env:"COUCHDB_HOST" env-default:"localhost"`
	CouchPort     string `env:"COUCHDB_PORT" env-default:"5984"`
	CouchUser     string `env:"COUCHDB_USER" env-default:"admin"`
	CouchPassword string `env:"COUCHDB_PASSWORD" env-default:"password"`
	CouchName     string `env:"COUCHDB_NAME" env-default:"notes_db"`

	PostgresDSN     string        `env:"DATABASE_DSN"`
	MaxConns        int32         `env:"DATABASE_MAX_CONNS" env-default:"25"`
	MinConns        int32         `env:"DATABASE_MIN_CONNS" env-default:"2"`
	MaxConnLifetime time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// CouchURL builds the server URL with basic-auth credentials embedded. User and
// password are escaped, so they may contain '@', ':' or '/'.
func (c DatabaseConfig) CouchURL() string {
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(c.CouchUser, c.CouchPassword),
		Host:   net.JoinHostPort(c.CouchHost, c.CouchPort),
	}
	return u.String()
}

type JWTConfig struct {
	Secret                 string        `env:"JWT_SECRET" env-default:"dev-secret-change-in-production"`
	Expiration             time.Duration `env:"JWT_EXPIRATION" env-default:"60m"`
	RefreshTokenExpiration time.Duration `env:"REFRESH_TOKEN_EXPIRATION" env-default:"168h"`
}

type MediaConfig struct {
	Dir      string `env:"MEDIA_DIR" env-default:"./uploads"`
	MaxBytes int64  `env:"MEDIA_MAX_BYTES" env-default:"5242880"`
}

type RateLimitConfig struct {
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" env-default:"60"`
	Enabled           bool `env:"RATE_LIMIT_ENABLED" env-default:"true"`
}

type CORSConfig struct {
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	AllowedMethods string `env:"CORS_ALLOWED_METHODS" env-default:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders string `env:"CORS_ALLOWED_HEADERS" env-default:"Content-Type,Authorization"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

// Load reads an optional .env file into the process environment, binds the
// environment onto Config and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	c.Database.Backend = strings.ToLower(strings.TrimSpace(c.Database.Backend))
	switch c.Database.Backend {
	case BackendCouchDB:
		if c.Database.CouchName == "" {
			errs = append(errs, errors.New("COUCHDB_NAME is required for the couchdb backend"))
		}
	case BackendPostgres:
		if c.Database.PostgresDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_BACKEND must be %q or %q, got %q", BackendCouchDB, BackendPostgres, c.Database.Backend))
	}

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.Expiration <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION must be positive"))
	}
	if c.Media.MaxBytes <= 0 {
		errs = append(errs, errors.New("MEDIA_MAX_BYTES must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled"))
	}

	return errors.Join(errs...)
}
