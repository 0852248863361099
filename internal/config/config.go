package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Supported database drivers.
const (
	DriverMongo    = "mongodb"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseURIEnv names the environment variable holding the MongoDB
// connection string. It takes precedence over database.mongo.uri.
const DatabaseURIEnv = "DB_URI"

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	API      APIConfig      `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string          `koanf:"host"`
	Port            int             `koanf:"port"`
	Mode            string          `koanf:"mode"`
	Timeout         string          `koanf:"timeout"`
	ShutdownTimeout string          `koanf:"shutdown_timeout"`
	TrustedProxies  []string        `koanf:"trusted_proxies"`
	CORS            CORSConfig      `koanf:"cors"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
}

// CORSConfig holds CORS middleware settings. No origins disables CORS.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver"`
	Mongo    MongoConfig    `koanf:"mongo"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Pool     PoolConfig     `koanf:"pool"`
}

// MongoConfig holds MongoDB settings.
type MongoConfig struct {
	URI              string `koanf:"uri"`
	Database         string `koanf:"database"`
	ConnectTimeout   string `koanf:"connect_timeout"`
	OperationTimeout string `koanf:"operation_timeout"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds relational connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// AuthConfig guards the write routes with bearer tokens when enabled.
type AuthConfig struct {
	Enabled   bool     `koanf:"enabled"`
	JWTSecret string   `koanf:"jwt_secret"`
	Roles     []string `koanf:"roles"`
}

// MetricsConfig exposes Prometheus metrics when enabled.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
}

// APIConfig holds list endpoint defaults.
type APIConfig struct {
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`
}

// Load reads configuration from a YAML file and overlays environment variables.
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator, e.g. APP__SERVER__PORT=9090 overrides server.port and
// APP__DATABASE__POOL__MAX_IDLE_CONNS=20 overrides database.pool.max_idle_conns.
// DB_URI, when set, overrides database.mongo.uri.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider("APP__", ".", func(s string) string {
		key := strings.TrimPrefix(s, "APP__")
		key = strings.ToLower(key)
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if uri := strings.TrimSpace(os.Getenv(DatabaseURIEnv)); uri != "" {
		cfg.Database.Mongo.URI = uri
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate normalises every section and checks supported values. Optional
// fields left empty receive their defaults.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Database.validate(c.Server.Mode); err != nil {
		return err
	}
	if err := c.Log.validate(); err != nil {
		return err
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}
	if err := c.Metrics.validate(); err != nil {
		return err
	}
	return c.API.validate()
}

func (s *ServerConfig) validate() error {
	mode := strings.TrimSpace(s.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		s.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", s.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", s.Port)
	}

	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		return fmt.Errorf("server.host is required")
	}

	if err := optionalDuration("server.timeout", &s.Timeout, ""); err != nil {
		return err
	}
	if err := optionalDuration("server.shutdown_timeout", &s.ShutdownTimeout, "10s"); err != nil {
		return err
	}
	if err := optionalDuration("server.cors.max_age", &s.CORS.MaxAge, "12h"); err != nil {
		return err
	}
	s.CORS.AllowOrigins = trimAll(s.CORS.AllowOrigins)

	if s.RateLimit.Enabled {
		if s.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid server.rate_limit.rps %v: must be positive when rate limiting is enabled", s.RateLimit.RPS)
		}
		if s.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid server.rate_limit.burst %d: must be positive when rate limiting is enabled", s.RateLimit.Burst)
		}
	}
	return nil
}

func (d *DatabaseConfig) validate(mode string) error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	switch d.Driver {
	case DriverMongo:
		return d.Mongo.validate()
	case DriverSQLite:
		d.SQLite.Path = strings.TrimSpace(d.SQLite.Path)
		if d.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required when driver is sqlite")
		}
	case DriverPostgres:
		if err := d.Postgres.validate(mode); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q, %q", d.Driver, DriverMongo, DriverSQLite, DriverPostgres)
	}

	if err := optionalDuration("database.pool.conn_max_lifetime", &d.Pool.ConnMaxLifetime, ""); err != nil {
		return err
	}
	return nil
}

func (m *MongoConfig) validate() error {
	m.URI = strings.TrimSpace(m.URI)
	if m.URI == "" {
		return fmt.Errorf("database.mongo.uri (or %s) is required when driver is mongodb", DatabaseURIEnv)
	}
	if !strings.HasPrefix(m.URI, "mongodb://") && !strings.HasPrefix(m.URI, "mongodb+srv://") {
		return fmt.Errorf("invalid database.mongo.uri: must start with mongodb:// or mongodb+srv://")
	}
	m.Database = strings.TrimSpace(m.Database)
	if m.Database == "" {
		m.Database = "catalog"
	}
	if err := optionalDuration("database.mongo.connect_timeout", &m.ConnectTimeout, "10s"); err != nil {
		return err
	}
	return optionalDuration("database.mongo.operation_timeout", &m.OperationTimeout, "5s")
}

// ConnectTimeoutDuration returns the validated connect timeout.
func (m MongoConfig) ConnectTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(m.ConnectTimeout)
	return d
}

// OperationTimeoutDuration returns the validated per-operation timeout.
func (m MongoConfig) OperationTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(m.OperationTimeout)
	return d
}

func (p *PostgresConfig) validate(mode string) error {
	p.Host = strings.TrimSpace(p.Host)
	if p.Host == "" {
		return fmt.Errorf("database.postgres.host is required when driver is postgres")
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", p.Port)
	}
	p.User = strings.TrimSpace(p.User)
	if p.User == "" {
		return fmt.Errorf("database.postgres.user is required when driver is postgres")
	}
	p.DBName = strings.TrimSpace(p.DBName)
	if p.DBName == "" {
		return fmt.Errorf("database.postgres.dbname is required when driver is postgres")
	}

	p.SSLMode = strings.TrimSpace(p.SSLMode)
	allowed := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	if mode == gin.ReleaseMode {
		allowed = allowed[3:]
	}
	if !slices.Contains(allowed, p.SSLMode) {
		return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %q", p.SSLMode, mode, allowed)
	}
	return nil
}

func (l *LogConfig) validate() error {
	level := strings.ToLower(strings.TrimSpace(l.Level))
	switch level {
	case "debug", "info", "warn", "error":
		l.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", l.Level, "debug", "info", "warn", "error")
	}

	format := strings.ToLower(strings.TrimSpace(l.Format))
	switch format {
	case "text", "json":
		l.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", l.Format, "text", "json")
	}
	return nil
}

func (a *AuthConfig) validate() error {
	a.Roles = trimAll(a.Roles)
	if !a.Enabled {
		return nil
	}
	a.JWTSecret = strings.TrimSpace(a.JWTSecret)
	if a.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if len(a.JWTSecret) < 32 {
		return fmt.Errorf("invalid auth.jwt_secret: must be at least 32 characters")
	}
	return nil
}

func (m *MetricsConfig) validate() error {
	m.Path = strings.TrimSpace(m.Path)
	if m.Path == "" {
		m.Path = "/metrics"
	}
	if !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("invalid metrics.path %q: must start with '/'", m.Path)
	}
	m.Namespace = strings.TrimSpace(m.Namespace)
	if m.Namespace == "" {
		m.Namespace = "catalog"
	}
	return nil
}

func (a *APIConfig) validate() error {
	if a.DefaultLimit < 0 || a.MaxLimit < 0 {
		return fmt.Errorf("api.default_limit and api.max_limit must not be negative")
	}
	if a.DefaultLimit == 0 {
		a.DefaultLimit = 50
	}
	if a.MaxLimit > 0 && a.DefaultLimit > a.MaxLimit {
		return fmt.Errorf("invalid api.default_limit %d: exceeds api.max_limit %d", a.DefaultLimit, a.MaxLimit)
	}
	return nil
}

// optionalDuration trims *v, applies def when empty and checks that the
// result is a positive Go duration.
func optionalDuration(name string, v *string, def string) error {
	*v = strings.TrimSpace(*v)
	if *v == "" {
		*v = def
	}
	if *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be greater than 0", name, *v)
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
