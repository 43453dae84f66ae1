package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Environment   string              `yaml:"environment"`
	FrontEndURL   string              `yaml:"front_end_url"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Google        GoogleConfig        `yaml:"google"`
	Mail          MailConfig          `yaml:"mail"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	StaticDir       string        `yaml:"static_dir"` // built SPA, served behind the route guard
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig holds optional TLS settings for the HTTP server
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres (lib/pq) or pgx
	ConnectionString string        `yaml:"url"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	Database         string        `yaml:"name"`
	SSLMode          string        `yaml:"sslmode"`
	MaxOpenConns     int           `yaml:"max_open_conns"`
	MaxIdleConns     int           `yaml:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig holds API token settings
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	Issuer     string        `yaml:"issuer"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	CookieName string        `yaml:"cookie_name"`

	// Tenant membership lookups are cached per process. A zero TTL
	// disables the cache.
	MembershipCacheSize int           `yaml:"membership_cache_size"`
	MembershipCacheTTL  time.Duration `yaml:"membership_cache_ttl"`
}

// GoogleConfig holds Google OAuth configuration for mobile sign-in
type GoogleConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURI  string   `yaml:"redirect_uri"`
	Audiences    []string `yaml:"audiences"` // extra accepted id_token audiences (e.g. Android/iOS client ids)
	JWKSURL      string   `yaml:"jwks_url"`
	TokenURL     string   `yaml:"token_url"`
	UserInfoURL  string   `yaml:"userinfo_url"`
}

// MailConfig holds outgoing mail configuration
type MailConfig struct {
	Driver   string `yaml:"driver"` // log or smtp
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// RateLimitConfig holds abuse throttling. A zero limit disables its rule.
type RateLimitConfig struct {
	InvitesPerHour  int           `yaml:"invites_per_hour"`
	InvitesPerDay   int           `yaml:"invites_per_day"`
	LoginFailures   int           `yaml:"login_failures"`
	LoginWindow     time.Duration `yaml:"login_window"`
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"` // json or text
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// Activity trail writer pool
	ActivityBuffer  int `yaml:"activity_buffer"`
	ActivityWorkers int `yaml:"activity_workers"`
}

// Defaults returns the built-in configuration used before any file or
// environment overrides are applied.
func Defaults() Config {
	return Config{
		Environment: "development",
		FrontEndURL: "http://localhost:5173",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			TLS: TLSConfig{
				CertFile: "certs/cert.pem",
				KeyFile:  "certs/key.pem",
			},
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "esign",
			Password:        "esign",
			Database:        "esign",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Auth: AuthConfig{
			Issuer:     "esign-platform",
			TokenTTL:   24 * time.Hour,
			CookieName: "session",

			MembershipCacheSize: 1000,
			MembershipCacheTTL:  30 * time.Second,
		},
		Google: GoogleConfig{
			JWKSURL:     "https://www.googleapis.com/oauth2/v3/certs",
			TokenURL:    "https://oauth2.googleapis.com/token",
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		},
		Mail: MailConfig{
			Driver: "log",
			Port:   587,
			From:   "no-reply@esign.local",
		},
		RateLimit: RateLimitConfig{
			InvitesPerHour:  100,
			InvitesPerDay:   500,
			LoginFailures:   10,
			LoginWindow:     15 * time.Minute,
			Retention:       48 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel:        "info",
			LogFormat:       "json",
			MetricsEnabled:  true,
			ActivityBuffer:  1000,
			ActivityWorkers: 2,
		},
	}
}

// New creates a new Config instance. Sources are applied in order: built-in
// defaults, the YAML file named by ESIGN_CONFIG (if any), then environment
// variables (including a .env file).
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := Defaults()

	if path := os.Getenv("ESIGN_CONFIG"); path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadYAMLFile reads and parses a YAML file into cfg.
// Fields not present in the YAML keep their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.FrontEndURL = strings.TrimRight(getEnv("FRONT_END_URL", cfg.FrontEndURL), "/")

	s := &cfg.Server
	s.Host = getEnv("SERVER_HOST", s.Host)
	s.Port = getPort(s.Port)
	s.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", s.WriteTimeout)
	s.ShutdownTimeout = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", s.AllowedOrigins)
	s.StaticDir = getEnv("STATIC_DIR", s.StaticDir)
	s.TLS.Enabled = getEnvAsBool("TLS_ENABLED", s.TLS.Enabled)
	s.TLS.CertFile = getEnv("TLS_CERT_FILE", s.TLS.CertFile)
	s.TLS.KeyFile = getEnv("TLS_KEY_FILE", s.TLS.KeyFile)

	applyDatabaseEnv(&cfg.Database)

	a := &cfg.Auth
	a.JWTSecret = getEnv("JWT_SECRET", a.JWTSecret)
	a.Issuer = getEnv("JWT_ISSUER", a.Issuer)
	a.TokenTTL = getEnvAsDuration("JWT_TTL", a.TokenTTL)
	a.CookieName = getEnv("SESSION_COOKIE", a.CookieName)
	a.MembershipCacheSize = getEnvAsInt("MEMBERSHIP_CACHE_SIZE", a.MembershipCacheSize)
	a.MembershipCacheTTL = getEnvAsDuration("MEMBERSHIP_CACHE_TTL", a.MembershipCacheTTL)

	g := &cfg.Google
	g.ClientID = getEnv("GOOGLE_CLIENT_ID", g.ClientID)
	g.ClientSecret = getEnv("GOOGLE_CLIENT_SECRET", g.ClientSecret)
	g.RedirectURI = getEnv("GOOGLE_REDIRECT_URI", g.RedirectURI)
	g.Audiences = getEnvAsList("GOOGLE_AUDIENCES", g.Audiences)
	g.JWKSURL = getEnv("GOOGLE_JWKS_URL", g.JWKSURL)
	g.TokenURL = getEnv("GOOGLE_TOKEN_URL", g.TokenURL)
	g.UserInfoURL = getEnv("GOOGLE_USERINFO_URL", g.UserInfoURL)

	m := &cfg.Mail
	m.Driver = getEnv("MAIL_DRIVER", m.Driver)
	m.Host = getEnv("MAIL_HOST", m.Host)
	m.Port = getEnvAsInt("MAIL_PORT", m.Port)
	m.Username = getEnv("MAIL_USERNAME", m.Username)
	m.Password = getEnv("MAIL_PASSWORD", m.Password)
	m.From = getEnv("MAIL_FROM", m.From)

	rl := &cfg.RateLimit
	rl.InvitesPerHour = getEnvAsInt("RATE_LIMIT_INVITES_PER_HOUR", rl.InvitesPerHour)
	rl.InvitesPerDay = getEnvAsInt("RATE_LIMIT_INVITES_PER_DAY", rl.InvitesPerDay)
	rl.LoginFailures = getEnvAsInt("RATE_LIMIT_LOGIN_FAILURES", rl.LoginFailures)
	rl.LoginWindow = getEnvAsDuration("RATE_LIMIT_LOGIN_WINDOW", rl.LoginWindow)
	rl.Retention = getEnvAsDuration("RATE_LIMIT_RETENTION", rl.Retention)
	rl.CleanupInterval = getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", rl.CleanupInterval)

	o := &cfg.Observability
	o.LogLevel = getEnv("LOG_LEVEL", o.LogLevel)
	o.LogFormat = getEnv("LOG_FORMAT", o.LogFormat)
	o.MetricsEnabled = getEnvAsBool("METRICS_ENABLED", o.MetricsEnabled)
	o.ActivityBuffer = getEnvAsInt("ACTIVITY_BUFFER_SIZE", o.ActivityBuffer)
	o.ActivityWorkers = getEnvAsInt("ACTIVITY_WORKERS", o.ActivityWorkers)
}

// applyDatabaseEnv loads database config from DATABASE_URL or DB_* env vars
func applyDatabaseEnv(d *DatabaseConfig) {
	d.Driver = getEnv("DB_DRIVER", d.Driver)
	d.ConnectionString = getEnv("DATABASE_URL", d.ConnectionString)
	d.Host = getEnv("DB_HOST", d.Host)
	d.Port = getEnvAsInt("DB_PORT", d.Port)
	d.User = getEnv("DB_USER", d.User)
	d.Password = getEnv("DB_PASSWORD", d.Password)
	d.Database = getEnv("DB_NAME", d.Database)
	d.SSLMode = getEnv("DB_SSLMODE", d.SSLMode)
	d.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q (want postgres or pgx)", c.Database.Driver)
	}

	if c.IsProduction() {
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET of at least 32 bytes is required in production")
		}
		if c.Google.ClientID == "" {
			return fmt.Errorf("google client ID is required in production")
		}
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.MembershipCacheTTL > 0 && c.Auth.MembershipCacheSize <= 0 {
		return fmt.Errorf("membership cache size must be positive when the cache is enabled")
	}

	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" {
			return fmt.Errorf("mail host is required for the smtp driver")
		}
	default:
		return fmt.Errorf("unsupported mail driver %q (want log or smtp)", c.Mail.Driver)
	}

	if _, err := url.Parse(c.FrontEndURL); err != nil || c.FrontEndURL == "" {
		return fmt.Errorf("FRONT_END_URL must be a valid URL")
	}

	if c.RateLimit.CleanupInterval <= 0 {
		return fmt.Errorf("rate limit cleanup interval must be positive")
	}
	if c.RateLimit.Retention < c.RateLimit.LoginWindow || c.RateLimit.Retention < 24*time.Hour {
		return fmt.Errorf("rate limit retention must cover the longest window")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// GoogleAudiences returns every client id an id_token may be issued for.
func (c *GoogleConfig) GoogleAudiences() []string {
	out := make([]string, 0, len(c.Audiences)+1)
	if c.ClientID != "" {
		out = append(out, c.ClientID)
	}
	return append(out, c.Audiences...)
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("driver=%s host=%s port=%s database=%s", c.Driver, host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("driver=%s host=%s port=%d database=%s", c.Driver, c.Host, c.Port, c.Database)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Address returns the SMTP server address
func (c *MailConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars
func getPort(defaultValue int) int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return getEnvAsInt("SERVER_PORT", defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
