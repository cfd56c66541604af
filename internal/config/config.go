package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "production"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all the configuration for the application.
type Config struct {
	Env          string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer   `yaml:"http_server"`
	Database     `yaml:"database"`
	Auth         `yaml:"auth"`
	URLShortener `yaml:"url_shortener"`
	Analytics    `yaml:"analytics"`
	CORS         `yaml:"cors"`
}

// HTTPServer holds HTTP listener configuration.
type HTTPServer struct {
	Port            int           `yaml:"port" env:"PORT" env-default:"5000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// Address returns the listen address for net/http.
func (s HTTPServer) Address() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Database holds datastore configuration. URL wins over the discrete fields.
type Database struct {
	Driver          string        `yaml:"driver" env:"DATABASE_DRIVER" env-default:"postgres"`
	URL             string        `yaml:"url" env:"DATABASE_URL"`
	Host            string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string        `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string        `yaml:"password" env:"DB_PASSWORD"`
	DBName          string        `yaml:"dbname" env:"DB_NAME" env-default:"purls"`
	SSLMode         string        `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	Timezone        string        `yaml:"timezone" env:"DB_TIMEZONE" env-default:"UTC"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"20"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME" env-default:"5m"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"DB_CONNECT_TIMEOUT" env-default:"10s"`
	AutoMigrate     bool          `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// DSN returns the PostgreSQL connection string.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode, d.Timezone)
}

// Auth holds credential configuration.
type Auth struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"5h"`
	Issuer     string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"PURLS-Backend"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

// URLShortener holds service-specific configuration.
type URLShortener struct {
	CodeLength int    `yaml:"code_length" env:"CODE_LENGTH" env-default:"7"`
	BaseURL    string `yaml:"base_url" env:"BASE_URL"`
	MaxRetries int    `yaml:"max_retries" env:"CODE_MAX_RETRIES" env-default:"5"`
}

// Analytics holds click-detail processing configuration.
type Analytics struct {
	Enabled         bool          `yaml:"enabled" env:"ANALYTICS_ENABLED" env-default:"true"`
	WorkerCount     int           `yaml:"worker_count" env:"ANALYTICS_WORKERS" env-default:"3"`
	BufferSize      int           `yaml:"buffer_size" env:"ANALYTICS_BUFFER_SIZE" env-default:"1000"`
	RetryAttempts   int           `yaml:"retry_attempts" env:"ANALYTICS_RETRY_ATTEMPTS" env-default:"3"`
	RetryDelay      time.Duration `yaml:"retry_delay" env:"ANALYTICS_RETRY_DELAY" env-default:"1s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"ANALYTICS_SHUTDOWN_TIMEOUT" env-default:"30s"`
	UARegexesPath   string        `yaml:"ua_regexes_path" env:"UA_REGEXES_PATH"`
}

// CORS holds cross-origin configuration.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

// MustLoad loads the application configuration.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot load config: %s", err)
	}
	return cfg
}

// Load reads .env, then the YAML file at CONFIG_PATH (default config/local.yml)
// if it exists, otherwise environment variables only.
func Load() (*Config, error) {
	// Try to load .env file (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yml" // default path
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", configPath, err)
		}
	} else {
		log.Println("Config file not found, using environment variables only")
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read config from environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values cleanenv cannot express as tags.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.Driver == DriverPostgres && (c.Database.MaxOpenConns < 1 || c.Database.MaxIdleConns > c.Database.MaxOpenConns) {
		errs = append(errs, fmt.Errorf("database pool: max_open_conns must be positive and >= max_idle_conns, got %d/%d",
			c.Database.MaxOpenConns, c.Database.MaxIdleConns))
	}
	if c.Database.Driver == DriverSQLite && c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the sqlite driver"))
	}

	if c.CodeLength < 6 || c.CodeLength > 16 {
		errs = append(errs, fmt.Errorf("code_length must be between 6 and 16, got %d", c.CodeLength))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max_retries must be positive, got %d", c.MaxRetries))
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("base_url must be an absolute URL, got %q", c.BaseURL))
		}
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL))
	}
	// bcrypt.MinCost..bcrypt.MaxCost
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt_cost must be between 4 and 31, got %d", c.BcryptCost))
	}

	if c.Analytics.Enabled && (c.Analytics.WorkerCount < 1 || c.Analytics.BufferSize < 1) {
		errs = append(errs, errors.New("analytics workers and buffer size must be positive"))
	}

	return errors.Join(errs...)
}
