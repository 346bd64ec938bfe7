package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fixora/triage/internal/domain"
	"github.com/fixora/triage/internal/normalize"
)

// Config represents application configuration
type Config struct {
	Server    ServerConfig
	Sources   SourcesConfig
	Dashboard DashboardConfig
	Fetch     FetchConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	CORS      CORSConfig
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Environment     string
}

// SourcesConfig is the content of the sources file
type SourcesConfig struct {
	Tickets      SourceConfig `yaml:"tickets"`
	Daily        SourceConfig `yaml:"daily"`
	AllowedUsers []string     `yaml:"allowed_users"`
}

// SourceConfig describes one CSV endpoint
type SourceConfig struct {
	URL     string            `yaml:"url"`
	Width   int               `yaml:"width"`
	Columns map[string]string `yaml:"columns"`
}

// DashboardConfig represents rendering and export settings
type DashboardConfig struct {
	Timezone        string
	EarliestDate    string
	SpreadsheetPath string
	MaxColWidth     int
	RunHistoryLimit int
}

// FetchConfig represents outbound HTTP settings
type FetchConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// DatabaseConfig represents the optional run log database
type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleTime    time.Duration
}

// RateLimitConfig represents refresh rate limiting
type RateLimitConfig struct {
	Enabled        bool
	RedisURL       string
	Requests       int
	Window         time.Duration
	TrustedProxies []string
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// CORSConfig represents allowed cross-origin callers of the JSON API
type CORSConfig struct {
	Origins []string
}

var defaultTicketColumns = map[string]string{
	string(domain.FieldUsername):      "username",
	string(domain.FieldResolved):      "resolved",
	string(domain.FieldReceivedAt):    "Received_Timestamp",
	string(domain.FieldFirstClosedAt): "first_closed_ticket_timestamp",
}

var defaultDailyColumns = map[string]string{
	string(domain.FieldUsername):  "username",
	string(domain.FieldCreatedAt): "created_at",
}

// Load reads .env, the optional sources file and the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Dashboard: DashboardConfig{
			Timezone:        getEnv("DASHBOARD_TIMEZONE", "Local"),
			EarliestDate:    getEnv("DASHBOARD_EARLIEST_DATE", domain.EarliestSelectableDate.String()),
			SpreadsheetPath: getEnv("EXPORT_SPREADSHEET_PATH", "cleaned_data_username_resolved.xlsx"),
			MaxColWidth:     getEnvInt("MAX_COL_WIDTH", 0),
			RunHistoryLimit: getEnvInt("RUN_HISTORY_LIMIT", 20),
		},
		Fetch: FetchConfig{
			Timeout:  getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
			MaxBytes: int64(getEnvInt("FETCH_MAX_BYTES", 64<<20)),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DB_MAX_CONNECTIONS", 5),
			MaxIdleTime:    getEnvDuration("DB_MAX_IDLE_TIME", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getEnvBool("RATE_LIMIT_ENABLED", false),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			// Forwarding headers are ignored unless the peer is listed here
			TrustedProxies: getEnvSlice("TRUSTED_PROXIES", nil),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		CORS: CORSConfig{
			Origins: getEnvSlice("CORS_ORIGINS", []string{"*"}),
		},
	}

	if path := getEnv("SOURCES_FILE", ""); path != "" {
		sources, err := LoadSources(path)
		if err != nil {
			return nil, err
		}
		cfg.Sources = *sources
	}

	if v := os.Getenv("TICKETS_SOURCE_URL"); v != "" {
		cfg.Sources.Tickets.URL = v
	}
	if v := os.Getenv("DAILY_SOURCE_URL"); v != "" {
		cfg.Sources.Daily.URL = v
	}
	if v := os.Getenv("ALLOWED_USERS"); v != "" {
		cfg.Sources.AllowedUsers = getEnvSlice("ALLOWED_USERS", nil)
	}

	return cfg, nil
}

// LoadSources reads a YAML sources file
func LoadSources(path string) (*SourcesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file struct {
		Sources SourcesConfig `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	return &file.Sources, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Sources.Tickets.URL == "" {
		return fmt.Errorf("tickets source URL is required")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if _, err := c.EarliestDate(); err != nil {
		return err
	}

	for name, src := range map[string]SourceConfig{"tickets": c.Sources.Tickets, "daily": c.Sources.Daily} {
		for field := range src.Columns {
			if !domain.Field(field).Valid() {
				return fmt.Errorf("%s source: unknown field %q", name, field)
			}
		}
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}

	if c.RateLimit.Enabled && c.RateLimit.Requests <= 0 {
		return fmt.Errorf("rate limit requests must be positive")
	}

	return nil
}

// Location resolves the dashboard timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid dashboard timezone %q: %w", c.Dashboard.Timezone, err)
	}
	return loc, nil
}

// EarliestDate is the first date a caller may select
func (c *Config) EarliestDate() (domain.Date, error) {
	if c.Dashboard.EarliestDate == "" {
		return domain.EarliestSelectableDate, nil
	}
	d, err := domain.ParseDate(c.Dashboard.EarliestDate)
	if err != nil {
		return domain.Date{}, fmt.Errorf("invalid dashboard earliest date: %w", err)
	}
	return d, nil
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// HasDailySource reports whether the daily count source is configured
func (c *Config) HasDailySource() bool {
	return c.Sources.Daily.URL != ""
}

// TicketSchema builds the normalizer schema for the tickets source
func (c *Config) TicketSchema() normalize.Schema {
	return c.Sources.Tickets.schema("tickets", defaultTicketColumns)
}

// DailySchema builds the normalizer schema for the daily source
func (c *Config) DailySchema() normalize.Schema {
	return c.Sources.Daily.schema("daily", defaultDailyColumns)
}

func (s SourceConfig) schema(name string, defaults map[string]string) normalize.Schema {
	width := s.Width
	if width <= 0 {
		width = normalize.CanonicalWidth
	}

	columns := make(map[domain.Field]string, len(defaults))
	for field, header := range defaults {
		columns[domain.Field(field)] = header
	}
	for field, header := range s.Columns {
		if header != "" {
			columns[domain.Field(field)] = header
		}
	}

	return normalize.Schema{Name: name, Width: width, Columns: columns}
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
