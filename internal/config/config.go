package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingPropertyID is returned by GA4Config.Validate when no GA4 property is configured.
var ErrMissingPropertyID = errors.New("GA4 property id is not configured (set ga4.property_id or GA4_PROPERTY_ID)")

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	GA4       GA4Config       `yaml:"ga4"`
	Sheets    SheetsConfig    `yaml:"sheets"`
	Paths     PathsConfig     `yaml:"paths"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Watch     WatchConfig     `yaml:"watch"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int      `yaml:"port"`
	Host        string   `yaml:"host"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// GA4Config holds Google Analytics Data API settings
type GA4Config struct {
	PropertyID      string `yaml:"property_id"`
	Timezone        string `yaml:"timezone"`
	CredentialsJSON string `yaml:"credentials_json"`
	CredentialsPath string `yaml:"credentials_path"`
	BaseURL         string `yaml:"base_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	LookbackDays    int    `yaml:"lookback_days"`
	RequestPauseMS  int    `yaml:"request_pause_ms"`
}

// SheetsConfig holds the optional Google Sheets URL source
type SheetsConfig struct {
	SheetID   string `yaml:"sheet_id"`
	Range     string `yaml:"range"`
	BaseURL   string `yaml:"base_url"`
	CachePath string `yaml:"cache_path"`
}

// PathsConfig holds filesystem locations for reports, config and run logs
type PathsConfig struct {
	DataDir   string `yaml:"data_dir"`
	StoreFile string `yaml:"store_file"`
	URLConfig string `yaml:"url_config"`
	LogDir    string `yaml:"log_dir"`
}

// SchedulerConfig holds the fixed-hour report cadence
type SchedulerConfig struct {
	Enabled     *bool       `yaml:"enabled"`
	Hours       []int       `yaml:"hours"`
	MaxLogFiles int         `yaml:"max_log_files"`
	RunOnStart  bool        `yaml:"run_on_start"`
	Retry       RetryConfig `yaml:"retry"`
}

// RetryConfig selects the retry policy for failed runs. MaxAttempts 0 disables retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	BaseDelaySeconds int `yaml:"base_delay_seconds"`
	MaxDelaySeconds  int `yaml:"max_delay_seconds"`
}

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	Type          string `yaml:"type"` // "local", "s3", "dynamodb", "postgres" or "memory"
	LocalPath     string `yaml:"local_path"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Prefix      string `yaml:"s3_prefix"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"`
	DatabaseURL   string `yaml:"database_url"`
}

// RedisConfig holds the optional Redis used for the write lock
type RedisConfig struct {
	URL            string `yaml:"url"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// WatchConfig controls the data directory watcher
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// Load loads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.GA4.Timezone == "" {
		cfg.GA4.Timezone = "America/Mexico_City"
	}
	if cfg.GA4.BaseURL == "" {
		cfg.GA4.BaseURL = "https://analyticsdata.googleapis.com/v1beta"
	}
	if cfg.GA4.TimeoutSeconds == 0 {
		cfg.GA4.TimeoutSeconds = 30
	}
	if cfg.GA4.LookbackDays == 0 {
		cfg.GA4.LookbackDays = 1
	}
	if cfg.GA4.RequestPauseMS == 0 {
		cfg.GA4.RequestPauseMS = 200
	}
	if cfg.Sheets.Range == "" {
		cfg.Sheets.Range = "URLs!A:A"
	}
	if cfg.Sheets.BaseURL == "" {
		cfg.Sheets.BaseURL = "https://sheets.googleapis.com/v4"
	}
	if cfg.Sheets.CachePath == "" {
		cfg.Sheets.CachePath = "./config/urls-cache.json"
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = "./data"
	}
	if cfg.Paths.StoreFile == "" {
		cfg.Paths.StoreFile = "consolidated-reports.json"
	}
	if cfg.Paths.URLConfig == "" {
		cfg.Paths.URLConfig = "./config/urls.json"
	}
	if cfg.Paths.LogDir == "" {
		cfg.Paths.LogDir = "./logs"
	}
	if cfg.Scheduler.Enabled == nil {
		enabled := true
		cfg.Scheduler.Enabled = &enabled
	}
	if len(cfg.Scheduler.Hours) == 0 {
		cfg.Scheduler.Hours = []int{0, 6, 12, 18}
	}
	if cfg.Scheduler.MaxLogFiles == 0 {
		cfg.Scheduler.MaxLogFiles = 7
	}
	if cfg.Scheduler.Retry.BaseDelaySeconds == 0 {
		cfg.Scheduler.Retry.BaseDelaySeconds = 60
	}
	if cfg.Scheduler.Retry.MaxDelaySeconds == 0 {
		cfg.Scheduler.Retry.MaxDelaySeconds = 900
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Redis.LockTTLSeconds == 0 {
		cfg.Redis.LockTTLSeconds = 900
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars.
// A missing YAML file is not an error: defaults plus environment are used.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GA4_PROPERTY_ID"); v != "" {
		cfg.GA4.PropertyID = v
	}
	if v := os.Getenv("GA4_TIMEZONE"); v != "" {
		cfg.GA4.Timezone = v
	}
	if v := os.Getenv("GOOGLE_CREDENTIALS"); v != "" {
		cfg.GA4.CredentialsJSON = v
	}
	if v := os.Getenv("GA4_CREDENTIALS_PATH"); v != "" {
		cfg.GA4.CredentialsPath = v
	}
	if v := os.Getenv("GOOGLE_SHEET_ID"); v != "" {
		cfg.Sheets.SheetID = v
	}
	if v := os.Getenv("GOOGLE_SHEET_RANGE"); v != "" {
		cfg.Sheets.Range = v
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		cfg.Storage.DynamoDBTable = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// Address returns host:port for the HTTP listener.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorePath is the consolidated store location inside the data directory.
func (c PathsConfig) StorePath() string {
	return filepath.Join(c.DataDir, c.StoreFile)
}

// SchedulerEnabled reports whether the fixed-hour scheduler should run.
func (c SchedulerConfig) SchedulerEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Validate checks the settings required by the fetch step.
func (c GA4Config) Validate() error {
	if strings.TrimSpace(c.PropertyID) == "" {
		return ErrMissingPropertyID
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid GA4 timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the report timezone, falling back to UTC when unknown.
func (c GA4Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Credentials returns the service-account JSON, preferring the inline value.
func (c GA4Config) Credentials() ([]byte, error) {
	if strings.TrimSpace(c.CredentialsJSON) != "" {
		return []byte(c.CredentialsJSON), nil
	}
	if c.CredentialsPath == "" {
		return nil, errors.New("no Google credentials configured: set GOOGLE_CREDENTIALS or GA4_CREDENTIALS_PATH")
	}
	data, err := os.ReadFile(c.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s (or set GOOGLE_CREDENTIALS): %w", c.CredentialsPath, err)
	}
	return data, nil
}

// LockTTL is the Redis lock expiry.
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// Debounce is the watcher quiet period.
func (c WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// RequestPause is the delay between per-URL GA4 calls.
func (c GA4Config) RequestPause() time.Duration {
	return time.Duration(c.RequestPauseMS) * time.Millisecond
}

// Timeout is the per-request GA4 HTTP timeout.
func (c GA4Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
