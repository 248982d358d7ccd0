package config

import (
	"errors"
	"fmt"
	"os"

	"rostersync/internal/models"
	"rostersync/internal/sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig          `yaml:"app"`
	Database   DatabaseConfig     `yaml:"database"`
	Redis      RedisConfig        `yaml:"redis"`
	Monitoring MonitoringConfig   `yaml:"monitoring"`
	Logging    LoggingConfig      `yaml:"logging"`
	API        APIConfig          `yaml:"api"`
	Google     GoogleConfig       `yaml:"google"`
	Sync       SyncConfig         `yaml:"sync"`
	Targets    []sync.Target      `yaml:"targets"`
	ShiftCodes []models.ShiftCode `yaml:"shift_codes"`
	Exports    ExportConfig       `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	HealthCheckPort   int    `yaml:"health_check_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// MutationsPerMinute caps import/export/restore dispatches per API
	// key; enforced through the run repository so it holds across
	// replicas. Zero disables the cap.
	MutationsPerMinute int `yaml:"mutations_per_minute"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	DefaultSpreadsheetID string `yaml:"default_spreadsheet_id"`
}

type SyncConfig struct {
	QueueConcurrency int    `yaml:"queue_concurrency"`
	PerItemDelayMs   int    `yaml:"per_item_delay_ms"`
	RateLimitDelayMs int    `yaml:"rate_limit_delay_ms"`
	MaxItemRetries   int    `yaml:"max_item_retries"`
	RetryMaxAttempts int    `yaml:"retry_max_attempts"`
	RunTTLSeconds    int    `yaml:"run_ttl_seconds"`
	ShiftCodesFile   string `yaml:"shift_codes_file"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads the YAML config, expanding ${VAR} references from the
// environment (and .env when present) first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if len(c.Targets) > 0 && c.Google.CredentialsFile == "" {
		return errors.New("google credentials file is required when targets are configured")
	}

	return ValidateTargets(c.Targets)
}

// ValidateTargets rejects preset lists an operator would trip over at
// request time: unnamed targets, duplicate names, missing coordinates.
func ValidateTargets(targets []sync.Target) error {
	names := make(map[string]bool, len(targets))
	for _, t := range targets {
		if t.Name == "" {
			return fmt.Errorf("target for sheet %q has no name", t.SheetName)
		}
		if names[t.Name] {
			return fmt.Errorf("duplicate target name: %s", t.Name)
		}
		names[t.Name] = true
		if t.SpreadsheetID == "" {
			return fmt.Errorf("target %q has no spreadsheet_id", t.Name)
		}
		if t.SheetName == "" {
			return fmt.Errorf("target %q has no sheet_name", t.Name)
		}
		for _, b := range t.RowBlocks {
			if b.Start < 1 || b.End < b.Start {
				return fmt.Errorf("target %q has invalid row block %d..%d", t.Name, b.Start, b.End)
			}
		}
	}
	return nil
}

// Target returns the named preset, if configured.
func (c *Config) Target(name string) (sync.Target, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return sync.Target{}, false
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Sync.QueueConcurrency == 0 {
		c.Sync.QueueConcurrency = models.DefaultQueueConcurrency
	}
	if c.Sync.PerItemDelayMs == 0 {
		c.Sync.PerItemDelayMs = models.DefaultPerItemDelayMs
	}
	if c.Sync.RateLimitDelayMs == 0 {
		c.Sync.RateLimitDelayMs = models.DefaultRateLimitDelayMs
	}
	if c.Sync.RunTTLSeconds == 0 {
		c.Sync.RunTTLSeconds = models.DefaultRunTTL
	}
}
