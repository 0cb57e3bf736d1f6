package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration (§"Configuration" /
// §"Validation" of the ambient stack). Layering mirrors the teacher's
// LoadFromFiles: defaults -> file(s) -> environment -> CLI flags.
type Config struct {
	Environment string                `toml:"environment" validate:"oneof=development production"`
	Server      ServerConfig          `toml:"server"`
	Storage     StorageConfig         `toml:"storage"`
	Logging     LoggingConfig         `toml:"logging"`
	JobManager  JobManagerConfig      `toml:"job_manager"`
	Scraper     ScraperDefaultsConfig `toml:"scraper"`
	GitHub      GitHubConfig          `toml:"github"`
	Recovery    RecoveryConfig        `toml:"recovery"`
	RemoteProxy RemoteProxyConfig     `toml:"remote_proxy"`
}

// ServerConfig is the host/port the optional remote-proxy websocket relay
// listens on (component 9; contract-only front-end).
type ServerConfig struct {
	Port int    `toml:"port" validate:"min=0,max=65535"`
	Host string `toml:"host"`
}

// StorageConfig groups the reference Store's embedded-KV settings.
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig configures the badgerstore reference Store implementation.
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// LoggingConfig configures the arbor logger.
type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Format     string   `toml:"format"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
}

// JobManagerConfig configures the Manager's dispatch concurrency.
type JobManagerConfig struct {
	Concurrency int `toml:"concurrency" validate:"min=1"`
}

// ScraperDefaultsConfig holds the [scraper] table's default values,
// mirroring the teacher's CrawlerConfig defaults. No component reads them:
// ScraperOptions are used as the caller passes them, and
// models.DefaultScraperOptions carries its own defaults.
type ScraperDefaultsConfig struct {
	UserAgent      string        `toml:"user_agent"`
	MaxConcurrency int           `toml:"max_concurrency" validate:"min=1"`
	MaxDepth       int           `toml:"max_depth" validate:"min=0"`
	MaxPages       int           `toml:"max_pages" validate:"min=1"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	FollowRedirects bool         `toml:"follow_redirects"`
}

// GitHubConfig configures the GitHub source strategy's API client.
type GitHubConfig struct {
	Token string `toml:"token"`
}

// RecoveryConfig toggles the one-shot RUNNING->QUEUED crash-recovery sweep
// the Manager runs synchronously at Start() (§5); there is no periodic
// schedule, only a process-start-time reconciliation.
type RecoveryConfig struct {
	Enabled bool `toml:"enabled"`
}

// RemoteProxyConfig configures the optional websocket event relay.
type RemoteProxyConfig struct {
	Enabled bool `toml:"enabled"`
}

// NewDefaultConfig returns a Config populated with production-safe
// defaults; only user-facing settings need to be present in ingestor.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/ingestor.db",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		JobManager: JobManagerConfig{
			Concurrency: 4,
		},
		Scraper: ScraperDefaultsConfig{
			UserAgent:       "ingestor/1.0 (+https://github.com/ternarybob/ingestor)",
			MaxConcurrency:  5,
			MaxDepth:        5,
			MaxPages:        1000,
			RequestTimeout:  30 * time.Second,
			FollowRedirects: true,
		},
		Recovery: RecoveryConfig{
			Enabled: true,
		},
		RemoteProxy: RemoteProxyConfig{
			Enabled: false,
		},
	}
}

// LoadFromFiles loads configuration from zero or more TOML files, applying
// each on top of the defaults in order (later files win), then environment
// overrides. Mirrors the teacher's common.LoadFromFiles layering.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateConfig runs struct-tag validation over a loaded Config,
// grounding the ambient stack's "validation -> FATAL" rule.
func ValidateConfig(config *Config) error {
	return validator.New().Struct(config)
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("INGESTOR_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("INGESTOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("INGESTOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("INGESTOR_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("INGESTOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if concurrency := os.Getenv("INGESTOR_JOB_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.JobManager.Concurrency = c
		}
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		config.GitHub.Token = token
	}
	if token := os.Getenv("INGESTOR_GITHUB_TOKEN"); token != "" {
		config.GitHub.Token = token
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config,
// highest priority in the layering chain.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}
