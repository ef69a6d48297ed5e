// Package config provides configuration management for audiarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/jmylchreest/audiarr/pkg/langcode"
)

// Default configuration values.
const (
	defaultAPIPort         = 9393
	defaultAPITimeout      = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultMaxQueueSize    = 100
	defaultWorkerCount     = 2
	defaultMP4Concurrent   = 1
	defaultTimeoutSeconds  = 300
	defaultRetryAttempts   = 2
	defaultCleanupDays     = 30
	defaultCleanupCron     = "0 3 * * *"
	defaultCacheTTLDays    = 30
)

// cronParser accepts standard 5-field cron expressions for the maintenance
// schedule. The worker pool uses the same parser.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Config holds all configuration for the application.
type Config struct {
	// LanguagePriority is the global ordered list of ISO 639-2/B codes.
	LanguagePriority []string `mapstructure:"language_priority"`

	// PathOverrides replace the global priority for matching paths; the
	// first matching glob wins.
	PathOverrides []PathOverride `mapstructure:"path_overrides"`

	// PathMappings translate Sonarr/Radarr remote paths to local ones.
	PathMappings []PathMapping `mapstructure:"path_mappings"`

	TMDB       TMDBConfig       `mapstructure:"tmdb"`
	Containers ContainersConfig `mapstructure:"containers"`
	API        APIConfig        `mapstructure:"api"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Tools      ToolsConfig      `mapstructure:"tools"`
}

// PathOverride binds a glob pattern to its own language priority list.
type PathOverride struct {
	Path             string   `mapstructure:"path"`
	LanguagePriority []string `mapstructure:"language_priority"`
}

// PathMapping rewrites one remote path prefix to a local one.
type PathMapping struct {
	Remote string `mapstructure:"remote"`
	Local  string `mapstructure:"local"`
}

// TMDBConfig holds TMDB API client configuration.
type TMDBConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	APIKey       string `mapstructure:"api_key" masq:"secret"`
	CacheTTLDays int    `mapstructure:"cache_ttl_days"`
}

// ContainersConfig gates admission per container format.
type ContainersConfig struct {
	MKV bool `mapstructure:"mkv"`
	MP4 bool `mapstructure:"mp4"`
}

// Enabled returns whether the given container is switched on.
func (c *ContainersConfig) Enabled(container string) bool {
	switch container {
	case "mkv":
		return c.MKV
	case "mp4":
		return c.MP4
	}
	return false
}

// APIConfig holds HTTP server configuration.
type APIConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	WebhookSecret   string        `mapstructure:"webhook_secret" masq:"secret"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Address returns the server address in host:port format.
func (c *APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProcessingConfig holds queue and worker pool configuration.
type ProcessingConfig struct {
	MaxQueueSize     int    `mapstructure:"max_queue_size"`
	WorkerCount      int    `mapstructure:"worker_count"`
	MaxMP4Concurrent int    `mapstructure:"max_mp4_concurrent"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	RetryAttempts    int    `mapstructure:"retry_attempts"`
	CleanupDays      int    `mapstructure:"cleanup_days"`
	CleanupSchedule  string `mapstructure:"cleanup_schedule"`
}

// Timeout returns the remux timeout as a duration.
func (c *ProcessingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ExecutionConfig holds mutation behavior switches.
type ExecutionConfig struct {
	DryRun        bool `mapstructure:"dry_run"`
	SkipIfCorrect bool `mapstructure:"skip_if_correct"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	Output     string `mapstructure:"output"` // stdout, stderr, or a file path
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// ToolsConfig holds external binary paths. Empty values resolve from PATH.
type ToolsConfig struct {
	FFprobePath     string `mapstructure:"ffprobe_path"`
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
	MkvpropeditPath string `mapstructure:"mkvpropedit_path"`
}

// FFprobe returns the ffprobe binary to invoke.
func (c *ToolsConfig) FFprobe() string {
	if c.FFprobePath != "" {
		return c.FFprobePath
	}
	return "ffprobe"
}

// FFmpeg returns the ffmpeg binary to invoke.
func (c *ToolsConfig) FFmpeg() string {
	if c.FFmpegPath != "" {
		return c.FFmpegPath
	}
	return "ffmpeg"
}

// Mkvpropedit returns the mkvpropedit binary to invoke.
func (c *ToolsConfig) Mkvpropedit() string {
	if c.MkvpropeditPath != "" {
		return c.MkvpropeditPath
	}
	return "mkvpropedit"
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with AUDIARR_ and use underscores for
// nesting. Example: AUDIARR_API_PORT=9393.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/audiarr")
		v.AddConfigPath("$HOME/.audiarr")
	}

	// Environment variable settings
	v.SetEnvPrefix("AUDIARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.normalizeLanguages()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration, used by `config init` and as
// the base for tests.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("unmarshaling default config: %v", err))
	}
	return &cfg
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	// Selection defaults
	v.SetDefault("language_priority", []string{"eng"})

	// TMDB defaults
	v.SetDefault("tmdb.enabled", true)
	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.cache_ttl_days", defaultCacheTTLDays)

	// Container defaults
	v.SetDefault("containers.mkv", true)
	v.SetDefault("containers.mp4", true)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("api.webhook_secret", "")
	v.SetDefault("api.read_timeout", defaultAPITimeout)
	v.SetDefault("api.write_timeout", defaultAPITimeout)
	v.SetDefault("api.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Processing defaults
	v.SetDefault("processing.max_queue_size", defaultMaxQueueSize)
	v.SetDefault("processing.worker_count", defaultWorkerCount)
	v.SetDefault("processing.max_mp4_concurrent", defaultMP4Concurrent)
	v.SetDefault("processing.timeout_seconds", defaultTimeoutSeconds)
	v.SetDefault("processing.retry_attempts", defaultRetryAttempts)
	v.SetDefault("processing.cleanup_days", defaultCleanupDays)
	v.SetDefault("processing.cleanup_schedule", defaultCleanupCron)

	// Execution defaults
	v.SetDefault("execution.dry_run", false)
	v.SetDefault("execution.skip_if_correct", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "audiarr.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Tool defaults (empty = resolve from PATH)
	v.SetDefault("tools.ffprobe_path", "")
	v.SetDefault("tools.ffmpeg_path", "")
	v.SetDefault("tools.mkvpropedit_path", "")
}

// normalizeLanguages converts every configured language entry to its ISO
// 639-2/B form, so "en", "eng" and "English" all select the same tracks.
func (c *Config) normalizeLanguages() {
	for i, code := range c.LanguagePriority {
		c.LanguagePriority[i] = langcode.Normalize(code)
	}
	for i := range c.PathOverrides {
		for j, code := range c.PathOverrides[i].LanguagePriority {
			c.PathOverrides[i].LanguagePriority[j] = langcode.Normalize(code)
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.LanguagePriority) == 0 {
		return fmt.Errorf("language_priority must not be empty")
	}

	for i, o := range c.PathOverrides {
		if o.Path == "" {
			return fmt.Errorf("path_overrides[%d].path is required", i)
		}
		if len(o.LanguagePriority) == 0 {
			return fmt.Errorf("path_overrides[%d].language_priority must not be empty", i)
		}
	}

	for i, m := range c.PathMappings {
		if m.Remote == "" || m.Local == "" {
			return fmt.Errorf("path_mappings[%d] requires both remote and local", i)
		}
	}

	// API validation
	const maxPort = 65535
	if c.API.Port < 1 || c.API.Port > maxPort {
		return fmt.Errorf("api.port must be between 1 and %d", maxPort)
	}

	// Processing validation
	if c.Processing.WorkerCount < 1 {
		return fmt.Errorf("processing.worker_count must be at least 1")
	}
	if c.Processing.MaxMP4Concurrent < 0 {
		return fmt.Errorf("processing.max_mp4_concurrent must not be negative")
	}
	if c.Processing.MaxMP4Concurrent > c.Processing.WorkerCount {
		return fmt.Errorf("processing.max_mp4_concurrent must not exceed worker_count")
	}
	if c.Processing.MaxQueueSize < 1 {
		return fmt.Errorf("processing.max_queue_size must be at least 1")
	}
	if c.Processing.TimeoutSeconds < 1 {
		return fmt.Errorf("processing.timeout_seconds must be at least 1")
	}
	if c.Processing.CleanupDays < 1 {
		return fmt.Errorf("processing.cleanup_days must be at least 1")
	}
	if _, err := cronParser.Parse(c.Processing.CleanupSchedule); err != nil {
		return fmt.Errorf("processing.cleanup_schedule is not a valid cron expression: %w", err)
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// TMDB validation
	if c.TMDB.Enabled && c.TMDB.CacheTTLDays < 1 {
		return fmt.Errorf("tmdb.cache_ttl_days must be at least 1")
	}

	return nil
}

// CacheTTL returns the TMDB cache lifetime as a duration.
func (c *TMDBConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLDays) * 24 * time.Hour
}

// CleanupRetention returns how long terminal jobs are kept.
func (c *ProcessingConfig) CleanupRetention() time.Duration {
	return time.Duration(c.CleanupDays) * 24 * time.Hour
}

// CleanupCron parses the maintenance schedule. Validate has already checked
// the expression, so errors here only occur on hand-built configs.
func (c *ProcessingConfig) CleanupCron() (cron.Schedule, error) {
	return cronParser.Parse(c.CleanupSchedule)
}
