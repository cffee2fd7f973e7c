package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// FileLoggingConfig represents file-based logging configuration
type FileLoggingConfig struct {
	Enabled    bool   `json:"enabled" toml:"enabled"`           // Whether file logging is enabled
	Filename   string `json:"filename" toml:"filename"`         // Log file path (empty = XDG cache path)
	MaxSizeMB  int    `json:"max_size_mb" toml:"max_size_mb"`   // Max file size in MB before rotation
	MaxBackups int    `json:"max_backups" toml:"max_backups"`   // Max number of backup files to keep
	MaxAgeDays int    `json:"max_age_days" toml:"max_age_days"` // Max age in days before deletion
	Compress   bool   `json:"compress" toml:"compress"`         // Whether to compress rotated files
}

// Config represents groove tool configuration
type Config struct {
	LogLevel           string             `json:"log_level" toml:"log_level"`                         // debug, info, warn, error
	EngineLogLevel     string             `json:"engine_log_level" toml:"engine_log_level"`           // quiet, error, warning, info
	PlaybackBackend    string             `json:"playback_backend" toml:"playback_backend"`           // auto, malgo, oto
	TagDatabase        string             `json:"tag_database" toml:"tag_database"`                   // empty = XDG data path
	SinkBufferSize     int                `json:"sink_buffer_size" toml:"sink_buffer_size"`           // frames
	EncoderBitRateKbps int                `json:"encoder_bit_rate_kbps" toml:"encoder_bit_rate_kbps"` // used when --bitrate is not given
	FillMode           string             `json:"fill_mode" toml:"fill_mode"`                         // every, any
	FileLogging        *FileLoggingConfig `json:"file_logging,omitempty" toml:"file_logging,omitempty"`
}

// XDGInterface defines the interface for XDG directory operations
type XDGInterface interface {
	GetConfigPaths(filename string) []string
	GetCachePath(purpose string) string
	GetDataPath(filename string) string
	CreateCacheDir(purpose string) error
}

// ConfigManager handles loading, saving, and validating configuration
type ConfigManager struct {
	xdg XDGInterface
	fs  afero.Fs
}

// NewConfigManager creates a new configuration manager on the OS filesystem
func NewConfigManager() *ConfigManager {
	return NewConfigManagerWithFilesystem(afero.NewOsFs())
}

// NewConfigManagerWithFilesystem creates a configuration manager reading from fs
func NewConfigManagerWithFilesystem(fs afero.Fs) *ConfigManager {
	slog.Debug("creating new config manager")
	return &ConfigManager{
		xdg: NewXDGDirs(),
		fs:  fs,
	}
}

// GetDefaultConfig returns the default configuration
func (cm *ConfigManager) GetDefaultConfig() *Config {
	defaultConfig := &Config{
		LogLevel:           "warn",
		EngineLogLevel:     "error",
		PlaybackBackend:    "auto",
		TagDatabase:        "",
		SinkBufferSize:     8192,
		EncoderBitRateKbps: 256,
		FillMode:           "every",
		FileLogging: &FileLoggingConfig{
			Enabled:    false,
			Filename:   "",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}

	slog.Debug("generated default config",
		"log_level", defaultConfig.LogLevel,
		"engine_log_level", defaultConfig.EngineLogLevel,
		"playback_backend", defaultConfig.PlaybackBackend,
		"file_logging_enabled", defaultConfig.FileLogging.Enabled)

	return defaultConfig
}

// LoadFromFile loads configuration from a JSON or TOML file. Fields missing
// from the file keep their default values.
func (cm *ConfigManager) LoadFromFile(filePath string) (*Config, error) {
	slog.Debug("loading config from file", "file_path", filePath)

	data, err := afero.ReadFile(cm.fs, filePath)
	if err != nil {
		slog.Error("failed to read config file", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := cm.GetDefaultConfig()
	if strings.EqualFold(filepath.Ext(filePath), ".toml") {
		if _, err := toml.Decode(string(data), config); err != nil {
			slog.Error("failed to parse config TOML", "file_path", filePath, "error", err)
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	} else if err := json.Unmarshal(data, config); err != nil {
		slog.Error("failed to parse config JSON", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cm.ValidateConfig(config); err != nil {
		slog.Error("config validation failed", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Debug("config loaded successfully",
		"file_path", filePath,
		"log_level", config.LogLevel,
		"playback_backend", config.PlaybackBackend)

	return config, nil
}

// SaveToFile saves configuration as indented JSON
func (cm *ConfigManager) SaveToFile(config *Config, filePath string) error {
	slog.Debug("saving config to file", "file_path", filePath)

	if err := cm.ValidateConfig(config); err != nil {
		slog.Error("cannot save invalid config", "error", err)
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(filePath)
	if err := cm.fs.MkdirAll(dir, 0755); err != nil {
		slog.Error("failed to create config directory", "directory", dir, "error", err)
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		slog.Error("failed to marshal config", "error", err)
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(cm.fs, filePath, data, 0644); err != nil {
		slog.Error("failed to write config file", "file_path", filePath, "error", err)
		return fmt.Errorf("failed to write config file: %w", err)
	}

	slog.Info("config saved successfully", "file_path", filePath)
	return nil
}

// LoadConfig loads configuration using XDG path discovery. config.json is
// preferred over config.toml in the same directory.
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	slog.Debug("loading config using XDG path discovery")

	var configPaths []string
	jsonPaths := cm.xdg.GetConfigPaths("config.json")
	tomlPaths := cm.xdg.GetConfigPaths("config.toml")
	for i := range jsonPaths {
		configPaths = append(configPaths, jsonPaths[i])
		if i < len(tomlPaths) {
			configPaths = append(configPaths, tomlPaths[i])
		}
	}

	for i, configPath := range configPaths {
		slog.Debug("checking config path", "path_index", i, "path", configPath)

		if _, err := cm.fs.Stat(configPath); err == nil {
			slog.Debug("found config file", "path", configPath)
			return cm.LoadFromFile(configPath)
		}
	}

	slog.Debug("no config file found, using defaults")
	return cm.GetDefaultConfig(), nil
}

var (
	validLogLevels       = []string{"debug", "info", "warn", "error"}
	validEngineLogLevels = []string{"quiet", "error", "warning", "info"}
	validFillModes       = []string{"every", "any"}
)

// ValidateConfig validates configuration values
func (cm *ConfigManager) ValidateConfig(config *Config) error {
	var errors []string

	if config.LogLevel != "" && !slices.Contains(validLogLevels, config.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s', must be one of: %s",
			config.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	if config.EngineLogLevel != "" && !slices.Contains(validEngineLogLevels, config.EngineLogLevel) {
		errors = append(errors, fmt.Sprintf("invalid engine log level '%s', must be one of: %s",
			config.EngineLogLevel, strings.Join(validEngineLogLevels, ", ")))
	}

	if !cm.IsValidPlaybackBackend(config.PlaybackBackend) {
		errors = append(errors, fmt.Sprintf("invalid playback backend '%s', must be one of: %s",
			config.PlaybackBackend, strings.Join(cm.GetSupportedPlaybackBackends(), ", ")))
	}

	if config.FillMode != "" && !slices.Contains(validFillModes, config.FillMode) {
		errors = append(errors, fmt.Sprintf("invalid fill mode '%s', must be one of: %s",
			config.FillMode, strings.Join(validFillModes, ", ")))
	}

	if config.SinkBufferSize < 0 {
		errors = append(errors, fmt.Sprintf("sink_buffer_size must be >= 0, got %d", config.SinkBufferSize))
	}

	if config.EncoderBitRateKbps < 0 {
		errors = append(errors, fmt.Sprintf("encoder_bit_rate_kbps must be >= 0, got %d", config.EncoderBitRateKbps))
	}

	if config.FileLogging != nil {
		fileLogging := config.FileLogging

		if fileLogging.MaxSizeMB < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_size_mb must be >= 0, got %d", fileLogging.MaxSizeMB))
		}

		if fileLogging.MaxBackups < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_backups must be >= 0, got %d", fileLogging.MaxBackups))
		}

		if fileLogging.MaxAgeDays < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_age_days must be >= 0, got %d", fileLogging.MaxAgeDays))
		}
	}

	if len(errors) > 0 {
		errMsg := strings.Join(errors, "; ")
		slog.Error("config validation failed", "errors", errMsg)
		return fmt.Errorf("config validation failed: %s", errMsg)
	}

	slog.Debug("config validation passed")
	return nil
}

// MergeConfigs merges two configurations, with override taking precedence
func (cm *ConfigManager) MergeConfigs(base, override *Config) *Config {
	slog.Debug("merging configurations")

	merged := *base

	if override.LogLevel != "" {
		merged.LogLevel = override.LogLevel
	}
	if override.EngineLogLevel != "" {
		merged.EngineLogLevel = override.EngineLogLevel
	}
	if override.PlaybackBackend != "" {
		merged.PlaybackBackend = override.PlaybackBackend
	}
	if override.TagDatabase != "" {
		merged.TagDatabase = override.TagDatabase
	}
	if override.SinkBufferSize != 0 {
		merged.SinkBufferSize = override.SinkBufferSize
	}
	if override.EncoderBitRateKbps != 0 {
		merged.EncoderBitRateKbps = override.EncoderBitRateKbps
	}
	if override.FillMode != "" {
		merged.FillMode = override.FillMode
	}
	if override.FileLogging != nil {
		fileLogging := *override.FileLogging
		merged.FileLogging = &fileLogging
	}

	slog.Debug("configurations merged successfully")
	return &merged
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are kept.
func (cm *ConfigManager) LoadEnvFile(path string) error {
	f, err := cm.fs.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open env file: %w", err)
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse env file: %w", err)
	}

	for key, value := range values {
		if _, ok := os.LookupEnv(key); ok {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	slog.Debug("env file loaded", "path", path, "variables", len(values))
	return nil
}

// ApplyEnvironmentOverrides applies environment variable overrides to config
func (cm *ConfigManager) ApplyEnvironmentOverrides(config *Config) *Config {
	slog.Debug("applying environment variable overrides")

	result := *config

	if logLevel := os.Getenv("GROOVE_LOG_LEVEL"); logLevel != "" {
		if slices.Contains(validLogLevels, logLevel) {
			result.LogLevel = logLevel
			slog.Debug("applied log level override from environment", "value", logLevel)
		} else {
			slog.Warn("invalid GROOVE_LOG_LEVEL environment variable", "value", logLevel)
		}
	}

	if engineLog := os.Getenv("GROOVE_ENGINE_LOG"); engineLog != "" {
		if slices.Contains(validEngineLogLevels, engineLog) {
			result.EngineLogLevel = engineLog
			slog.Debug("applied engine log level override from environment", "value", engineLog)
		} else {
			slog.Warn("invalid GROOVE_ENGINE_LOG environment variable", "value", engineLog)
		}
	}

	if backend := os.Getenv("GROOVE_PLAYBACK_BACKEND"); backend != "" {
		if cm.IsValidPlaybackBackend(backend) {
			result.PlaybackBackend = backend
			slog.Debug("applied playback backend override from environment", "value", backend)
		} else {
			slog.Warn("invalid GROOVE_PLAYBACK_BACKEND environment variable", "value", backend)
		}
	}

	if tagDB := os.Getenv("GROOVE_TAG_DB"); tagDB != "" {
		result.TagDatabase = tagDB
		slog.Debug("applied tag database override from environment", "value", tagDB)
	}

	if rateStr := os.Getenv("GROOVE_BIT_RATE"); rateStr != "" {
		if rate, err := strconv.Atoi(rateStr); err == nil && rate > 0 {
			result.EncoderBitRateKbps = rate
			slog.Debug("applied bit rate override from environment", "value", rate)
		} else {
			slog.Warn("invalid GROOVE_BIT_RATE environment variable", "value", rateStr, "error", err)
		}
	}

	slog.Debug("environment overrides applied")
	return &result
}

// ResolveLogFilePath resolves the log file path using XDG cache directory when filename is empty
func (cm *ConfigManager) ResolveLogFilePath(filename string) string {
	if filename != "" {
		return filename
	}
	return filepath.Join(cm.xdg.GetCachePath("logs"), "groove.log")
}

// PrepareLogFile resolves the log file path and creates its directory. The
// default location lives in the XDG cache directory.
func (cm *ConfigManager) PrepareLogFile(filename string) (string, error) {
	path := cm.ResolveLogFilePath(filename)
	if filename == "" {
		if err := cm.xdg.CreateCacheDir("logs"); err != nil {
			return "", fmt.Errorf("failed to create log directory: %w", err)
		}
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return path, nil
}

// UserConfigPath returns where a user level config.json is looked up first.
func (cm *ConfigManager) UserConfigPath() string {
	return cm.xdg.GetConfigPaths("config.json")[0]
}

// ResolveTagDatabasePath resolves the tag database path using the XDG data
// directory when path is empty
func (cm *ConfigManager) ResolveTagDatabasePath(path string) string {
	if path != "" {
		return path
	}
	return cm.xdg.GetDataPath("tags.db")
}

// GetSupportedPlaybackBackends returns a list of all supported playback backend types
func (cm *ConfigManager) GetSupportedPlaybackBackends() []string {
	return []string{"auto", "malgo", "oto"}
}

// IsValidPlaybackBackend checks if a playback backend type is supported
func (cm *ConfigManager) IsValidPlaybackBackend(backend string) bool {
	// Empty string is valid (defaults to auto)
	if backend == "" {
		return true
	}
	return slices.Contains(cm.GetSupportedPlaybackBackends(), backend)
}
