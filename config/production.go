// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/sms-receiver/utils"
)

// ProductionConfig holds all configuration for the SMS receiver
type ProductionConfig struct {
	Server     ServerConfig     `json:"server"`
	Redis      RedisConfig      `json:"redis"`
	Security   SecurityConfig   `json:"security"`
	SMS        SMSConfig        `json:"sms"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Deployment DeploymentConfig `json:"deployment"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	AdminTimeout    time.Duration `json:"admin_timeout"` // repair walks the whole keyspace
	BodyLimit       int           `json:"body_limit"`
}

type RedisConfig struct {
	Enabled        bool          `json:"enabled"`
	URL            string        `json:"url"` // takes precedence over Host/Port when set
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	DB             int           `json:"db"`
	Password       string        `json:"password"`
	KeyPrefix      string        `json:"key_prefix"`
	DialTimeout    time.Duration `json:"dial_timeout"`
	OpTimeout      time.Duration `json:"op_timeout"`
	PoolSize       int           `json:"pool_size"`
	HealthInterval time.Duration `json:"health_interval"`
}

// Addr returns the host:port address of the Redis server
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins []string `json:"allowed_origins"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Admin endpoints (repair, clear) require one of these keys
	AdminAPIKeyHeader string   `json:"admin_api_key_header"`
	AdminAPIKeys      []string `json:"admin_api_keys"`
}

type SMSConfig struct {
	Carrier   string        `json:"carrier"` // log
	Retention time.Duration `json:"retention"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, console
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", getEnvInt("SMS_PORT", 8002)),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 10*time.Second),
			AdminTimeout:    getEnvDuration("SERVER_ADMIN_TIMEOUT", 5*time.Minute),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
		},
		Redis: RedisConfig{
			Enabled:        getEnvBool("REDIS_ENABLED", true),
			URL:            getEnvString("REDIS_URL", ""),
			Host:           getEnvString("REDIS_HOST", "localhost"),
			Port:           getEnvInt("REDIS_PORT", 6379),
			DB:             getEnvInt("REDIS_DB", 0),
			Password:       getEnvString("REDIS_PASSWORD", ""),
			KeyPrefix:      getEnvString("REDIS_KEY_PREFIX", utils.DefaultKeyPrefix),
			DialTimeout:    getEnvDuration("REDIS_DIAL_TIMEOUT", 3*time.Second),
			OpTimeout:      getEnvDuration("REDIS_OP_TIMEOUT", 3*time.Second),
			PoolSize:       getEnvInt("REDIS_POOL_SIZE", 20),
			HealthInterval: getEnvDuration("REDIS_HEALTH_INTERVAL", 30*time.Second),
		},
		Security: SecurityConfig{
			AllowedOrigins:    getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			GlobalRateLimit:   getEnvInt("RATE_LIMIT_MAX", 600),
			RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			AdminAPIKeyHeader: getEnvString("ADMIN_API_KEY_HEADER", "X-API-Key"),
			AdminAPIKeys:      getEnvStringSlice("ADMIN_API_KEYS", []string{}),
		},
		SMS: SMSConfig{
			Carrier:   getEnvString("SMS_CARRIER", "log"),
			Retention: getEnvDuration("SMS_RETENTION", utils.SMSRetention),
		},
		Logging: LoggingConfig{
			Level:           strings.ToLower(getEnvString("LOG_LEVEL", "info")),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/sms_receiver/sms_receiver.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from the given file if it exists
func loadEnvFile(envFile string) error {
	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`))) {
			value = value[1 : len(value)-1]
		}

		// Set environment variable if not already set
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.RequestTimeout <= 0 {
		errors = append(errors, "SERVER_REQUEST_TIMEOUT must be positive")
	}
	if cfg.Server.AdminTimeout <= 0 {
		errors = append(errors, "SERVER_ADMIN_TIMEOUT must be positive")
	}
	if cfg.Server.BodyLimit <= 0 {
		errors = append(errors, "SERVER_BODY_LIMIT must be positive")
	}

	// Validate redis configuration if enabled
	if cfg.Redis.Enabled {
		if cfg.Redis.URL == "" && cfg.Redis.Host == "" {
			errors = append(errors, "REDIS_HOST or REDIS_URL is required when redis is enabled")
		}
		if cfg.Redis.URL == "" && (cfg.Redis.Port <= 0 || cfg.Redis.Port > 65535) {
			errors = append(errors, "REDIS_PORT must be between 1 and 65535")
		}
		if cfg.Redis.DB < 0 {
			errors = append(errors, "REDIS_DB must not be negative")
		}
		if cfg.Redis.DialTimeout <= 0 || cfg.Redis.OpTimeout <= 0 {
			errors = append(errors, "REDIS_DIAL_TIMEOUT and REDIS_OP_TIMEOUT must be positive")
		}
	}

	if cfg.SMS.Retention <= 0 {
		errors = append(errors, "SMS_RETENTION must be positive")
	}
	if cfg.SMS.Carrier != "log" {
		errors = append(errors, "SMS_CARRIER must be one of: [log]")
	}

	// Validate logging configuration
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.Logging.Level) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}
	validOutputs := []string{"stdout", "file", "both"}
	if !contains(validOutputs, cfg.Logging.Output) {
		errors = append(errors, fmt.Sprintf("LOG_OUTPUT must be one of: %v", validOutputs))
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errors = append(errors, "LOG_FILE_PATH is required when logging to a file")
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errors = append(errors, "METRICS_PATH must start with /")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
