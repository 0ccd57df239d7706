package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Drive     DriveConfig     `yaml:"drive" envconfig:"DRIVE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	SecureCookies  bool            `yaml:"secure_cookies" envconfig:"SECURE_COOKIES" default:"false"`
	SessionTTL     time.Duration   `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"8h"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// DatabaseConfig contains SQLite configuration
type DatabaseConfig struct {
	Path        string        `yaml:"path" envconfig:"PATH" default:"data/inspection_system.db"`
	BusyTimeout time.Duration `yaml:"busy_timeout" envconfig:"BUSY_TIMEOUT" default:"5s"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	ExecutableDir string `yaml:"executable_dir" envconfig:"EXECUTABLE_DIR"`
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	UploadsDir    string `yaml:"uploads_dir" envconfig:"UPLOADS_DIR" default:"data/uploads"`
	ReportsDir    string `yaml:"reports_dir" envconfig:"REPORTS_DIR" default:"data/reports"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// DriveConfig configures the optional Google Drive report mirror.
// The mirror stays disabled unless credentials are configured.
type DriveConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	FolderID        string `yaml:"folder_id" envconfig:"FOLDER_ID"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("SITEPULSE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// getConfigFilePath returns the config file path, overridable via env.
func getConfigFilePath() string {
	if p := os.Getenv("SITEPULSE_CONFIG"); p != "" {
		return p
	}
	exeDir, err := executableDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(exeDir, "config.yaml")
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Server.Port == 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if envConfig.Server.ReadTimeout == 0 {
		envConfig.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if envConfig.Server.WriteTimeout == 0 {
		envConfig.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if envConfig.Database.Path == "" {
		envConfig.Database.Path = fileConfig.Database.Path
	}
	if envConfig.Database.BusyTimeout == 0 {
		envConfig.Database.BusyTimeout = fileConfig.Database.BusyTimeout
	}
	if envConfig.Logging.Level == "" {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if envConfig.Logging.FilePath == "" {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if len(envConfig.Security.AllowedOrigins) == 0 {
		envConfig.Security.AllowedOrigins = fileConfig.Security.AllowedOrigins
	}
	if envConfig.Security.SessionTTL == 0 {
		envConfig.Security.SessionTTL = fileConfig.Security.SessionTTL
	}
	if !envConfig.Drive.Enabled && fileConfig.Drive.Enabled {
		envConfig.Drive = fileConfig.Drive
	}
	return envConfig
}

// resolvePaths sets up the executable directory and resolves relative paths
func (c *Config) resolvePaths() error {
	paths, err := GetPaths()
	if err != nil {
		return fmt.Errorf("failed to get paths: %w", err)
	}

	c.Paths.ExecutableDir = paths.ExecutableDir

	if !filepath.IsAbs(c.Database.Path) {
		c.Database.Path = filepath.Join(paths.ExecutableDir, c.Database.Path)
	}
	if !filepath.IsAbs(c.Logging.FilePath) {
		c.Logging.FilePath = filepath.Join(paths.ExecutableDir, c.Logging.FilePath)
	}
	return nil
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.Security.SessionTTL <= 0 {
		c.Security.SessionTTL = SessionTimeout
	}
	if c.Drive.Enabled && c.Drive.CredentialsFile == "" {
		return fmt.Errorf("drive sync enabled but no credentials file configured")
	}
	return nil
}
