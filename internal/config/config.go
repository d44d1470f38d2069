package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Vision     VisionConfig     `mapstructure:"vision"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Bulletin   BulletinConfig   `mapstructure:"bulletin"`
	Returns    ReturnsConfig    `mapstructure:"returns"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimit       string        `mapstructure:"body_limit"` // human size, e.g. "50MB"
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// BodyLimitBytes parses BodyLimit
func (s ServerConfig) BodyLimitBytes() (int64, error) {
	n, err := units.RAMInBytes(s.BodyLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid server.body_limit %q: %w", s.BodyLimit, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("server.body_limit must be positive, got %q", s.BodyLimit)
	}
	return n, nil
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// VisionConfig holds the vision model API configuration
type VisionConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BaseBackoff    time.Duration `mapstructure:"base_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	PromptsPath    string        `mapstructure:"prompts_path"`
}

// ExtractionConfig tunes the text classifier
type ExtractionConfig struct {
	NoiseTokens     []string `mapstructure:"noise_tokens"`
	DefaultAudience string   `mapstructure:"default_audience"`
	MaxPDFPages     int      `mapstructure:"max_pdf_pages"`
	JPEGQuality     int      `mapstructure:"jpeg_quality"`
}

// BulletinConfig holds daily-info settings
type BulletinConfig struct {
	MergeDuplicateDays bool          `mapstructure:"merge_duplicate_days"`
	RepairOnStartup    bool          `mapstructure:"repair_on_startup"`
	WorkdaysAhead      int           `mapstructure:"workdays_ahead"`
	WorkdayInterval    time.Duration `mapstructure:"workday_interval"`
}

// ReturnsConfig holds returns scanning settings
type ReturnsConfig struct {
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

// StorageConfig holds upload archive settings. An empty UploadDir disables archiving.
type StorageConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. A .env file
// in the working directory is applied first when present. An empty configPath
// uses defaults and environment only.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.body_limit", "50MB")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.path", "data/store-ops.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Vision defaults
	v.SetDefault("vision.model", "gpt-4o")
	v.SetDefault("vision.max_tokens", 4096)
	v.SetDefault("vision.request_timeout", 90*time.Second)
	v.SetDefault("vision.max_attempts", 3)
	v.SetDefault("vision.base_backoff", 2*time.Second)
	v.SetDefault("vision.max_backoff", 30*time.Second)

	v.SetDefault("extraction.noise_tokens", []string{})
	v.SetDefault("extraction.default_audience", "")
	v.SetDefault("extraction.max_pdf_pages", 20)
	v.SetDefault("extraction.jpeg_quality", 85)

	v.SetDefault("bulletin.merge_duplicate_days", true)
	v.SetDefault("bulletin.repair_on_startup", true)
	v.SetDefault("bulletin.workdays_ahead", 3)
	v.SetDefault("bulletin.workday_interval", 6*time.Hour)

	v.SetDefault("returns.session_ttl", 2*time.Hour)
	v.SetDefault("returns.janitor_interval", 5*time.Minute)

	v.SetDefault("storage.upload_dir", "data/uploads")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"vision.api_key":     {"VISION_API_KEY", "OPENAI_API_KEY"},
		"vision.base_url":    {"VISION_BASE_URL"},
		"vision.model":       {"VISION_MODEL"},
		"server.port":        {"PORT"},
		"database.path":      {"DATABASE_PATH"},
		"storage.upload_dir": {"UPLOAD_DIR"},
		"logger.level":       {"LOG_LEVEL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Vision.APIKey == "" {
		return fmt.Errorf("vision.api_key is required")
	}
	if c.Vision.MaxAttempts <= 0 {
		return fmt.Errorf("vision.max_attempts must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := c.Server.BodyLimitBytes(); err != nil {
		return err
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Returns.SessionTTL <= 0 {
		return fmt.Errorf("returns.session_ttl must be positive")
	}
	return nil
}
