package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

type ProgressConfig struct {
	Interval time.Duration `yaml:"interval"`
	Step     int           `yaml:"step"`
	Cap      int           `yaml:"cap"`
}

type Config struct {
	AccessToken         string         `yaml:"access_token"`
	Port                string         `yaml:"port"`
	OutputDir           string         `yaml:"output_dir"`
	LogLevel            string         `yaml:"log_level"`
	LogFormat           string         `yaml:"log_format"`
	CompressionLevel    int            `yaml:"compression_level"`
	Progress            ProgressConfig `yaml:"progress"`
	WatchDir            string         `yaml:"watch_dir"`
	WatchSettle         time.Duration  `yaml:"watch_settle"`
	NotifyCommand       string         `yaml:"notify_command"`
	AuditLogEnabled     bool           `yaml:"audit_log_enabled"`
	AuditLogFilePath    string         `yaml:"audit_log_file_path"`
	AuditLogSizeLimitMB int            `yaml:"audit_log_size_limit_mb"`
	OperationRetention  time.Duration  `yaml:"operation_retention"`
	TLSEnabled          bool           `yaml:"tls_enabled"`
	TLSCertDir          string         `yaml:"tls_cert_dir"`
}

func Default() *Config {
	return &Config{
		Port:                "8765",
		OutputDir:           desktopDir(),
		LogLevel:            "info",
		LogFormat:           "json",
		CompressionLevel:    9,
		Progress:            ProgressConfig{Interval: 300 * time.Millisecond, Step: 10, Cap: 90},
		WatchSettle:         time.Second,
		AuditLogFilePath:    filepath.Join(stateDir(), "audit.jsonl"),
		AuditLogSizeLimitMB: 20,
		OperationRetention:  30 * time.Minute,
		TLSCertDir:          filepath.Join(stateDir(), "tls"),
	}
}

// Load applies, in order: defaults, the YAML file at path (when it exists) and
// ZIPHUB_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.AccessToken = getEnv("ZIPHUB_ACCESS_TOKEN", cfg.AccessToken)
	cfg.Port = getEnv("ZIPHUB_PORT", cfg.Port)
	cfg.OutputDir = getEnv("ZIPHUB_OUTPUT_DIR", cfg.OutputDir)
	cfg.LogLevel = getEnv("ZIPHUB_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("ZIPHUB_LOG_FORMAT", cfg.LogFormat)
	cfg.CompressionLevel = getEnvInt("ZIPHUB_COMPRESSION_LEVEL", cfg.CompressionLevel)
	cfg.Progress.Interval = getEnvDuration("ZIPHUB_PROGRESS_INTERVAL", cfg.Progress.Interval)
	cfg.Progress.Step = getEnvInt("ZIPHUB_PROGRESS_STEP", cfg.Progress.Step)
	cfg.Progress.Cap = getEnvInt("ZIPHUB_PROGRESS_CAP", cfg.Progress.Cap)
	cfg.WatchDir = getEnv("ZIPHUB_WATCH_DIR", cfg.WatchDir)
	cfg.WatchSettle = getEnvDuration("ZIPHUB_WATCH_SETTLE", cfg.WatchSettle)
	cfg.NotifyCommand = getEnv("ZIPHUB_NOTIFY_COMMAND", cfg.NotifyCommand)
	cfg.AuditLogEnabled = getEnvBool("ZIPHUB_AUDIT_LOG_ENABLED", cfg.AuditLogEnabled)
	cfg.AuditLogFilePath = getEnv("ZIPHUB_AUDIT_LOG_FILE_PATH", cfg.AuditLogFilePath)
	cfg.AuditLogSizeLimitMB = getEnvInt("ZIPHUB_AUDIT_LOG_SIZE_LIMIT_MB", cfg.AuditLogSizeLimitMB)
	cfg.OperationRetention = getEnvDuration("ZIPHUB_OPERATION_RETENTION", cfg.OperationRetention)
	cfg.TLSEnabled = getEnvBool("ZIPHUB_TLS_ENABLED", cfg.TLSEnabled)
	cfg.TLSCertDir = getEnv("ZIPHUB_TLS_CERT_DIR", cfg.TLSCertDir)
}

func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %q", c.Port)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	if c.CompressionLevel < -2 || c.CompressionLevel > 9 {
		return fmt.Errorf("compression_level must be between -2 and 9, got %d", c.CompressionLevel)
	}
	if c.Progress.Interval <= 0 {
		return fmt.Errorf("progress.interval must be positive")
	}
	if c.Progress.Step <= 0 {
		return fmt.Errorf("progress.step must be positive")
	}
	if c.Progress.Cap < 1 || c.Progress.Cap > 99 {
		return fmt.Errorf("progress.cap must be between 1 and 99, got %d", c.Progress.Cap)
	}
	if c.TLSEnabled && c.TLSCertDir == "" {
		return fmt.Errorf("tls_cert_dir is required when tls_enabled is set")
	}
	if c.WatchDir != "" && samePath(c.WatchDir, c.OutputDir) {
		return fmt.Errorf("watch_dir must differ from output_dir")
	}
	return nil
}

func (c *Config) AuditLogSizeLimitBytes() int64 {
	return int64(c.AuditLogSizeLimitMB) * 1024 * 1024
}

func desktopDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Desktop")
}

func stateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ziphub")
	}
	return filepath.Join(dir, "ziphub")
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func Module(cfg *Config) fx.Option {
	return fx.Supply(cfg)
}
