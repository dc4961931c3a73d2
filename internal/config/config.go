// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Mailing MailingConfig `yaml:"mailing"`
	Storage StorageConfig `yaml:"storage"`
	SMTP    SMTPConfig    `yaml:"smtp"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// MailingConfig holds batch sending configuration.
type MailingConfig struct {
	BatchSize   int `yaml:"batch_size"`
	SendDelayMS int `yaml:"send_delay_ms"`
}

// SendDelay returns the pause between sends as a duration.
func (c MailingConfig) SendDelay() time.Duration {
	return time.Duration(c.SendDelayMS) * time.Millisecond
}

// StorageConfig holds file storage locations.
type StorageConfig struct {
	DataDir       string `yaml:"data_dir"`
	UploadDir     string `yaml:"upload_dir"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// SMTPConfig holds relay connection settings. Host/port per provider are
// fixed defaults; only the timeout is tunable.
type SMTPConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c SMTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Mailing: MailingConfig{
			BatchSize:   10,
			SendDelayMS: 2000,
		},
		Storage: StorageConfig{
			DataDir:   "./data",
			UploadDir: "./uploads",
		},
		SMTP: SMTPConfig{
			TimeoutSeconds: 30,
		},
	}
}

// Load reads the config file at path, layered over defaults. A missing file
// is not an error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file in the working directory is honored when present.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Mailing.BatchSize = n
		}
	}
	if v := os.Getenv("SEND_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Mailing.SendDelayMS = n
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Storage.PublicBaseURL = v
	}

	return cfg, nil
}
