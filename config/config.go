package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the webhook HTTP listener settings.
type ServerConfig struct {
	Listen string `yaml:"listen" envconfig:"SERVER_LISTEN"`
	Port   int    `yaml:"port" envconfig:"SERVER_PORT"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Listen, s.Port)
}

// ViberConfig holds messaging platform settings. AuthToken doubles as the
// shared secret for webhook signature verification.
type ViberConfig struct {
	AuthToken  string `yaml:"auth_token" envconfig:"VIBER_AUTH_TOKEN"`
	WebhookURL string `yaml:"webhook_url" envconfig:"VIBER_WEBHOOK_URL"`
	BotName    string `yaml:"bot_name" envconfig:"VIBER_BOT_NAME"`
	BotAvatar  string `yaml:"bot_avatar" envconfig:"VIBER_BOT_AVATAR"`
	// APIURL overrides the platform REST endpoint, used in tests.
	APIURL string `yaml:"api_url" envconfig:"VIBER_API_URL"`
}

// StorageConfig selects and configures the durable user store backend.
type StorageConfig struct {
	// Driver is one of "postgres", "sqlite", "memory".
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	// EncryptionKey is a base64-encoded 32-byte key for credential sealing.
	EncryptionKey string `yaml:"encryption_key" envconfig:"STORAGE_ENCRYPTION_KEY"`

	// Path locates the database file for the sqlite driver.
	Path string `yaml:"path" envconfig:"STORAGE_PATH"`

	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Key decodes the configured encryption key.
func (s StorageConfig) Key() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("storage.encryption_key is not valid base64: %w", err)
	}
	return raw, nil
}

// OpenAIConfig holds upstream provider settings and per-call deadlines.
type OpenAIConfig struct {
	BaseURL    string `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	ChatModel  string `yaml:"chat_model" envconfig:"OPENAI_CHAT_MODEL"`
	ImageModel string `yaml:"image_model" envconfig:"OPENAI_IMAGE_MODEL"`
	AudioModel string `yaml:"audio_model" envconfig:"OPENAI_AUDIO_MODEL"`

	CompleteTimeoutSeconds   int `yaml:"complete_timeout_seconds" envconfig:"OPENAI_COMPLETE_TIMEOUT_SECONDS"`
	ImageTimeoutSeconds      int `yaml:"image_timeout_seconds" envconfig:"OPENAI_IMAGE_TIMEOUT_SECONDS"`
	TranscribeTimeoutSeconds int `yaml:"transcribe_timeout_seconds" envconfig:"OPENAI_TRANSCRIBE_TIMEOUT_SECONDS"`
}

// SenderConfig controls the outbound dispatcher queue.
type SenderConfig struct {
	QueueSize          int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers            int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	SendTimeoutSeconds int `yaml:"send_timeout_seconds" envconfig:"SENDER_SEND_TIMEOUT_SECONDS"`
}

// MediaConfig controls inbound media file handling for transcription.
type MediaConfig struct {
	Dir           string `yaml:"dir" envconfig:"MEDIA_DIR"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb" envconfig:"MEDIA_MAX_FILE_SIZE_MB"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	File        string `yaml:"file" envconfig:"LOG_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`

	// Rotation settings for the file sink.
	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// Config aggregates the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Viber   ViberConfig   `yaml:"viber"`
	Storage StorageConfig `yaml:"storage"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Sender  SenderConfig  `yaml:"sender"`
	Media   MediaConfig   `yaml:"media"`
	Logging LoggingConfig `yaml:"logging"`
}

const (
	// DriverPostgres selects the postgres store backend.
	DriverPostgres = "postgres"
	// DriverSQLite selects the single-file sqlite store backend.
	DriverSQLite = "sqlite"
	// DriverMemory selects the in-memory store, for development only.
	DriverMemory = "memory"
)

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required configuration fields and applies defaults.
// Missing required settings are startup-fatal by contract.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Viber.AuthToken) == "" {
		return fmt.Errorf("viber.auth_token is required")
	}
	if cfg.Viber.BotName == "" {
		cfg.Viber.BotName = "Smart Assistant"
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = "0.0.0.0"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8087
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverPostgres:
		if cfg.Storage.Host == "" || cfg.Storage.Name == "" || cfg.Storage.User == "" {
			return fmt.Errorf("storage: host, name and user are required for the postgres driver")
		}
		if cfg.Storage.Port == "" {
			cfg.Storage.Port = "5432"
		}
		if cfg.Storage.SSLMode == "" {
			cfg.Storage.SSLMode = "disable"
		}
		if cfg.Storage.MaxConnections <= 0 {
			cfg.Storage.MaxConnections = 10
		}
	case DriverSQLite:
		if cfg.Storage.Path == "" {
			cfg.Storage.Path = "data/user_data.db"
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: postgres, sqlite, memory", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver

	key, err := cfg.Storage.Key()
	if err != nil {
		return err
	}
	if len(key) != 32 {
		return fmt.Errorf("storage.encryption_key must decode to 32 bytes, got %d", len(key))
	}

	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com"
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.OpenAI.ImageModel == "" {
		cfg.OpenAI.ImageModel = "dall-e-2"
	}
	if cfg.OpenAI.AudioModel == "" {
		cfg.OpenAI.AudioModel = "whisper-1"
	}
	if cfg.OpenAI.CompleteTimeoutSeconds <= 0 {
		cfg.OpenAI.CompleteTimeoutSeconds = 60
	}
	if cfg.OpenAI.ImageTimeoutSeconds <= 0 {
		cfg.OpenAI.ImageTimeoutSeconds = 180
	}
	if cfg.OpenAI.TranscribeTimeoutSeconds <= 0 {
		cfg.OpenAI.TranscribeTimeoutSeconds = 300
	}

	if cfg.Sender.QueueSize <= 0 {
		cfg.Sender.QueueSize = 256
	}
	if cfg.Sender.Workers <= 0 {
		cfg.Sender.Workers = 4
	}
	if cfg.Sender.SendTimeoutSeconds <= 0 {
		cfg.Sender.SendTimeoutSeconds = 12
	}

	if cfg.Media.Dir == "" {
		cfg.Media.Dir = os.TempDir()
	}
	if cfg.Media.MaxFileSizeMB <= 0 {
		cfg.Media.MaxFileSizeMB = 50
	}

	return nil
}
