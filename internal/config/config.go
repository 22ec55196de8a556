package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"taskboard/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
	QueueSQLite = "sqlite"

	BindingsMemory   = "memory"
	BindingsRedis    = "redis"
	BindingsSQLite   = "sqlite"
	BindingsFailover = "failover"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Auth          AuthConfig          `yaml:"auth"`
	API           APIConfig           `yaml:"api"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	APIEndpoint  string  `yaml:"api_endpoint"`
	Debug        bool    `yaml:"debug"`
	PollInterval int     `yaml:"poll_interval"`
	PollTimeout  int     `yaml:"poll_timeout"`
	SendRate     float64 `yaml:"send_rate"`
	// PersistCursor keeps the getUpdates cursor in Redis across restarts.
	PersistCursor bool `yaml:"persist_cursor"`
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

type NotificationsConfig struct {
	Queue        string `yaml:"queue"`
	QueueSize    int    `yaml:"queue_size"`
	Workers      int    `yaml:"workers"`
	RedisKey     string `yaml:"redis_key"`
	BindingStore string `yaml:"binding_store"`
}

type AuthConfig struct {
	HandshakeSecret string `yaml:"handshake_secret"`
	// HandshakeTTL in minutes; 0 issues keys that never expire.
	HandshakeTTL int `yaml:"handshake_ttl"`
}

type APIConfig struct {
	Enabled        bool               `yaml:"enabled"`
	Port           int                `yaml:"port"`
	IdentityHeader string             `yaml:"identity_header"`
	RateLimit      APIRateLimitConfig `yaml:"rate_limit"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
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
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if len(c.Auth.HandshakeSecret) < 32 {
		return errors.New("auth handshake secret must be at least 32 characters")
	}

	switch c.Notifications.Queue {
	case QueueMemory, QueueSQLite:
	case QueueRedis:
		if c.Redis.Address == "" {
			return errors.New("notifications.queue=redis requires redis.address")
		}
	default:
		return fmt.Errorf("unknown notifications.queue %q", c.Notifications.Queue)
	}

	switch c.Notifications.BindingStore {
	case BindingsMemory, BindingsSQLite:
	case BindingsRedis, BindingsFailover:
		if c.Redis.Address == "" {
			return fmt.Errorf("notifications.binding_store=%s requires redis.address", c.Notifications.BindingStore)
		}
	default:
		return fmt.Errorf("unknown notifications.binding_store %q", c.Notifications.BindingStore)
	}

	if c.Telegram.PersistCursor && c.Redis.Address == "" {
		return errors.New("telegram.persist_cursor requires redis.address")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "taskboard"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.IdentityHeader == "" {
		c.API.IdentityHeader = "X-User"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = models.RateLimitRequests
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Telegram.PollInterval <= 0 {
		c.Telegram.PollInterval = models.DefaultPollInterval
	}
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = models.DefaultPollTimeout
	}
	if c.Telegram.SendRate <= 0 {
		c.Telegram.SendRate = models.DefaultSendRate
	}

	c.Notifications.Queue = strings.ToLower(strings.TrimSpace(c.Notifications.Queue))
	if c.Notifications.Queue == "" {
		c.Notifications.Queue = QueueSQLite
	}
	c.Notifications.BindingStore = strings.ToLower(strings.TrimSpace(c.Notifications.BindingStore))
	if c.Notifications.BindingStore == "" {
		c.Notifications.BindingStore = BindingsSQLite
	}
	if c.Notifications.QueueSize <= 0 {
		c.Notifications.QueueSize = models.DefaultQueueSize
	}
	if c.Notifications.Workers <= 0 {
		c.Notifications.Workers = models.DefaultNotifyWorkers
	}
	if c.Notifications.RedisKey == "" {
		c.Notifications.RedisKey = "taskboard:notifications"
	}
}
