package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gymaccess/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Notification NotificationConfig `yaml:"notification"`
	Booking      BookingConfig      `yaml:"booking"`
	Exports      ExportConfig       `yaml:"exports"`
	Google       GoogleConfig       `yaml:"google"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

// Location resolves the configured time zone used for quota windows and receipts.
func (c AppConfig) Location() (*time.Location, error) {
	tz := c.Timezone
	if tz == "" {
		tz = models.DefaultTimezone
	}
	return time.LoadLocation(tz)
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
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

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
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

const (
	ChannelSMTP     = "smtp"
	ChannelTelegram = "telegram"
	ChannelLog      = "log"
)

type NotificationConfig struct {
	Channel         string         `yaml:"channel"`
	OperationsEmail string         `yaml:"operations_email"`
	SubjectPrefix   string         `yaml:"subject_prefix"`
	SMTP            SMTPConfig     `yaml:"smtp"`
	Telegram        TelegramConfig `yaml:"telegram"`
	TimeoutSeconds  int            `yaml:"timeout_seconds"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Debug    bool   `yaml:"debug"`
}

type BookingConfig struct {
	AttemptTTL        int `yaml:"attempt_ttl"`
	AttemptRateLimit  int `yaml:"attempt_rate_limit"`
	AttemptRateWindow int `yaml:"attempt_rate_window"`
	ConfirmLockTTL    int `yaml:"confirm_lock_ttl"`
}

type GoogleConfig struct {
	GoogleCredentialsFile  string `yaml:"credentials_file"`
	AccessLogSpreadSheetID string `yaml:"access_log_spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен: переменные могут прийти из окружения контейнера
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
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
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("invalid app timezone %q: %w", c.App.Timezone, err)
	}

	// the confirm lock has to outlive a slow notification send
	if c.Booking.ConfirmLockTTL > 0 && c.Notification.TimeoutSeconds > 0 &&
		c.Booking.ConfirmLockTTL <= c.Notification.TimeoutSeconds {
		return fmt.Errorf("booking.confirm_lock_ttl (%ds) must exceed notification.timeout_seconds (%ds)",
			c.Booking.ConfirmLockTTL, c.Notification.TimeoutSeconds)
	}

	return c.Notification.Validate()
}

func (n NotificationConfig) Validate() error {
	switch strings.ToLower(n.Channel) {
	case ChannelSMTP:
		if n.OperationsEmail == "" {
			return errors.New("notification.operations_email is required for smtp")
		}
		if n.SMTP.Host == "" || n.SMTP.Username == "" {
			return errors.New("notification.smtp host and username are required")
		}
	case ChannelTelegram:
		if n.Telegram.BotToken == "" || n.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
			return errors.New("notification.telegram.bot_token is required")
		}
		if n.Telegram.ChatID == 0 {
			return errors.New("notification.telegram.chat_id is required")
		}
	case ChannelLog:
	default:
		return fmt.Errorf("unknown notification channel: %q", n.Channel)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Timezone == "" {
		c.App.Timezone = models.DefaultTimezone
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Notification defaults
	if c.Notification.Channel == "" {
		c.Notification.Channel = ChannelSMTP
	}
	c.Notification.Channel = strings.ToLower(c.Notification.Channel)
	if c.Notification.SMTP.Host == "" && c.Notification.Channel == ChannelSMTP {
		c.Notification.SMTP.Host = "smtp.office365.com"
	}
	if c.Notification.SMTP.Port == 0 {
		c.Notification.SMTP.Port = 587
	}
	if c.Notification.SMTP.From == "" {
		c.Notification.SMTP.From = c.Notification.SMTP.Username
	}
	if c.Notification.TimeoutSeconds == 0 {
		c.Notification.TimeoutSeconds = 30
	}

	// Booking defaults
	if c.Booking.AttemptTTL == 0 {
		c.Booking.AttemptTTL = models.DefaultAttemptTTL
	}
	if c.Booking.AttemptRateLimit == 0 {
		c.Booking.AttemptRateLimit = models.DefaultAttemptRateLimit
	}
	if c.Booking.AttemptRateWindow == 0 {
		c.Booking.AttemptRateWindow = models.DefaultAttemptRateWindow
	}
	if c.Booking.ConfirmLockTTL == 0 {
		c.Booking.ConfirmLockTTL = models.DefaultConfirmLockTTL
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "./exports"
	}
}
