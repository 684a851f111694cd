package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/secretaryai/secretary/internal/database"
)

// Config represents the runtime configuration for the Secretary backend.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Email     EmailConfig     `mapstructure:"email"`
}

// CalendarConfig holds the OAuth application credentials used to refresh
// per-user Google Calendar tokens.
type CalendarConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures authentication-related settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// AssistantConfig points at the language-model API used for summaries,
// classification, and briefings.
type AssistantConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig holds the cadence of every background trigger.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`

	EmailPollInterval    time.Duration `mapstructure:"email_poll_interval"`
	CalendarPollInterval time.Duration `mapstructure:"calendar_poll_interval"`
	ReminderInterval     time.Duration `mapstructure:"reminder_interval"`
	BriefingInterval     time.Duration `mapstructure:"briefing_interval"`
	FlushInterval        time.Duration `mapstructure:"flush_interval"`

	// FlushGrace is how long an alert stays pending before the flush
	// trigger marks it sent.
	FlushGrace time.Duration `mapstructure:"flush_grace"`

	// TriggerTimeout bounds a single trigger run, external calls included.
	TriggerTimeout time.Duration `mapstructure:"trigger_timeout"`
}

// EmailConfig captures the system-level outbound email settings used for
// alert delivery when a user has no personal SMTP configuration.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DatabaseSettings maps the configuration onto the database package config.
func (c *Config) DatabaseSettings() database.Config {
	cfg := database.Config{
		Driver: c.Database.Driver,
		Path:   c.Database.Path,
		DSN:    c.Database.DSN,
	}

	switch strings.ToLower(c.Database.Driver) {
	case "postgres":
		cfg.Host = c.Database.Postgres.Host
		cfg.Port = c.Database.Postgres.Port
		cfg.User = c.Database.Postgres.Username
		cfg.Password = c.Database.Postgres.Password
		cfg.Name = c.Database.Postgres.Database
	case "mysql":
		cfg.Host = c.Database.MySQL.Host
		cfg.Port = c.Database.MySQL.Port
		cfg.User = c.Database.MySQL.Username
		cfg.Password = c.Database.MySQL.Password
		cfg.Name = c.Database.MySQL.Database
	}

	return cfg
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWT.Secret) == "" {
		return errors.New("config: auth.jwt.secret is required")
	}
	if c.Assistant.Enabled && strings.TrimSpace(c.Assistant.APIKey) == "" {
		return errors.New("config: assistant.api_key is required when assistant is enabled")
	}
	return nil
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("SECRETARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/secretary.sqlite")

	v.SetDefault("auth.jwt.issuer", "secretary")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("assistant.enabled", true)
	v.SetDefault("assistant.base_url", "https://api.openai.com/v1")
	v.SetDefault("assistant.model", "gpt-4o-mini")
	v.SetDefault("assistant.max_tokens", 400)
	v.SetDefault("assistant.timeout", "20s")

	v.SetDefault("calendar.enabled", true)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.email_poll_interval", "5m")
	v.SetDefault("scheduler.calendar_poll_interval", "10m")
	v.SetDefault("scheduler.reminder_interval", "1m")
	v.SetDefault("scheduler.briefing_interval", "1m")
	v.SetDefault("scheduler.flush_interval", "30s")
	v.SetDefault("scheduler.flush_grace", "10s")
	v.SetDefault("scheduler.trigger_timeout", "2m")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}
