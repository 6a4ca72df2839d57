// Package config loads outreach settings from a YAML file, a .env file and
// OUTREACH_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OUTREACH_TRACKER_INTERVAL.
const EnvPrefix = "OUTREACH"

// Mail providers.
const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

// PathsConfig locates the campaign files.
type PathsConfig struct {
	Pending   string `mapstructure:"pending"`
	Responded string `mapstructure:"responded"`
	Selection string `mapstructure:"selection"`
	History   string `mapstructure:"history"`
	// Credentials is the Google OAuth client secret JSON.
	Credentials string `mapstructure:"credentials"`
	// Tokens is the directory holding per-account OAuth tokens.
	Tokens string `mapstructure:"tokens"`
}

// TrackerConfig tunes the reply tracking loop.
type TrackerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	Backoff         time.Duration `mapstructure:"backoff"`
	Lookback        time.Duration `mapstructure:"lookback"`
	PersistAttempts int           `mapstructure:"persist_attempts"`
}

// IMAPConfig is used when Mail.Provider is "imap".
type IMAPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	From     string `mapstructure:"from"`
	Mailbox  string `mapstructure:"mailbox"`
	Security string `mapstructure:"security"`
}

// MailConfig selects the mail provider.
type MailConfig struct {
	Provider string     `mapstructure:"provider"`
	Account  string     `mapstructure:"account"`
	IMAP     IMAPConfig `mapstructure:"imap"`
}

// DispatchConfig paces campaign sends.
type DispatchConfig struct {
	Rate        float64 `mapstructure:"rate"`
	Burst       int     `mapstructure:"burst"`
	MaxFailures int     `mapstructure:"max_failures"`
}

// SuggestConfig configures the suggestion model.
type SuggestConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

// ServerConfig configures the optional metrics and health endpoint.
type ServerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Config is the complete outreach configuration.
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Mail     MailConfig     `mapstructure:"mail"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Suggest  SuggestConfig  `mapstructure:"suggest"`
	Server   ServerConfig   `mapstructure:"server"`

	// File is the config file that was read, or "" when none was found.
	File string `mapstructure:"-"`
}

// DefaultConfigPath returns ~/.config/outreach/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "outreach", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.pending", "influencer.csv")
	v.SetDefault("paths.responded", "responded.csv")
	v.SetDefault("paths.selection", "final_selection.json")
	v.SetDefault("paths.history", "outreach.db")
	v.SetDefault("paths.credentials", "credentials.json")
	v.SetDefault("paths.tokens", "")

	v.SetDefault("tracker.interval", 60*time.Second)
	v.SetDefault("tracker.backoff", 5*time.Second)
	v.SetDefault("tracker.lookback", 48*time.Hour)
	v.SetDefault("tracker.persist_attempts", 3)

	v.SetDefault("mail.provider", ProviderGmail)
	v.SetDefault("mail.account", "default")
	v.SetDefault("mail.imap.host", "")
	v.SetDefault("mail.imap.port", 993)
	v.SetDefault("mail.imap.smtp_host", "")
	v.SetDefault("mail.imap.smtp_port", 465)
	v.SetDefault("mail.imap.username", "")
	v.SetDefault("mail.imap.from", "")
	v.SetDefault("mail.imap.mailbox", "INBOX")
	v.SetDefault("mail.imap.security", "tls")

	v.SetDefault("dispatch.rate", 1.0)
	v.SetDefault("dispatch.burst", 1)
	v.SetDefault("dispatch.max_failures", 5)

	v.SetDefault("suggest.model", "gemini-2.5-flash")
	v.SetDefault("suggest.temperature", 0.8)

	v.SetDefault("server.metrics_addr", "")
}

// Load reads the configuration. When path is empty, ./outreach.yaml and then
// DefaultConfigPath are tried; a missing file yields the defaults. A .env
// file in the working directory is loaded into the environment first and
// never overrides variables that are already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		file = findConfigFile()
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if path != "" || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
				return nil, fmt.Errorf("reading config %s: %w", file, err)
			}
			file = ""
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", file, err)
	}
	cfg.File = file

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	for _, candidate := range []string{"outreach.yaml", DefaultConfigPath()} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Paths.Pending == "" || c.Paths.Responded == "" {
		return fmt.Errorf("paths.pending and paths.responded are required")
	}
	if c.Paths.Pending == c.Paths.Responded {
		return fmt.Errorf("paths.pending and paths.responded must differ")
	}
	if c.Tracker.Interval <= 0 {
		return fmt.Errorf("tracker.interval must be positive, got %s", c.Tracker.Interval)
	}
	if c.Tracker.Backoff <= 0 {
		return fmt.Errorf("tracker.backoff must be positive, got %s", c.Tracker.Backoff)
	}
	if c.Tracker.Lookback <= 0 {
		return fmt.Errorf("tracker.lookback must be positive, got %s", c.Tracker.Lookback)
	}
	if c.Tracker.PersistAttempts < 1 {
		return fmt.Errorf("tracker.persist_attempts must be at least 1")
	}
	switch c.Mail.Provider {
	case ProviderGmail, ProviderIMAP:
	default:
		return fmt.Errorf("invalid mail.provider %q (must be gmail or imap)", c.Mail.Provider)
	}
	if c.Dispatch.Rate <= 0 {
		return fmt.Errorf("dispatch.rate must be positive")
	}
	if c.Dispatch.Burst < 1 {
		return fmt.Errorf("dispatch.burst must be at least 1")
	}
	if c.Suggest.Temperature < 0 || c.Suggest.Temperature > 2 {
		return fmt.Errorf("suggest.temperature must be between 0 and 2")
	}
	return nil
}
