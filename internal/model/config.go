package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MailHostType selects the primary mail host integration.
type MailHostType string

const (
	MailHostNone MailHostType = "none"
	MailHostEWS  MailHostType = "ews"
	MailHostIMAP MailHostType = "imap"
)

// EWSConfig holds the Exchange Web Services connection settings.
type EWSConfig struct {
	// URL is the EWS endpoint, e.g. https://mail.example.com/EWS/Exchange.asmx.
	URL string `mapstructure:"url" yaml:"url"`

	// Auth is "basic" or "oauth2".
	Auth string `mapstructure:"auth" yaml:"auth"`

	Username string `mapstructure:"username" yaml:"username"`

	// OAuth2 client-credentials settings. The client secret is read from
	// the keyring, never from this file.
	TenantTokenURL string   `mapstructure:"token_url" yaml:"token_url"`
	ClientID       string   `mapstructure:"client_id" yaml:"client_id"`
	Scopes         []string `mapstructure:"scopes" yaml:"scopes"`

	// Impersonate is the SMTP address to act on behalf of when using
	// application credentials.
	Impersonate string `mapstructure:"impersonate" yaml:"impersonate"`

	// ItemID pins the "current" message. When empty the newest inbox
	// item is used.
	ItemID string `mapstructure:"item_id" yaml:"item_id"`
}

// IMAPConfig holds the IMAP connection settings.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`

	// DraftsMailbox receives drafted replies.
	DraftsMailbox string `mapstructure:"drafts_mailbox" yaml:"drafts_mailbox"`

	// UID pins the "current" message. Zero means the newest INBOX message.
	UID uint32 `mapstructure:"uid" yaml:"uid"`
}

// MailConfig selects and configures the primary mail host.
type MailConfig struct {
	Host MailHostType `mapstructure:"host" yaml:"host"`
	EWS  EWSConfig    `mapstructure:"ews" yaml:"ews"`
	IMAP IMAPConfig   `mapstructure:"imap" yaml:"imap"`
}

// ProviderEndpoint configures one AI provider.
type ProviderEndpoint struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// ProvidersConfig holds settings for the AI provider adapters.
type ProvidersConfig struct {
	OpenAI    ProviderEndpoint `mapstructure:"openai" yaml:"openai"`
	Gemini    ProviderEndpoint `mapstructure:"gemini" yaml:"gemini"`
	Claude    ProviderEndpoint `mapstructure:"claude" yaml:"claude"`
	MaxTokens int              `mapstructure:"max_tokens" yaml:"max_tokens"`

	// Timeout bounds a single provider call. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Trace dumps provider HTTP traffic to the debug log.
	Trace bool `mapstructure:"trace" yaml:"trace"`
}

// SettingsConfig selects where user settings are persisted.
type SettingsConfig struct {
	// Backend is "sqlite" or "keyring".
	Backend string `mapstructure:"backend" yaml:"backend"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
}

// BridgeConfig controls the local bridge-channel listener.
type BridgeConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`

	// File is the log destination. Empty logs to stderr, which only makes
	// sense for headless commands since the TUI owns the terminal.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mail      MailConfig      `mapstructure:"mail" yaml:"mail"`
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Settings  SettingsConfig  `mapstructure:"settings" yaml:"settings"`
	Bridge    BridgeConfig    `mapstructure:"bridge" yaml:"bridge"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// ConfigDir returns ~/.config/mailassist.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailassist")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailassist/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Mail: MailConfig{
			Host: MailHostNone,
			EWS: EWSConfig{
				Auth: "basic",
			},
			IMAP: IMAPConfig{
				Port:          "993",
				TLS:           true,
				DraftsMailbox: "Drafts",
			},
		},
		Providers: ProvidersConfig{
			OpenAI: ProviderEndpoint{
				BaseURL: "https://api.openai.com",
				Model:   "gpt-4o",
			},
			Gemini: ProviderEndpoint{
				BaseURL: "https://generativelanguage.googleapis.com",
				Model:   "gemini-pro",
			},
			Claude: ProviderEndpoint{
				BaseURL: "https://api.anthropic.com",
				Model:   "claude-3-opus-20240229",
			},
			MaxTokens: 1024,
			Timeout:   120 * time.Second,
		},
		Settings: SettingsConfig{
			Backend: "sqlite",
			DBPath:  filepath.Join(ConfigDir(), "settings.db"),
		},
		Bridge: BridgeConfig{
			Enabled: true,
			Addr:    "127.0.0.1:7878",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   filepath.Join(ConfigDir(), "mailassist.log"),
		},
	}
}

var envKeyReplacer = strings.NewReplacer(".", "_")

// setDefaults registers every default with v so missing keys resolve to
// sensible values.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("mail.host", string(d.Mail.Host))
	v.SetDefault("mail.ews.auth", d.Mail.EWS.Auth)
	v.SetDefault("mail.imap.port", d.Mail.IMAP.Port)
	v.SetDefault("mail.imap.tls", d.Mail.IMAP.TLS)
	v.SetDefault("mail.imap.drafts_mailbox", d.Mail.IMAP.DraftsMailbox)
	v.SetDefault("providers.openai.base_url", d.Providers.OpenAI.BaseURL)
	v.SetDefault("providers.openai.model", d.Providers.OpenAI.Model)
	v.SetDefault("providers.gemini.base_url", d.Providers.Gemini.BaseURL)
	v.SetDefault("providers.gemini.model", d.Providers.Gemini.Model)
	v.SetDefault("providers.claude.base_url", d.Providers.Claude.BaseURL)
	v.SetDefault("providers.claude.model", d.Providers.Claude.Model)
	v.SetDefault("providers.max_tokens", d.Providers.MaxTokens)
	v.SetDefault("providers.timeout", d.Providers.Timeout)
	v.SetDefault("settings.backend", d.Settings.Backend)
	v.SetDefault("settings.db_path", d.Settings.DBPath)
	v.SetDefault("bridge.enabled", d.Bridge.Enabled)
	v.SetDefault("bridge.addr", d.Bridge.Addr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// Environment variables prefixed with MAILASSIST_ override file values
// (e.g. MAILASSIST_MAIL_HOST=imap).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("mailassist")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v, DefaultAppConfig())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks enumerated fields.
func (c *AppConfig) Validate() error {
	switch c.Mail.Host {
	case MailHostNone, MailHostEWS, MailHostIMAP:
	case "":
		c.Mail.Host = MailHostNone
	default:
		return fmt.Errorf("mail.host: unknown host %q", c.Mail.Host)
	}

	switch c.Settings.Backend {
	case "sqlite", "keyring":
	default:
		return fmt.Errorf("settings.backend: unknown backend %q", c.Settings.Backend)
	}

	if c.Mail.Host == MailHostEWS {
		if c.Mail.EWS.URL == "" {
			return fmt.Errorf("mail.ews.url is required when mail.host is ews")
		}
		if c.Mail.EWS.Auth != "basic" && c.Mail.EWS.Auth != "oauth2" {
			return fmt.Errorf("mail.ews.auth: unknown auth %q", c.Mail.EWS.Auth)
		}
	}

	if c.Mail.Host == MailHostIMAP && c.Mail.IMAP.Host == "" {
		return fmt.Errorf("mail.imap.host is required when mail.host is imap")
	}

	if c.Providers.Timeout < 0 {
		return fmt.Errorf("providers.timeout must not be negative")
	}

	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mail", cfg.Mail)
	v.Set("providers", cfg.Providers)
	v.Set("settings", cfg.Settings)
	v.Set("bridge", cfg.Bridge)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
