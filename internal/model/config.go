package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailConfig holds the IMAP and SMTP settings for the shared mailbox.
// One credential pair serves both protocols: the mailbox is both the
// issue address vendors reply to and the inbox the monitor polls.
type MailConfig struct {
	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`

	Username string `mapstructure:"username" yaml:"username"`

	// Password may be left empty to resolve from the OS keyring instead.
	Password string `mapstructure:"password" yaml:"password"`

	// Folder is the monitored IMAP mailbox.
	Folder string `mapstructure:"folder" yaml:"folder"`

	// TLS selects implicit TLS; false falls back to STARTTLS.
	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// PollConfig controls the monitor's polling loop.
type PollConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// MaxConsecutiveErrors halts the continuous loop once this many
	// cycles in a row fail.
	MaxConsecutiveErrors int `mapstructure:"max_consecutive_errors" yaml:"max_consecutive_errors"`

	// LockPath is the cross-process mutual-exclusion lock file.
	LockPath string `mapstructure:"lock_path" yaml:"lock_path"`
}

// AIConfig holds settings for the reply analyzer.
type AIConfig struct {
	// APIKey may be left empty to resolve from the OS keyring instead.
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`

	// ConfidenceThreshold flags drafts below it in pending listings.
	// Informational only; it never blocks a send.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`

	// TeamName is the sign-off used in outbound drafts.
	TeamName string `mapstructure:"team_name" yaml:"team_name"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DBPath string     `mapstructure:"db_path" yaml:"db_path"`
	Mail   MailConfig `mapstructure:"mail" yaml:"mail"`
	Poll   PollConfig `mapstructure:"poll" yaml:"poll"`
	AI     AIConfig   `mapstructure:"ai" yaml:"ai"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/vendormail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "vendormail", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	home, _ := os.UserHomeDir()
	return &AppConfig{
		DBPath: filepath.Join(home, ".config", "vendormail", "vendormail.db"),
		Mail: MailConfig{
			IMAPPort: "993",
			SMTPPort: "465",
			Folder:   "INBOX",
			TLS:      true,
		},
		Poll: PollConfig{
			IntervalSec:          120,
			MaxConsecutiveErrors: 5,
			LockPath:             filepath.Join(os.TempDir(), "vendormail-poll.lock"),
		},
		AI: AIConfig{
			Model:               "claude-sonnet-4-20250514",
			MaxTokens:           1024,
			ConfidenceThreshold: 0.6,
			TeamName:            "Procurement Team",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("mail.imap_port", def.Mail.IMAPPort)
	v.SetDefault("mail.smtp_port", def.Mail.SMTPPort)
	v.SetDefault("mail.folder", def.Mail.Folder)
	v.SetDefault("mail.tls", def.Mail.TLS)
	v.SetDefault("poll.interval_sec", def.Poll.IntervalSec)
	v.SetDefault("poll.max_consecutive_errors", def.Poll.MaxConsecutiveErrors)
	v.SetDefault("poll.lock_path", def.Poll.LockPath)
	v.SetDefault("ai.model", def.AI.Model)
	v.SetDefault("ai.max_tokens", def.AI.MaxTokens)
	v.SetDefault("ai.confidence_threshold", def.AI.ConfidenceThreshold)
	v.SetDefault("ai.team_name", def.AI.TeamName)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
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

	v.Set("db_path", cfg.DBPath)
	v.Set("mail", cfg.Mail)
	v.Set("poll", cfg.Poll)
	v.Set("ai", cfg.AI)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
