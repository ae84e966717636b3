package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"tokenaudit/internal/pkg/validator"
)

const (
	placeholderAdminToken = "your-admin-token"
	placeholderFromEmail  = "alerts@yourcompany.com"
)

type Config struct {
	GitLab  GitLabConfig  `mapstructure:"gitlab"`
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Logging LoggingConfig `mapstructure:"logging"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

type GitLabConfig struct {
	URL        string        `mapstructure:"url"`
	AdminToken string        `mapstructure:"admin_token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PerPage    int           `mapstructure:"per_page"`
}

type SMTPConfig struct {
	Server    string   `mapstructure:"server"`
	Port      int      `mapstructure:"port"`
	FromEmail string   `mapstructure:"from_email"`
	ToEmails  []string `mapstructure:"to_emails"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	UseSSL    bool     `mapstructure:"use_ssl"`
	UseTLS    bool     `mapstructure:"use_tls"`
}

type MonitorConfig struct {
	DaysThreshold        int  `mapstructure:"days_threshold"`
	IncludeProjectTokens bool `mapstructure:"include_project_tokens"`
	IncludeGroupTokens   bool `mapstructure:"include_group_tokens"`
	SendAllTokens        bool `mapstructure:"send_all_tokens"`
	Concurrency          int  `mapstructure:"concurrency"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type AuditConfig struct {
	DatabasePath   string `mapstructure:"database_path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type WorkerConfig struct {
	Addr         string        `mapstructure:"addr"`
	RunAtHour    int           `mapstructure:"run_at_hour"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// WebhookConfig configures the optional run-completed webhook. An empty URL
// disables it.
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Flat environment names used by existing deployments.
var legacyEnv = map[string]string{
	"gitlab.url":                     "GITLAB_URL",
	"gitlab.admin_token":             "GITLAB_ADMIN_TOKEN",
	"smtp.server":                    "SMTP_SERVER",
	"smtp.port":                      "SMTP_PORT",
	"smtp.from_email":                "FROM_EMAIL",
	"smtp.to_emails":                 "TO_EMAILS",
	"smtp.username":                  "SMTP_USERNAME",
	"smtp.password":                  "SMTP_PASSWORD",
	"smtp.use_ssl":                   "SMTP_USE_SSL",
	"smtp.use_tls":                   "SMTP_USE_TLS",
	"monitor.days_threshold":         "DAYS_THRESHOLD",
	"monitor.include_project_tokens": "INCLUDE_PROJECT_TOKENS",
	"monitor.include_group_tokens":   "INCLUDE_GROUP_TOKENS",
	"monitor.send_all_tokens":        "SEND_ALL_TOKENS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gitlab.url", "https://your-gitlab.com")
	v.SetDefault("gitlab.admin_token", placeholderAdminToken)
	v.SetDefault("gitlab.timeout", 30*time.Second)
	v.SetDefault("gitlab.per_page", 100)

	v.SetDefault("smtp.server", "smtp.gmail.com")
	v.SetDefault("smtp.port", 465)
	v.SetDefault("smtp.from_email", placeholderFromEmail)
	v.SetDefault("smtp.to_emails", "admin@yourcompany.com")
	v.SetDefault("smtp.use_ssl", true)
	v.SetDefault("smtp.use_tls", false)

	v.SetDefault("monitor.days_threshold", 7)
	v.SetDefault("monitor.include_project_tokens", true)
	v.SetDefault("monitor.include_group_tokens", true)
	v.SetDefault("monitor.send_all_tokens", false)
	v.SetDefault("monitor.concurrency", 4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.file_path", "")

	v.SetDefault("audit.database_path", "")
	v.SetDefault("audit.max_connections", 1)

	v.SetDefault("worker.addr", ":8090")
	v.SetDefault("worker.run_at_hour", 6)
	v.SetDefault("worker.read_timeout", 10*time.Second)
	v.SetDefault("worker.write_timeout", 10*time.Second)

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.timeout", 10*time.Second)
}

// Load reads configuration from the optional file at path and from the
// environment. Environment values win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config.GitLab.URL = strings.TrimRight(config.GitLab.URL, "/")
	config.SMTP.ToEmails = splitRecipients(config.SMTP.ToEmails)

	return &config, nil
}

// TO_EMAILS arrives as one comma separated string; a YAML list arrives
// already split. Both end up as a clean slice.
func splitRecipients(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, addr := range strings.Split(entry, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

var (
	ErrMissingAdminToken = errors.New("GITLAB_ADMIN_TOKEN is required")
	ErrMissingFromEmail  = errors.New("FROM_EMAIL is required")
	ErrMissingRecipients = errors.New("TO_EMAILS must list at least one address")
)

// Validate reports the first configuration problem that would stop a run.
func (c *Config) Validate() error {
	if c.GitLab.AdminToken == "" || c.GitLab.AdminToken == placeholderAdminToken {
		return ErrMissingAdminToken
	}
	if c.GitLab.URL == "" {
		return errors.New("GITLAB_URL is required")
	}
	if c.SMTP.FromEmail == "" || c.SMTP.FromEmail == placeholderFromEmail {
		return ErrMissingFromEmail
	}
	if err := validator.Address(c.SMTP.FromEmail); err != nil {
		return fmt.Errorf("FROM_EMAIL: %w", err)
	}
	if len(c.SMTP.ToEmails) == 0 {
		return ErrMissingRecipients
	}
	for _, addr := range c.SMTP.ToEmails {
		if err := validator.Address(addr); err != nil {
			return fmt.Errorf("TO_EMAILS: %w", err)
		}
	}
	if c.Monitor.DaysThreshold < 0 {
		return fmt.Errorf("DAYS_THRESHOLD must be >= 0, got %d", c.Monitor.DaysThreshold)
	}
	if c.Monitor.Concurrency < 1 {
		return fmt.Errorf("monitor.concurrency must be >= 1, got %d", c.Monitor.Concurrency)
	}
	if c.Worker.RunAtHour < 0 || c.Worker.RunAtHour > 23 {
		return fmt.Errorf("worker.run_at_hour must be between 0 and 23, got %d", c.Worker.RunAtHour)
	}
	if c.Webhook.URL != "" {
		if err := validator.WebhookURL(c.Webhook.URL); err != nil {
			return fmt.Errorf("webhook.url: %w", err)
		}
	}
	return nil
}

// HasAdminToken reports whether a real admin token is configured, for
// startup logging without printing the secret.
func (c *Config) HasAdminToken() bool {
	return c.GitLab.AdminToken != "" && c.GitLab.AdminToken != placeholderAdminToken
}
