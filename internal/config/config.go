// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for keepalive-cli.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Login    LoginConfig    `mapstructure:"login" yaml:"login"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch"`
	Accounts AccountsConfig `mapstructure:"accounts" yaml:"accounts"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance driven by chromedp.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath        string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	Debug           bool          `mapstructure:"debug" yaml:"debug"`
	Persona         PersonaConfig `mapstructure:"persona" yaml:"persona"`
}

// PersonaConfig describes the fingerprint the browser presents to the panel.
type PersonaConfig struct {
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Platform  string   `mapstructure:"platform" yaml:"platform"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	Width     int64    `mapstructure:"width" yaml:"width"`
	Height    int64    `mapstructure:"height" yaml:"height"`
}

// LoginConfig tunes a single login attempt.
type LoginConfig struct {
	NavigationTimeout      time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	LocatorTimeout         time.Duration  `mapstructure:"locator_timeout" yaml:"locator_timeout"`
	SettleDelay            time.Duration  `mapstructure:"settle_delay" yaml:"settle_delay"`
	PostSubmitWait         time.Duration  `mapstructure:"post_submit_wait" yaml:"post_submit_wait"`
	MaxRetries             int            `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelayMin          time.Duration  `mapstructure:"retry_delay_min" yaml:"retry_delay_min"`
	RetryDelayMax          time.Duration  `mapstructure:"retry_delay_max" yaml:"retry_delay_max"`
	SuccessKeywords        []string       `mapstructure:"success_keywords" yaml:"success_keywords"`
	ErrorKeywords          []string       `mapstructure:"error_keywords" yaml:"error_keywords"`
	IndeterminateIsSuccess bool           `mapstructure:"indeterminate_is_success" yaml:"indeterminate_is_success"`
	ArtifactsDir           string         `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
	ExtraPaths             []string       `mapstructure:"extra_paths" yaml:"extra_paths"`
	Locators               LocatorsConfig `mapstructure:"locators" yaml:"locators"`
}

// LocatorsConfig overrides the built-in locator chains. An empty list keeps the default.
type LocatorsConfig struct {
	Username []LocatorConfig `mapstructure:"username" yaml:"username"`
	Password []LocatorConfig `mapstructure:"password" yaml:"password"`
	Submit   []LocatorConfig `mapstructure:"submit" yaml:"submit"`
}

// LocatorConfig is one entry of a locator chain.
type LocatorConfig struct {
	Strategy string `mapstructure:"strategy" yaml:"strategy"`
	Selector string `mapstructure:"selector" yaml:"selector"`
}

// BatchConfig controls pacing between accounts.
type BatchConfig struct {
	DelayMin time.Duration `mapstructure:"delay_min" yaml:"delay_min"`
	DelayMax time.Duration `mapstructure:"delay_max" yaml:"delay_max"`
}

// AccountsConfig locates the account list.
type AccountsConfig struct {
	File string `mapstructure:"file" yaml:"file"`
	Env  string `mapstructure:"env" yaml:"env"`
}

// NotifyConfig configures the notification sinks.
type NotifyConfig struct {
	Timeout  time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook" yaml:"webhook"`
}

// TelegramConfig holds the bot credentials. Both values are secrets and are
// normally supplied through TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID.
type TelegramConfig struct {
	Token   string  `mapstructure:"token" yaml:"-"`
	ChatID  string  `mapstructure:"chat_id" yaml:"-"`
	APIBase string  `mapstructure:"api_base" yaml:"api_base"`
	Rate    float64 `mapstructure:"rate" yaml:"rate"`
}

// WebhookConfig posts the run summary as JSON to an arbitrary endpoint.
type WebhookConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ReportConfig controls the on-disk run report.
type ReportConfig struct {
	// File is where the report is written. Empty disables it.
	File string `mapstructure:"file" yaml:"file"`
	// Format is "markdown" (or "md") or "text".
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate checks the report format.
func (r *ReportConfig) Validate() error {
	switch r.Format {
	case "markdown", "md", "text":
		return nil
	default:
		return fmt.Errorf("report.format %q is not one of markdown, md, text", r.Format)
	}
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "keepalive")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.persona.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36")
	v.SetDefault("browser.persona.platform", "Win32")
	v.SetDefault("browser.persona.languages", []string{"en-US", "en"})
	v.SetDefault("browser.persona.timezone", "")
	v.SetDefault("browser.persona.width", 1366)
	v.SetDefault("browser.persona.height", 768)

	// -- Login --
	v.SetDefault("login.navigation_timeout", "30s")
	v.SetDefault("login.locator_timeout", "5s")
	v.SetDefault("login.settle_delay", "500ms")
	v.SetDefault("login.post_submit_wait", "3s")
	v.SetDefault("login.max_retries", 2)
	v.SetDefault("login.retry_delay_min", "1s")
	v.SetDefault("login.retry_delay_max", "3s")
	v.SetDefault("login.success_keywords", []string{
		"dashboard", "panel", "account", "welcome", "profile",
		"logged", "logout", "wyloguj", "strona główna", "首页",
	})
	v.SetDefault("login.error_keywords", []string{
		"error", "invalid", "unauthorized", "forbidden", "incorrect",
		"wrong", "nieprawidłow", "błąd", "错误",
	})
	v.SetDefault("login.indeterminate_is_success", true)
	v.SetDefault("login.artifacts_dir", "")
	v.SetDefault("login.extra_paths", []string{})

	// -- Batch --
	v.SetDefault("batch.delay_min", "1s")
	v.SetDefault("batch.delay_max", "8s")

	// -- Accounts --
	v.SetDefault("accounts.file", "accounts.json")
	v.SetDefault("accounts.env", "ACCOUNTS_JSON")

	// -- Notify --
	v.SetDefault("notify.timeout", "15s")
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("notify.telegram.rate", 1.0)

	// -- Report --
	v.SetDefault("report.file", "")
	v.SetDefault("report.format", "markdown")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets keep the names the deployment workflows already export.
	_ = v.BindEnv("notify.telegram.token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("notify.telegram.chat_id", "TELEGRAM_CHAT_ID")
	_ = v.BindEnv("database.url", "KEEPALIVE_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Login.Validate(); err != nil {
		return fmt.Errorf("login configuration invalid: %w", err)
	}
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch configuration invalid: %w", err)
	}
	if err := c.Report.Validate(); err != nil {
		return fmt.Errorf("report configuration invalid: %w", err)
	}
	if c.Notify.Telegram.Rate < 0 {
		return fmt.Errorf("notify.telegram.rate must not be negative")
	}
	return nil
}

// Validate checks the login timings.
func (l *LoginConfig) Validate() error {
	if l.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be a positive duration")
	}
	if l.LocatorTimeout <= 0 {
		return fmt.Errorf("locator_timeout must be a positive duration")
	}
	if l.SettleDelay < 0 || l.PostSubmitWait < 0 {
		return fmt.Errorf("settle_delay and post_submit_wait must not be negative")
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if l.RetryDelayMin < 0 || l.RetryDelayMax < l.RetryDelayMin {
		return fmt.Errorf("retry delay window [%s, %s] is invalid", l.RetryDelayMin, l.RetryDelayMax)
	}
	return nil
}

// Validate checks the pacing window.
func (b *BatchConfig) Validate() error {
	if b.DelayMin < 0 || b.DelayMax < b.DelayMin {
		return fmt.Errorf("delay window [%s, %s] is invalid", b.DelayMin, b.DelayMax)
	}
	return nil
}
