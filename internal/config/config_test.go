// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "keepalive", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)

	assert.Equal(t, 500*time.Millisecond, cfg.Login.SettleDelay)
	assert.Equal(t, 3*time.Second, cfg.Login.PostSubmitWait)
	assert.Equal(t, 2, cfg.Login.MaxRetries)
	assert.True(t, cfg.Login.IndeterminateIsSuccess)
	assert.Contains(t, cfg.Login.SuccessKeywords, "dashboard")
	assert.Contains(t, cfg.Login.SuccessKeywords, "wyloguj")
	assert.Contains(t, cfg.Login.ErrorKeywords, "invalid")

	assert.Equal(t, time.Second, cfg.Batch.DelayMin)
	assert.Equal(t, 8*time.Second, cfg.Batch.DelayMax)
	assert.Equal(t, "accounts.json", cfg.Accounts.File)
	assert.Equal(t, "ACCOUNTS_JSON", cfg.Accounts.Env)
	assert.Equal(t, "markdown", cfg.Report.Format)
	assert.Empty(t, cfg.Report.File)

	assert.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Validation Tests --

func TestConfig_Validate(t *testing.T) {
	t.Run("Login Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Login
		assert.NoError(t, valid.Validate())

		noNav := valid
		noNav.NavigationTimeout = 0
		err := noNav.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "navigation_timeout must be a positive duration")

		negRetries := valid
		negRetries.MaxRetries = -1
		err = negRetries.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_retries must not be negative")

		inverted := valid
		inverted.RetryDelayMin = 5 * time.Second
		inverted.RetryDelayMax = time.Second
		err = inverted.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retry delay window")
	})

	t.Run("Batch Validation", func(t *testing.T) {
		b := BatchConfig{DelayMin: 2 * time.Second, DelayMax: time.Second}
		err := b.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delay window")

		b = BatchConfig{}
		assert.NoError(t, b.Validate(), "a zero window disables pacing")
	})

	t.Run("Report Validation", func(t *testing.T) {
		for _, format := range []string{"markdown", "md", "text"} {
			r := ReportConfig{Format: format}
			assert.NoError(t, r.Validate(), format)
		}
		r := ReportConfig{Format: "pdf"}
		err := r.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `report.format "pdf"`)

		cfg := NewDefaultConfig()
		cfg.Report.Format = ""
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "report configuration invalid")
	})

	t.Run("Root wraps section errors", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Batch.DelayMin = -time.Second
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch configuration invalid")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
login:
  max_retries: 4
  post_submit_wait: 5s
  extra_paths: ["/login/?next=/"]
  locators:
    username:
      - strategy: css
        selector: "#login"
batch:
  delay_max: 2s
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 4, cfg.Login.MaxRetries)
		assert.Equal(t, 5*time.Second, cfg.Login.PostSubmitWait)
		assert.Equal(t, []string{"/login/?next=/"}, cfg.Login.ExtraPaths)
		require.Len(t, cfg.Login.Locators.Username, 1)
		assert.Equal(t, LocatorConfig{Strategy: "css", Selector: "#login"}, cfg.Login.Locators.Username[0])
		assert.Empty(t, cfg.Login.Locators.Password)
		assert.Equal(t, 2*time.Second, cfg.Batch.DelayMax)
		// Untouched keys keep their defaults.
		assert.Equal(t, time.Second, cfg.Batch.DelayMin)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("login.locator_timeout", "0s")

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "locator_timeout must be a positive duration")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
database:
  url: "postgres://configfile/db"
`)))

		t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
		t.Setenv("TELEGRAM_CHAT_ID", "-100200")
		t.Setenv("KEEPALIVE_DATABASE_URL", "postgres://envvar/db")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "123:abc", cfg.Notify.Telegram.Token)
		assert.Equal(t, "-100200", cfg.Notify.Telegram.ChatID)
		assert.Equal(t, "postgres://envvar/db", cfg.Database.URL, "env must override the config file")
	})
}
