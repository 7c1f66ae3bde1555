package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/config"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ipmifanctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
interval = "20s"
usage_window = "2s"
settle_pause = "500ms"
error_backoff = "15s"
snapshot_every = 5
alert_temperature = 75
ipmitool = "/opt/bin/ipmitool"
ipmi_interface = "lanplus"
ipmi_retries = 5
log_level = "debug"
log_file = ""
metrics = true
metrics_db = "/path/to/metrics.db"
status_addr = "127.0.0.1:60001"
notify_command = "/usr/local/bin/fan-notify --quiet"
restore_auto = false
`)

	cfg, err := config.Load(config.WithConfigFile(path), config.WithArgs(nil))
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.Interval, "Expected Interval 20s")
	assert.Equal(t, 2*time.Second, cfg.UsageWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.SettlePause)
	assert.Equal(t, 15*time.Second, cfg.ErrorBackoff)
	assert.Equal(t, 5, cfg.SnapshotEvery)
	assert.Equal(t, 75, cfg.AlertTemperature)
	assert.Equal(t, "/opt/bin/ipmitool", cfg.Ipmitool)
	assert.Equal(t, "lanplus", cfg.IpmiInterface)
	assert.Equal(t, 5, cfg.IpmiRetries)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, "/path/to/metrics.db", cfg.MetricsDB)
	assert.Equal(t, "127.0.0.1:60001", cfg.StatusAddr)
	assert.Equal(t, "/usr/local/bin/fan-notify --quiet", cfg.NotifyCommand)
	assert.False(t, cfg.RestoreAuto)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(config.WithArgs(nil), config.WithEnvPrefix("IPMIFANCTL_TEST_DEFAULTS"))
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, time.Second, cfg.UsageWindow)
	assert.Equal(t, time.Second, cfg.SettlePause)
	assert.Equal(t, 30*time.Second, cfg.ErrorBackoff)
	assert.Equal(t, 10, cfg.SnapshotEvery)
	assert.Equal(t, 80, cfg.AlertTemperature)
	assert.Equal(t, "open", cfg.IpmiInterface)
	assert.Equal(t, 3, cfg.IpmiRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.IpmiRetryDelay)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, "/tmp/ipmifanctl.maxtemp", cfg.MaxTempFile)
	assert.True(t, cfg.RestoreAuto)
	assert.False(t, cfg.Metrics)
	assert.Empty(t, cfg.StatusAddr)
	assert.Empty(t, cfg.NotifyCommand)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, `
This is not a valid TOML file
`)

	_, err := config.Load(config.WithConfigFile(path), config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(
		config.WithConfigFile(filepath.Join(t.TempDir(), "nope.toml")),
		config.WithArgs(nil),
	)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level = "invalid"
`)

	_, err := config.Load(config.WithConfigFile(path), config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))

	var verr config.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "log_level", verr.Field())
	assert.Equal(t, "invalid", verr.Value())
}

func TestLogLevelFlag(t *testing.T) {
	path := writeConfig(t, `log_level = "warning"`)

	cfg, err := config.Load(
		config.WithConfigFile(path),
		config.WithArgs([]string{"--log-level", "debug", "--interval", "45s", "--notify-command", "logger -t fans"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
	assert.Equal(t, 45*time.Second, cfg.Interval)
	assert.Equal(t, "logger -t fans", cfg.NotifyCommand)
}

func TestConfigFlag(t *testing.T) {
	path := writeConfig(t, `snapshot_every = 3`)

	cfg, err := config.Load(config.WithArgs([]string{"--config", path}))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.SnapshotEvery)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `ipmi_interface = "lanplus"`)
	t.Setenv("IPMIFANCTL_IPMI_INTERFACE", "open")

	cfg, err := config.Load(config.WithConfigFile(path), config.WithArgs(nil))
	require.NoError(t, err)
	assert.Equal(t, "open", cfg.IpmiInterface)
}

func TestValidate(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			Interval:      30 * time.Second,
			UsageWindow:   time.Second,
			SettlePause:   time.Second,
			ErrorBackoff:  30 * time.Second,
			SnapshotEvery: 10,
			Ipmitool:      "/usr/bin/ipmitool",
			IpmiRetries:   3,
			LogLevel:      "info",
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		code   errors.ErrorCode
	}{
		{"valid", func(*config.Config) {}, ""},
		{"zero interval", func(c *config.Config) { c.Interval = 0 }, errors.ErrInvalidInterval},
		{"pauses exceed interval", func(c *config.Config) { c.UsageWindow = 40 * time.Second }, errors.ErrInvalidInterval},
		{"zero backoff", func(c *config.Config) { c.ErrorBackoff = 0 }, errors.ErrInvalidInterval},
		{"zero retries", func(c *config.Config) { c.IpmiRetries = 0 }, errors.ErrInvalidConfig},
		{"metrics without db", func(c *config.Config) { c.Metrics = true }, errors.ErrInvalidConfig},
		{"bad log level", func(c *config.Config) { c.LogLevel = "trace" }, errors.ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}
