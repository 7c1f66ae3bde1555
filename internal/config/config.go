package config

import (
	"fmt"
	"os"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "IPMIFANCTL"
	DefaultConfigName = "ipmifanctl"
	DefaultConfigDir  = "/etc"
	DefaultLogLevel   = "info"
)

type Config struct {
	Interval         time.Duration `mapstructure:"interval"`
	UsageWindow      time.Duration `mapstructure:"usage_window"`
	SettlePause      time.Duration `mapstructure:"settle_pause"`
	ErrorBackoff     time.Duration `mapstructure:"error_backoff"`
	SnapshotEvery    int           `mapstructure:"snapshot_every"`
	AlertTemperature int           `mapstructure:"alert_temperature"`

	Ipmitool       string        `mapstructure:"ipmitool"`
	IpmiInterface  string        `mapstructure:"ipmi_interface"`
	IpmiRetries    int           `mapstructure:"ipmi_retries"`
	IpmiRetryDelay time.Duration `mapstructure:"ipmi_retry_delay"`
	Sudo           bool          `mapstructure:"sudo"`
	RestoreAuto    bool          `mapstructure:"restore_auto"`

	LogLevel    string `mapstructure:"log_level"`
	LogFile     string `mapstructure:"log_file"`
	MaxTempFile string `mapstructure:"max_temp_file"`
	PIDFile     string `mapstructure:"pid_file"`

	Metrics       bool   `mapstructure:"metrics"`
	MetricsDB     string `mapstructure:"metrics_db"`
	StatusAddr    string `mapstructure:"status_addr"`
	NotifyCommand string `mapstructure:"notify_command"`
}

var defaults = map[string]interface{}{
	"interval":          30 * time.Second,
	"usage_window":      time.Second,
	"settle_pause":      time.Second,
	"error_backoff":     30 * time.Second,
	"snapshot_every":    10,
	"alert_temperature": 80,
	"ipmitool":          "/usr/bin/ipmitool",
	"ipmi_interface":    "open",
	"ipmi_retries":      3,
	"ipmi_retry_delay":  500 * time.Millisecond,
	"sudo":              false,
	"restore_auto":      true,
	"log_level":         DefaultLogLevel,
	"log_file":          "/tmp/ipmifanctl.log",
	"max_temp_file":     "/tmp/ipmifanctl.maxtemp",
	"pid_file":          "/tmp/ipmifanctl.pid",
	"metrics":           false,
	"metrics_db":        "/var/lib/ipmifanctl/metrics.db",
	"status_addr":       "",
	"notify_command":    "",
}

// Load reads defaults, the TOML config file, IPMIFANCTL_* environment
// variables and command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}
	if !o.argsSet {
		o.args = os.Args[1:]
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.AutomaticEnv()

	configPath := o.configPath
	if configPath == "" {
		configPath, _ = fs.GetString("config")
	}
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(DefaultConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// flagKeys maps config keys to their command line flag names.
var flagKeys = map[string]string{
	"interval":          "interval",
	"usage_window":      "usage-window",
	"settle_pause":      "settle-pause",
	"error_backoff":     "error-backoff",
	"snapshot_every":    "snapshot-every",
	"alert_temperature": "alert-temperature",
	"ipmitool":          "ipmitool",
	"ipmi_interface":    "ipmi-interface",
	"ipmi_retries":      "ipmi-retries",
	"ipmi_retry_delay":  "ipmi-retry-delay",
	"sudo":              "sudo",
	"restore_auto":      "restore-auto",
	"log_level":         "log-level",
	"log_file":          "log-file",
	"max_temp_file":     "max-temp-file",
	"pid_file":          "pid-file",
	"metrics":           "metrics",
	"metrics_db":        "metrics-db",
	"status_addr":       "status-addr",
	"notify_command":    "notify-command",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("ipmifanctl", pflag.ContinueOnError)

	fs.String("config", "", "Path to the TOML config file")
	fs.Duration("interval", 30*time.Second, "Control loop period")
	fs.Duration("usage-window", time.Second, "CPU utilization sampling window")
	fs.Duration("settle-pause", time.Second, "Pause after acting, before the long wait")
	fs.Duration("error-backoff", 30*time.Second, "Wait after an invalid sample")
	fs.Int("snapshot-every", 10, "Log a system snapshot every N iterations")
	fs.Int("alert-temperature", 80, "Max temperature that raises an alert")
	fs.String("ipmitool", "/usr/bin/ipmitool", "Path to ipmitool")
	fs.String("ipmi-interface", "open", "ipmitool -I interface")
	fs.Int("ipmi-retries", 3, "Attempts per ipmitool command")
	fs.Duration("ipmi-retry-delay", 500*time.Millisecond, "Delay between ipmitool attempts")
	fs.Bool("sudo", false, "Run ipmitool through sudo")
	fs.Bool("restore-auto", true, "Restore automatic fan control on exit")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning, error")
	fs.String("log-file", "/tmp/ipmifanctl.log", "Append log lines to this file (empty disables)")
	fs.String("max-temp-file", "/tmp/ipmifanctl.maxtemp", "File holding the latest max temperature")
	fs.String("pid-file", "/tmp/ipmifanctl.pid", "PID file path")
	fs.Bool("metrics", false, "Record decisions in a sqlite database")
	fs.String("metrics-db", "/var/lib/ipmifanctl/metrics.db", "Metrics database path")
	fs.String("status-addr", "", "Listen address of the JSON status endpoint (empty disables)")
	fs.String("notify-command", "", "Command run on fan speed changes and alerts (empty disables)")

	return fs
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.Wrap(errors.ErrInvalidLogLevel,
			newValidationError("log_level", c.LogLevel, "must be one of debug, info, warning, error"))
	}

	if c.Interval <= 0 {
		return errFactory.Wrap(errors.ErrInvalidInterval,
			newValidationError("interval", c.Interval, "must be positive"))
	}

	if c.UsageWindow < 0 || c.SettlePause < 0 {
		return errFactory.Wrap(errors.ErrInvalidInterval,
			newValidationError("usage_window", c.UsageWindow, "pauses must not be negative"))
	}

	if c.UsageWindow+c.SettlePause > c.Interval {
		return errFactory.Wrap(errors.ErrInvalidInterval,
			newValidationError("interval", c.Interval, "must cover usage_window plus settle_pause"))
	}

	if c.ErrorBackoff <= 0 {
		return errFactory.Wrap(errors.ErrInvalidInterval,
			newValidationError("error_backoff", c.ErrorBackoff, "must be positive"))
	}

	checks := []struct {
		ok     bool
		field  string
		value  interface{}
		reason string
	}{
		{c.SnapshotEvery > 0, "snapshot_every", c.SnapshotEvery, "must be positive"},
		{c.IpmiRetries > 0, "ipmi_retries", c.IpmiRetries, "must be at least 1"},
		{c.IpmiRetryDelay >= 0, "ipmi_retry_delay", c.IpmiRetryDelay, "must not be negative"},
		{c.Ipmitool != "", "ipmitool", c.Ipmitool, "must not be empty"},
		{!c.Metrics || c.MetricsDB != "", "metrics_db", c.MetricsDB, "required when metrics is enabled"},
	}
	for _, check := range checks {
		if !check.ok {
			return errFactory.Wrap(errors.ErrInvalidConfig,
				newValidationError(check.field, check.value, check.reason))
		}
	}

	return nil
}

type validationError struct {
	field  string
	value  interface{}
	reason string
}

func newValidationError(field string, value interface{}, reason string) ValidationError {
	return &validationError{field: field, value: value, reason: reason}
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.field, e.value, e.reason)
}

func (e *validationError) Field() string      { return e.field }
func (e *validationError) Value() interface{} { return e.value }
func (e *validationError) Reason() string     { return e.reason }
